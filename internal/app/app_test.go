package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eod-normalizer/internal/config"
	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/ingestion"
)

var fixedNow = time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseTime(t *testing.T) {
	def := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", def, false},
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"2024-01-15T10:30:00+05:30", time.Date(2024, 1, 15, 5, 0, 0, 0, time.UTC), false},
		{"15/01/2024", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in, def)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestEndOfDay(t *testing.T) {
	d := domain.MustDate("2024-01-15")
	assert.Equal(t, time.Date(2024, 1, 15, 23, 59, 59, 999999999, time.UTC), EndOfDay(d))

	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, ts, EndOfDay(ts))
}

func TestNoticeSourceFor(t *testing.T) {
	src, err := NoticeSourceFor("notices.CSV", "")
	require.NoError(t, err)
	assert.IsType(t, &ingestion.CSVNoticeSource{}, src)

	src, err = NoticeSourceFor("notices.xlsx", "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", src.(*ingestion.XLSXNoticeSource).Sheet)

	_, err = NoticeSourceFor("notices.txt", "")
	assert.Error(t, err)
}

func TestOpenStores_Memory(t *testing.T) {
	stores, err := OpenStores(context.Background(), config.StorageConfig{UseMemory: true}, quietLogger())
	require.NoError(t, err)
	defer stores.Close()

	assert.NotNil(t, stores.Raw)
	assert.NotNil(t, stores.Symbols)
	assert.NotNil(t, stores.Actions)
	assert.NotNil(t, stores.Normalized)
	assert.NotNil(t, stores.Quarantine)
	assert.NotNil(t, stores.BatchRuns)
}

func TestApplyRefdataAndLoadReference(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Storage.UseMemory = true
	cfg.Engine.CalendarFile = writeFile(t, dir, "holidays.csv", "exchange,date\nNSE,2024-01-26\n")

	stores := NewMemoryStores()
	opts := RefdataOptions{
		SymbolsFile: writeFile(t, dir, "symbols.csv", "instrument_id,exchange,symbol\nINS1,NSE,ABC\n"),
		NoticesFile: writeFile(t, dir, "notices.csv",
			"exchange,symbol,purpose,ex_date\n"+
				"NSE,ABC,Face Value Split (Sub-Division) - From Rs 10/- to Re 1/-,2024-01-15\n"+
				"NSE,NOPE,Bonus 1:1,2024-01-15\n"),
		AsOf:            domain.MustDate("2020-01-01"),
		SnapshotVersion: "2020-01-01",
	}

	res, err := ApplyRefdata(ctx, cfg, stores, opts, quietLogger(), clock)
	require.NoError(t, err)
	assert.Len(t, res.Plan.Open, 1)
	assert.Equal(t, 1, res.Notices.Inserted)
	assert.Len(t, res.Notices.Rejected, 1)
	assert.Equal(t, 1, res.Snapshot.Len())

	ref, err := LoadReference(ctx, cfg.Engine, stores, "2020-01-01", clock)
	require.NoError(t, err)

	id, err := ref.Snapshot.Resolve("ABC", "NSE", domain.MustDate("2024-01-12"))
	require.NoError(t, err)
	assert.Equal(t, "INS1", id)

	factor, err := ref.Engine.CumulativeFactor("INS1", domain.MustDate("2024-01-12"))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, factor, 1e-12)

	assert.False(t, ref.Calendar.IsTradingDay("NSE", domain.MustDate("2024-01-26")))
	assert.Equal(t, "1", ref.Validator.Version())
}

func TestLoadReference_BadRulesFile(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := LoadReference(context.Background(), cfg.Engine, NewMemoryStores(), "v1", clock)
	assert.Error(t, err)
}
