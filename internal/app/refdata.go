package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"eod-normalizer/internal/config"
	"eod-normalizer/internal/corpaction"
	"eod-normalizer/internal/ingestion"
	"eod-normalizer/internal/lookup"
	"eod-normalizer/internal/symbols"
)

// historyStart bounds the normalized history scanned for reference closes.
var historyStart = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// RefdataOptions names the reference inputs of one refresh. Empty paths are skipped.
type RefdataOptions struct {
	SymbolsFile     string // symbol master listing CSV
	NoticesFile     string // .csv or .xlsx
	NoticesSheet    string // xlsx only; empty = first sheet with a notice header
	AsOf            time.Time
	SnapshotVersion string
}

// RefdataResult reports what a refresh changed.
type RefdataResult struct {
	Plan     *symbols.RefreshPlan
	Notices  *corpaction.IngestResult
	Snapshot *symbols.Snapshot // symbol master after the refresh
}

// NoticeSourceFor picks the notice reader by file extension.
func NoticeSourceFor(path, sheet string) (ingestion.NoticeSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return &ingestion.CSVNoticeSource{Path: path}, nil
	case ".xlsx":
		return &ingestion.XLSXNoticeSource{Path: path, Sheet: sheet}, nil
	default:
		return nil, fmt.Errorf("unsupported notice file %s: want .csv or .xlsx", path)
	}
}

// ApplyRefdata refreshes the symbol master, then ingests notices against the
// refreshed snapshot. Reference closes for price-dependent notices come from
// stored normalized history.
func ApplyRefdata(ctx context.Context, cfg *config.Config, stores *Stores, opts RefdataOptions, logger *slog.Logger, now func() time.Time) (*RefdataResult, error) {
	mopts := ingestion.ManagerOptions{
		SymbolStore: stores.Symbols,
		Logger:      logger,
		Now:         now,
	}
	if opts.SymbolsFile != "" {
		mopts.SymbolSource = &ingestion.CSVSymbolMasterSource{Path: opts.SymbolsFile}
	}

	if opts.NoticesFile != "" {
		src, err := NoticeSourceFor(opts.NoticesFile, opts.NoticesSheet)
		if err != nil {
			return nil, err
		}
		parser, err := NewParser(cfg.Engine, now)
		if err != nil {
			return nil, err
		}
		closes, err := lookup.LoadCloseIndex(ctx, stores.Normalized, historyStart, now().UTC().AddDate(1, 0, 0))
		if err != nil {
			return nil, err
		}
		mopts.NoticeSource = src
		mopts.Ingestor = corpaction.NewIngestor(parser, stores.Actions, closes, logger)
	}

	m := ingestion.NewManager(mopts)
	result := &RefdataResult{}

	plan, err := m.RefreshSymbolMaster(ctx, opts.AsOf)
	if err != nil {
		return nil, err
	}
	result.Plan = plan

	snap, err := symbols.LoadSnapshot(ctx, stores.Symbols, opts.SnapshotVersion)
	if err != nil {
		return nil, err
	}
	result.Snapshot = snap

	notices, err := m.IngestNotices(ctx, snap)
	if err != nil {
		return nil, err
	}
	result.Notices = notices
	return result, nil
}
