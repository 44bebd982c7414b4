// Package main runs one normalization batch:
// reference refresh → raw ingestion → validate/resolve/dedup/adjust → report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"eod-normalizer/internal/app"
	"eod-normalizer/internal/config"
	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/ingestion"
	"eod-normalizer/internal/logging"
	"eod-normalizer/internal/orchestrator"
	"eod-normalizer/internal/reporting"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	rawFile := flag.String("raw", "", "JSON-lines file of raw records to ingest before the batch")
	symbolsFile := flag.String("symbols", "", "Symbol master listing CSV to apply before the batch")
	noticesFile := flag.String("notices", "", "Corporate-action notices (.csv or .xlsx) to ingest before the batch")
	noticesSheet := flag.String("notices-sheet", "", "Sheet name for .xlsx notices")
	asOf := flag.String("as-of", "", "Effective date of the symbol master listing (default: today)")
	snapshotVersion := flag.String("snapshot-version", "", "Symbol snapshot version label (default: as-of date)")
	from := flag.String("from", "", "Start of the raw ingest-time range (YYYY-MM-DD or RFC3339)")
	to := flag.String("to", "", "End of the raw ingest-time range, inclusive (default: now)")
	reportDir := flag.String("report-dir", "", "Directory for the batch report and quarantine CSV (default: report to stdout)")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	stopMetrics := app.StartMetrics(cfg.Metrics, logger.Logger)
	defer stopMetrics()

	ctx, cancel := app.SignalContext()
	defer cancel()

	opts := runOptions{
		rawFile:      *rawFile,
		symbolsFile:  *symbolsFile,
		noticesFile:  *noticesFile,
		noticesSheet: *noticesSheet,
		reportDir:    *reportDir,
	}
	now := time.Now().UTC()
	if opts.asOf, err = app.ParseTime(*asOf, domain.DateOf(now)); err != nil {
		fail(logger.Logger, "invalid -as-of", err)
	}
	opts.snapshotVersion = *snapshotVersion
	if opts.snapshotVersion == "" {
		opts.snapshotVersion = domain.FormatDate(opts.asOf)
	}
	if opts.from, err = app.ParseTime(*from, time.Time{}); err != nil {
		fail(logger.Logger, "invalid -from", err)
	}
	if *to != "" {
		if opts.to, err = app.ParseTime(*to, now); err != nil {
			fail(logger.Logger, "invalid -to", err)
		}
		opts.to = app.EndOfDay(opts.to)
	}

	if err := run(ctx, cfg, opts, logger.Logger); err != nil {
		fail(logger.Logger, "normalization failed", err)
	}
}

type runOptions struct {
	rawFile         string
	symbolsFile     string
	noticesFile     string
	noticesSheet    string
	asOf            time.Time
	snapshotVersion string
	from, to        time.Time // zero to = now
	reportDir       string
}

func run(ctx context.Context, cfg *config.Config, opts runOptions, logger *slog.Logger) error {
	stores, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	clock := func() time.Time { return time.Now().UTC() }

	// Reference data first: notices resolve against the refreshed symbol master.
	if opts.symbolsFile != "" || opts.noticesFile != "" {
		if _, err := app.ApplyRefdata(ctx, cfg, stores, app.RefdataOptions{
			SymbolsFile:     opts.symbolsFile,
			NoticesFile:     opts.noticesFile,
			NoticesSheet:    opts.noticesSheet,
			AsOf:            opts.asOf,
			SnapshotVersion: opts.snapshotVersion,
		}, logger, clock); err != nil {
			return fmt.Errorf("refresh reference data: %w", err)
		}
	}

	if opts.rawFile != "" {
		m := ingestion.NewManager(ingestion.ManagerOptions{
			RawSource: &ingestion.JSONLRawSource{Path: opts.rawFile},
			RawStore:  stores.Raw,
			Logger:    logger,
			Now:       clock,
		})
		if _, err := m.IngestRawRecords(ctx); err != nil {
			return err
		}
	}
	// Open-ended range: everything ingested so far, including this run's file.
	if opts.to.IsZero() {
		opts.to = clock()
	}

	ref, err := app.LoadReference(ctx, cfg.Engine, stores, opts.snapshotVersion, clock)
	if err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.Options{
		Validator:       ref.Validator,
		Snapshot:        ref.Snapshot,
		Timelines:       ref.Engine,
		Calendar:        ref.Calendar,
		Deduplicator:    ref.Deduplicator,
		RawStore:        stores.Raw,
		NormalizedStore: stores.Normalized,
		QuarantineStore: stores.Quarantine,
		BatchRunStore:   stores.BatchRuns,
		Workers:         cfg.Engine.Workers,
		Logger:          logger,
	})

	result, runErr := orch.RunStored(ctx, opts.from, opts.to)
	if result == nil {
		return runErr
	}

	gen := reporting.NewGenerator(reporting.GeneratorOptions{
		ActionStore:   stores.Actions,
		BatchRunStore: stores.BatchRuns,
	})
	report, err := gen.FromRun(context.WithoutCancel(ctx), result, opts.snapshotVersion)
	if err != nil {
		return errors.Join(runErr, err)
	}
	if err := writeReport(report, result, opts.reportDir, logger); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func writeReport(report *reporting.Report, result *orchestrator.RunResult, dir string, logger *slog.Logger) error {
	md := reporting.RenderMarkdown(report)
	if dir == "" {
		fmt.Print(md)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	mdPath := filepath.Join(dir, fmt.Sprintf("REPORT_%s.md", result.BatchID))
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	csv, err := reporting.RenderQuarantineCSV(result.Quarantined)
	if err != nil {
		return fmt.Errorf("render quarantine csv: %w", err)
	}
	csvPath := filepath.Join(dir, fmt.Sprintf("quarantine_%s.csv", result.BatchID))
	if err := os.WriteFile(csvPath, []byte(csv), 0o644); err != nil {
		return fmt.Errorf("write quarantine csv: %w", err)
	}

	logger.Info("report written", slog.String("report", mdPath), slog.String("quarantine", csvPath))
	return nil
}

func fail(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
