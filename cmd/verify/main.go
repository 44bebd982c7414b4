// Package main replays stored raw input through the pipeline and checks the
// result against the stored normalized output and batch fingerprint.
// Exit status is 1 when the replay diverges.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"eod-normalizer/internal/app"
	"eod-normalizer/internal/config"
	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/logging"
	"eod-normalizer/internal/verification"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	batchID := flag.String("batch", "", "Batch id to check the fingerprint against (default: latest batch)")
	from := flag.String("from", "", "Start of the raw ingest-time range the batch covered")
	to := flag.String("to", "", "End of the raw ingest-time range, inclusive (default: now)")
	snapshotVersion := flag.String("snapshot-version", "", "Symbol snapshot version label")
	verbose := flag.Bool("verbose", false, "Print every divergent record")
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

	ctx, cancel := app.SignalContext()
	defer cancel()

	now := time.Now().UTC()
	start, err := app.ParseTime(*from, time.Time{})
	if err != nil {
		logger.Error("invalid -from", slog.String("error", err.Error()))
		os.Exit(1)
	}
	end, err := app.ParseTime(*to, now)
	if err != nil {
		logger.Error("invalid -to", slog.String("error", err.Error()))
		os.Exit(1)
	}
	end = app.EndOfDay(end)

	stores, err := app.OpenStores(ctx, cfg.Storage, logger.Logger)
	if err != nil {
		logger.Error("open stores", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer stores.Close()

	version := *snapshotVersion
	if version == "" {
		version = domain.FormatDate(now)
	}
	ref, err := app.LoadReference(ctx, cfg.Engine, stores, version, func() time.Time { return now })
	if err != nil {
		logger.Error("load reference data", slog.String("error", err.Error()))
		os.Exit(1)
	}

	verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		RawStore:        stores.Raw,
		NormalizedStore: stores.Normalized,
		BatchRunStore:   stores.BatchRuns,
		Validator:       ref.Validator,
		Snapshot:        ref.Snapshot,
		Timelines:       ref.Engine,
		Calendar:        ref.Calendar,
		Deduplicator:    ref.Deduplicator,
		Workers:         cfg.Engine.Workers,
		Logger:          logger.Logger,
	})

	report, err := verifier.VerifyBatch(ctx, *batchID, start, end)
	if err != nil {
		logger.Error("verification failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("Records: %d total, %d matched, %d divergent\n",
		report.TotalRecords, report.MatchedRecords, report.DivergentRecords)
	fmt.Printf("Fingerprint: stored %s, replayed %s, batch %s\n",
		report.StoredFingerprint, report.ReplayedFingerprint, report.BatchFingerprint)
	if len(report.FailedInstruments) > 0 {
		fmt.Printf("Failed instruments: %v\n", report.FailedInstruments)
	}

	if *verbose {
		for _, r := range report.Results {
			if r.Match {
				continue
			}
			fmt.Printf("  %s %s missing=%t extra=%t\n", r.InstrumentID, r.TradeDate, r.Missing, r.Extra)
			for _, d := range r.Divergences {
				fmt.Printf("    %s: stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
			}
		}
	}

	if !report.Match() {
		fmt.Println("RESULT: DIVERGED")
		os.Exit(1)
	}
	fmt.Println("RESULT: REPRODUCED")
}
