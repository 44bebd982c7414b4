// Package main refreshes reference data: the SCD2 symbol master and the
// append-only corporate-action event store.
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
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	symbolsFile := flag.String("symbols", "", "Symbol master listing CSV")
	noticesFile := flag.String("notices", "", "Corporate-action notices (.csv or .xlsx)")
	noticesSheet := flag.String("notices-sheet", "", "Sheet name for .xlsx notices")
	asOf := flag.String("as-of", "", "Effective date of the listing (default: today)")
	listReview := flag.Bool("list-review", false, "Print corporate actions awaiting manual review")
	flag.Parse()

	if *symbolsFile == "" && *noticesFile == "" && !*listReview {
		fmt.Fprintln(os.Stderr, "Nothing to do: pass -symbols, -notices or -list-review")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.UseMemory {
		fmt.Fprintln(os.Stderr, "refdata needs persistent storage; in-memory stores are lost on exit")
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

	effective, err := app.ParseTime(*asOf, domain.DateOf(time.Now().UTC()))
	if err != nil {
		logger.Error("invalid -as-of", slog.String("error", err.Error()))
		os.Exit(1)
	}

	stores, err := app.OpenStores(ctx, cfg.Storage, logger.Logger)
	if err != nil {
		logger.Error("open stores", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer stores.Close()

	if *symbolsFile != "" || *noticesFile != "" {
		res, err := app.ApplyRefdata(ctx, cfg, stores, app.RefdataOptions{
			SymbolsFile:     *symbolsFile,
			NoticesFile:     *noticesFile,
			NoticesSheet:    *noticesSheet,
			AsOf:            effective,
			SnapshotVersion: domain.FormatDate(effective),
		}, logger.Logger, func() time.Time { return time.Now().UTC() })
		if err != nil {
			logger.Error("refresh failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		fmt.Printf("Symbol master: %d opened, %d closed, %d unchanged\n",
			len(res.Plan.Open), len(res.Plan.Close), res.Plan.Unchanged)
		fmt.Printf("Notices: %d parsed, %d inserted, %d already stored, %d needs review\n",
			res.Notices.Parsed, res.Notices.Inserted, res.Notices.Duplicates, res.Notices.NeedsReview)
		for _, r := range res.Notices.Rejected {
			fmt.Printf("  rejected %s/%s %s (%s): %v\n",
				r.Notice.Exchange, r.Notice.Symbol, domain.FormatDate(r.Notice.ExDate), r.ReasonCode, r.Err)
		}
	}

	if *listReview {
		events, err := stores.Actions.GetNeedsReview(ctx)
		if err != nil {
			logger.Error("load review queue", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("Corporate actions awaiting review: %d\n", len(events))
		for _, e := range events {
			fmt.Printf("  %s %s %s %s: %s (%s)\n",
				shortID(e.ActionID), e.InstrumentID, domain.FormatDate(e.ExDate), e.ActionType, e.Purpose, e.ReviewReason)
		}
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
