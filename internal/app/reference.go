package app

import (
	"context"
	"fmt"
	"time"

	"eod-normalizer/internal/adjustment"
	"eod-normalizer/internal/config"
	"eod-normalizer/internal/corpaction"
	"eod-normalizer/internal/dedup"
	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/ingestion"
	"eod-normalizer/internal/symbols"
	"eod-normalizer/internal/validation"
)

// Reference is the read-only data a batch freezes before it starts.
type Reference struct {
	Validator    *validation.Validator
	Snapshot     *symbols.Snapshot
	Engine       *adjustment.Engine
	Calendar     *domain.TradingCalendar
	Deduplicator *dedup.Deduplicator
}

// LoadReference builds the validator, symbol snapshot, adjustment timelines,
// calendar and deduplicator for one batch.
func LoadReference(ctx context.Context, cfg config.EngineConfig, stores *Stores, snapshotVersion string, now func() time.Time) (*Reference, error) {
	rules := validation.DefaultRuleSet()
	if cfg.RulesFile != "" {
		rs, err := validation.LoadRuleSet(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = rs
	}
	validator, err := validation.NewValidator(rules, now)
	if err != nil {
		return nil, fmt.Errorf("build validator: %w", err)
	}

	cal := domain.NewTradingCalendar()
	if cfg.CalendarFile != "" {
		if cal, err = ingestion.LoadCalendarCSV(cfg.CalendarFile); err != nil {
			return nil, fmt.Errorf("load calendar: %w", err)
		}
	}

	snap, err := symbols.LoadSnapshot(ctx, stores.Symbols, snapshotVersion)
	if err != nil {
		return nil, err
	}

	engine := adjustment.NewEngine(stores.Actions)
	if err := engine.Load(ctx); err != nil {
		return nil, fmt.Errorf("load corporate actions: %w", err)
	}

	return &Reference{
		Validator:    validator,
		Snapshot:     snap,
		Engine:       engine,
		Calendar:     cal,
		Deduplicator: dedup.New(cfg.SourcePriority),
	}, nil
}

// NewParser builds the notice parser for cfg.
func NewParser(cfg config.EngineConfig, now func() time.Time) (*corpaction.Parser, error) {
	policy, err := corpaction.ParseDividendPolicy(cfg.DividendPolicy)
	if err != nil {
		return nil, err
	}
	return corpaction.NewParser(corpaction.Options{DividendPolicy: policy, Now: now}), nil
}
