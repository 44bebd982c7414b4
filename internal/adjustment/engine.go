package adjustment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

// Engine holds every instrument's timeline for one batch. After Load it is
// read-only apart from Rebuild, and safe for concurrent use.
type Engine struct {
	mu        sync.RWMutex
	store     storage.CorporateActionStore
	timelines map[string]*Timeline
	failures  map[string]error // instruments whose event set is malformed
}

// NewEngine creates an empty engine bound to store.
func NewEngine(store storage.CorporateActionStore) *Engine {
	return &Engine{
		store:     store,
		timelines: make(map[string]*Timeline),
		failures:  make(map[string]error),
	}
}

// Load snapshots all stored events. A malformed instrument does not fail the
// load: its error is kept and returned by Timeline and CumulativeFactor.
func (e *Engine) Load(ctx context.Context) error {
	events, err := e.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load corporate actions: %w", err)
	}

	byInstrument := make(map[string][]*domain.CorporateActionEvent)
	for _, ev := range events {
		byInstrument[ev.InstrumentID] = append(byInstrument[ev.InstrumentID], ev)
	}

	timelines := make(map[string]*Timeline, len(byInstrument))
	failures := make(map[string]error)
	for id, list := range byInstrument {
		tl, err := BuildTimeline(id, list)
		if err != nil {
			failures[id] = err
			continue
		}
		timelines[id] = tl
	}

	e.mu.Lock()
	e.timelines = timelines
	e.failures = failures
	e.mu.Unlock()
	return nil
}

// Timeline returns the instrument's timeline. Instruments without events get
// an empty timeline (factor 1.0 everywhere).
func (e *Engine) Timeline(instrumentID string) (*Timeline, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err, ok := e.failures[instrumentID]; ok {
		return nil, err
	}
	if tl, ok := e.timelines[instrumentID]; ok {
		return tl, nil
	}
	return &Timeline{instrumentID: instrumentID}, nil
}

// CumulativeFactor returns the factor for a price of instrumentID dated asOf.
func (e *Engine) CumulativeFactor(instrumentID string, asOf time.Time) (float64, error) {
	tl, err := e.Timeline(instrumentID)
	if err != nil {
		return 0, err
	}
	f, _ := tl.FactorAt(asOf)
	return f, nil
}

// Rebuild re-derives one instrument's timeline from the store, e.g. after a
// historical action was backfilled.
func (e *Engine) Rebuild(ctx context.Context, instrumentID string) (*Timeline, error) {
	events, err := e.store.GetByInstrument(ctx, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", instrumentID, err)
	}

	tl, buildErr := BuildTimeline(instrumentID, events)

	e.mu.Lock()
	defer e.mu.Unlock()
	if buildErr != nil {
		delete(e.timelines, instrumentID)
		e.failures[instrumentID] = buildErr
		return nil, buildErr
	}
	delete(e.failures, instrumentID)
	e.timelines[instrumentID] = tl
	return tl, nil
}

// Failed returns the instruments whose timelines could not be built, sorted.
func (e *Engine) Failed() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.failures))
	for id := range e.failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
