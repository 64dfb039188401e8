package platform

import (
	"context"
	"fmt"
	"sync"

	"volant/internal/model"
	"volant/internal/storage"
)

type Config struct {
	Store storage.Store
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

// Tower supervises the store lifecycle and the registry of in-flight runs.
// Registered runs get their cancel functions invoked on shutdown, so a
// stopping tower never strands a worker pool.
type Tower struct {
	store storage.Store

	mu             sync.RWMutex
	started        bool
	lastStopReason StopReason
	runs           map[string]context.CancelFunc
}

var (
	defaultTowerMu sync.Mutex
	defaultTower   *Tower
)

func NewTower(cfg Config) *Tower {
	return &Tower{
		store:          cfg.Store,
		runs:           make(map[string]context.CancelFunc),
		lastStopReason: StopReasonNormal,
	}
}

// StartDefault initializes the process-wide tower, reusing a live one.
func StartDefault(ctx context.Context, cfg Config) (*Tower, error) {
	defaultTowerMu.Lock()
	defer defaultTowerMu.Unlock()

	if defaultTower != nil && defaultTower.Started() {
		return defaultTower, nil
	}

	tw := NewTower(cfg)
	if err := tw.Init(ctx); err != nil {
		return nil, err
	}
	defaultTower = tw
	return defaultTower, nil
}

func Default() (*Tower, bool) {
	defaultTowerMu.Lock()
	tw := defaultTower
	defaultTowerMu.Unlock()

	if tw == nil || !tw.Started() {
		return nil, false
	}
	return tw, true
}

func StopDefault(reason StopReason) error {
	defaultTowerMu.Lock()
	tw := defaultTower
	defaultTowerMu.Unlock()
	if tw == nil {
		return nil
	}
	if err := tw.StopWithReason(reason); err != nil {
		return err
	}
	defaultTowerMu.Lock()
	if defaultTower == tw {
		defaultTower = nil
	}
	defaultTowerMu.Unlock()
	return nil
}

func (t *Tower) Init(ctx context.Context) error {
	if t.store == nil {
		return fmt.Errorf("store is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}
	if err := t.store.Init(ctx); err != nil {
		return err
	}
	t.started = true
	return nil
}

func (t *Tower) Started() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.started
}

func (t *Tower) Store() storage.Store {
	return t.store
}

func (t *Tower) LastStopReason() StopReason {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastStopReason
}

// RegisterRun tracks an in-flight run so Stop can cancel it. Duplicate run
// IDs are rejected.
func (t *Tower) RegisterRun(runID string, cancel context.CancelFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return fmt.Errorf("tower is not started")
	}
	if _, exists := t.runs[runID]; exists {
		return fmt.Errorf("run %s is already registered", runID)
	}
	t.runs[runID] = cancel
	return nil
}

func (t *Tower) UnregisterRun(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.runs, runID)
}

// CancelRun cancels one registered run; reports whether it was known.
func (t *Tower) CancelRun(runID string) bool {
	t.mu.Lock()
	cancel, ok := t.runs[runID]
	delete(t.runs, runID)
	t.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (t *Tower) ActiveRuns() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.runs))
	for id := range t.runs {
		ids = append(ids, id)
	}
	return ids
}

func (t *Tower) Stop() error {
	return t.StopWithReason(StopReasonNormal)
}

func (t *Tower) StopWithReason(reason StopReason) error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	cancels := make([]context.CancelFunc, 0, len(t.runs))
	for _, cancel := range t.runs {
		cancels = append(cancels, cancel)
	}
	t.runs = make(map[string]context.CancelFunc)
	t.started = false
	t.lastStopReason = reason
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return storage.CloseIfSupported(t.store)
}

// PersistRun saves everything a completed run leaves behind: its genome,
// feasible candidates, fitness series, and summary.
func (t *Tower) PersistRun(ctx context.Context, summary model.RunSummaryRecord, genome *model.Genome, candidates []model.CandidateRecord, history []model.FitnessPoint) error {
	if !t.Started() {
		return fmt.Errorf("tower is not started")
	}
	if summary.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if genome != nil {
		stamped := *genome
		stamped.VersionedRecord = storage.Stamp()
		if err := t.store.SaveGenome(ctx, stamped); err != nil {
			return err
		}
	}
	if candidates != nil {
		if err := t.store.SaveCandidates(ctx, summary.RunID, candidates); err != nil {
			return err
		}
	}
	if history != nil {
		if err := t.store.SaveFitnessHistory(ctx, summary.RunID, history); err != nil {
			return err
		}
	}
	summary.VersionedRecord = storage.Stamp()
	return t.store.SaveRunSummary(ctx, summary)
}
