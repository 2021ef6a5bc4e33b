package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"go-covid-pipeline/internal/model"
	"go-covid-pipeline/internal/store"
)

// Stage names recorded by StageTracker.
const (
	StageLoad      = "load"
	StageAggregate = "aggregate"
	StageExport    = "export"
)

// StageTracker times the stages of one run. Each transition is logged, observed
// in the stage duration histogram and, when the store is open, persisted.
type StageTracker struct {
	RunID  string
	Logger *slog.Logger

	mu     sync.Mutex
	stages map[string]*model.StageProgress
	order  []string
}

// NewStageTracker creates a tracker for runID
func NewStageTracker(runID string, logger *slog.Logger) *StageTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &StageTracker{
		RunID:  runID,
		Logger: logger.With("run_id", runID),
		stages: make(map[string]*model.StageProgress),
	}
}

// StartStage marks the start of a pipeline stage
func (t *StageTracker) StartStage(stage string) {
	now := time.Now().UTC()
	p := &model.StageProgress{
		RunID:     t.RunID,
		Stage:     stage,
		Status:    "running",
		StartedAt: &now,
	}

	t.mu.Lock()
	if _, ok := t.stages[stage]; !ok {
		t.order = append(t.order, stage)
	}
	t.stages[stage] = p
	t.mu.Unlock()

	t.Logger.Info("Stage started", "stage", stage)
	t.persist(*p)
}

// EndStage marks the end of a pipeline stage. A non-nil err marks it failed.
func (t *StageTracker) EndStage(stage string, recordsProcessed int, err error) {
	now := time.Now().UTC()

	t.mu.Lock()
	p, ok := t.stages[stage]
	if !ok {
		p = &model.StageProgress{RunID: t.RunID, Stage: stage, StartedAt: &now}
		t.stages[stage] = p
		t.order = append(t.order, stage)
	}
	p.EndedAt = &now
	p.RecordsProcessed = recordsProcessed
	p.Status = model.StatusCompleted
	if err != nil {
		p.Status = model.StatusFailed
	}
	snapshot := *p
	t.mu.Unlock()

	duration := now.Sub(*snapshot.StartedAt)
	stageDuration.WithLabelValues(stage, snapshot.Status).Observe(duration.Seconds())
	if err != nil {
		t.Logger.Error("Stage failed", "stage", stage, "duration", duration, "error", err)
	} else {
		t.Logger.Info("Stage completed", "stage", stage, "records", recordsProcessed, "duration", duration)
	}
	t.persist(snapshot)
}

// Stages returns the progress of every stage in start order.
func (t *StageTracker) Stages() []model.StageProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.StageProgress, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.stages[name])
	}
	return out
}

func (t *StageTracker) persist(p model.StageProgress) {
	if !store.Enabled() {
		return
	}
	if err := store.SaveStageProgress(p); err != nil {
		t.Logger.Warn("Failed to save stage progress", "stage", p.Stage, "error", err)
	}
}
