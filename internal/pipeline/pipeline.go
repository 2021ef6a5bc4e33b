package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-covid-pipeline/internal/model"
	"go-covid-pipeline/internal/store"
	"go-covid-pipeline/pkg/utils"
)

// Runner executes pipeline runs against a session.
type Runner struct {
	Session *Session
	Output  *utils.OutputManager
	Logger  *slog.Logger
}

// Run loads the dataset, narrows it to the spec's locations and date range,
// prepares the weekly series and exports it. Stages run one after another.
// Run status is kept in the store when it is open.
func (r *Runner) Run(ctx context.Context, runID string, spec model.RunSpec) (result *model.RunResult, err error) {
	start := time.Now()
	log := r.logger().With("run_id", runID)
	tracker := NewStageTracker(runID, r.logger())
	log.Info("Starting pipeline run")

	defer func() {
		if err != nil {
			r.setStatus(log, runID, model.StatusFailed)
			if store.Enabled() {
				if e := store.SaveRunError(runID, err); e != nil {
					log.Warn("Failed to save run error", "error", e)
				}
			}
		}
	}()

	from, to, err := parseRange(spec)
	if err != nil {
		return nil, err
	}

	// --- LOAD STAGE ---
	r.setStatus(log, runID, model.StatusLoading)
	tracker.StartStage(StageLoad)
	rs, err := r.Session.Records(ctx)
	if err != nil {
		tracker.EndStage(StageLoad, 0, err)
		return nil, err
	}
	rs = FilterLocations(FilterDateRange(rs, from, to), spec.Locations)
	tracker.EndStage(StageLoad, rs.Len(), nil)

	// --- AGGREGATION STAGE ---
	r.setStatus(log, runID, model.StatusAggregating)
	tracker.StartStage(StageAggregate)
	var ws *model.WeeklySeries
	if len(spec.Locations) == 0 && from.IsZero() && to.IsZero() {
		ws, err = r.Session.Weekly(ctx)
		if err != nil {
			tracker.EndStage(StageAggregate, 0, err)
			return nil, err
		}
	} else {
		ws = PrepareWeekly(rs)
	}
	tracker.EndStage(StageAggregate, len(ws.Rows), nil)

	if store.Enabled() {
		if err := store.UpdateRunCounts(runID, rs.Len(), len(ws.Rows)); err != nil {
			log.Warn("Failed to save run counts", "error", err)
		}
	}

	// --- EXPORT STAGE ---
	result = &model.RunResult{RunID: runID, Records: rs.Len(), Weekly: ws}
	if spec.Export != nil {
		r.setStatus(log, runID, model.StatusExporting)
		tracker.StartStage(StageExport)
		em := &ExportManager{RunID: runID, Spec: *spec.Export, Output: r.Output, Logger: log}
		result.Exports = em.Export(ctx, ws)

		var exportErrs []error
		for _, res := range result.Exports {
			if !res.Success {
				exportErrs = append(exportErrs, fmt.Errorf("export to %s %s failed: %s", res.Type, res.Path, res.Error))
			}
		}
		exportErr := errors.Join(exportErrs...)
		tracker.EndStage(StageExport, len(ws.Rows), exportErr)
		if exportErr != nil {
			result.Stages = tracker.Stages()
			result.Duration = time.Since(start)
			return result, exportErr
		}
	}

	result.Stages = tracker.Stages()
	result.Duration = time.Since(start)
	r.setStatus(log, runID, model.StatusCompleted)
	log.Info("Pipeline run completed", "records", result.Records, "weekly_rows", len(ws.Rows), "duration", result.Duration)
	return result, nil
}

func parseRange(spec model.RunSpec) (from, to time.Time, err error) {
	if spec.From != "" {
		if from, err = parseDate(spec.From); err != nil {
			return from, to, fmt.Errorf("invalid from: %w", err)
		}
	}
	if spec.To != "" {
		if to, err = parseDate(spec.To); err != nil {
			return from, to, fmt.Errorf("invalid to: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("invalid range: %s is after %s", spec.From, spec.To)
	}
	return from, to, nil
}

func (r *Runner) setStatus(log *slog.Logger, runID, status string) {
	if !store.Enabled() {
		return
	}
	if err := store.UpdateRunStatus(runID, status); err != nil {
		log.Warn("Failed to update run status", "status", status, "error", err)
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
