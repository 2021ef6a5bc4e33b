package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"go-covid-pipeline/internal/model"
	"go-covid-pipeline/internal/store"
	"go-covid-pipeline/pkg/router"
)

const runsPrefix = "/api/v1/runs/"

// CreateRun starts a pipeline run
// @Summary Create a new run
// @Description Start a pipeline run over the dataset with optional location and date filters and export targets. The run executes in the background.
// @Tags runs
// @Accept json
// @Produce json
// @Param run body model.RunSpec true "Run configuration"
// @Success 202 {object} map[string]interface{} "Run accepted"
// @Failure 400 {string} string "Invalid request payload"
// @Failure 500 {string} string "Internal server error"
// @Failure 503 {string} string "Run store not configured"
// @Router /runs [post]
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	var spec model.RunSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := validateSpec(spec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID := uuid.New().String()
	if err := store.SaveRun(runID, spec); err != nil {
		h.Logger.Error("Failed to save run", "run_id", runID, "error", err)
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	ctx := context.Background()
	cancel := func() {}
	if h.RunTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.RunTimeout)
	}
	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		defer cancel()
		// failures are recorded against the run by the runner
		if _, err := h.Runner.Run(ctx, runID, spec); err != nil {
			h.Logger.Error("Run failed", "run_id", runID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":    "Run created successfully",
		"run_id":     runID,
		"status":     model.StatusPending,
		"created_at": time.Now().UTC(),
	})
}

// ListRuns lists all runs
// @Summary List runs
// @Description All pipeline runs with their status, newest first
// @Tags runs
// @Produce json
// @Success 200 {array} model.Run "Runs"
// @Failure 500 {string} string "Internal server error"
// @Failure 503 {string} string "Run store not configured"
// @Router /runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	runs, err := store.ListRuns()
	if err != nil {
		h.Logger.Error("Failed to list runs", "error", err)
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one run with its errors
// @Summary Get run
// @Description Details of a pipeline run and any errors recorded against it
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run details"
// @Failure 400 {string} string "Invalid run ID"
// @Failure 404 {string} string "Run not found"
// @Router /runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r, "")
	if !ok {
		return
	}
	run, ok := h.lookupRun(w, runID)
	if !ok {
		return
	}
	errs, err := store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}
	if errs == nil {
		errs = []model.RunError{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":    run,
		"errors": errs,
	})
}

// GetRunProgress returns stage timings of a run
// @Summary Get run progress
// @Description Status, timing and record counts of each stage of a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run progress"
// @Failure 400 {string} string "Invalid run ID"
// @Failure 404 {string} string "Run not found"
// @Router /runs/{id}/progress [get]
func (h *Handler) GetRunProgress(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r, "/progress")
	if !ok {
		return
	}
	run, ok := h.lookupRun(w, runID)
	if !ok {
		return
	}
	stages, err := store.GetStageProgress(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve progress", http.StatusInternalServerError)
		return
	}
	if stages == nil {
		stages = []model.StageProgress{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"status": run.Status,
		"stages": stages,
	})
}

// GetRunWeekly returns the weekly rows a run exported to the database
// @Summary Get run weekly rows
// @Description Weekly series stored by a run with a database export, optionally for one location
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Param location query string false "Location name"
// @Success 200 {object} map[string]interface{} "Weekly rows"
// @Failure 400 {string} string "Invalid run ID"
// @Failure 404 {string} string "Run not found"
// @Router /runs/{id}/weekly [get]
func (h *Handler) GetRunWeekly(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r, "/weekly")
	if !ok {
		return
	}
	ws, err := store.GetWeeklyRows(runID, r.URL.Query().Get("location"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to retrieve weekly rows", http.StatusInternalServerError)
		return
	}
	rows := ws.Rows
	if rows == nil {
		rows = []model.WeeklyRow{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"metrics": ws.Metrics,
		"rows":    rows,
		"count":   len(rows),
	})
}

func (h *Handler) requireStore(w http.ResponseWriter) bool {
	if store.Enabled() {
		return true
	}
	http.Error(w, "Run store not configured", http.StatusServiceUnavailable)
	return false
}

func (h *Handler) runID(w http.ResponseWriter, r *http.Request, suffix string) (string, bool) {
	if !h.requireStore(w) {
		return "", false
	}
	runID, ok := router.PathParam(r.URL.Path, runsPrefix, suffix)
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return "", false
	}
	return runID, true
}

func (h *Handler) lookupRun(w http.ResponseWriter, runID string) (model.Run, bool) {
	run, err := store.GetRun(runID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return model.Run{}, false
	}
	if err != nil {
		h.Logger.Error("Failed to fetch run", "run_id", runID, "error", err)
		http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
		return model.Run{}, false
	}
	return run, true
}

func validateSpec(spec model.RunSpec) error {
	from, err := time.Parse(model.DateLayout, orDefault(spec.From, "0001-01-01"))
	if err != nil {
		return errors.New("invalid from: expected YYYY-MM-DD")
	}
	to, err := time.Parse(model.DateLayout, orDefault(spec.To, "9999-12-31"))
	if err != nil {
		return errors.New("invalid to: expected YYYY-MM-DD")
	}
	if to.Before(from) {
		return errors.New("invalid range: from is after to")
	}
	if spec.Export != nil && spec.Export.File != "" && !filepath.IsLocal(spec.Export.File) {
		return errors.New("export file must be a relative path inside the working directory")
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
