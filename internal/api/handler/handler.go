package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go-covid-pipeline/internal/model"
	"go-covid-pipeline/internal/pipeline"
)

// Handler serves the dataset queries and the run endpoints.
type Handler struct {
	Session    *pipeline.Session
	Runner     *pipeline.Runner
	Logger     *slog.Logger
	RunTimeout time.Duration // bounds runs started by POST /runs, 0 means none

	runs sync.WaitGroup
}

// New creates a handler over session. Runs started through the API use runner.
func New(session *pipeline.Session, runner *pipeline.Runner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Session: session, Runner: runner, Logger: logger}
}

// Wait blocks until every run started through the API has finished.
func (h *Handler) Wait() {
	h.runs.Wait()
}

// records loads the session's record set. On failure it writes 503 and returns false.
func (h *Handler) records(w http.ResponseWriter, r *http.Request) (*model.RecordSet, bool) {
	rs, err := h.Session.Records(r.Context())
	if err != nil {
		h.loadFailed(w, err)
		return nil, false
	}
	return rs, true
}

func (h *Handler) weekly(w http.ResponseWriter, r *http.Request) (*model.WeeklySeries, bool) {
	ws, err := h.Session.Weekly(r.Context())
	if err != nil {
		h.loadFailed(w, err)
		return nil, false
	}
	return ws, true
}

func (h *Handler) loadFailed(w http.ResponseWriter, err error) {
	h.Logger.Error("Dataset unavailable", "error", err)
	if errors.Is(err, context.Canceled) {
		http.Error(w, "Request cancelled", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, err.Error(), http.StatusServiceUnavailable)
}

// queryError maps query-layer errors to a status code.
func queryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrUnknownMetric):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrInsufficientData):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// dateParam parses an optional 2006-01-02 query parameter.
func dateParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(model.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", name, v)
	}
	return t, nil
}

func dateRange(r *http.Request) (from, to time.Time, err error) {
	if from, err = dateParam(r, "from"); err != nil {
		return
	}
	if to, err = dateParam(r, "to"); err != nil {
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		err = fmt.Errorf("invalid range: from is after to")
	}
	return
}

// intParam parses an optional positive integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a positive integer", name, v)
	}
	return n, nil
}
