package handler

import (
	"net/http"
	"strings"

	"go-covid-pipeline/internal/model"
	"go-covid-pipeline/internal/pipeline"
)

// GetLocations lists the countries in the dataset
// @Summary List locations
// @Description Sorted list of the real countries in the dataset. Aggregate rows such as World or Europe are excluded.
// @Tags dataset
// @Produce json
// @Success 200 {object} map[string]interface{} "Locations"
// @Failure 503 {string} string "Dataset unavailable"
// @Router /locations [get]
func (h *Handler) GetLocations(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.records(w, r)
	if !ok {
		return
	}
	locations := pipeline.Locations(rs)
	if locations == nil {
		locations = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"locations": locations,
		"count":     len(locations),
	})
}

// GetRecords returns raw daily records
// @Summary Get daily records
// @Description Raw daily records, optionally narrowed to one or more locations and a date range.
// @Description With format=csv the whole selection is returned as CSV and limit is ignored.
// @Tags dataset
// @Produce json
// @Produce text/csv
// @Param location query string false "Comma-separated location names"
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Param limit query int false "Maximum records returned (default 1000)"
// @Param format query string false "json (default) or csv"
// @Success 200 {object} map[string]interface{} "Records"
// @Failure 400 {string} string "Invalid query"
// @Failure 503 {string} string "Dataset unavailable"
// @Router /records [get]
func (h *Handler) GetRecords(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := intParam(r, "limit", 1000)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := queryOr(r, "format", "json")
	if format != "json" && format != "csv" {
		http.Error(w, "format must be json or csv", http.StatusBadRequest)
		return
	}

	rs, ok := h.records(w, r)
	if !ok {
		return
	}
	rs = pipeline.FilterLocations(pipeline.FilterDateRange(rs, from, to), splitList(r.URL.Query().Get("location")))

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="records.csv"`)
		if err := pipeline.WriteRecords(w, rs); err != nil {
			h.Logger.Error("Failed to stream records CSV", "error", err)
		}
		return
	}

	records := rs.Records
	if records == nil {
		records = []model.Record{}
	}
	total := len(records)
	if len(records) > limit {
		records = records[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":       rs.Metrics,
		"label_columns": rs.LabelColumns,
		"records":       records,
		"count":         len(records),
		"total":         total,
		"limit":         limit,
	})
}

// GetWeekly returns the weekly series
// @Summary Get weekly series
// @Description Forward-filled, weekly-resampled series of every country, or of one location
// @Tags dataset
// @Produce json
// @Param location query string false "Location name"
// @Success 200 {object} map[string]interface{} "Weekly series"
// @Failure 503 {string} string "Dataset unavailable"
// @Router /weekly [get]
func (h *Handler) GetWeekly(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.weekly(w, r)
	if !ok {
		return
	}
	rows := ws.Rows
	if location := r.URL.Query().Get("location"); location != "" {
		rows = ws.ForLocation(location)
	}
	if rows == nil {
		rows = []model.WeeklyRow{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics": ws.Metrics,
		"rows":    rows,
		"count":   len(rows),
	})
}

// GetFrames returns bar-race frames
// @Summary Get weekly frames
// @Description One frame per week with the top locations by metric, ascending by value
// @Tags dataset
// @Produce json
// @Param metric query string false "Metric (default total_cases)"
// @Param top query int false "Locations per frame (default 10)"
// @Success 200 {object} map[string]interface{} "Frames"
// @Failure 400 {string} string "Invalid query"
// @Failure 503 {string} string "Dataset unavailable"
// @Router /weekly/frames [get]
func (h *Handler) GetFrames(w http.ResponseWriter, r *http.Request) {
	metric := queryOr(r, "metric", "total_cases")
	top, err := intParam(r, "top", 10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws, ok := h.weekly(w, r)
	if !ok {
		return
	}
	frames, err := pipeline.Frames(ws, metric, top)
	if err != nil {
		queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metric": metric,
		"top":    top,
		"frames": frames,
		"count":  len(frames),
	})
}

// GetLatest returns each country's latest values
// @Summary Get latest snapshot
// @Description Latest known value of every metric per country. With metric set, returns the top countries by that metric.
// @Tags dataset
// @Produce json
// @Param metric query string false "Rank by this metric"
// @Param top query int false "Number of countries when ranking (default 10)"
// @Success 200 {object} map[string]interface{} "Snapshots"
// @Failure 400 {string} string "Invalid query"
// @Failure 503 {string} string "Dataset unavailable"
// @Router /latest [get]
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top", 10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rs, ok := h.records(w, r)
	if !ok {
		return
	}
	set := pipeline.Latest(rs)
	snapshots := set.Snapshots

	metric := r.URL.Query().Get("metric")
	if metric != "" {
		if snapshots, err = pipeline.TopN(set, metric, top); err != nil {
			queryError(w, err)
			return
		}
	}
	if snapshots == nil {
		snapshots = []model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":   set.Metrics,
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// GetSummary returns totals over the countries
// @Summary Get summary
// @Description Country count and totals of cases, deaths and vaccinations over a date range
// @Tags dataset
// @Produce json
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Success 200 {object} model.Summary "Summary"
// @Failure 400 {string} string "Invalid query"
// @Failure 503 {string} string "Dataset unavailable"
// @Router /summary [get]
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rs, ok := h.records(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, pipeline.Summarize(rs, from, to))
}

// GetCorrelation correlates two metrics across countries
// @Summary Correlate metrics
// @Description Pearson correlation and least-squares trendline between two metrics over the latest country snapshots
// @Tags dataset
// @Produce json
// @Param x query string true "X metric"
// @Param y query string true "Y metric"
// @Success 200 {object} pipeline.Correlation "Correlation"
// @Failure 400 {string} string "Invalid query"
// @Failure 422 {string} string "Not enough data"
// @Failure 503 {string} string "Dataset unavailable"
// @Router /correlation [get]
func (h *Handler) GetCorrelation(w http.ResponseWriter, r *http.Request) {
	x, y := r.URL.Query().Get("x"), r.URL.Query().Get("y")
	if x == "" || y == "" {
		http.Error(w, "x and y are required", http.StatusBadRequest)
		return
	}
	rs, ok := h.records(w, r)
	if !ok {
		return
	}
	c, err := pipeline.Correlate(pipeline.Latest(rs), x, y)
	if err != nil {
		queryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ExportWeeklyCSV streams the weekly series as CSV
// @Summary Download weekly series
// @Description The full weekly series as CSV with columns location, iso_code, date and one column per metric
// @Tags dataset
// @Produce text/csv
// @Success 200 {string} string "CSV file"
// @Failure 503 {string} string "Dataset unavailable"
// @Router /export/weekly.csv [get]
func (h *Handler) ExportWeeklyCSV(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.weekly(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="weekly.csv"`)
	if err := pipeline.WriteWeeklyCSV(w, ws); err != nil {
		h.Logger.Error("Failed to stream weekly CSV", "error", err)
	}
}

func queryOr(r *http.Request, name, def string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
