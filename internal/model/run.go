package model

import "time"

// Run statuses, in the order a run moves through them.
const (
	StatusPending     = "pending"
	StatusLoading     = "loading"
	StatusAggregating = "aggregating"
	StatusExporting   = "exporting"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// Export defines export targets
type Export struct {
	DB   bool   `json:"db"`   // write weekly rows to the run store
	File string `json:"file"` // e.g., exports/weekly.csv or weekly.json
}

// RunSpec is the body of POST /api/v1/runs and the input of pipeline.Run
type RunSpec struct {
	Locations []string `json:"locations,omitempty"` // empty means every country
	From      string   `json:"from,omitempty"`      // inclusive, 2006-01-02
	To        string   `json:"to,omitempty"`        // inclusive, 2006-01-02
	Export    *Export  `json:"export,omitempty"`
}

// Run is a persisted pipeline run
type Run struct {
	ID          string    `json:"id"`
	Spec        RunSpec   `json:"spec"`
	Status      string    `json:"status"`
	RecordCount int       `json:"record_count"`
	WeeklyRows  int       `json:"weekly_rows"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RunError is an error recorded against a run
type RunError struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// StageProgress is the timing of one pipeline stage
type StageProgress struct {
	RunID            string     `json:"run_id"`
	Stage            string     `json:"stage"`
	Status           string     `json:"status"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	RecordsProcessed int        `json:"records_processed"`
}

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string    `json:"type"` // "database", "file"
	Path        string    `json:"path"` // file path or table name
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}

// RunResult is what pipeline.Run hands back to its caller
type RunResult struct {
	RunID    string          `json:"run_id"`
	Records  int             `json:"records"`
	Weekly   *WeeklySeries   `json:"-"`
	Exports  []ExportResult  `json:"exports"`
	Stages   []StageProgress `json:"stages"`
	Duration time.Duration   `json:"duration"`
}
