package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-covid-pipeline/internal/model"
)

var (
	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotInitialized is returned when InitDB has not been called.
	ErrNotInitialized = errors.New("store not initialized")
)

var db *sql.DB

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	spec TEXT,
	status TEXT,
	record_count INTEGER DEFAULT 0,
	weekly_rows INTEGER DEFAULT 0,
	metrics TEXT,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS run_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	error_message TEXT,
	created_at DATETIME
);
CREATE TABLE IF NOT EXISTS stage_progress (
	run_id TEXT,
	stage TEXT,
	status TEXT,
	started_at DATETIME,
	ended_at DATETIME,
	records_processed INTEGER DEFAULT 0,
	PRIMARY KEY (run_id, stage)
);
CREATE TABLE IF NOT EXISTS weekly_series (
	run_id TEXT,
	location TEXT,
	iso_code TEXT,
	week TEXT,
	vals TEXT,
	PRIMARY KEY (run_id, location, iso_code, week)
);
`

// InitDB opens the SQLite database at dbPath and creates tables if not exists
func InitDB(dbPath string) error {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	// sqlite serializes writers anyway; one connection also keeps :memory: databases shared
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	db = conn
	return nil
}

// Close closes the database. It is safe to call when the store is not open.
func Close() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// Enabled reports whether InitDB has been called.
func Enabled() bool {
	return db != nil
}

// SaveRun stores a new pipeline run
func SaveRun(runID string, spec model.RunSpec) error {
	if db == nil {
		return ErrNotInitialized
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(specJSON), model.StatusPending, now, now)
	return err
}

// UpdateRunStatus updates run status
func UpdateRunStatus(runID string, status string) error {
	if db == nil {
		return ErrNotInitialized
	}
	now := time.Now().UTC()
	res, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateRunCounts records how many raw records and weekly rows a run produced
func UpdateRunCounts(runID string, records, weeklyRows int) error {
	if db == nil {
		return ErrNotInitialized
	}
	now := time.Now().UTC()
	res, err := db.Exec(`UPDATE runs SET record_count = ?, weekly_rows = ?, updated_at = ? WHERE id = ?`,
		records, weeklyRows, now, runID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SaveRunError records an error for a run
func SaveRunError(runID string, err error) error {
	if err == nil {
		return nil
	}
	if db == nil {
		return ErrNotInitialized
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
		runID, err.Error(), now)
	return e
}

// GetRunErrors returns the errors recorded for a run, oldest first
func GetRunErrors(runID string) ([]model.RunError, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`SELECT id, run_id, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RunError
	for rows.Next() {
		var e model.RunError
		if err := rows.Scan(&e.ID, &e.RunID, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListRuns returns all runs, newest first
func ListRuns() ([]model.Run, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`SELECT id, spec, status, record_count, weekly_rows, created_at, updated_at FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches a run with its spec and status
func GetRun(runID string) (model.Run, error) {
	if db == nil {
		return model.Run{}, ErrNotInitialized
	}
	row := db.QueryRow(`SELECT id, spec, status, record_count, weekly_rows, created_at, updated_at FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (model.Run, error) {
	var run model.Run
	var specJSON string
	if err := s.Scan(&run.ID, &specJSON, &run.Status, &run.RecordCount, &run.WeeklyRows, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return model.Run{}, err
	}
	if err := json.Unmarshal([]byte(specJSON), &run.Spec); err != nil {
		return model.Run{}, fmt.Errorf("corrupt spec for run %s: %w", run.ID, err)
	}
	return run, nil
}

// SaveStageProgress upserts the progress of one stage of a run
func SaveStageProgress(p model.StageProgress) error {
	if db == nil {
		return ErrNotInitialized
	}
	_, err := db.Exec(`
		INSERT INTO stage_progress (run_id, stage, status, started_at, ended_at, records_processed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stage) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			records_processed = excluded.records_processed`,
		p.RunID, p.Stage, p.Status, p.StartedAt, p.EndedAt, p.RecordsProcessed)
	return err
}

// GetStageProgress returns every stage recorded for a run in start order
func GetStageProgress(runID string) ([]model.StageProgress, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := db.Query(`SELECT run_id, stage, status, started_at, ended_at, records_processed
		FROM stage_progress WHERE run_id = ? ORDER BY started_at, stage`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StageProgress
	for rows.Next() {
		var p model.StageProgress
		var started, ended sql.NullTime
		if err := rows.Scan(&p.RunID, &p.Stage, &p.Status, &started, &ended, &p.RecordsProcessed); err != nil {
			return nil, err
		}
		if started.Valid {
			p.StartedAt = &started.Time
		}
		if ended.Valid {
			p.EndedAt = &ended.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveWeeklyRows replaces the weekly rows of a run in a single transaction
func SaveWeeklyRows(ctx context.Context, runID string, ws *model.WeeklySeries) error {
	if db == nil {
		return ErrNotInitialized
	}
	metricsJSON, err := json.Marshal(ws.Metrics)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE runs SET metrics = ? WHERE id = ?`, string(metricsJSON), runID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_series WHERE run_id = ?`, runID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO weekly_series (run_id, location, iso_code, week, vals) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range ws.Rows {
		vals, err := json.Marshal(row.Values)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, row.Location, row.ISOCode, row.Week.Format(model.DateLayout), string(vals)); err != nil {
			return fmt.Errorf("failed to insert weekly row %s/%s: %w", row.Location, row.Week.Format(model.DateLayout), err)
		}
	}
	return tx.Commit()
}

// GetWeeklyRows loads the weekly series stored for a run. An empty location
// returns every location.
func GetWeeklyRows(runID, location string) (*model.WeeklySeries, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	var metricsJSON sql.NullString
	err := db.QueryRow(`SELECT metrics FROM runs WHERE id = ?`, runID).Scan(&metricsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	ws := &model.WeeklySeries{}
	if metricsJSON.Valid && metricsJSON.String != "" {
		if err := json.Unmarshal([]byte(metricsJSON.String), &ws.Metrics); err != nil {
			return nil, fmt.Errorf("corrupt metrics for run %s: %w", runID, err)
		}
	}

	query := `SELECT location, iso_code, week, vals FROM weekly_series WHERE run_id = ?`
	args := []interface{}{runID}
	if location != "" {
		query += ` AND location = ?`
		args = append(args, location)
	}
	query += ` ORDER BY location, iso_code, week`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var row model.WeeklyRow
		var week, vals string
		if err := rows.Scan(&row.Location, &row.ISOCode, &week, &vals); err != nil {
			return nil, err
		}
		if row.Week, err = time.Parse(model.DateLayout, week); err != nil {
			return nil, fmt.Errorf("corrupt week %q: %w", week, err)
		}
		if err := json.Unmarshal([]byte(vals), &row.Values); err != nil {
			return nil, fmt.Errorf("corrupt values for %s/%s: %w", row.Location, week, err)
		}
		ws.Rows = append(ws.Rows, row)
	}
	return ws, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
