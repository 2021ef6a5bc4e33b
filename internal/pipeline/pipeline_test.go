package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-covid-pipeline/internal/model"
	"go-covid-pipeline/internal/store"
	"go-covid-pipeline/pkg/utils"
)

// openStore opens a throwaway run store. Tests using it must not be parallel.
func openStore(t *testing.T) {
	t.Helper()
	require.NoError(t, store.InitDB(filepath.Join(t.TempDir(), "runs.db")))
	t.Cleanup(func() { _ = store.Close() })
}

func newRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{
		Session: NewSessionWithRecords(parseSample(t, sampleCSV)),
		Output:  utils.NewOutputManager(t.TempDir()),
	}
}

func TestRunner_Run(t *testing.T) {
	openStore(t)
	runner := newRunner(t)
	out := filepath.Join(t.TempDir(), "weekly.json")
	spec := model.RunSpec{Export: &model.Export{DB: true, File: out}}
	require.NoError(t, store.SaveRun("run-1", spec))

	result, err := runner.Run(context.Background(), "run-1", spec)
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, 9, result.Records)
	assert.Len(t, result.Weekly.Rows, 4)
	require.Len(t, result.Exports, 2)
	for _, res := range result.Exports {
		assert.True(t, res.Success, res.Error)
		assert.Equal(t, 4, res.RecordCount)
	}
	assert.FileExists(t, out)

	require.Len(t, result.Stages, 3)
	for i, stage := range []string{StageLoad, StageAggregate, StageExport} {
		assert.Equal(t, stage, result.Stages[i].Stage)
		assert.Equal(t, model.StatusCompleted, result.Stages[i].Status)
	}

	run, err := store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, run.Status)
	assert.Equal(t, 9, run.RecordCount)
	assert.Equal(t, 4, run.WeeklyRows)

	stored, err := store.GetWeeklyRows("run-1", "Ruritania")
	require.NoError(t, err)
	assert.Equal(t, result.Weekly.Metrics, stored.Metrics)
	assert.Equal(t, result.Weekly.ForLocation("Ruritania"), stored.Rows)

	stages, err := store.GetStageProgress("run-1")
	require.NoError(t, err)
	require.Len(t, stages, 3)
	for _, p := range stages {
		assert.Equal(t, model.StatusCompleted, p.Status, p.Stage)
		assert.NotNil(t, p.EndedAt)
	}
}

func TestRunner_Run_Filtered(t *testing.T) {
	openStore(t)
	runner := newRunner(t)
	spec := model.RunSpec{Locations: []string{"Ruritania"}, From: "2021-01-05"}
	require.NoError(t, store.SaveRun("run-2", spec))

	result, err := runner.Run(context.Background(), "run-2", spec)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Records)
	require.Len(t, result.Weekly.Rows, 2)
	assert.Equal(t, 10.0, metricValue(t, result.Weekly, "Ruritania", "2021-01-04", "total_cases"))
	assert.Equal(t, 2.5, metricValue(t, result.Weekly, "Ruritania", "2021-01-04", "new_cases_per_million"))
	assert.Empty(t, result.Exports, "no export requested")
}

func TestRunner_Run_Failures(t *testing.T) {
	openStore(t)

	t.Run("invalid range", func(t *testing.T) {
		spec := model.RunSpec{From: "2021-02-01", To: "2021-01-01"}
		require.NoError(t, store.SaveRun("bad-range", spec))

		_, err := newRunner(t).Run(context.Background(), "bad-range", spec)
		require.Error(t, err)

		run, err := store.GetRun("bad-range")
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, run.Status)

		errs, err := store.GetRunErrors("bad-range")
		require.NoError(t, err)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Message, "invalid range")
	})

	t.Run("load failure", func(t *testing.T) {
		require.NoError(t, store.SaveRun("no-data", model.RunSpec{}))
		runner := &Runner{Session: NewSession(&fakeLoader{fail: 1})}

		_, err := runner.Run(context.Background(), "no-data", model.RunSpec{})
		require.ErrorIs(t, err, ErrLoad)

		run, err := store.GetRun("no-data")
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, run.Status)

		stages, err := store.GetStageProgress("no-data")
		require.NoError(t, err)
		require.Len(t, stages, 1)
		assert.Equal(t, StageLoad, stages[0].Stage)
		assert.Equal(t, model.StatusFailed, stages[0].Status)
	})

	t.Run("export failure", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0644))
		spec := model.RunSpec{Export: &model.Export{File: filepath.Join(blocker, "weekly.csv")}}
		require.NoError(t, store.SaveRun("bad-export", spec))

		result, err := newRunner(t).Run(context.Background(), "bad-export", spec)
		require.Error(t, err)
		require.NotNil(t, result)
		require.Len(t, result.Exports, 1)
		assert.False(t, result.Exports[0].Success)

		run, err := store.GetRun("bad-export")
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, run.Status)
	})
}

func TestRunner_Run_WithoutStore(t *testing.T) {
	t.Parallel()
	result, err := newRunner(t).Run(context.Background(), "ephemeral", model.RunSpec{To: "2021-01-10"})
	require.NoError(t, err)
	assert.Equal(t, 6, result.Records)
}

func TestRunner_Run_ReportsEveryFailedExport(t *testing.T) {
	t.Parallel()
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	spec := model.RunSpec{Export: &model.Export{File: filepath.Join(blocker, "weekly.csv"), DB: true}}

	result, err := newRunner(t).Run(context.Background(), "two-failures", spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export to file")
	assert.Contains(t, err.Error(), "export to database")

	var joined interface{ Unwrap() []error }
	require.ErrorAs(t, err, &joined)
	assert.Len(t, joined.Unwrap(), 2)

	require.NotNil(t, result)
	require.Len(t, result.Stages, 3)
	assert.Equal(t, model.StatusFailed, result.Stages[2].Status)
}

func TestExportManager_DefaultCSV(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ws := PrepareWeekly(parseSample(t, sampleCSV))
	em := &ExportManager{RunID: "run-x", Output: utils.NewOutputManager(dir)}

	results := em.Export(context.Background(), ws)
	require.Len(t, results, 1)
	require.True(t, results[0].Success, results[0].Error)
	assert.Equal(t, filepath.Join(dir, "run-x", "weekly.csv"), results[0].Path)

	data, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "location,iso_code,date,total_cases,new_cases_per_million,population", lines[0])
	assert.Equal(t, "Freedonia,FRE,2021-01-04,100,15,5000", lines[1])
}

func TestExportManager_DatabaseWithoutStore(t *testing.T) {
	t.Parallel()
	ws := PrepareWeekly(parseSample(t, sampleCSV))
	em := &ExportManager{RunID: "run-y", Spec: model.Export{DB: true}}

	results := em.Export(context.Background(), ws)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "database", results[0].Type)
}

func TestWriteWeeklyJSON(t *testing.T) {
	t.Parallel()
	ws := PrepareWeekly(parseSample(t, sampleCSV))

	var buf bytes.Buffer
	require.NoError(t, WriteWeeklyJSON(&buf, ws, "run-z"))

	var doc struct {
		ExportInfo struct {
			RunID       string `json:"run_id"`
			RecordCount int    `json:"record_count"`
		} `json:"export_info"`
		Metrics []string          `json:"metrics"`
		Data    []model.WeeklyRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "run-z", doc.ExportInfo.RunID)
	assert.Equal(t, 4, doc.ExportInfo.RecordCount)
	assert.Equal(t, ws.Metrics, doc.Metrics)
	assert.Equal(t, ws.Rows, doc.Data)
}

func TestStageTracker(t *testing.T) {
	t.Parallel()
	tracker := NewStageTracker("run-t", nil)

	tracker.StartStage(StageLoad)
	tracker.EndStage(StageLoad, 10, nil)
	tracker.StartStage(StageAggregate)
	tracker.EndStage(StageAggregate, 0, errors.New("boom"))

	stages := tracker.Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, StageLoad, stages[0].Stage)
	assert.Equal(t, model.StatusCompleted, stages[0].Status)
	assert.Equal(t, 10, stages[0].RecordsProcessed)
	assert.Equal(t, model.StatusFailed, stages[1].Status)
	assert.False(t, stages[1].EndedAt.Before(*stages[1].StartedAt))
}
