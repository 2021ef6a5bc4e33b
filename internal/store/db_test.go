package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-covid-pipeline/internal/model"
)

// The store is package-global, so these tests are not parallel.

func openTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "runs.db")))
	t.Cleanup(func() { require.NoError(t, Close()) })
}

func day(s string) time.Time {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNotInitialized(t *testing.T) {
	require.NoError(t, Close())
	assert.False(t, Enabled())

	assert.ErrorIs(t, SaveRun("x", model.RunSpec{}), ErrNotInitialized)
	_, err := ListRuns()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = GetRun("x")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, SaveWeeklyRows(context.Background(), "x", &model.WeeklySeries{}), ErrNotInitialized)
}

func TestRunLifecycle(t *testing.T) {
	openTestDB(t)
	assert.True(t, Enabled())

	spec := model.RunSpec{Locations: []string{"Ruritania"}, From: "2021-01-01", Export: &model.Export{DB: true}}
	require.NoError(t, SaveRun("run-1", spec))

	run, err := GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.StatusPending, run.Status)
	assert.Equal(t, spec, run.Spec)
	assert.False(t, run.CreatedAt.IsZero())

	require.NoError(t, UpdateRunStatus("run-1", model.StatusCompleted))
	require.NoError(t, UpdateRunCounts("run-1", 120, 18))

	run, err = GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, run.Status)
	assert.Equal(t, 120, run.RecordCount)
	assert.Equal(t, 18, run.WeeklyRows)
}

func TestGetRun_NotFound(t *testing.T) {
	openTestDB(t)

	_, err := GetRun("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.ErrorIs(t, UpdateRunStatus("missing", model.StatusFailed), ErrNotFound)
	assert.ErrorIs(t, UpdateRunCounts("missing", 1, 1), ErrNotFound)
}

func TestListRuns(t *testing.T) {
	openTestDB(t)
	require.NoError(t, SaveRun("a", model.RunSpec{}))
	require.NoError(t, SaveRun("b", model.RunSpec{}))

	runs, err := ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestRunErrors(t *testing.T) {
	openTestDB(t)
	require.NoError(t, SaveRun("run-e", model.RunSpec{}))

	require.NoError(t, SaveRunError("run-e", nil))
	require.NoError(t, SaveRunError("run-e", errors.New("first")))
	require.NoError(t, SaveRunError("run-e", errors.New("second")))

	errs, err := GetRunErrors("run-e")
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, "first", errs[0].Message)
	assert.Equal(t, "second", errs[1].Message)
	assert.Equal(t, "run-e", errs[1].RunID)

	none, err := GetRunErrors("other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStageProgress_Upsert(t *testing.T) {
	openTestDB(t)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)

	require.NoError(t, SaveStageProgress(model.StageProgress{RunID: "r", Stage: "load", Status: "running", StartedAt: &start}))
	require.NoError(t, SaveStageProgress(model.StageProgress{
		RunID: "r", Stage: "load", Status: model.StatusCompleted, StartedAt: &start, EndedAt: &end, RecordsProcessed: 42,
	}))

	stages, err := GetStageProgress("r")
	require.NoError(t, err)
	require.Len(t, stages, 1)
	p := stages[0]
	assert.Equal(t, model.StatusCompleted, p.Status)
	assert.Equal(t, 42, p.RecordsProcessed)
	require.NotNil(t, p.StartedAt)
	require.NotNil(t, p.EndedAt)
	assert.True(t, start.Equal(*p.StartedAt))
	assert.True(t, end.Equal(*p.EndedAt))
}

func TestWeeklyRows(t *testing.T) {
	openTestDB(t)
	require.NoError(t, SaveRun("run-w", model.RunSpec{}))

	ws := &model.WeeklySeries{
		Metrics: []string{"total_cases", "population"},
		Rows: []model.WeeklyRow{
			{Location: "Freedonia", ISOCode: "FRE", Week: day("2021-01-04"), Values: []float64{100, 5000}},
			{Location: "Ruritania", ISOCode: "RUR", Week: day("2021-01-04"), Values: []float64{10, 1000}},
			{Location: "Ruritania", ISOCode: "RUR", Week: day("2021-01-11"), Values: []float64{12.5, 1000}},
		},
	}
	require.NoError(t, SaveWeeklyRows(context.Background(), "run-w", ws))
	// saving again replaces rather than duplicates
	require.NoError(t, SaveWeeklyRows(context.Background(), "run-w", ws))

	all, err := GetWeeklyRows("run-w", "")
	require.NoError(t, err)
	assert.Equal(t, ws, all)

	rur, err := GetWeeklyRows("run-w", "Ruritania")
	require.NoError(t, err)
	assert.Equal(t, ws.Rows[1:], rur.Rows)

	_, err = GetWeeklyRows("missing", "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, SaveWeeklyRows(context.Background(), "missing", ws), ErrNotFound)
}
