package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-covid-pipeline/internal/pipeline"
)

const sampleCSV = `iso_code,continent,location,date,total_cases,new_cases_per_million,population
RUR,Europe,Ruritania,2021-01-04,,1.5,1000
RUR,Europe,Ruritania,2021-01-05,10,2.5,1000
RUR,Europe,Ruritania,2021-01-12,12,4,1000
FRE,Asia,Freedonia,2021-01-06,100,10,5000
FRE,Asia,Freedonia,2021-01-13,130,20,5000
OWID_WRL,,World,2021-01-04,999999,50,750000000
`

// testEnv writes a cached dataset and a config pointing at it. Commands run
// against it never touch the network.
func testEnv(t *testing.T, withCache bool) (configPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	cache := filepath.Join(dir, "owid.csv")
	if withCache {
		require.NoError(t, os.WriteFile(cache, []byte(sampleCSV), 0644))
	}
	configPath = filepath.Join(dir, "covid.yaml")
	cfg := fmt.Sprintf("cache_path: %s\nsource_url: \"\"\ndb_path: %s\nexport_dir: %s\n",
		cache, filepath.Join(dir, "runs.db"), filepath.Join(dir, "exports"))
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0644))
	return configPath, dir
}

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadCmd(t *testing.T) {
	cfg, _ := testEnv(t, true)
	out, err := execute(t, cfg, "load")
	require.NoError(t, err)
	assert.Regexp(t, `Records\s+\|\s+6`, out)
	assert.Regexp(t, `Countries\s+\|\s+2`, out)
	assert.Regexp(t, `Aggregate records\s+\|\s+1`, out)
	assert.Contains(t, out, "2021-01-13")
}

func TestLoadCmd_Out(t *testing.T) {
	cfg, dir := testEnv(t, true)
	file := filepath.Join(dir, "out", "records.csv")

	out, err := execute(t, cfg, "load", "--location", "Freedonia", "--out", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 records")

	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()
	rs, err := pipeline.ParseRecords(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"continent"}, rs.LabelColumns)
	assert.Equal(t, []string{"total_cases", "new_cases_per_million", "population"}, rs.Metrics)
	require.Len(t, rs.Records, 2)
	assert.Equal(t, "Freedonia", rs.Records[0].Location)
}

func TestLoadCmd_NoData(t *testing.T) {
	cfg, _ := testEnv(t, false)
	_, err := execute(t, cfg, "load")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrLoad)
}

func TestWeeklyCmd(t *testing.T) {
	cfg, dir := testEnv(t, true)

	out, err := execute(t, cfg, "weekly", "--metric", "total_cases")
	require.NoError(t, err)
	assert.Contains(t, out, "total_cases")
	assert.NotContains(t, out, "population")
	assert.Regexp(t, `Ruritania\s+\|\s+2021-01-11\s+\|\s+12`, out)
	assert.NotContains(t, out, "World")

	file := filepath.Join(dir, "weekly.json")
	out, err = execute(t, cfg, "weekly", "--location", "Freedonia", "--out", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 weekly rows")
	assert.FileExists(t, file)

	_, err = execute(t, cfg, "weekly", "--metric", "gdp")
	assert.ErrorIs(t, err, pipeline.ErrUnknownMetric)
}

func TestLatestCmd(t *testing.T) {
	cfg, _ := testEnv(t, true)
	out, err := execute(t, cfg, "latest", "--metric", "total_cases", "--top", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Freedonia")
	assert.NotContains(t, out, "Ruritania")
	assert.Contains(t, out, "130")
}

func TestFramesCmd(t *testing.T) {
	cfg, _ := testEnv(t, true)
	out, err := execute(t, cfg, "frames", "--metric", "total_cases", "--top", "1", "--week", "2021-01-13")
	require.NoError(t, err)
	assert.Regexp(t, `2021-01-11\s+\|\s+1\s+\|\s+Freedonia`, out)
	assert.NotContains(t, out, "2021-01-04")
}

func TestCompareCmd(t *testing.T) {
	cfg, _ := testEnv(t, true)
	out, err := execute(t, cfg, "compare", "--location", "Ruritania,Freedonia", "--metric", "total_cases")
	require.NoError(t, err)
	assert.Regexp(t, `2021-01-04\s+\|\s+10\s+\|\s+100`, out)
	assert.Regexp(t, `2021-01-11\s+\|\s+12\s+\|\s+130`, out)

	_, err = execute(t, cfg, "compare")
	assert.ErrorContains(t, err, "at least one --location")
	_, err = execute(t, cfg, "compare", "-l", "a,b,c,d,e,f")
	assert.ErrorContains(t, err, "at most 5")
	_, err = execute(t, cfg, "compare", "-l", "Ruritania", "--from", "Jan 1")
	assert.ErrorContains(t, err, "invalid --from")
}

func TestCorrelateCmd(t *testing.T) {
	cfg, _ := testEnv(t, true)
	out, err := execute(t, cfg, "correlate", "-x", "population", "-y", "total_cases")
	require.NoError(t, err)
	assert.Contains(t, out, "1.000")

	_, err = execute(t, cfg, "correlate")
	assert.ErrorIs(t, err, pipeline.ErrUnknownMetric, "default metrics are absent from the sample")
}

func TestRunAndRunsCmd(t *testing.T) {
	cfg, dir := testEnv(t, true)

	out, err := execute(t, cfg, "run", "--location", "Ruritania", "--export-db")
	require.NoError(t, err)
	assert.Contains(t, out, "3 records, 2 weekly rows")
	assert.Contains(t, out, "database")
	assert.Regexp(t, `aggregate\s+\|\s+completed\s+\|\s+2`, out)

	runID := regexp.MustCompile(`Run ([0-9a-f-]{36})`).FindStringSubmatch(out)
	require.Len(t, runID, 2)

	out, err = execute(t, cfg, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, runID[1])
	assert.Contains(t, out, "completed")

	out, err = execute(t, cfg, "runs", runID[1])
	require.NoError(t, err)
	assert.Contains(t, out, "aggregate")
	assert.Contains(t, out, "export")

	out, err = execute(t, cfg, "run")
	require.NoError(t, err)
	id := regexp.MustCompile(`Run ([0-9a-f-]{36})`).FindStringSubmatch(out)
	require.Len(t, id, 2)
	assert.FileExists(t, filepath.Join(dir, "exports", id[1], "weekly.csv"))

	_, err = execute(t, cfg, "run", "--from", "2021-02-01", "--to", "2021-01-01", "--no-export")
	assert.ErrorContains(t, err, "invalid range")
}

func TestServeCmd_LoadFailureAbortsStartup(t *testing.T) {
	cfg, dir := testEnv(t, false)
	_, err := execute(t, cfg, "serve", "--addr", "127.0.0.1:0")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrLoad)

	var loadErr *pipeline.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, pipeline.OpFetch, loadErr.Op)
	assert.NoFileExists(t, filepath.Join(dir, "runs.db"), "the store is not opened when loading fails")
}
