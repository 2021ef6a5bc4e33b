package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-covid-pipeline/internal/model"
)

// sampleCSV covers two countries, one rollup and intermittent reporting.
// 2021-01-04 is a Monday.
const sampleCSV = `iso_code,continent,location,date,total_cases,new_cases_per_million,population
RUR,Europe,Ruritania,2021-01-04,,1.5,1000
RUR,Europe,Ruritania,2021-01-05,10,2.5,1000
RUR,Europe,Ruritania,2021-01-08,7,,1000
RUR,Europe,Ruritania,2021-01-12,12,4,
FRE,Asia,Freedonia,2021-01-06,100,10,5000
FRE,Asia,Freedonia,2021-01-07,,20,5000
FRE,Asia,Freedonia,2021-01-13,130,,5000
OWID_EUR,,Europe,2021-01-04,999999,50,750000000
OWID_EUR,,Europe,2021-01-11,1999999,60,750000000
`

func day(s string) time.Time {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func parseSample(t *testing.T, data string) *model.RecordSet {
	t.Helper()
	rs, err := ParseRecords(strings.NewReader(data))
	require.NoError(t, err)
	return rs
}

func metricValue(t *testing.T, ws *model.WeeklySeries, location, week, metric string) float64 {
	t.Helper()
	idx, ok := ws.MetricIndex(metric)
	require.True(t, ok, "metric %s", metric)
	for _, row := range ws.Rows {
		if row.Location == location && row.Week.Equal(day(week)) {
			return row.Values[idx]
		}
	}
	t.Fatalf("no weekly row for %s at %s", location, week)
	return 0
}
