package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"go-covid-pipeline/internal/model"
)

// Reducer collapses the values of one metric within a week bucket.
type Reducer int

const (
	// ReduceMax keeps the most up-to-date value of a cumulative metric.
	ReduceMax Reducer = iota
	// ReduceMean gives a representative daily rate for the week.
	ReduceMean
	// ReduceFirst is for static indicators that are constant per location.
	ReduceFirst
)

func (r Reducer) String() string {
	switch r {
	case ReduceMax:
		return "max"
	case ReduceMean:
		return "mean"
	case ReduceFirst:
		return "first"
	default:
		return fmt.Sprintf("Reducer(%d)", int(r))
	}
}

// MetricReducer binds a metric column to its weekly reducer.
type MetricReducer struct {
	Metric  string
	Reducer Reducer
}

// WeeklyReducers is the reducer table of the weekly series, in output column order.
// Metrics are classified here explicitly, never by their names.
var WeeklyReducers = []MetricReducer{
	{"total_cases", ReduceMax},
	{"total_deaths", ReduceMax},
	{"total_vaccinations", ReduceMax},
	{"total_cases_per_million", ReduceMax},
	{"total_deaths_per_million", ReduceMax},
	{"people_fully_vaccinated_per_hundred", ReduceMax},
	{"new_cases_per_million", ReduceMean},
	{"new_cases_smoothed", ReduceMean},
	{"new_deaths_smoothed", ReduceMean},
	{"new_cases_smoothed_per_million", ReduceMean},
	{"new_deaths_smoothed_per_million", ReduceMean},
	{"population", ReduceFirst},
}

// WeekStart returns Monday 00:00 UTC of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

// Reduce applies r to the non-null values of a bucket. ok is false when every
// value is null.
func Reduce(r Reducer, values []model.NullFloat) (float64, bool) {
	data := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if v.Valid {
			data = append(data, v.Float64)
		}
	}
	if len(data) == 0 {
		return 0, false
	}

	switch r {
	case ReduceMax:
		m, err := stats.Max(data)
		return m, err == nil
	case ReduceMean:
		m, err := stats.Mean(data)
		return m, err == nil
	case ReduceFirst:
		return data[0], true
	default:
		return 0, false
	}
}

// PrepareWeekly turns the loaded record set into the dense weekly series using
// the WeeklyReducers table.
func PrepareWeekly(rs *model.RecordSet) *model.WeeklySeries {
	return PrepareWeeklyWith(rs, WeeklyReducers)
}

// PrepareWeeklyWith runs the weekly pipeline with a custom reducer table:
// filter rollups, sort, forward-fill, bucket by ISO week, reduce per
// (location, iso_code, week), and close remaining nulls with zero.
func PrepareWeeklyWith(rs *model.RecordSet, table []MetricReducer) *model.WeeklySeries {
	ws := &model.WeeklySeries{}
	if rs == nil {
		return ws
	}

	var columns []int
	var reducers []Reducer
	for _, mr := range table {
		idx, ok := rs.MetricIndex(mr.Metric)
		if !ok {
			continue
		}
		columns = append(columns, idx)
		reducers = append(reducers, mr.Reducer)
		ws.Metrics = append(ws.Metrics, mr.Metric)
	}

	records := CountryRecords(rs)
	SortRecords(records)
	filled := ForwardFill(records)

	for _, bucket := range bucketByWeek(filled) {
		row := model.WeeklyRow{
			Location: bucket.location,
			ISOCode:  bucket.isoCode,
			Week:     bucket.week,
			Values:   make([]float64, len(columns)),
		}
		cells := make([]model.NullFloat, len(bucket.records))
		for c, idx := range columns {
			for i, rec := range bucket.records {
				cells[i] = rec.Values[idx]
			}
			if v, ok := Reduce(reducers[c], cells); ok {
				row.Values[c] = v
			}
		}
		ws.Rows = append(ws.Rows, row)
	}

	weeklyRows.Set(float64(len(ws.Rows)))
	return ws
}

type weekBucket struct {
	location string
	isoCode  string
	week     time.Time
	records  []model.Record
}

// bucketByWeek groups sorted records by (location, iso_code, week) and returns
// the buckets in that key order. Records missing either key are left out; they
// still took part in the forward fill.
func bucketByWeek(records []model.Record) []*weekBucket {
	type key struct {
		location string
		isoCode  string
		week     time.Time
	}
	index := make(map[key]*weekBucket)
	var buckets []*weekBucket
	for _, rec := range records {
		if rec.Location == "" || rec.ISOCode == "" {
			continue
		}
		k := key{rec.Location, rec.ISOCode, WeekStart(rec.Date)}
		b, ok := index[k]
		if !ok {
			b = &weekBucket{location: k.location, isoCode: k.isoCode, week: k.week}
			index[k] = b
			buckets = append(buckets, b)
		}
		b.records = append(b.records, rec)
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		a, b := buckets[i], buckets[j]
		if a.location != b.location {
			return a.location < b.location
		}
		if a.isoCode != b.isoCode {
			return a.isoCode < b.isoCode
		}
		return a.week.Before(b.week)
	})
	return buckets
}
