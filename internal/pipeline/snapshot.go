package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"go-covid-pipeline/internal/model"
)

var (
	// ErrUnknownMetric is returned when a query names a column the data does not have.
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrInsufficientData is returned when too few points remain for a statistic.
	ErrInsufficientData = errors.New("insufficient data")
)

// SummaryMetrics are summed across countries by Summarize.
var SummaryMetrics = []string{"total_cases", "total_deaths", "total_vaccinations"}

// Locations lists the distinct non-aggregate locations in ascending order.
func Locations(rs *model.RecordSet) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range rs.Records {
		if rec.IsAggregate || seen[rec.Location] {
			continue
		}
		seen[rec.Location] = true
		out = append(out, rec.Location)
	}
	sort.Strings(out)
	return out
}

// FilterDateRange keeps records whose date lies in [from, to]. A zero bound is open.
func FilterDateRange(rs *model.RecordSet, from, to time.Time) *model.RecordSet {
	var out []model.Record
	for _, rec := range rs.Records {
		if !from.IsZero() && rec.Date.Before(from) {
			continue
		}
		if !to.IsZero() && rec.Date.After(to) {
			continue
		}
		out = append(out, rec)
	}
	return rs.WithRecords(out)
}

// FilterLocations keeps records of the named locations. No names keeps everything.
func FilterLocations(rs *model.RecordSet, names []string) *model.RecordSet {
	if len(names) == 0 {
		return rs
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []model.Record
	for _, rec := range rs.Records {
		if want[rec.Location] {
			out = append(out, rec)
		}
	}
	return rs.WithRecords(out)
}

// Latest returns, per non-aggregate location, the last non-null value of every
// metric. Date is the location's most recent record date.
func Latest(rs *model.RecordSet) *model.SnapshotSet {
	set := &model.SnapshotSet{Metrics: rs.Metrics}
	records := CountryRecords(rs)
	SortRecords(records)

	var cur *model.Snapshot
	for _, rec := range records {
		if cur == nil || cur.Location != rec.Location {
			set.Snapshots = append(set.Snapshots, model.Snapshot{
				Location: rec.Location,
				ISOCode:  rec.ISOCode,
				Values:   make([]model.NullFloat, len(rs.Metrics)),
			})
			cur = &set.Snapshots[len(set.Snapshots)-1]
		}
		cur.Date = rec.Date
		for i, v := range rec.Values {
			if v.Valid {
				cur.Values[i] = v
			}
		}
	}
	return set
}

// TopN returns up to n snapshots with the highest value of metric, descending.
// Snapshots without a value are skipped. n <= 0 returns all of them.
func TopN(set *model.SnapshotSet, metric string, n int) ([]model.Snapshot, error) {
	idx, ok := set.MetricIndex(metric)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}
	var out []model.Snapshot
	for _, s := range set.Snapshots {
		if s.Values[idx].Valid {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Values[idx].Float64, out[j].Values[idx].Float64
		if a != b {
			return a > b
		}
		return out[i].Location < out[j].Location
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Frames builds one bar-race frame per week: the top n locations by metric,
// ordered ascending by value so the largest bar is drawn last.
func Frames(ws *model.WeeklySeries, metric string, n int) ([]model.Frame, error) {
	idx, ok := ws.MetricIndex(metric)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}

	byWeek := make(map[time.Time][]model.FrameEntry)
	for _, row := range ws.Rows {
		byWeek[row.Week] = append(byWeek[row.Week], model.FrameEntry{
			Location: row.Location,
			ISOCode:  row.ISOCode,
			Value:    row.Values[idx],
		})
	}

	frames := make([]model.Frame, 0, len(byWeek))
	for _, week := range ws.Weeks() {
		entries := byWeek[week]
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Value != entries[j].Value {
				return entries[i].Value > entries[j].Value
			}
			return entries[i].Location < entries[j].Location
		})
		if n > 0 && len(entries) > n {
			entries = entries[:n]
		}
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
		frames = append(frames, model.Frame{
			Date:    week.Format(model.DateLayout),
			Entries: entries,
		})
	}
	return frames, nil
}

// Summarize totals SummaryMetrics over real countries within [from, to]. Each
// country contributes its latest value in the range, so cumulative counts are
// not summed across days.
func Summarize(rs *model.RecordSet, from, to time.Time) model.Summary {
	ranged := FilterDateRange(rs, from, to)
	set := Latest(ranged)

	summary := model.Summary{
		Locations: len(set.Snapshots),
		From:      from,
		To:        to,
		Totals:    make(map[string]float64),
	}
	for _, metric := range SummaryMetrics {
		idx, ok := set.MetricIndex(metric)
		if !ok {
			continue
		}
		var total float64
		for _, s := range set.Snapshots {
			if s.Values[idx].Valid {
				total += s.Values[idx].Float64
			}
		}
		summary.Totals[metric] = total
	}
	return summary
}

// Correlation is the relationship between two metrics across locations.
type Correlation struct {
	X         string  `json:"x"`
	Y         string  `json:"y"`
	Points    int     `json:"points"`
	R         float64 `json:"r"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// Correlate computes Pearson's r and the least-squares trendline y = slope*x + intercept
// over the snapshots that have both metrics.
func Correlate(set *model.SnapshotSet, x, y string) (Correlation, error) {
	xi, ok := set.MetricIndex(x)
	if !ok {
		return Correlation{}, fmt.Errorf("%w: %s", ErrUnknownMetric, x)
	}
	yi, ok := set.MetricIndex(y)
	if !ok {
		return Correlation{}, fmt.Errorf("%w: %s", ErrUnknownMetric, y)
	}

	var xs, ys stats.Float64Data
	for _, s := range set.Snapshots {
		if s.Values[xi].Valid && s.Values[yi].Valid {
			xs = append(xs, s.Values[xi].Float64)
			ys = append(ys, s.Values[yi].Float64)
		}
	}
	if len(xs) < 2 {
		return Correlation{}, fmt.Errorf("%w: %d points with both %s and %s", ErrInsufficientData, len(xs), x, y)
	}

	sdX, err := stats.StandardDeviationPopulation(xs)
	if err != nil {
		return Correlation{}, err
	}
	sdY, err := stats.StandardDeviationPopulation(ys)
	if err != nil {
		return Correlation{}, err
	}
	if sdX == 0 || sdY == 0 {
		return Correlation{}, fmt.Errorf("%w: %s or %s is constant", ErrInsufficientData, x, y)
	}

	r, err := stats.Pearson(xs, ys)
	if err != nil {
		return Correlation{}, err
	}
	meanX, _ := stats.Mean(xs)
	meanY, _ := stats.Mean(ys)
	slope := r * sdY / sdX
	if math.IsNaN(slope) {
		return Correlation{}, fmt.Errorf("%w: trendline undefined", ErrInsufficientData)
	}

	return Correlation{
		X:         x,
		Y:         y,
		Points:    len(xs),
		R:         r,
		Slope:     slope,
		Intercept: meanY - slope*meanX,
	}, nil
}
