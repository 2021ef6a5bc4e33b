package model

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar date format used by the dataset and every export.
const DateLayout = "2006-01-02"

// NullFloat is a metric cell that may be missing
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Some returns a valid NullFloat holding v.
func Some(v float64) NullFloat {
	return NullFloat{Float64: v, Valid: true}
}

// MarshalJSON encodes missing values as null.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

// UnmarshalJSON accepts a number or null.
func (n *NullFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = NullFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Some(v)
	return nil
}

// Record is one (location, date) observation.
// Values is aligned with RecordSet.Metrics and Labels with RecordSet.LabelColumns.
type Record struct {
	ISOCode     string      `json:"iso_code"`
	Location    string      `json:"location"`
	Date        time.Time   `json:"date"`
	IsAggregate bool        `json:"is_aggregate"`
	Labels      []string    `json:"labels,omitempty"`
	Values      []NullFloat `json:"values"`
}

// Clone returns a copy that shares no slices with r.
func (r Record) Clone() Record {
	out := r
	out.Labels = append([]string(nil), r.Labels...)
	out.Values = append([]NullFloat(nil), r.Values...)
	return out
}

// RecordSet is the loaded dataset. It is treated as read-only once built.
type RecordSet struct {
	Metrics      []string `json:"metrics"`
	LabelColumns []string `json:"label_columns"`
	Records      []Record `json:"records"`
}

// MetricIndex returns the column position of a numeric metric.
func (rs *RecordSet) MetricIndex(name string) (int, bool) {
	for i, m := range rs.Metrics {
		if m == name {
			return i, true
		}
	}
	return -1, false
}

// Len returns the number of records.
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// WithRecords returns a RecordSet with the same columns and a different row subset.
func (rs *RecordSet) WithRecords(records []Record) *RecordSet {
	return &RecordSet{
		Metrics:      rs.Metrics,
		LabelColumns: rs.LabelColumns,
		Records:      records,
	}
}

// Snapshot is the latest known value of every metric for one location.
type Snapshot struct {
	Location string      `json:"location"`
	ISOCode  string      `json:"iso_code"`
	Date     time.Time   `json:"date"`
	Values   []NullFloat `json:"values"`
}

// SnapshotSet is the latest snapshot of every location with its metric columns.
type SnapshotSet struct {
	Metrics   []string   `json:"metrics"`
	Snapshots []Snapshot `json:"snapshots"`
}

// MetricIndex returns the column position of a metric.
func (s *SnapshotSet) MetricIndex(name string) (int, bool) {
	for i, m := range s.Metrics {
		if m == name {
			return i, true
		}
	}
	return -1, false
}

// Summary holds totals over real countries in a date range.
type Summary struct {
	Locations int                `json:"locations"`
	From      time.Time          `json:"from"`
	To        time.Time          `json:"to"`
	Totals    map[string]float64 `json:"totals"`
}
