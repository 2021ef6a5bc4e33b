package pipeline

import (
	"sort"

	"go-covid-pipeline/internal/model"
)

// CountryRecords returns deep copies of every non-aggregate record.
func CountryRecords(rs *model.RecordSet) []model.Record {
	if rs == nil {
		return nil
	}
	out := make([]model.Record, 0, len(rs.Records))
	for _, rec := range rs.Records {
		if rec.IsAggregate {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out
}

// SortRecords orders records by (location, date) ascending, in place.
func SortRecords(records []model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Location != records[j].Location {
			return records[i].Location < records[j].Location
		}
		return records[i].Date.Before(records[j].Date)
	})
}

// ForwardFill replaces each null with the most recent earlier non-null value of
// the same column and location. Records must already be sorted with SortRecords.
// A null with nothing earlier to carry stays null. Identity fields are copied
// through untouched and the input slice is not modified.
func ForwardFill(records []model.Record) []model.Record {
	out := make([]model.Record, len(records))
	var last model.Record
	for i, rec := range records {
		filled := rec.Clone()
		if i > 0 && rec.Location == last.Location {
			for j := range filled.Values {
				if !filled.Values[j].Valid && j < len(last.Values) {
					filled.Values[j] = last.Values[j]
				}
			}
			for j := range filled.Labels {
				if filled.Labels[j] == "" && j < len(last.Labels) {
					filled.Labels[j] = last.Labels[j]
				}
			}
		}
		// identity is re-attached from the source row
		filled.Location = rec.Location
		filled.ISOCode = rec.ISOCode
		filled.Date = rec.Date
		filled.IsAggregate = rec.IsAggregate

		out[i] = filled
		last = filled
	}
	return out
}
