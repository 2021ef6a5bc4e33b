package model

import (
	"sort"
	"time"
)

// WeeklyRow is one (location, week) row of the weekly series. Values has no gaps.
type WeeklyRow struct {
	Location string    `json:"location"`
	ISOCode  string    `json:"iso_code"`
	Week     time.Time `json:"date"`
	Values   []float64 `json:"values"`
}

// WeeklySeries is the gap-filled, weekly-resampled series per location
type WeeklySeries struct {
	Metrics []string    `json:"metrics"`
	Rows    []WeeklyRow `json:"rows"`
}

// MetricIndex returns the column position of a metric.
func (ws *WeeklySeries) MetricIndex(name string) (int, bool) {
	for i, m := range ws.Metrics {
		if m == name {
			return i, true
		}
	}
	return -1, false
}

// Weeks returns the distinct bucket dates in ascending order.
func (ws *WeeklySeries) Weeks() []time.Time {
	seen := make(map[time.Time]bool)
	var weeks []time.Time
	for _, row := range ws.Rows {
		if !seen[row.Week] {
			seen[row.Week] = true
			weeks = append(weeks, row.Week)
		}
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })
	return weeks
}

// ForLocation returns the rows of one location.
func (ws *WeeklySeries) ForLocation(location string) []WeeklyRow {
	var out []WeeklyRow
	for _, row := range ws.Rows {
		if row.Location == location {
			out = append(out, row)
		}
	}
	return out
}

// FrameEntry is one bar in an animation frame.
type FrameEntry struct {
	Location string  `json:"location"`
	ISOCode  string  `json:"iso_code"`
	Value    float64 `json:"value"`
}

// Frame is the top entries for a single week, ordered ascending by value.
type Frame struct {
	Date    string       `json:"date"`
	Entries []FrameEntry `json:"entries"`
}
