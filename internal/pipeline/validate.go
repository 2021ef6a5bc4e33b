package pipeline

import (
	"fmt"
	"strings"
	"time"

	"go-covid-pipeline/internal/model"
)

// AggregatePrefix marks regional, income-group and world rollups in iso_code.
const AggregatePrefix = "OWID_"

// Identity columns every dataset must carry.
const (
	ColISOCode  = "iso_code"
	ColLocation = "location"
	ColDate     = "date"
)

// IsAggregateCode reports whether an iso_code belongs to a rollup pseudo-location.
func IsAggregateCode(code string) bool {
	return strings.HasPrefix(code, AggregatePrefix)
}

// validateHeader checks the identity columns and rejects duplicated names.
func validateHeader(header []string) error {
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		if h == "" {
			return fmt.Errorf("empty column name in header")
		}
		if seen[h] {
			return fmt.Errorf("duplicate column: %s", h)
		}
		seen[h] = true
	}
	for _, required := range []string{ColISOCode, ColLocation, ColDate} {
		if !seen[required] {
			return fmt.Errorf("missing required column: %s", required)
		}
	}
	return nil
}

// parseDate parses the dataset's calendar dates as UTC midnight.
func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(model.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// validateUnique rejects a record set where a (location, date) pair appears twice.
func validateUnique(records []model.Record) error {
	type key struct {
		location string
		date     time.Time
	}
	seen := make(map[key]int, len(records))
	for i, rec := range records {
		k := key{rec.Location, rec.Date}
		if prev, ok := seen[k]; ok {
			return fmt.Errorf("duplicate record for %s on %s (rows %d and %d)",
				rec.Location, rec.Date.Format(model.DateLayout), prev+2, i+2)
		}
		seen[k] = i
	}
	return nil
}
