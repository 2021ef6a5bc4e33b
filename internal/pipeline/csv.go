package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"

	"go-covid-pipeline/internal/model"
	"go-covid-pipeline/pkg/utils"
)

// KnownLabelColumns are the dataset's text columns. They stay labels even in a
// subset where every cell is empty.
var KnownLabelColumns = []string{"continent", "tests_units"}

// ParseRecords reads the dataset CSV into a RecordSet.
//
// Columns in KnownLabelColumns are labels. Every other column besides iso_code,
// location and date is classified by its content: if each non-empty cell parses
// as a float it becomes a metric, otherwise a label. Empty cells and NaN are
// nulls. Any malformed row fails the whole parse.
func ParseRecords(r io.Reader) (*model.RecordSet, error) {
	return ParseRecordsWithLabels(r, KnownLabelColumns)
}

// ParseRecordsWithLabels is ParseRecords with an explicit set of label columns.
func ParseRecordsWithLabels(r io.Reader, labels []string) (*model.RecordSet, error) {
	isLabel := make(map[string]bool, len(labels))
	for _, l := range labels {
		isLabel[l] = true
	}

	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true

	rawHeader, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV: no header")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	header := make([]string, len(rawHeader))
	for i, h := range rawHeader {
		header[i] = utils.CleanHeader(h)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	var rows [][]string
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV read error: %w", err)
		}
		rows = append(rows, row)
	}

	var isoCol, locCol, dateCol int
	var metricCols, labelCols []int
	rs := &model.RecordSet{}
	for i, h := range header {
		switch h {
		case ColISOCode:
			isoCol = i
		case ColLocation:
			locCol = i
		case ColDate:
			dateCol = i
		default:
			if !isLabel[h] && numericColumn(rows, i) {
				metricCols = append(metricCols, i)
				rs.Metrics = append(rs.Metrics, h)
			} else {
				labelCols = append(labelCols, i)
				rs.LabelColumns = append(rs.LabelColumns, h)
			}
		}
	}

	rs.Records = make([]model.Record, 0, len(rows))
	for n, row := range rows {
		date, err := parseDate(row[dateCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		rec := model.Record{
			ISOCode:     row[isoCol],
			Location:    row[locCol],
			Date:        date,
			IsAggregate: IsAggregateCode(row[isoCol]),
			Values:      make([]model.NullFloat, len(metricCols)),
		}
		if len(labelCols) > 0 {
			rec.Labels = make([]string, len(labelCols))
			for j, c := range labelCols {
				rec.Labels[j] = row[c]
			}
		}
		for j, c := range metricCols {
			v, ok, err := utils.ParseFloatCell(row[c])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", n+2, header[c], err)
			}
			if ok && !math.IsNaN(v) {
				rec.Values[j] = model.Some(v)
			}
		}
		rs.Records = append(rs.Records, rec)
	}

	if err := validateUnique(rs.Records); err != nil {
		return nil, err
	}
	return rs, nil
}

func numericColumn(rows [][]string, col int) bool {
	for _, row := range rows {
		if !utils.IsFloatCell(row[col]) {
			return false
		}
	}
	return true
}

// WriteRecords writes rs as CSV: identity columns, then labels, then metrics.
// ParseRecordsWithLabels on the output with rs.LabelColumns yields an equal RecordSet.
func WriteRecords(w io.Writer, rs *model.RecordSet) error {
	writer := csv.NewWriter(w)

	header := []string{ColISOCode, ColLocation, ColDate}
	header = append(header, rs.LabelColumns...)
	header = append(header, rs.Metrics...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(header))
	for _, rec := range rs.Records {
		row = row[:0]
		row = append(row, rec.ISOCode, rec.Location, rec.Date.Format(model.DateLayout))
		for i := range rs.LabelColumns {
			label := ""
			if i < len(rec.Labels) {
				label = rec.Labels[i]
			}
			row = append(row, label)
		}
		for _, v := range rec.Values {
			if v.Valid {
				row = append(row, utils.FormatFloat(v.Float64))
			} else {
				row = append(row, "")
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
