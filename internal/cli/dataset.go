package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"go-covid-pipeline/internal/model"
	"go-covid-pipeline/internal/pipeline"
	"go-covid-pipeline/pkg/utils"
)

// maxCompareLocations caps the compare command.
const maxCompareLocations = 5

func newLoadCmd(a *app) *cobra.Command {
	var locations []string
	var out string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the dataset (fetching and caching it if needed) and describe it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := a.session(cmd.ErrOrStderr()).Records(cmd.Context())
			if err != nil {
				return err
			}
			rs = pipeline.FilterLocations(rs, locations)

			if out != "" {
				if err := writeRecordsFile(out, rs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", rs.Len(), out)
				return nil
			}

			var aggregates int
			var first, last time.Time
			for _, rec := range rs.Records {
				if rec.IsAggregate {
					aggregates++
				}
				if first.IsZero() || rec.Date.Before(first) {
					first = rec.Date
				}
				if rec.Date.After(last) {
					last = rec.Date
				}
			}

			table := newTable(cmd.OutOrStdout(), []string{"Field", "Value"})
			table.Append([]string{"Records", strconv.Itoa(rs.Len())})
			table.Append([]string{"Aggregate records", strconv.Itoa(aggregates)})
			table.Append([]string{"Countries", strconv.Itoa(len(pipeline.Locations(rs)))})
			table.Append([]string{"Metrics", strconv.Itoa(len(rs.Metrics))})
			table.Append([]string{"Label columns", strconv.Itoa(len(rs.LabelColumns))})
			table.Append([]string{"First date", formatDate(first)})
			table.Append([]string{"Last date", formatDate(last)})
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&locations, "location", "l", nil, "restrict to these locations")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the daily records to this CSV file instead of describing them")
	return cmd
}

func writeRecordsFile(path string, rs *model.RecordSet) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := pipeline.WriteRecords(file, rs); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func newWeeklyCmd(a *app) *cobra.Command {
	var locations, metrics []string
	var out string
	var limit int

	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Build the weekly series and print it or write it to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := a.session(cmd.ErrOrStderr())
			var ws *model.WeeklySeries
			if len(locations) == 0 {
				var err error
				if ws, err = session.Weekly(cmd.Context()); err != nil {
					return err
				}
			} else {
				rs, err := session.Records(cmd.Context())
				if err != nil {
					return err
				}
				ws = pipeline.PrepareWeekly(pipeline.FilterLocations(rs, locations))
			}

			if out != "" {
				em := &pipeline.ExportManager{RunID: "cli", Spec: model.Export{File: out}, Logger: a.log}
				for _, res := range em.Export(cmd.Context(), ws) {
					if !res.Success {
						return fmt.Errorf("failed to write %s: %s", res.Path, res.Error)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d weekly rows to %s\n", res.RecordCount, res.Path)
				}
				return nil
			}

			columns, err := metricColumns(ws.Metrics, metrics)
			if err != nil {
				return err
			}
			header := []string{"Location", "Week"}
			for _, c := range columns {
				header = append(header, ws.Metrics[c])
			}
			table := newTable(cmd.OutOrStdout(), header)
			for i, row := range ws.Rows {
				if limit > 0 && i >= limit {
					break
				}
				line := []string{row.Location, formatDate(row.Week)}
				for _, c := range columns {
					line = append(line, formatValue(row.Values[c]))
				}
				table.Append(line)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&locations, "location", "l", nil, "restrict to these locations")
	cmd.Flags().StringSliceVarP(&metrics, "metric", "m", nil, "metric columns to print (default all)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the series to this .csv or .json file instead of printing")
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many rows (0 prints all)")
	return cmd
}

func newLatestCmd(a *app) *cobra.Command {
	var metric string
	var top int

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Rank countries by the latest value of a metric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := a.session(cmd.ErrOrStderr()).Records(cmd.Context())
			if err != nil {
				return err
			}
			snaps, err := pipeline.TopN(pipeline.Latest(rs), metric, top)
			if err != nil {
				return err
			}
			idx, _ := rs.MetricIndex(metric)

			table := newTable(cmd.OutOrStdout(), []string{"#", "Location", "ISO", "Date", metric})
			for i, s := range snaps {
				table.Append([]string{
					strconv.Itoa(i + 1), s.Location, s.ISOCode, formatDate(s.Date), formatValue(s.Values[idx].Float64),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&metric, "metric", "m", "total_cases_per_million", "metric to rank by")
	cmd.Flags().IntVarP(&top, "top", "n", 10, "number of countries")
	return cmd
}

func newFramesCmd(a *app) *cobra.Command {
	var metric, week string
	var top int

	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Print the weekly top-N frames of a metric (bar-race data)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var only string
			if week != "" {
				t, err := parseDateFlag("week", week)
				if err != nil {
					return err
				}
				only = formatDate(pipeline.WeekStart(t))
			}

			ws, err := a.session(cmd.ErrOrStderr()).Weekly(cmd.Context())
			if err != nil {
				return err
			}
			frames, err := pipeline.Frames(ws, metric, top)
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout(), []string{"Week", "Rank", "Location", metric})
			for _, f := range frames {
				if only != "" && f.Date != only {
					continue
				}
				for i := len(f.Entries) - 1; i >= 0; i-- {
					e := f.Entries[i]
					table.Append([]string{f.Date, strconv.Itoa(len(f.Entries) - i), e.Location, formatValue(e.Value)})
				}
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&metric, "metric", "m", "total_cases", "metric to rank by")
	cmd.Flags().IntVarP(&top, "top", "n", 10, "locations per frame")
	cmd.Flags().StringVar(&week, "week", "", "only print the frame of the week containing this date (YYYY-MM-DD)")
	return cmd
}

func newCompareCmd(a *app) *cobra.Command {
	var locations []string
	var metric, from, to string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a weekly metric across up to five locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(locations) == 0 {
				return fmt.Errorf("at least one --location is required")
			}
			if len(locations) > maxCompareLocations {
				return fmt.Errorf("at most %d locations can be compared", maxCompareLocations)
			}
			fromT, err := parseDateFlag("from", from)
			if err != nil {
				return err
			}
			toT, err := parseDateFlag("to", to)
			if err != nil {
				return err
			}

			rs, err := a.session(cmd.ErrOrStderr()).Records(cmd.Context())
			if err != nil {
				return err
			}
			ws := pipeline.PrepareWeekly(pipeline.FilterLocations(pipeline.FilterDateRange(rs, fromT, toT), locations))
			idx, ok := ws.MetricIndex(metric)
			if !ok {
				return fmt.Errorf("%w: %s", pipeline.ErrUnknownMetric, metric)
			}

			byWeek := make(map[time.Time]map[string]float64)
			for _, row := range ws.Rows {
				if byWeek[row.Week] == nil {
					byWeek[row.Week] = make(map[string]float64)
				}
				byWeek[row.Week][row.Location] = row.Values[idx]
			}

			table := newTable(cmd.OutOrStdout(), append([]string{"Week"}, locations...))
			for _, week := range ws.Weeks() {
				line := []string{formatDate(week)}
				for _, loc := range locations {
					if v, ok := byWeek[week][loc]; ok {
						line = append(line, formatValue(v))
					} else {
						line = append(line, "")
					}
				}
				table.Append(line)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&locations, "location", "l", nil, "locations to compare")
	cmd.Flags().StringVarP(&metric, "metric", "m", "new_cases_smoothed", "weekly metric to compare")
	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD)")
	return cmd
}

func newCorrelateCmd(a *app) *cobra.Command {
	var x, y string

	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Correlate two metrics over the latest country snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := a.session(cmd.ErrOrStderr()).Records(cmd.Context())
			if err != nil {
				return err
			}
			c, err := pipeline.Correlate(pipeline.Latest(rs), x, y)
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout(), []string{"X", "Y", "Countries", "Pearson r", "Slope", "Intercept"})
			table.Append([]string{
				c.X, c.Y, strconv.Itoa(c.Points),
				strconv.FormatFloat(c.R, 'f', 3, 64),
				strconv.FormatFloat(c.Slope, 'g', 6, 64),
				strconv.FormatFloat(c.Intercept, 'g', 6, 64),
			})
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&x, "x", "x", "gdp_per_capita", "x metric")
	cmd.Flags().StringVarP(&y, "y", "y", "people_fully_vaccinated_per_hundred", "y metric")
	return cmd
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

// metricColumns resolves the requested metric names to column indexes. No names selects all.
func metricColumns(available, names []string) ([]int, error) {
	if len(names) == 0 {
		cols := make([]int, len(available))
		for i := range available {
			cols[i] = i
		}
		return cols, nil
	}
	var cols []int
	for _, name := range names {
		found := false
		for i, m := range available {
			if m == name {
				cols = append(cols, i)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", pipeline.ErrUnknownMetric, name)
		}
	}
	return cols, nil
}

func parseDateFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(model.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", name, v)
	}
	return t, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(model.DateLayout)
}

func formatValue(v float64) string {
	return utils.FormatFloat(v)
}
