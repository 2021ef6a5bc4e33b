package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"go-covid-pipeline/internal/api"
	"go-covid-pipeline/internal/api/handler"
	"go-covid-pipeline/internal/model"
	"go-covid-pipeline/internal/pipeline"
	"go-covid-pipeline/internal/store"
	"go-covid-pipeline/pkg/router"
	"go-covid-pipeline/pkg/utils"
)

func newRunCmd(a *app) *cobra.Command {
	var spec model.RunSpec
	var exportFile string
	var exportDB, noExport bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a recorded pipeline run: load, aggregate weekly and export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			// with no target the export stage writes <export_dir>/<run>/weekly.csv
			if !noExport {
				spec.Export = &model.Export{File: exportFile, DB: exportDB}
			}

			runID := uuid.New().String()
			if err := store.SaveRun(runID, spec); err != nil {
				return fmt.Errorf("failed to save run: %w", err)
			}

			runner := &pipeline.Runner{
				Session: a.session(cmd.ErrOrStderr()),
				Output:  utils.NewOutputManager(a.cfg.ExportDir),
				Logger:  a.log,
			}
			result, err := runner.Run(cmd.Context(), runID, spec)
			if result != nil {
				printRunResult(cmd, result)
			}
			if err != nil {
				return fmt.Errorf("run %s failed: %w", runID, err)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&spec.Locations, "location", "l", nil, "restrict the run to these locations")
	cmd.Flags().StringVar(&spec.From, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&spec.To, "to", "", "last date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&exportFile, "export-file", "o", "", "export the weekly series to this .csv or .json file")
	cmd.Flags().BoolVar(&exportDB, "export-db", false, "store the weekly series in the run store")
	cmd.Flags().BoolVar(&noExport, "no-export", false, "skip the export stage")
	return cmd
}

func printRunResult(cmd *cobra.Command, result *model.RunResult) {
	out := cmd.OutOrStdout()
	weeklyRows := 0
	if result.Weekly != nil {
		weeklyRows = len(result.Weekly.Rows)
	}
	fmt.Fprintf(out, "Run %s: %d records, %d weekly rows in %s\n",
		result.RunID, result.Records, weeklyRows, result.Duration.Round(time.Millisecond))
	printStages(out, result.Stages)
	if len(result.Exports) == 0 {
		return
	}
	table := newTable(out, []string{"Type", "Path", "Rows", "Status"})
	for _, e := range result.Exports {
		status := "ok"
		if !e.Success {
			status = "failed: " + e.Error
		}
		table.Append([]string{e.Type, e.Path, strconv.Itoa(e.RecordCount), status})
	}
	table.Render()
}

func newRunsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs, or show the stages and errors of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			if len(args) == 1 {
				return showRun(cmd, args[0])
			}

			runs, err := store.ListRuns()
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), []string{"ID", "Status", "Records", "Weekly rows", "Created"})
			for _, run := range runs {
				table.Append([]string{
					run.ID, run.Status, strconv.Itoa(run.RecordCount), strconv.Itoa(run.WeeklyRows),
					run.CreatedAt.UTC().Format(time.RFC3339),
				})
			}
			table.Render()
			return nil
		},
	}
}

func showRun(cmd *cobra.Command, runID string) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	stages, err := store.GetStageProgress(runID)
	if err != nil {
		return err
	}
	errs, err := store.GetRunErrors(runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s\n", run.ID, run.Status)
	printStages(out, stages)
	for _, e := range errs {
		fmt.Fprintf(out, "error: %s\n", e.Message)
	}
	return nil
}

func printStages(w io.Writer, stages []model.StageProgress) {
	if len(stages) == 0 {
		return
	}
	table := newTable(w, []string{"Stage", "Status", "Records", "Duration"})
	for _, p := range stages {
		duration := "-"
		if p.StartedAt != nil && p.EndedAt != nil {
			duration = p.EndedAt.Sub(*p.StartedAt).Round(time.Millisecond).String()
		}
		table.Append([]string{p.Stage, p.Status, strconv.Itoa(p.RecordsProcessed), duration})
	}
	table.Render()
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var runTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			// the dataset is loaded up front so a broken cache or source stops startup
			session := a.session(cmd.ErrOrStderr())
			if _, err := session.Records(cmd.Context()); err != nil {
				return err
			}

			closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			runner := &pipeline.Runner{
				Session: session,
				Output:  utils.NewOutputManager(a.cfg.ExportDir),
				Logger:  a.log,
			}
			h := handler.New(session, runner, a.log)
			h.RunTimeout = runTimeout

			r := router.New(a.log)
			api.RegisterRoutes(r, h)

			err = r.Start(cmd.Context(), addr)
			h.Wait()
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().DurationVar(&runTimeout, "run-timeout", 10*time.Minute, "time limit for runs started through the API")
	return cmd
}
