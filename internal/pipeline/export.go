package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go-covid-pipeline/internal/model"
	"go-covid-pipeline/internal/store"
	"go-covid-pipeline/pkg/utils"
)

// WriteWeeklyCSV writes the weekly series as location,iso_code,date,<metrics...>.
func WriteWeeklyCSV(w io.Writer, ws *model.WeeklySeries) error {
	writer := csv.NewWriter(w)

	header := append([]string{ColLocation, ColISOCode, ColDate}, ws.Metrics...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range ws.Rows {
		row := make([]string, 0, len(header))
		row = append(row, r.Location, r.ISOCode, r.Week.Format(model.DateLayout))
		for _, v := range r.Values {
			row = append(row, utils.FormatFloat(v))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteWeeklyJSON writes the weekly series wrapped in export metadata.
func WriteWeeklyJSON(w io.Writer, ws *model.WeeklySeries, runID string) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	exportData := map[string]interface{}{
		"export_info": map[string]interface{}{
			"run_id":       runID,
			"exported_at":  time.Now().UTC(),
			"record_count": len(ws.Rows),
			"export_type":  "weekly_series",
		},
		"metrics": ws.Metrics,
		"data":    ws.Rows,
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportManager handles weekly series export operations
type ExportManager struct {
	RunID  string
	Spec   model.Export
	Output *utils.OutputManager
	Logger *slog.Logger
}

// Export writes ws to every configured target. With no target configured it
// writes the default CSV under the run's output directory.
func (em *ExportManager) Export(ctx context.Context, ws *model.WeeklySeries) []model.ExportResult {
	var results []model.ExportResult

	if em.Spec.File != "" {
		results = append(results, em.exportToFile(em.Spec.File, ws))
	}
	if em.Spec.DB {
		results = append(results, em.exportToDatabase(ctx, ws))
	}
	if em.Spec.File == "" && !em.Spec.DB {
		results = append(results, em.exportToDefaultCSV(ws))
	}
	return results
}

// exportToFile exports data to a file (CSV or JSON by extension)
func (em *ExportManager) exportToFile(path string, ws *model.WeeklySeries) model.ExportResult {
	recordCount, err := em.writeFile(path, ws)

	result := model.ExportResult{
		Type:        "file",
		Path:        path,
		RecordCount: recordCount,
		Success:     err == nil,
		ExportedAt:  time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
		em.logger().Error("Export to file failed", "path", path, "error", err)
	} else {
		em.logger().Info("Export to file successful", "path", path, "rows", recordCount)
	}
	return result
}

func (em *ExportManager) writeFile(path string, ws *model.WeeklySeries) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	switch em.output().GetFileType(path) {
	case "json":
		err = WriteWeeklyJSON(file, ws, em.RunID)
	default:
		// Default to CSV if no extension or unknown extension
		err = WriteWeeklyCSV(file, ws)
	}
	if err != nil {
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("failed to close file: %w", err)
	}
	return len(ws.Rows), nil
}

// exportToDatabase stores the weekly rows in the run store
func (em *ExportManager) exportToDatabase(ctx context.Context, ws *model.WeeklySeries) model.ExportResult {
	err := store.SaveWeeklyRows(ctx, em.RunID, ws)

	result := model.ExportResult{
		Type:       "database",
		Path:       "weekly_series",
		Success:    err == nil,
		ExportedAt: time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
		em.logger().Error("Export to database failed", "run_id", em.RunID, "error", err)
	} else {
		result.RecordCount = len(ws.Rows)
		em.logger().Info("Export to database successful", "run_id", em.RunID, "rows", len(ws.Rows))
	}
	return result
}

// exportToDefaultCSV exports data to <output>/<run>/weekly.csv
func (em *ExportManager) exportToDefaultCSV(ws *model.WeeklySeries) model.ExportResult {
	path, err := em.output().GetOutputFilePath(em.RunID, "weekly.csv")
	if err != nil {
		return model.ExportResult{
			Type:       "file",
			Success:    false,
			Error:      err.Error(),
			ExportedAt: time.Now(),
		}
	}
	return em.exportToFile(path, ws)
}

func (em *ExportManager) output() *utils.OutputManager {
	if em.Output != nil {
		return em.Output
	}
	return utils.NewOutputManager("exports")
}

func (em *ExportManager) logger() *slog.Logger {
	if em.Logger != nil {
		return em.Logger
	}
	return slog.Default()
}
