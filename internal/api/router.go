package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-covid-pipeline/docs"
	"go-covid-pipeline/internal/api/handler"
	"go-covid-pipeline/pkg/router"
)

// @title COVID-19 Weekly Pipeline API
// @version 1.0
// @description Query the OWID COVID-19 dataset, its weekly series, and run export pipelines.
// @BasePath /api/v1

func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.GET("/api/v1/locations", h.GetLocations)
	r.GET("/api/v1/records", h.GetRecords)
	r.GET("/api/v1/weekly", h.GetWeekly)
	r.GET("/api/v1/weekly/frames", h.GetFrames)
	r.GET("/api/v1/latest", h.GetLatest)
	r.GET("/api/v1/summary", h.GetSummary)
	r.GET("/api/v1/correlation", h.GetCorrelation)
	r.GET("/api/v1/export/weekly.csv", h.ExportWeeklyCSV)

	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/progress", h.GetRunProgress)
	r.GET("/api/v1/runs/*/weekly", h.GetRunWeekly)
	r.GET("/api/v1/runs/*", h.GetRun)

	r.Handle(http.MethodGet, "/metrics", promhttp.Handler())
	r.Handle(http.MethodGet, "/swagger/*", httpSwagger.WrapHandler)
}
