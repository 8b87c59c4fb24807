// Package store persists the directory catalog slice the pipeline works on:
// areas, vehicles, extraction configs, valuation reports and run records.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/furgoplaza/enrich-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("record not found")

// RunFilter specifies criteria for listing enrichment runs.
type RunFilter struct {
	TargetID string             `json:"target_id,omitempty"`
	Pipeline model.PipelineType `json:"pipeline,omitempty"`
	Status   model.RunStatus    `json:"status,omitempty"`
	Limit    int                `json:"limit,omitempty"`
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Areas. The pipeline writes derived fields only; UpsertArea exists
	// for catalog import.
	GetArea(ctx context.Context, id string) (*model.Area, error)
	ListAreaIDs(ctx context.Context) ([]string, error)
	UpsertArea(ctx context.Context, area model.Area) error
	UpdateAreaDescription(ctx context.Context, id, description string) error
	UpdateAreaServices(ctx context.Context, id string, services map[string]bool) error
	UpdateAreaPhotos(ctx context.Context, id string, photos []string) error

	// Vehicles, read-only to the pipeline.
	GetVehicle(ctx context.Context, id string) (*model.Vehicle, error)
	UpsertVehicle(ctx context.Context, vehicle model.Vehicle) error

	// Extraction configs, read-only to the pipeline.
	GetExtractionConfig(ctx context.Context, pipeline model.PipelineType) (*model.ExtractionConfig, error)
	PutExtractionConfig(ctx context.Context, pipeline model.PipelineType, cfg model.ExtractionConfig) error

	// Valuation reports are append-only history.
	InsertValuationReport(ctx context.Context, report model.ValuationReport) error
	ListValuationReports(ctx context.Context, vehicleID string) ([]model.ValuationReport, error)

	// Run audit trail.
	RecordRun(ctx context.Context, run model.EnrichmentRun) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.EnrichmentRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
