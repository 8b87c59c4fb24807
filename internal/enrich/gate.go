// Package enrich orchestrates the enrichment pipelines: it gathers
// evidence, runs extraction, persists results and records the audit trail.
package enrich

import (
	"github.com/furgoplaza/enrich-cli/internal/model"
)

// gate decides whether a pipeline should run for an area. Areas that
// already carry the field a pipeline produces are skipped, so re-running a
// batch never redoes finished work. Valuation is always allowed: reports
// are append-only history.
type gate struct {
	minDescriptionChars int
}

func (g gate) shouldRun(area *model.Area, pipeline model.PipelineType) bool {
	switch pipeline {
	case model.PipelineDescription:
		return len([]rune(area.Description)) < g.minDescriptionChars
	case model.PipelineServices:
		return !area.HasAnyService()
	case model.PipelinePhotos:
		return len(area.Photos) == 0
	case model.PipelineValuation:
		return true
	}
	return false
}
