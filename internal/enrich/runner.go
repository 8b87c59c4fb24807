package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/furgoplaza/enrich-cli/internal/config"
	"github.com/furgoplaza/enrich-cli/internal/evidence"
	"github.com/furgoplaza/enrich-cli/internal/extract"
	"github.com/furgoplaza/enrich-cli/internal/fault"
	"github.com/furgoplaza/enrich-cli/internal/model"
	"github.com/furgoplaza/enrich-cli/internal/store"
	"github.com/furgoplaza/enrich-cli/internal/valuation"
	"github.com/furgoplaza/enrich-cli/pkg/jina"
	"github.com/furgoplaza/enrich-cli/pkg/places"
)

// Runner executes enrichment pipelines against the store.
type Runner struct {
	store     store.Store
	engine    *extract.Engine
	jina      jina.Client
	places    places.Client
	assembler *valuation.Assembler

	evidenceCfg config.EvidenceConfig
	enrichCfg   config.EnrichConfig
	gate        gate
}

// NewRunner wires a runner. The jina and places clients may be nil; the
// stages that need them are then skipped or fail per-pipeline.
func NewRunner(st store.Store, engine *extract.Engine, jinaClient jina.Client, placesClient places.Client, assembler *valuation.Assembler, evidenceCfg config.EvidenceConfig, enrichCfg config.EnrichConfig) *Runner {
	return &Runner{
		store:       st,
		engine:      engine,
		jina:        jinaClient,
		places:      placesClient,
		assembler:   assembler,
		evidenceCfg: evidenceCfg,
		enrichCfg:   enrichCfg,
		gate:        gate{minDescriptionChars: enrichCfg.MinDescriptionChars},
	}
}

// EnrichArea runs the given pipelines for one area, in order, and returns
// the audit records. A pipeline failure is recorded and does not stop the
// remaining pipelines; only failing to load the area aborts.
func (r *Runner) EnrichArea(ctx context.Context, areaID string, pipelines []model.PipelineType) ([]model.EnrichmentRun, error) {
	area, err := r.store.GetArea(ctx, areaID)
	if err != nil {
		return nil, err
	}

	var runs []model.EnrichmentRun
	for _, pipeline := range pipelines {
		if ctx.Err() != nil {
			return runs, ctx.Err()
		}
		run := r.runAreaPipeline(ctx, area, pipeline)
		runs = append(runs, run)
		if err := r.store.RecordRun(ctx, run); err != nil {
			zap.L().Error("failed to record run", zap.String("area", areaID), zap.Error(err))
		}
	}
	return runs, nil
}

func (r *Runner) runAreaPipeline(ctx context.Context, area *model.Area, pipeline model.PipelineType) model.EnrichmentRun {
	run := model.EnrichmentRun{
		ID:        uuid.NewString(),
		TargetID:  area.ID,
		Pipeline:  pipeline,
		StartedAt: time.Now().UTC(),
	}
	finish := func(status model.RunStatus, detail string) model.EnrichmentRun {
		run.Status = status
		run.Detail = detail
		run.FinishedAt = time.Now().UTC()
		run.DurationMS = run.FinishedAt.Sub(run.StartedAt).Milliseconds()
		zap.L().Info("pipeline finished",
			zap.String("area", area.ID),
			zap.String("pipeline", string(pipeline)),
			zap.String("status", string(status)),
			zap.Int64("duration_ms", run.DurationMS),
		)
		return run
	}

	if !pipeline.Valid() {
		return finish(model.RunStatusFailed, "unknown pipeline")
	}
	if !r.gate.shouldRun(area, pipeline) {
		return finish(model.RunStatusSkipped, "already enriched")
	}

	var err error
	switch pipeline {
	case model.PipelineDescription:
		err = r.runDescription(ctx, area)
	case model.PipelineServices:
		err = r.runServices(ctx, area)
	case model.PipelinePhotos:
		err = r.runPhotos(ctx, area)
	default:
		return finish(model.RunStatusFailed, "pipeline not applicable to areas")
	}

	switch {
	case err == nil:
		return finish(model.RunStatusSuccess, "")
	case errors.Is(err, evidence.ErrInsufficientEvidence):
		return finish(model.RunStatusInsufficient, err.Error())
	default:
		return finish(model.RunStatusFailed, string(fault.CodeOf(err))+": "+err.Error())
	}
}

func (r *Runner) runDescription(ctx context.Context, area *model.Area) error {
	items, err := r.gatherEvidence(ctx, area)
	if err != nil {
		return err
	}

	text, err := r.engine.Run(ctx, model.PipelineDescription, r.areaVars(area, items))
	if err != nil {
		return err
	}
	if max := r.enrichCfg.MaxDescriptionChars; max > 0 {
		if runes := []rune(text); len(runes) > max {
			text = strings.TrimSpace(string(runes[:max]))
		}
	}

	if err := r.store.UpdateAreaDescription(ctx, area.ID, text); err != nil {
		return err
	}
	area.Description = text
	return nil
}

func (r *Runner) runServices(ctx context.Context, area *model.Area) error {
	items, err := r.gatherEvidence(ctx, area)
	if err != nil {
		return err
	}

	reply, err := r.engine.Run(ctx, model.PipelineServices, r.areaVars(area, items))
	if err != nil {
		return err
	}

	services := extract.ParseServices(reply)

	if err := r.store.UpdateAreaServices(ctx, area.ID, services); err != nil {
		return err
	}
	area.Services = services
	return nil
}

func (r *Runner) runPhotos(ctx context.Context, area *model.Area) error {
	if r.places == nil {
		return fault.New(fault.CodeConfig, "places client not configured")
	}

	matches, err := r.places.TextSearch(ctx, placesQuery(area))
	if err != nil {
		return fault.Wrap(fault.CodeNetwork, err, "places search")
	}
	if len(matches) == 0 {
		return fault.New(fault.CodeValidation, "area not found on places")
	}

	details, err := r.places.Details(ctx, matches[0].PlaceID)
	if err != nil {
		return fault.Wrap(fault.CodeNetwork, err, "places details")
	}

	var urls []string
	for _, photo := range details.Photos {
		if r.enrichCfg.MaxPhotos > 0 && len(urls) >= r.enrichCfg.MaxPhotos {
			break
		}
		url := r.places.PhotoURL(photo.PhotoReference, 1200)
		if denied(url, r.evidenceCfg.Denylist) {
			continue
		}
		urls = append(urls, url)
	}
	if len(urls) == 0 {
		return fault.New(fault.CodeValidation, "no photos available for area")
	}

	if err := r.store.UpdateAreaPhotos(ctx, area.ID, urls); err != nil {
		return err
	}
	area.Photos = urls
	return nil
}

// ValuateVehicle runs the valuation pipeline for a vehicle and appends a new
// report.
func (r *Runner) ValuateVehicle(ctx context.Context, vehicleID string) (*model.ValuationReport, error) {
	vehicle, err := r.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	run := model.EnrichmentRun{
		ID:        uuid.NewString(),
		TargetID:  vehicleID,
		Pipeline:  model.PipelineValuation,
		StartedAt: time.Now().UTC(),
	}
	record := func(status model.RunStatus, detail string) {
		run.Status = status
		run.Detail = detail
		run.FinishedAt = time.Now().UTC()
		run.DurationMS = run.FinishedAt.Sub(run.StartedAt).Milliseconds()
		if err := r.store.RecordRun(ctx, run); err != nil {
			zap.L().Error("failed to record run", zap.String("vehicle", vehicleID), zap.Error(err))
		}
	}

	comps := r.assembler.Collect(ctx, *vehicle)
	avg := valuation.MarketAverage(comps)

	text, err := r.engine.Run(ctx, model.PipelineValuation, extract.Vars{
		"vehiculo":    valuation.FormatVehicleBlock(*vehicle),
		"comparables": valuation.FormatComparablesBlock(comps),
	})
	if err != nil {
		record(model.RunStatusFailed, string(fault.CodeOf(err))+": "+err.Error())
		return nil, err
	}

	prices := extract.ExtractPrices(text, *vehicle, avg)
	report := valuation.BuildReport(*vehicle, text, comps, prices)

	if err := r.store.InsertValuationReport(ctx, report); err != nil {
		record(model.RunStatusFailed, err.Error())
		return nil, err
	}

	record(model.RunStatusSuccess, fmt.Sprintf("tier=%s comparables=%d", report.ConfidenceTier, report.ComparableCount))
	return &report, nil
}

func (r *Runner) gatherEvidence(ctx context.Context, area *model.Area) ([]model.EvidenceItem, error) {
	if r.jina == nil {
		return nil, fault.New(fault.CodeConfig, "jina client not configured")
	}

	query := fmt.Sprintf("área autocaravanas %s %s", area.Name, area.City)

	var stages []evidence.Stage
	rank := 1
	if area.Website != "" {
		stages = append(stages, evidence.Stage{
			Name:   "sitio_oficial",
			Rank:   rank,
			Query:  area.Website,
			Source: evidence.NewSiteReaderSource(r.jina),
		})
	}
	rank++
	for _, platform := range r.evidenceCfg.Platforms {
		stages = append(stages, evidence.Stage{
			Name:   platform,
			Rank:   rank,
			Query:  fmt.Sprintf("%s %s", area.Name, area.City),
			Source: evidence.NewPlatformSource(r.jina, platform),
		})
		rank++
	}
	if r.places != nil {
		stages = append(stages, evidence.Stage{
			Name:   "places",
			Rank:   rank,
			Query:  placesQuery(area),
			Source: evidence.NewPlacesSource(r.places),
		})
		rank++
	}
	stages = append(stages, evidence.Stage{
		Name:   "web",
		Rank:   rank,
		Query:  query,
		Source: evidence.NewWebSearchSource(r.jina),
	})

	return evidence.Gather(ctx, stages, evidence.Options{
		MaxItems: r.evidenceCfg.MaxItems,
		MinChars: r.evidenceCfg.MinChars,
		Denylist: r.evidenceCfg.Denylist,
	})
}

func (r *Runner) areaVars(area *model.Area, items []model.EvidenceItem) extract.Vars {
	return extract.Vars{
		"nombre":    area.Name,
		"ciudad":    area.City,
		"provincia": area.Province,
		"evidencia": evidence.FormatBlock(items),
	}
}

func placesQuery(area *model.Area) string {
	return fmt.Sprintf("%s, %s, %s", area.Name, area.City, area.Province)
}

func denied(url string, denylist []string) bool {
	lower := strings.ToLower(url)
	for _, needle := range denylist {
		if needle != "" && strings.Contains(lower, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}
