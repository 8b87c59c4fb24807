package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furgoplaza/enrich-cli/internal/config"
	"github.com/furgoplaza/enrich-cli/internal/extract"
	"github.com/furgoplaza/enrich-cli/internal/model"
	"github.com/furgoplaza/enrich-cli/internal/store"
	"github.com/furgoplaza/enrich-cli/internal/valuation"
	"github.com/furgoplaza/enrich-cli/pkg/anthropic"
	"github.com/furgoplaza/enrich-cli/pkg/jina"
)

// memStore is an in-memory store.Store for orchestration tests.
type memStore struct {
	areas    map[string]*model.Area
	vehicles map[string]*model.Vehicle
	configs  map[model.PipelineType]*model.ExtractionConfig
	reports  []model.ValuationReport
	runs     []model.EnrichmentRun
}

func newMemStore() *memStore {
	return &memStore{
		areas:    map[string]*model.Area{},
		vehicles: map[string]*model.Vehicle{},
		configs:  map[model.PipelineType]*model.ExtractionConfig{},
	}
}

func (m *memStore) GetArea(ctx context.Context, id string) (*model.Area, error) {
	a, ok := m.areas[id]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "area %s", id)
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListAreaIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for id := range m.areas {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memStore) UpsertArea(ctx context.Context, area model.Area) error {
	m.areas[area.ID] = &area
	return nil
}

func (m *memStore) UpdateAreaDescription(ctx context.Context, id, description string) error {
	a, ok := m.areas[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Description = description
	return nil
}

func (m *memStore) UpdateAreaServices(ctx context.Context, id string, services map[string]bool) error {
	a, ok := m.areas[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Services = model.NormalizeServices(services)
	return nil
}

func (m *memStore) UpdateAreaPhotos(ctx context.Context, id string, photos []string) error {
	a, ok := m.areas[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Photos = photos
	return nil
}

func (m *memStore) GetVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	v, ok := m.vehicles[id]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "vehicle %s", id)
	}
	cp := *v
	return &cp, nil
}

func (m *memStore) UpsertVehicle(ctx context.Context, vehicle model.Vehicle) error {
	m.vehicles[vehicle.ID] = &vehicle
	return nil
}

func (m *memStore) GetExtractionConfig(ctx context.Context, pipeline model.PipelineType) (*model.ExtractionConfig, error) {
	cfg, ok := m.configs[pipeline]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cfg, nil
}

func (m *memStore) PutExtractionConfig(ctx context.Context, pipeline model.PipelineType, cfg model.ExtractionConfig) error {
	m.configs[pipeline] = &cfg
	return nil
}

func (m *memStore) InsertValuationReport(ctx context.Context, report model.ValuationReport) error {
	m.reports = append(m.reports, report)
	return nil
}

func (m *memStore) ListValuationReports(ctx context.Context, vehicleID string) ([]model.ValuationReport, error) {
	var out []model.ValuationReport
	for _, r := range m.reports {
		if r.VehicleID == vehicleID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) RecordRun(ctx context.Context, run model.EnrichmentRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *memStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.EnrichmentRun, error) {
	return m.runs, nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

// countingModel is an anthropic client stub that counts calls.
type countingModel struct {
	calls int
	text  string
	err   error
}

func (c *countingModel) Complete(ctx context.Context, req anthropic.CompletionRequest) (*anthropic.Completion, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &anthropic.Completion{Text: c.text, Model: req.Model}, nil
}

// countingJina is a jina client stub that counts calls.
type countingJina struct {
	calls   int
	results []jina.Result
}

func (c *countingJina) Read(ctx context.Context, url string) (*jina.Page, error) {
	c.calls++
	return &jina.Page{URL: url}, nil
}

func (c *countingJina) Search(ctx context.Context, query string, opts ...jina.SearchOption) ([]jina.Result, error) {
	c.calls++
	return c.results, nil
}

func testEvidenceCfg() config.EvidenceConfig {
	return config.EvidenceConfig{
		MaxItems:  12,
		MinChars:  50,
		Platforms: []string{"park4night.com"},
	}
}

func testEnrichCfg() config.EnrichConfig {
	return config.EnrichConfig{
		MinDescriptionChars: 120,
		MaxDescriptionChars: 2000,
		MaxPhotos:           8,
	}
}

func newTestRunner(t *testing.T, st store.Store, modelClient anthropic.Client, jinaClient jina.Client) *Runner {
	t.Helper()
	provider, err := extract.NewConfigProvider(st)
	require.NoError(t, err)
	engine := extract.NewEngine(modelClient, provider)
	assembler := valuation.NewAssembler(nil, nil, 0)
	return NewRunner(st, engine, jinaClient, nil, assembler, testEvidenceCfg(), testEnrichCfg())
}

func longDescription() string {
	s := ""
	for len(s) < 200 {
		s += "Área municipal con todos los servicios habituales. "
	}
	return s
}

func TestEnrichAreaSkipsAlreadyEnriched(t *testing.T) {
	st := newMemStore()
	st.areas["area-1"] = &model.Area{
		ID: "area-1", Name: "Área X", City: "Requena", Province: "Valencia",
		Description: longDescription(),
		Services:    model.NormalizeServices(map[string]bool{"agua": true}),
		Photos:      []string{"https://photos.example/1.jpg"},
	}
	modelClient := &countingModel{text: "no debería llamarse"}
	jinaClient := &countingJina{}
	r := newTestRunner(t, st, modelClient, jinaClient)

	runs, err := r.EnrichArea(context.Background(), "area-1",
		[]model.PipelineType{model.PipelineDescription, model.PipelineServices, model.PipelinePhotos})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for _, run := range runs {
		assert.Equal(t, model.RunStatusSkipped, run.Status)
	}

	// Skipped pipelines must not touch any upstream.
	assert.Zero(t, modelClient.calls)
	assert.Zero(t, jinaClient.calls)
}

func TestEnrichAreaDescriptionSuccess(t *testing.T) {
	st := newMemStore()
	st.areas["area-1"] = &model.Area{ID: "area-1", Name: "Área X", City: "Requena", Province: "Valencia"}
	jinaClient := &countingJina{results: []jina.Result{
		{Title: "Área X", URL: "https://park4night.com/p/1", Content: "Área con agua, electricidad y vaciado de aguas grises, abierta todo el año."},
	}}
	modelClient := &countingModel{text: "Área municipal de Requena con agua, electricidad y vaciado de aguas."}
	r := newTestRunner(t, st, modelClient, jinaClient)

	runs, err := r.EnrichArea(context.Background(), "area-1", []model.PipelineType{model.PipelineDescription})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusSuccess, runs[0].Status)
	assert.Equal(t, modelClient.text, st.areas["area-1"].Description)
	assert.Len(t, st.runs, 1)
}

func TestEnrichAreaAuthFailureLeavesAreaUntouched(t *testing.T) {
	st := newMemStore()
	st.areas["area-1"] = &model.Area{ID: "area-1", Name: "Área X", City: "Requena", Province: "Valencia"}
	jinaClient := &countingJina{results: []jina.Result{
		{Title: "Área X", URL: "https://park4night.com/p/1", Content: "Área con agua, electricidad y vaciado, abierta todo el año."},
	}}
	modelClient := &countingModel{err: &anthropic.APIError{StatusCode: 401, Detail: "invalid key"}}
	r := newTestRunner(t, st, modelClient, jinaClient)

	runs, err := r.EnrichArea(context.Background(), "area-1", []model.PipelineType{model.PipelineDescription})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Detail, "AUTH_ERROR")
	assert.Empty(t, st.areas["area-1"].Description)
}

func TestEnrichAreaInsufficientEvidence(t *testing.T) {
	st := newMemStore()
	st.areas["area-1"] = &model.Area{ID: "area-1", Name: "Área X", City: "Requena", Province: "Valencia"}
	jinaClient := &countingJina{results: []jina.Result{{Content: "poco", URL: "https://x.example/1"}}}
	modelClient := &countingModel{text: "no debería llamarse"}
	r := newTestRunner(t, st, modelClient, jinaClient)

	runs, err := r.EnrichArea(context.Background(), "area-1", []model.PipelineType{model.PipelineDescription})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusInsufficient, runs[0].Status)
	assert.Zero(t, modelClient.calls)
	assert.Empty(t, st.areas["area-1"].Description)
}

func TestEnrichAreaServicesParsesClosedVocabulary(t *testing.T) {
	st := newMemStore()
	st.areas["area-1"] = &model.Area{ID: "area-1", Name: "Área X", City: "Requena", Province: "Valencia"}
	jinaClient := &countingJina{results: []jina.Result{
		{Title: "Área X", URL: "https://park4night.com/p/1", Content: "Área con agua y electricidad, zona de picnic con sombra."},
	}}
	modelClient := &countingModel{text: `{"agua": true, "electricidad": true, "zona_picnic": true, "piscina": true}`}
	r := newTestRunner(t, st, modelClient, jinaClient)

	runs, err := r.EnrichArea(context.Background(), "area-1", []model.PipelineType{model.PipelineServices})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, runs[0].Status)

	services := st.areas["area-1"].Services
	assert.True(t, services["agua"])
	assert.False(t, services["wifi"])
	_, hasExtra := services["piscina"]
	assert.False(t, hasExtra)
}

func TestEnrichAreaServicesProseReplyPersistsAllFalse(t *testing.T) {
	st := newMemStore()
	st.areas["area-1"] = &model.Area{ID: "area-1", Name: "Área X", City: "Requena", Province: "Valencia"}
	jinaClient := &countingJina{results: []jina.Result{
		{Title: "Área X", URL: "https://park4night.com/p/1", Content: "Área con agua y electricidad, zona de picnic con sombra."},
	}}
	modelClient := &countingModel{text: "El área dispone de agua y electricidad."}
	r := newTestRunner(t, st, modelClient, jinaClient)

	runs, err := r.EnrichArea(context.Background(), "area-1", []model.PipelineType{model.PipelineServices})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, runs[0].Status)

	services := st.areas["area-1"].Services
	assert.Len(t, services, len(model.ServiceKeys))
	for key, enabled := range services {
		assert.False(t, enabled, key)
	}
}

func TestEnrichAreaUnknownAreaFails(t *testing.T) {
	r := newTestRunner(t, newMemStore(), &countingModel{}, &countingJina{})
	_, err := r.EnrichArea(context.Background(), "nope", []model.PipelineType{model.PipelineDescription})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestValuateVehicleAppendsReport(t *testing.T) {
	st := newMemStore()
	st.vehicles["veh-1"] = &model.Vehicle{ID: "veh-1", Make: "Fiat", Model: "Ducato", Year: 2018, PurchasePrice: 20000}
	modelClient := &countingModel{text: "Informe.\nPrecio de publicación: 23.000 €\nPrecio objetivo: 21.500 €\nPrecio mínimo: 20.000 €"}
	r := newTestRunner(t, st, modelClient, &countingJina{})

	report, err := r.ValuateVehicle(context.Background(), "veh-1")
	require.NoError(t, err)
	assert.Equal(t, 23000, report.AskingPrice)
	assert.Equal(t, 21500, report.TargetPrice)
	assert.Equal(t, 20000, report.FloorPrice)
	// No finder configured, so no comparables and the lowest tier.
	assert.Equal(t, model.TierEstimative, report.ConfidenceTier)
	require.NotNil(t, report.DepreciationPct)
	assert.InDelta(t, -7.5, *report.DepreciationPct, 0.001)

	require.Len(t, st.reports, 1)
	require.Len(t, st.runs, 1)
	assert.Equal(t, model.RunStatusSuccess, st.runs[0].Status)

	// A second run appends, never overwrites.
	_, err = r.ValuateVehicle(context.Background(), "veh-1")
	require.NoError(t, err)
	assert.Len(t, st.reports, 2)
}

func TestValuateVehicleModelFailureRecordsRun(t *testing.T) {
	st := newMemStore()
	st.vehicles["veh-1"] = &model.Vehicle{ID: "veh-1", Make: "Fiat", Model: "Ducato"}
	modelClient := &countingModel{err: &anthropic.APIError{StatusCode: 429, Detail: "slow down"}}
	r := newTestRunner(t, st, modelClient, &countingJina{})

	_, err := r.ValuateVehicle(context.Background(), "veh-1")
	require.Error(t, err)
	assert.Empty(t, st.reports)
	require.Len(t, st.runs, 1)
	assert.Equal(t, model.RunStatusFailed, st.runs[0].Status)
	assert.Contains(t, st.runs[0].Detail, "RATE_LIMIT")
}

func TestDispatcherRunsSequentially(t *testing.T) {
	st := newMemStore()
	st.areas["area-1"] = &model.Area{ID: "area-1", Name: "A", City: "c", Province: "p"}
	st.areas["area-2"] = &model.Area{ID: "area-2", Name: "B", City: "c", Province: "p", Description: longDescription()}
	jinaClient := &countingJina{results: []jina.Result{
		{Title: "x", URL: "https://park4night.com/p/1", Content: "Área con agua, electricidad y vaciado, abierta todo el año."},
	}}
	r := newTestRunner(t, st, &countingModel{text: "Descripción generada por el piloto."}, jinaClient)

	d := NewDispatcher(r, time.Millisecond)
	summary, err := d.Run(context.Background(), []string{"area-1", "area-2"}, []model.PipelineType{model.PipelineDescription})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Targets)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Skipped)
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	st := newMemStore()
	for _, id := range []string{"area-1", "area-2", "area-3"} {
		st.areas[id] = &model.Area{ID: id, Name: "A", City: "c", Province: "p", Description: longDescription()}
	}
	r := newTestRunner(t, st, &countingModel{}, &countingJina{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(r, time.Hour)
	_, err := d.Run(ctx, []string{"area-1", "area-2", "area-3"}, []model.PipelineType{model.PipelineDescription})
	require.Error(t, err)
}
