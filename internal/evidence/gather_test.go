package evidence

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furgoplaza/enrich-cli/internal/config"
)

type stubSource struct {
	name    string
	results []Result
	err     error
	calls   int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Search(ctx context.Context, query string) ([]Result, error) {
	s.calls++
	return s.results, s.err
}

func TestGatherOrdersByRankAndDedupsFirstWins(t *testing.T) {
	platform := &stubSource{name: "park4night.com", results: []Result{
		{Title: "Área Requena", Snippet: "10 plazas, agua y electricidad disponibles todo el año", URL: "https://park4night.com/es/place/123"},
	}}
	web := &stubSource{name: "web", results: []Result{
		// Same URL as the platform result: must be dropped, keeping the
		// higher-priority item's source label.
		{Title: "Área Requena (copia)", Snippet: "texto distinto pero misma página", URL: "https://park4night.com/es/place/123/"},
		{Title: "Blog viajero", Snippet: "El área de Requena tiene zona de picnic y vigilancia nocturna", URL: "https://blogviajero.es/requena"},
	}}

	items, err := Gather(context.Background(), []Stage{
		{Name: "web", Rank: 2, Query: "área autocaravanas Requena", Source: web},
		{Name: "platform", Rank: 1, Query: "Requena", Source: platform},
	}, Options{MinChars: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "park4night.com", items[0].SourceLabel)
	assert.Equal(t, 1, items[0].PriorityRank)
	assert.Equal(t, "web", items[1].SourceLabel)
}

func TestGatherTextFingerprintDedupIgnoresAccents(t *testing.T) {
	a := &stubSource{name: "a", results: []Result{
		{Snippet: "Área con electricidad y vigilancia"},
	}}
	b := &stubSource{name: "b", results: []Result{
		{Snippet: "area  con electricidad y vigilancia"},
	}}

	items, err := Gather(context.Background(), []Stage{
		{Name: "a", Rank: 1, Query: "q", Source: a},
		{Name: "b", Rank: 2, Query: "q", Source: b},
	}, Options{MinChars: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].SourceLabel)
}

func TestGatherSkipsFailedStages(t *testing.T) {
	broken := &stubSource{name: "broken", err: eris.New("upstream down")}
	ok := &stubSource{name: "ok", results: []Result{
		{Snippet: "El área municipal dispone de aguas grises y negras", URL: "https://x.example/1"},
	}}

	items, err := Gather(context.Background(), []Stage{
		{Name: "broken", Rank: 1, Query: "q", Source: broken},
		{Name: "ok", Rank: 2, Query: "q", Source: ok},
	}, Options{MinChars: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, broken.calls)
}

func TestGatherDenylist(t *testing.T) {
	src := &stubSource{name: "web", results: []Result{
		{Snippet: "contenido de empresa de alquiler", URL: "https://alquilerfurgos.example/promo"},
		{Snippet: "el área pública tiene wifi gratuito en toda la explanada", URL: "https://ayto.example/area"},
	}}

	items, err := Gather(context.Background(), []Stage{
		{Name: "web", Rank: 1, Query: "q", Source: src},
	}, Options{MinChars: 10, Denylist: []string{"alquilerfurgos"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://ayto.example/area", items[0].URL)
}

func TestGatherDefaultDenylistDropsTrackingAndAssets(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.yaml present
	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Evidence.Denylist)

	src := &stubSource{name: "web", results: []Result{
		{Snippet: "el área pública tiene wifi gratuito en toda la explanada", URL: "https://ayto.example/area?utm_source=boletin"},
		{Snippet: "imagen del plano de plazas del recinto", URL: "https://ayto.example/favicon.ico"},
		{Snippet: "aparcamiento con 20 plazas junto al río, sombra en verano", URL: "https://ayto.example/aparcamiento"},
	}}

	items, err := Gather(context.Background(), []Stage{
		{Name: "web", Rank: 1, Query: "q", Source: src},
	}, Options{MinChars: 10, Denylist: cfg.Evidence.Denylist})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://ayto.example/aparcamiento", items[0].URL)
}

func TestGatherCapsItems(t *testing.T) {
	src := &stubSource{name: "web", results: []Result{
		{Snippet: "primer fragmento con suficiente texto", URL: "https://x.example/1"},
		{Snippet: "segundo fragmento con suficiente texto", URL: "https://x.example/2"},
		{Snippet: "tercer fragmento con suficiente texto", URL: "https://x.example/3"},
	}}

	items, err := Gather(context.Background(), []Stage{
		{Name: "web", Rank: 1, Query: "q", Source: src},
	}, Options{MaxItems: 2, MinChars: 10})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestGatherInsufficientEvidence(t *testing.T) {
	src := &stubSource{name: "web", results: []Result{
		{Snippet: "poco", URL: "https://x.example/1"},
	}}

	_, err := Gather(context.Background(), []Stage{
		{Name: "web", Rank: 1, Query: "q", Source: src},
	}, Options{MinChars: 500})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientEvidence)
}

func TestFormatBlock(t *testing.T) {
	items, err := Gather(context.Background(), []Stage{
		{Name: "web", Rank: 1, Query: "q", Source: &stubSource{name: "web", results: []Result{
			{Snippet: "texto del área con detalle suficiente", URL: "https://x.example/1"},
		}}},
	}, Options{MinChars: 10})
	require.NoError(t, err)

	block := FormatBlock(items)
	assert.Contains(t, block, "[1] Fuente: web (https://x.example/1)")
	assert.Contains(t, block, "texto del área con detalle suficiente")
}
