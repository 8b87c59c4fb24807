package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furgoplaza/enrich-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetArea_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, city, province, country, website, description, services, photos, enriched_at`).
		WithArgs("nonexistent-area").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetArea(context.Background(), "nonexistent-area")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetArea(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "name", "city", "province", "country", "website",
		"description", "services", "photos", "enriched_at",
	}).AddRow(
		"area-1", "Área de Requena", "Requena", "Valencia", "España",
		"https://requena.es/area", "", []byte(`{"agua":true}`), []byte(`["u1"]`), (*time.Time)(nil),
	)
	mock.ExpectQuery(`SELECT id, name, city, province, country, website, description, services, photos, enriched_at`).
		WithArgs("area-1").
		WillReturnRows(rows)

	area, err := s.GetArea(context.Background(), "area-1")
	require.NoError(t, err)
	assert.Equal(t, "Área de Requena", area.Name)
	assert.True(t, area.Services["agua"])
	assert.Equal(t, []string{"u1"}, area.Photos)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAreaDescription(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE areas SET description = \$1, enriched_at = \$2 WHERE id = \$3`).
		WithArgs("nueva descripción", pgxmock.AnyArg(), "area-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateAreaDescription(context.Background(), "area-1", "nueva descripción")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAreaDescription_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE areas SET description`).
		WithArgs("texto", pgxmock.AnyArg(), "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateAreaDescription(context.Background(), "nope", "texto")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertValuationReport(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO valuation_reports`).
		WithArgs(pgxmock.AnyArg(), "veh-1", pgxmock.AnyArg(), 23000, 21500, 20000,
			"informe", pgxmock.AnyArg(), 1, "Low", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	price := 21500
	err := s.InsertValuationReport(context.Background(), model.ValuationReport{
		VehicleID:       "veh-1",
		GeneratedAt:     time.Now().UTC(),
		AskingPrice:     23000,
		TargetPrice:     21500,
		FloorPrice:      20000,
		ReportText:      "informe",
		Comparables:     []model.Comparable{{Title: "Camper A", Price: &price}},
		ComparableCount: 1,
		ConfidenceTier:  model.TierLow,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetExtractionConfig(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT config FROM extraction_configs WHERE pipeline = \$1`).
		WithArgs("descripcion").
		WillReturnRows(pgxmock.NewRows([]string{"config"}).
			AddRow([]byte(`{"model_name":"claude-sonnet-4-5","prompt_segments":[{"role":"user","order":1,"required":true,"content_template":"x"}]}`)))

	cfg, err := s.GetExtractionConfig(context.Background(), model.PipelineDescription)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", cfg.ModelName)
	require.Len(t, cfg.Segments, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO enrichment_runs`).
		WithArgs(pgxmock.AnyArg(), "area-1", "servicios", "failed", "AUTH_ERROR: bad key",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordRun(context.Background(), model.EnrichmentRun{
		TargetID: "area-1",
		Pipeline: model.PipelineServices,
		Status:   model.RunStatusFailed,
		Detail:   "AUTH_ERROR: bad key",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
