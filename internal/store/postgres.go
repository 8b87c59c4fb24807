package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/furgoplaza/enrich-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"get_area":          `SELECT id, name, city, province, country, website, description, services, photos, enriched_at FROM areas WHERE id = $1`,
	"update_area_desc":  `UPDATE areas SET description = $1, enriched_at = $2 WHERE id = $3`,
	"update_area_svcs":  `UPDATE areas SET services = $1, enriched_at = $2 WHERE id = $3`,
	"update_area_fotos": `UPDATE areas SET photos = $1, enriched_at = $2 WHERE id = $3`,
	"get_vehicle":       `SELECT id, make, model, year, purchase_price, purchase_date, odometer_km, severe_faults, upgrades FROM vehicles WHERE id = $1`,
	"insert_report":     `INSERT INTO valuation_reports (id, vehicle_id, generated_at, asking_price, target_price, floor_price, report_text, comparables, comparable_count, confidence_tier, market_average_price, depreciation_pct) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
	"record_run":        `INSERT INTO enrichment_runs (id, target_id, pipeline, status, detail, started_at, finished_at, duration_ms) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS areas (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	city        TEXT NOT NULL,
	province    TEXT NOT NULL,
	country     TEXT NOT NULL DEFAULT 'España',
	website     TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	services    JSONB,
	photos      JSONB,
	enriched_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS vehicles (
	id             TEXT PRIMARY KEY,
	make           TEXT NOT NULL,
	model          TEXT NOT NULL,
	year           INTEGER NOT NULL DEFAULT 0,
	purchase_price INTEGER NOT NULL DEFAULT 0,
	purchase_date  TIMESTAMPTZ,
	odometer_km    INTEGER NOT NULL DEFAULT 0,
	severe_faults  JSONB,
	upgrades       JSONB
);

CREATE TABLE IF NOT EXISTS extraction_configs (
	pipeline   TEXT PRIMARY KEY,
	config     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS valuation_reports (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	vehicle_id           TEXT NOT NULL REFERENCES vehicles(id),
	generated_at         TIMESTAMPTZ NOT NULL,
	asking_price         INTEGER NOT NULL,
	target_price         INTEGER NOT NULL,
	floor_price          INTEGER NOT NULL,
	report_text          TEXT NOT NULL,
	comparables          JSONB,
	comparable_count     INTEGER NOT NULL,
	confidence_tier      TEXT NOT NULL,
	market_average_price DOUBLE PRECISION,
	depreciation_pct     DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS enrichment_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	target_id   TEXT NOT NULL,
	pipeline    TEXT NOT NULL,
	status      TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_valuation_reports_vehicle ON valuation_reports(vehicle_id, generated_at DESC);
CREATE INDEX IF NOT EXISTS idx_enrichment_runs_target ON enrichment_runs(target_id);
CREATE INDEX IF NOT EXISTS idx_enrichment_runs_status ON enrichment_runs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetArea(ctx context.Context, id string) (*model.Area, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, city, province, country, website, description, services, photos, enriched_at
		 FROM areas WHERE id = $1`, id)

	var a model.Area
	var services, photos []byte
	err := row.Scan(&a.ID, &a.Name, &a.City, &a.Province, &a.Country, &a.Website,
		&a.Description, &services, &photos, &a.EnrichedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "area %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get area")
	}

	if len(services) > 0 {
		if err := json.Unmarshal(services, &a.Services); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal services")
		}
	}
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &a.Photos); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal photos")
		}
	}
	return &a, nil
}

func (s *PostgresStore) ListAreaIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM areas ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list area ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan area id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list area ids iterate")
}

func (s *PostgresStore) UpsertArea(ctx context.Context, area model.Area) error {
	services, err := jsonbOrNil(area.Services, len(area.Services) > 0)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal services")
	}
	photos, err := jsonbOrNil(area.Photos, len(area.Photos) > 0)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal photos")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO areas (id, name, city, province, country, website, description, services, photos, enriched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, city = excluded.city, province = excluded.province,
		   country = excluded.country, website = excluded.website`,
		area.ID, area.Name, area.City, area.Province, area.Country, area.Website,
		area.Description, services, photos, area.EnrichedAt,
	)
	return eris.Wrap(err, "postgres: upsert area")
}

func (s *PostgresStore) UpdateAreaDescription(ctx context.Context, id, description string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE areas SET description = $1, enriched_at = $2 WHERE id = $3`,
		description, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update area description %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "area %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateAreaServices(ctx context.Context, id string, services map[string]bool) error {
	payload, err := json.Marshal(model.NormalizeServices(services))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal services")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE areas SET services = $1, enriched_at = $2 WHERE id = $3`,
		payload, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update area services %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "area %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateAreaPhotos(ctx context.Context, id string, photos []string) error {
	payload, err := json.Marshal(photos)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal photos")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE areas SET photos = $1, enriched_at = $2 WHERE id = $3`,
		payload, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update area photos %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "area %s", id)
	}
	return nil
}

func (s *PostgresStore) GetVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, make, model, year, purchase_price, purchase_date, odometer_km, severe_faults, upgrades
		 FROM vehicles WHERE id = $1`, id)

	var v model.Vehicle
	var faults, upgrades []byte
	err := row.Scan(&v.ID, &v.Make, &v.Model, &v.Year, &v.PurchasePrice,
		&v.PurchaseDate, &v.OdometerKM, &faults, &upgrades)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "vehicle %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get vehicle")
	}

	if len(faults) > 0 {
		if err := json.Unmarshal(faults, &v.SevereFaults); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal severe faults")
		}
	}
	if len(upgrades) > 0 {
		if err := json.Unmarshal(upgrades, &v.Upgrades); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal upgrades")
		}
	}
	return &v, nil
}

func (s *PostgresStore) UpsertVehicle(ctx context.Context, vehicle model.Vehicle) error {
	faults, err := jsonbOrNil(vehicle.SevereFaults, len(vehicle.SevereFaults) > 0)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal severe faults")
	}
	upgrades, err := jsonbOrNil(vehicle.Upgrades, len(vehicle.Upgrades) > 0)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal upgrades")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO vehicles (id, make, model, year, purchase_price, purchase_date, odometer_km, severe_faults, upgrades)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   make = excluded.make, model = excluded.model, year = excluded.year,
		   purchase_price = excluded.purchase_price, purchase_date = excluded.purchase_date,
		   odometer_km = excluded.odometer_km, severe_faults = excluded.severe_faults,
		   upgrades = excluded.upgrades`,
		vehicle.ID, vehicle.Make, vehicle.Model, vehicle.Year, vehicle.PurchasePrice,
		vehicle.PurchaseDate, vehicle.OdometerKM, faults, upgrades,
	)
	return eris.Wrap(err, "postgres: upsert vehicle")
}

func (s *PostgresStore) GetExtractionConfig(ctx context.Context, pipeline model.PipelineType) (*model.ExtractionConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT config FROM extraction_configs WHERE pipeline = $1`, string(pipeline))

	var payload []byte
	err := row.Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "extraction config %s", pipeline)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get extraction config")
	}

	var cfg model.ExtractionConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal extraction config")
	}
	return &cfg, nil
}

func (s *PostgresStore) PutExtractionConfig(ctx context.Context, pipeline model.PipelineType, cfg model.ExtractionConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extraction config")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO extraction_configs (pipeline, config, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (pipeline) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		string(pipeline), payload, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: put extraction config")
}

func (s *PostgresStore) InsertValuationReport(ctx context.Context, report model.ValuationReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	comparables, err := jsonbOrNil(report.Comparables, len(report.Comparables) > 0)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal comparables")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO valuation_reports
		   (id, vehicle_id, generated_at, asking_price, target_price, floor_price,
		    report_text, comparables, comparable_count, confidence_tier,
		    market_average_price, depreciation_pct)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		report.ID, report.VehicleID, report.GeneratedAt, report.AskingPrice,
		report.TargetPrice, report.FloorPrice, report.ReportText, comparables,
		report.ComparableCount, string(report.ConfidenceTier),
		report.MarketAveragePrice, report.DepreciationPct,
	)
	return eris.Wrap(err, "postgres: insert valuation report")
}

func (s *PostgresStore) ListValuationReports(ctx context.Context, vehicleID string) ([]model.ValuationReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, vehicle_id, generated_at, asking_price, target_price, floor_price,
		        report_text, comparables, comparable_count, confidence_tier,
		        market_average_price, depreciation_pct
		 FROM valuation_reports WHERE vehicle_id = $1 ORDER BY generated_at DESC`,
		vehicleID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list valuation reports")
	}
	defer rows.Close()

	var reports []model.ValuationReport
	for rows.Next() {
		var r model.ValuationReport
		var comparables []byte
		var tier string
		err := rows.Scan(&r.ID, &r.VehicleID, &r.GeneratedAt, &r.AskingPrice,
			&r.TargetPrice, &r.FloorPrice, &r.ReportText, &comparables,
			&r.ComparableCount, &tier, &r.MarketAveragePrice, &r.DepreciationPct)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan valuation report")
		}
		r.ConfidenceTier = model.ConfidenceTier(tier)
		if len(comparables) > 0 {
			if err := json.Unmarshal(comparables, &r.Comparables); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal comparables")
			}
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list valuation reports iterate")
}

func (s *PostgresStore) RecordRun(ctx context.Context, run model.EnrichmentRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrichment_runs (id, target_id, pipeline, status, detail, started_at, finished_at, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.TargetID, string(run.Pipeline), string(run.Status), run.Detail,
		run.StartedAt, run.FinishedAt, run.DurationMS,
	)
	return eris.Wrap(err, "postgres: record run")
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.EnrichmentRun, error) {
	query := `SELECT id, target_id, pipeline, status, detail, started_at, finished_at, duration_ms
	          FROM enrichment_runs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.TargetID != "" {
		query += ` AND target_id = ` + arg(filter.TargetID)
	}
	if filter.Pipeline != "" {
		query += ` AND pipeline = ` + arg(string(filter.Pipeline))
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY started_at DESC LIMIT ` + arg(limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.EnrichmentRun
	for rows.Next() {
		var r model.EnrichmentRun
		var pipeline, status string
		err := rows.Scan(&r.ID, &r.TargetID, &pipeline, &status, &r.Detail,
			&r.StartedAt, &r.FinishedAt, &r.DurationMS)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Pipeline = model.PipelineType(pipeline)
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func jsonbOrNil(v any, nonEmpty bool) (any, error) {
	if !nonEmpty {
		return nil, nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return payload, nil
}
