package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/furgoplaza/enrich-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS areas (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	city        TEXT NOT NULL,
	province    TEXT NOT NULL,
	country     TEXT NOT NULL DEFAULT 'España',
	website     TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	services    TEXT,
	photos      TEXT,
	enriched_at DATETIME
);

CREATE TABLE IF NOT EXISTS vehicles (
	id             TEXT PRIMARY KEY,
	make           TEXT NOT NULL,
	model          TEXT NOT NULL,
	year           INTEGER NOT NULL DEFAULT 0,
	purchase_price INTEGER NOT NULL DEFAULT 0,
	purchase_date  DATETIME,
	odometer_km    INTEGER NOT NULL DEFAULT 0,
	severe_faults  TEXT,
	upgrades       TEXT
);

CREATE TABLE IF NOT EXISTS extraction_configs (
	pipeline   TEXT PRIMARY KEY,
	config     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS valuation_reports (
	id                   TEXT PRIMARY KEY,
	vehicle_id           TEXT NOT NULL REFERENCES vehicles(id),
	generated_at         DATETIME NOT NULL,
	asking_price         INTEGER NOT NULL,
	target_price         INTEGER NOT NULL,
	floor_price          INTEGER NOT NULL,
	report_text          TEXT NOT NULL,
	comparables          TEXT,
	comparable_count     INTEGER NOT NULL,
	confidence_tier      TEXT NOT NULL,
	market_average_price REAL,
	depreciation_pct     REAL
);

CREATE TABLE IF NOT EXISTS enrichment_runs (
	id          TEXT PRIMARY KEY,
	target_id   TEXT NOT NULL,
	pipeline    TEXT NOT NULL,
	status      TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_valuation_reports_vehicle ON valuation_reports(vehicle_id, generated_at DESC);
CREATE INDEX IF NOT EXISTS idx_enrichment_runs_target ON enrichment_runs(target_id);
CREATE INDEX IF NOT EXISTS idx_enrichment_runs_status ON enrichment_runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetArea(ctx context.Context, id string) (*model.Area, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, city, province, country, website, description, services, photos, enriched_at
		 FROM areas WHERE id = ?`, id)

	var a model.Area
	var services, photos sql.NullString
	var enrichedAt sql.NullTime
	err := row.Scan(&a.ID, &a.Name, &a.City, &a.Province, &a.Country, &a.Website,
		&a.Description, &services, &photos, &enrichedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "area %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get area")
	}

	if services.Valid && services.String != "" {
		if err := json.Unmarshal([]byte(services.String), &a.Services); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal services")
		}
	}
	if photos.Valid && photos.String != "" {
		if err := json.Unmarshal([]byte(photos.String), &a.Photos); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal photos")
		}
	}
	if enrichedAt.Valid {
		t := enrichedAt.Time
		a.EnrichedAt = &t
	}
	return &a, nil
}

func (s *SQLiteStore) ListAreaIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM areas ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list area ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan area id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list area ids iterate")
}

func (s *SQLiteStore) UpsertArea(ctx context.Context, area model.Area) error {
	services, err := marshalNullable(area.Services)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal services")
	}
	photos, err := marshalNullable(area.Photos)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal photos")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO areas (id, name, city, province, country, website, description, services, photos, enriched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, city = excluded.city, province = excluded.province,
		   country = excluded.country, website = excluded.website`,
		area.ID, area.Name, area.City, area.Province, area.Country, area.Website,
		area.Description, services, photos, area.EnrichedAt,
	)
	return eris.Wrap(err, "sqlite: upsert area")
}

func (s *SQLiteStore) UpdateAreaDescription(ctx context.Context, id, description string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE areas SET description = ?, enriched_at = ? WHERE id = ?`,
		description, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update area description %s", id)
	}
	return checkRowsAffected(res, "area", id)
}

func (s *SQLiteStore) UpdateAreaServices(ctx context.Context, id string, services map[string]bool) error {
	payload, err := json.Marshal(model.NormalizeServices(services))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal services")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE areas SET services = ?, enriched_at = ? WHERE id = ?`,
		string(payload), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update area services %s", id)
	}
	return checkRowsAffected(res, "area", id)
}

func (s *SQLiteStore) UpdateAreaPhotos(ctx context.Context, id string, photos []string) error {
	payload, err := json.Marshal(photos)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal photos")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE areas SET photos = ?, enriched_at = ? WHERE id = ?`,
		string(payload), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update area photos %s", id)
	}
	return checkRowsAffected(res, "area", id)
}

func (s *SQLiteStore) GetVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, make, model, year, purchase_price, purchase_date, odometer_km, severe_faults, upgrades
		 FROM vehicles WHERE id = ?`, id)

	var v model.Vehicle
	var purchaseDate sql.NullTime
	var faults, upgrades sql.NullString
	err := row.Scan(&v.ID, &v.Make, &v.Model, &v.Year, &v.PurchasePrice,
		&purchaseDate, &v.OdometerKM, &faults, &upgrades)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "vehicle %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get vehicle")
	}

	if purchaseDate.Valid {
		t := purchaseDate.Time
		v.PurchaseDate = &t
	}
	if faults.Valid && faults.String != "" {
		if err := json.Unmarshal([]byte(faults.String), &v.SevereFaults); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal severe faults")
		}
	}
	if upgrades.Valid && upgrades.String != "" {
		if err := json.Unmarshal([]byte(upgrades.String), &v.Upgrades); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal upgrades")
		}
	}
	return &v, nil
}

func (s *SQLiteStore) UpsertVehicle(ctx context.Context, vehicle model.Vehicle) error {
	faults, err := marshalNullable(vehicle.SevereFaults)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal severe faults")
	}
	upgrades, err := marshalNullable(vehicle.Upgrades)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal upgrades")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vehicles (id, make, model, year, purchase_price, purchase_date, odometer_km, severe_faults, upgrades)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   make = excluded.make, model = excluded.model, year = excluded.year,
		   purchase_price = excluded.purchase_price, purchase_date = excluded.purchase_date,
		   odometer_km = excluded.odometer_km, severe_faults = excluded.severe_faults,
		   upgrades = excluded.upgrades`,
		vehicle.ID, vehicle.Make, vehicle.Model, vehicle.Year, vehicle.PurchasePrice,
		vehicle.PurchaseDate, vehicle.OdometerKM, faults, upgrades,
	)
	return eris.Wrap(err, "sqlite: upsert vehicle")
}

func (s *SQLiteStore) GetExtractionConfig(ctx context.Context, pipeline model.PipelineType) (*model.ExtractionConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT config FROM extraction_configs WHERE pipeline = ?`, string(pipeline))

	var payload string
	err := row.Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "extraction config %s", pipeline)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get extraction config")
	}

	var cfg model.ExtractionConfig
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal extraction config")
	}
	return &cfg, nil
}

func (s *SQLiteStore) PutExtractionConfig(ctx context.Context, pipeline model.PipelineType, cfg model.ExtractionConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extraction config")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_configs (pipeline, config, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (pipeline) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		string(pipeline), string(payload), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put extraction config")
}

func (s *SQLiteStore) InsertValuationReport(ctx context.Context, report model.ValuationReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	comparables, err := marshalNullable(report.Comparables)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal comparables")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO valuation_reports
		   (id, vehicle_id, generated_at, asking_price, target_price, floor_price,
		    report_text, comparables, comparable_count, confidence_tier,
		    market_average_price, depreciation_pct)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.VehicleID, report.GeneratedAt, report.AskingPrice,
		report.TargetPrice, report.FloorPrice, report.ReportText, comparables,
		report.ComparableCount, string(report.ConfidenceTier),
		report.MarketAveragePrice, report.DepreciationPct,
	)
	return eris.Wrap(err, "sqlite: insert valuation report")
}

func (s *SQLiteStore) ListValuationReports(ctx context.Context, vehicleID string) ([]model.ValuationReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vehicle_id, generated_at, asking_price, target_price, floor_price,
		        report_text, comparables, comparable_count, confidence_tier,
		        market_average_price, depreciation_pct
		 FROM valuation_reports WHERE vehicle_id = ? ORDER BY generated_at DESC`,
		vehicleID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list valuation reports")
	}
	defer rows.Close()

	var reports []model.ValuationReport
	for rows.Next() {
		var r model.ValuationReport
		var comparables sql.NullString
		var tier string
		var avg, depr sql.NullFloat64
		err := rows.Scan(&r.ID, &r.VehicleID, &r.GeneratedAt, &r.AskingPrice,
			&r.TargetPrice, &r.FloorPrice, &r.ReportText, &comparables,
			&r.ComparableCount, &tier, &avg, &depr)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan valuation report")
		}
		r.ConfidenceTier = model.ConfidenceTier(tier)
		if comparables.Valid && comparables.String != "" {
			if err := json.Unmarshal([]byte(comparables.String), &r.Comparables); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal comparables")
			}
		}
		if avg.Valid {
			f := avg.Float64
			r.MarketAveragePrice = &f
		}
		if depr.Valid {
			f := depr.Float64
			r.DepreciationPct = &f
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list valuation reports iterate")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run model.EnrichmentRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrichment_runs (id, target_id, pipeline, status, detail, started_at, finished_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TargetID, string(run.Pipeline), string(run.Status), run.Detail,
		run.StartedAt, run.FinishedAt, run.DurationMS,
	)
	return eris.Wrap(err, "sqlite: record run")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.EnrichmentRun, error) {
	query := `SELECT id, target_id, pipeline, status, detail, started_at, finished_at, duration_ms
	          FROM enrichment_runs WHERE 1=1`
	var args []any

	if filter.TargetID != "" {
		query += ` AND target_id = ?`
		args = append(args, filter.TargetID)
	}
	if filter.Pipeline != "" {
		query += ` AND pipeline = ?`
		args = append(args, string(filter.Pipeline))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.EnrichmentRun
	for rows.Next() {
		var r model.EnrichmentRun
		var pipeline, status string
		err := rows.Scan(&r.ID, &r.TargetID, &pipeline, &status, &r.Detail,
			&r.StartedAt, &r.FinishedAt, &r.DurationMS)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Pipeline = model.PipelineType(pipeline)
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func marshalNullable(v any) (any, error) {
	switch x := v.(type) {
	case map[string]bool:
		if len(x) == 0 {
			return nil, nil
		}
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
	case []model.Comparable:
		if len(x) == 0 {
			return nil, nil
		}
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}
