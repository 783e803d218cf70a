package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hazard-notification-sse/internal/domain/hazard"
	"hazard-notification-sse/internal/domain/watermark"
	"hazard-notification-sse/internal/infrastructure/logger"
	"hazard-notification-sse/internal/infrastructure/metrics"
	"hazard-notification-sse/internal/port/outbound"
)

//go:embed schema.sql
var schema string

const maxReportFiles = 3

// Store keeps hazard records in PostgreSQL. TIMESTAMP columns hold
// store-zone wall-clock values.
type Store struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

var _ outbound.HazardRepository = (*Store)(nil)

func Connect(ctx context.Context, databaseURL string, log logger.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool, logger: log.WithField("component", "postgres")}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s.logger.Infof("Database connected (max_conns: %d)", poolCfg.MaxConns)
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) InsertCitizenReport(ctx context.Context, r *hazard.CitizenReport) (int64, error) {
	defer observe("insert_citizen_report", time.Now())

	if len(r.Files) > maxReportFiles {
		return 0, fmt.Errorf("at most %d report files, got %d", maxReportFiles, len(r.Files))
	}
	files := make([]*string, maxReportFiles)
	for i, f := range r.Files {
		files[i] = nullIfEmpty(f)
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO citizen_report (
			reported_at, lat, lon, detail, address,
			file1, file2, file3, reporter_name, reporter_phone, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		toWall(r.ReportedAt), r.Lat, r.Lon, r.Detail, nullIfEmpty(r.Address),
		files[0], files[1], files[2], nullIfEmpty(r.ReporterName), nullIfEmpty(r.ReporterPhone),
		string(r.Status),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert citizen report: %w", err)
	}
	return id, nil
}

func (s *Store) InsertRoadControl(ctx context.Context, c *hazard.RoadControl) (int64, error) {
	defer observe("insert_road_control", time.Now())

	var endTime *time.Time
	if c.EndTime != nil {
		end := toWall(*c.EndTime)
		endTime = &end
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO road_control (
			prediction_id, description, start_time, end_time, created_at,
			road_id, lat, lon, address, control_type, completed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		c.PredictionID, c.Description, toWall(c.StartTime), endTime, toWall(c.CreatedAt),
		c.RoadID, c.Lat, c.Lon, nullIfEmpty(c.Address), string(c.Type), c.Completed,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert road control: %w", err)
	}
	return id, nil
}

func (s *Store) LatestRoadControlAfter(ctx context.Context, after time.Time) (*hazard.RoadControl, error) {
	defer observe("latest_road_control", time.Now())

	var (
		c           hazard.RoadControl
		endTime     *time.Time
		address     *string
		controlType string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, prediction_id, description, start_time, end_time, created_at,
			road_id, lat, lon, address, control_type, completed
		FROM road_control
		WHERE date_trunc('second', created_at) > $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		toWall(after.Truncate(time.Second)),
	).Scan(&c.ID, &c.PredictionID, &c.Description, &c.StartTime, &endTime, &c.CreatedAt,
		&c.RoadID, &c.Lat, &c.Lon, &address, &controlType, &c.Completed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest road control: %w", err)
	}

	c.StartTime = fromWall(c.StartTime)
	c.CreatedAt = fromWall(c.CreatedAt)
	if endTime != nil {
		end := fromWall(*endTime)
		c.EndTime = &end
	}
	if address != nil {
		c.Address = *address
	}
	c.Type = hazard.ControlType(controlType)

	return &c, nil
}

// toWall re-labels the store-zone wall clock as UTC so the driver writes
// exactly those fields into a TIMESTAMP column.
func toWall(t time.Time) time.Time {
	w := t.In(watermark.StoreZone)
	return time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), time.UTC)
}

// fromWall reads a TIMESTAMP value back as a store-zone instant.
func fromWall(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), watermark.StoreZone)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func observe(operation string, start time.Time) {
	metrics.StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
