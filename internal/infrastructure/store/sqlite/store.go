// Package sqlite is the embedded hazard store used for local runs and tests.
// Timestamps are stored as canonical store-zone text, which sorts in time
// order.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"hazard-notification-sse/internal/domain/hazard"
	"hazard-notification-sse/internal/domain/watermark"
	"hazard-notification-sse/internal/infrastructure/metrics"
	"hazard-notification-sse/internal/port/outbound"
)

//go:embed schema.sql
var schema string

const maxReportFiles = 3

type Store struct {
	db *sql.DB
}

var _ outbound.HazardRepository = (*Store)(nil)

// Open connects and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps in-memory databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InsertCitizenReport(ctx context.Context, r *hazard.CitizenReport) (int64, error) {
	defer observe("insert_citizen_report", time.Now())

	if len(r.Files) > maxReportFiles {
		return 0, fmt.Errorf("at most %d report files, got %d", maxReportFiles, len(r.Files))
	}
	files := make([]sql.NullString, maxReportFiles)
	for i, f := range r.Files {
		files[i] = nullString(f)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO citizen_report (
			reported_at, lat, lon, detail, address,
			file1, file2, file3, reporter_name, reporter_phone, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		watermark.Canonical(r.ReportedAt), r.Lat, r.Lon, r.Detail, nullString(r.Address),
		files[0], files[1], files[2], nullString(r.ReporterName), nullString(r.ReporterPhone),
		string(r.Status),
	)
	if err != nil {
		return 0, fmt.Errorf("insert citizen report: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) InsertRoadControl(ctx context.Context, c *hazard.RoadControl) (int64, error) {
	defer observe("insert_road_control", time.Now())

	var endTime sql.NullString
	if c.EndTime != nil {
		endTime = nullString(watermark.Canonical(*c.EndTime))
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO road_control (
			prediction_id, description, start_time, end_time, created_at,
			road_id, lat, lon, address, control_type, completed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt(c.PredictionID), c.Description, watermark.Canonical(c.StartTime), endTime,
		watermark.Canonical(c.CreatedAt), nullInt(c.RoadID), c.Lat, c.Lon, nullString(c.Address),
		string(c.Type), c.Completed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert road control: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) LatestRoadControlAfter(ctx context.Context, after time.Time) (*hazard.RoadControl, error) {
	defer observe("latest_road_control", time.Now())

	row := s.db.QueryRowContext(ctx, `
		SELECT id, prediction_id, description, start_time, end_time, created_at,
			road_id, lat, lon, address, control_type, completed
		FROM road_control
		WHERE created_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		watermark.Canonical(nextSecond(after)),
	)

	var (
		c                    hazard.RoadControl
		predictionID, roadID sql.NullInt64
		startTime, createdAt string
		endTime, address     sql.NullString
		controlType          string
	)
	err := row.Scan(&c.ID, &predictionID, &c.Description, &startTime, &endTime, &createdAt,
		&roadID, &c.Lat, &c.Lon, &address, &controlType, &c.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest road control: %w", err)
	}

	if c.StartTime, err = parseStored(startTime); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseStored(createdAt); err != nil {
		return nil, err
	}
	if endTime.Valid {
		end, err := parseStored(endTime.String)
		if err != nil {
			return nil, err
		}
		c.EndTime = &end
	}
	if predictionID.Valid {
		c.PredictionID = &predictionID.Int64
	}
	if roadID.Valid {
		c.RoadID = &roadID.Int64
	}
	c.Address = address.String
	c.Type = hazard.ControlType(controlType)

	return &c, nil
}

// nextSecond is the first whole second after t. Rows written by other
// writers may carry fractional seconds, and watermarks never do.
func nextSecond(t time.Time) time.Time {
	return t.Truncate(time.Second).Add(time.Second)
}

// parseStored accepts the canonical form with or without fractional seconds.
func parseStored(s string) (time.Time, error) {
	t, err := time.ParseInLocation(watermark.Layout, strings.TrimSpace(s), watermark.StoreZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func observe(operation string, start time.Time) {
	metrics.StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
