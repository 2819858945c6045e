// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package reportstore keeps completed reports: a SQLite history fronted by a
// cache, with remote fetch as the last resort.
package reportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)

	"github.com/ManuGH/vitalscan/internal/report"
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no tier has the report.
var ErrNotFound = errors.New("reportstore: report not found")

// Record is one stored report.
type Record struct {
	ReportID      string
	SessionID     string
	CorrelationID string
	CreatedAt     time.Time
	Payload       []byte
}

// Summary is the list view of a stored report.
type Summary struct {
	ReportID          string    `json:"reportId"`
	SessionID         string    `json:"sessionId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	GeneratedAt       string    `json:"generatedAt,omitempty"`
	OverallStatus     string    `json:"overallStatus,omitempty"`
	RecordingDuration float64   `json:"recordingDuration,omitempty"`
}

// Store is the SQLite report history.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath in WAL mode.
func NewStore(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		report_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL DEFAULT '',
		correlation_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		generated_at TEXT NOT NULL DEFAULT '',
		overall_status TEXT NOT NULL DEFAULT '',
		recording_seconds REAL NOT NULL DEFAULT 0,
		payload BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save upserts a report.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.ReportID == "" {
		return errors.New("reportstore: report id is required")
	}
	rep, err := report.Decode(rec.Payload)
	if err != nil {
		return fmt.Errorf("reportstore: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO reports (report_id, session_id, correlation_id, created_at, generated_at, overall_status, recording_seconds, payload)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(report_id) DO UPDATE SET
		session_id = excluded.session_id,
		correlation_id = excluded.correlation_id,
		generated_at = excluded.generated_at,
		overall_status = excluded.overall_status,
		recording_seconds = excluded.recording_seconds,
		payload = excluded.payload
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ReportID,
		rec.SessionID,
		rec.CorrelationID,
		rec.CreatedAt.UTC().Format(timeLayout),
		rep.Metadata.GeneratedAt,
		rep.Analysis.Summary.OverallStatus,
		rep.Metadata.RecordingDuration,
		rec.Payload,
	)
	return err
}

// Get returns ErrNotFound for unknown ids.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	query := `
	SELECT report_id, session_id, correlation_id, created_at, payload
	FROM reports
	WHERE report_id = ?
	`
	var rec Record
	var created string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&rec.ReportID, &rec.SessionID, &rec.CorrelationID, &created, &rec.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.CreatedAt, _ = time.Parse(timeLayout, created)
	return &rec, nil
}

// List returns summaries newest first plus the total count.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Summary, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
	SELECT report_id, session_id, created_at, generated_at, overall_status, recording_seconds
	FROM reports
	ORDER BY created_at DESC, report_id
	LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		var created string
		if err := rows.Scan(&sum.ReportID, &sum.SessionID, &created, &sum.GeneratedAt, &sum.OverallStatus, &sum.RecordingDuration); err != nil {
			return nil, 0, err
		}
		sum.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, sum)
	}
	return out, total, rows.Err()
}

// Delete removes a report; unknown ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE report_id = ?`, id)
	return err
}

// payloadOf returns the bytes to persist for rep.
func payloadOf(rep *report.Report) ([]byte, error) {
	if len(rep.Raw) > 0 {
		return rep.Raw, nil
	}
	return json.Marshal(rep)
}

func decodeRecord(id string, payload []byte) (*report.Report, error) {
	rep, err := report.Decode(payload)
	if err != nil {
		return nil, err
	}
	if rep.ReportID == "" {
		rep.ReportID = id
	}
	return rep, nil
}
