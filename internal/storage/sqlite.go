package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"plantwatch/internal/models"
	"plantwatch/internal/risk"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	machine      TEXT NOT NULL,
	timestamp    TEXT NOT NULL,
	values_json  TEXT NOT NULL,
	status       TEXT NOT NULL,
	score        REAL NOT NULL,
	failure_type TEXT
);
CREATE INDEX IF NOT EXISTS idx_readings_machine ON readings(machine, id);

CREATE TABLE IF NOT EXISTS maintenance (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	machine TEXT NOT NULL,
	runtime REAL NOT NULL,
	at      TEXT NOT NULL
);
`

// SQLiteStore is the embedded relational store. One readings table holds all
// machines, keyed by the machine column.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and bootstraps the
// schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids lock
	// contention errors under concurrent monitors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, r *models.Reading) error {
	if err := r.Validate(); err != nil {
		return err
	}
	values, err := json.Marshal(r.Values)
	if err != nil {
		return fmt.Errorf("encode values: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (machine, timestamp, values_json, status, score, failure_type)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Machine, r.Timestamp.UTC().Format(time.RFC3339Nano), string(values),
		string(r.Status), r.Score, r.FailureType)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}
	return nil
}

func (s *SQLiteStore) Readings(ctx context.Context, machine string) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, machine, timestamp, values_json, status, score, failure_type
		 FROM readings WHERE machine = ? ORDER BY id`, machine)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}
	return readings, rows.Err()
}

func (s *SQLiteStore) Latest(ctx context.Context, machine string) (*models.Reading, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, machine, timestamp, values_json, status, score, failure_type
		 FROM readings WHERE machine = ? ORDER BY id DESC LIMIT 1`, machine)

	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoReadings, machine)
	}
	return r, err
}

func (s *SQLiteStore) Clear(ctx context.Context, machine string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM readings WHERE machine = ?`, machine); err != nil {
		return fmt.Errorf("clear readings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordMaintenance(ctx context.Context, machine string, runtime float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO maintenance (machine, runtime, at) VALUES (?, ?, ?)`,
		machine, runtime, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record maintenance: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LastMaintenance(ctx context.Context, machine string) (float64, error) {
	var runtime float64
	err := s.db.QueryRowContext(ctx,
		`SELECT runtime FROM maintenance WHERE machine = ? ORDER BY id DESC LIMIT 1`,
		machine).Scan(&runtime)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query maintenance: %w", err)
	}
	return runtime, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*models.Reading, error) {
	var (
		r           models.Reading
		ts, values  string
		status      string
		failureType sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Machine, &ts, &values, &status, &r.Score, &failureType); err != nil {
		return nil, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	r.Timestamp = parsed

	if err := json.Unmarshal([]byte(values), &r.Values); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	r.Status = risk.Status(status)
	r.FailureType = failureType.String
	return &r, nil
}
