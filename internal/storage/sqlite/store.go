// Package sqlite provides a SQLite-backed user table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dkeye/Nearby/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS users (
	position        INTEGER NOT NULL,
	username        TEXT    NOT NULL PRIMARY KEY,
	credential_hash TEXT    NOT NULL DEFAULT '',
	connection_id   TEXT    NOT NULL DEFAULT '',
	latitude        REAL,
	longitude       REAL,
	connected       INTEGER NOT NULL DEFAULT 0
)`

// Store persists the user table in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite user store and creates the schema when missing.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer; the presence table already serializes saves
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns every user row in insertion order.
func (s *Store) Load(ctx context.Context) ([]domain.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT username, credential_hash, connection_id, latitude, longitude, connected
		   FROM users ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	records := []domain.UserRecord{}
	for rows.Next() {
		var (
			rec       domain.UserRecord
			lat, lon  sql.NullFloat64
			connected int
		)
		if err := rows.Scan(&rec.Username, &rec.CredentialHash, &rec.ConnectionID, &lat, &lon, &connected); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if lat.Valid && lon.Valid {
			rec.Location = &domain.Location{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		rec.Connected = connected != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return records, nil
}

// Save replaces the users table inside one transaction.
func (s *Store) Save(ctx context.Context, records []domain.UserRecord) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO users (position, username, credential_hash, connection_id, latitude, longitude, connected)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		var lat, lon sql.NullFloat64
		if rec.Location != nil {
			lat = sql.NullFloat64{Float64: rec.Location.Latitude, Valid: true}
			lon = sql.NullFloat64{Float64: rec.Location.Longitude, Valid: true}
		}
		connected := 0
		if rec.Connected {
			connected = 1
		}
		if _, err = stmt.ExecContext(ctx, i, rec.Username, rec.CredentialHash, rec.ConnectionID, lat, lon, connected); err != nil {
			return fmt.Errorf("insert user %q: %w", rec.Username, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit users: %w", err)
	}
	return nil
}
