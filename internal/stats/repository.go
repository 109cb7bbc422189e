// Package stats records device counters and state history.
//
// The Recorder is the controller's metrics collaborator. The control loop
// submits intents without blocking; a consumer goroutine persists counters to
// SQLite, writes state points to InfluxDB and broadcasts every intent to
// live websocket clients.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Counter kinds.
const (
	KindRelay    = "relay"
	KindYeelight = "yeelight"
	KindSensor   = "sensor"
)

// Counter is the persisted activation count of one device.
type Counter struct {
	Kind      string    `json:"kind"`
	ID        int       `json:"id"`
	Count     int64     `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CesspoolLevel is the last reported fill percentage.
type CesspoolLevel struct {
	Percent   int       `json:"percent"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists counters.
type Repository interface {
	Increment(ctx context.Context, kind string, id int, at time.Time) (int64, error)
	List(ctx context.Context, kind string) ([]Counter, error)
	SetCesspool(ctx context.Context, percent int, at time.Time) error
	Cesspool(ctx context.Context) (*CesspoolLevel, error)
}

// SQLiteRepository stores counters in the counters table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on a migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Increment adds one to the (kind, id) counter and returns the new count.
func (r *SQLiteRepository) Increment(ctx context.Context, kind string, id int, at time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO counters (kind, id, count, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT (kind, id) DO UPDATE SET count = count + 1, updated_at = excluded.updated_at
		 RETURNING count`,
		kind, id, at.UTC().Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("incrementing %s counter %d: %w", kind, id, err)
	}
	return count, nil
}

// List returns counters ordered by kind and id. An empty kind returns all.
func (r *SQLiteRepository) List(ctx context.Context, kind string) ([]Counter, error) {
	query := "SELECT kind, id, count, updated_at FROM counters"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY kind, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying counters: %w", err)
	}
	defer rows.Close()

	counters := []Counter{}
	for rows.Next() {
		var c Counter
		var updated string
		if err := rows.Scan(&c.Kind, &c.ID, &c.Count, &updated); err != nil {
			return nil, fmt.Errorf("scanning counter: %w", err)
		}
		c.UpdatedAt, _ = time.Parse(time.RFC3339, updated) //nolint:errcheck // written by Increment
		counters = append(counters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counters: %w", err)
	}
	return counters, nil
}

// SetCesspool stores the latest cesspool percentage.
func (r *SQLiteRepository) SetCesspool(ctx context.Context, percent int, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cesspool_level (id, percent, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET percent = excluded.percent, updated_at = excluded.updated_at`,
		percent, at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing cesspool level: %w", err)
	}
	return nil
}

// Cesspool returns the stored level, or nil if none was reported yet.
func (r *SQLiteRepository) Cesspool(ctx context.Context) (*CesspoolLevel, error) {
	var lvl CesspoolLevel
	var updated string
	err := r.db.QueryRowContext(ctx, "SELECT percent, updated_at FROM cesspool_level WHERE id = 1").
		Scan(&lvl.Percent, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying cesspool level: %w", err)
	}
	lvl.UpdatedAt, _ = time.Parse(time.RFC3339, updated) //nolint:errcheck // written by SetCesspool
	return &lvl, nil
}
