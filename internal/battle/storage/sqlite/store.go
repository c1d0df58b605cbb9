// Package sqlite persists battle results in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/louisbranch/skirmish/internal/battle/result"
	"github.com/louisbranch/skirmish/internal/battle/storage"
	"github.com/louisbranch/skirmish/internal/battle/storage/sqlite/migrations"
	"github.com/louisbranch/skirmish/internal/platform/storage/sqlitemigrate"
)

// Store is the SQLite-backed result store.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// NewID returns a fresh result identifier.
func NewID() string {
	return uuid.NewString()
}

// PutResult inserts or replaces record. IDs must be UUIDs, see NewID.
func (s *Store) PutResult(ctx context.Context, record storage.ResultRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.ID = strings.TrimSpace(record.ID)
	record.Encounter = strings.TrimSpace(record.Encounter)
	if record.ID == "" {
		return fmt.Errorf("result id is required")
	}
	if _, err := uuid.Parse(record.ID); err != nil {
		return fmt.Errorf("result id %q: %w", record.ID, err)
	}
	if record.Encounter == "" {
		return fmt.Errorf("encounter name is required")
	}
	if record.Result.Status == result.StatusUnspecified {
		return fmt.Errorf("result status is required")
	}
	if record.EndedAt.IsZero() {
		record.EndedAt = s.now().UTC()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = record.EndedAt
	}

	friendly, err := json.Marshal(nonNil(record.Result.Friendly))
	if err != nil {
		return fmt.Errorf("encode friendly survivors: %w", err)
	}
	enemy, err := json.Marshal(nonNil(record.Result.Enemy))
	if err != nil {
		return fmt.Errorf("encode enemy survivors: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT OR REPLACE INTO battle_results (
	id,
	encounter,
	status,
	rounds,
	seed,
	friendly_json,
	enemy_json,
	started_at,
	ended_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.Encounter,
		record.Result.Status.String(),
		record.Result.Rounds,
		record.Seed,
		string(friendly),
		string(enemy),
		record.StartedAt.UTC().UnixMilli(),
		record.EndedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put result: %w", err)
	}
	return nil
}

// GetResult loads one record by id.
func (s *Store) GetResult(ctx context.Context, id string) (storage.ResultRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ResultRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ResultRecord{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, selectResults+" WHERE id = ?", strings.TrimSpace(id))
	record, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ResultRecord{}, fmt.Errorf("result %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return storage.ResultRecord{}, fmt.Errorf("get result: %w", err)
	}
	return record, nil
}

// ListResults lists newest-first records.
func (s *Store) ListResults(ctx context.Context, limit int) ([]storage.ResultRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, selectResults+" ORDER BY ended_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	records := make([]storage.ResultRecord, 0, limit)
	for rows.Next() {
		record, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return records, nil
}

const selectResults = `
SELECT
	id,
	encounter,
	status,
	rounds,
	seed,
	friendly_json,
	enemy_json,
	started_at,
	ended_at
FROM battle_results`

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (storage.ResultRecord, error) {
	var (
		record             storage.ResultRecord
		status             string
		friendly, enemy    string
		startedAt, endedAt int64
	)
	if err := row.Scan(
		&record.ID,
		&record.Encounter,
		&status,
		&record.Result.Rounds,
		&record.Seed,
		&friendly,
		&enemy,
		&startedAt,
		&endedAt,
	); err != nil {
		return storage.ResultRecord{}, err
	}
	var err error
	if record.Result.Status, err = result.ParseStatus(status); err != nil {
		return storage.ResultRecord{}, err
	}
	if err := json.Unmarshal([]byte(friendly), &record.Result.Friendly); err != nil {
		return storage.ResultRecord{}, fmt.Errorf("decode friendly survivors: %w", err)
	}
	if err := json.Unmarshal([]byte(enemy), &record.Result.Enemy); err != nil {
		return storage.ResultRecord{}, fmt.Errorf("decode enemy survivors: %w", err)
	}
	record.StartedAt = time.UnixMilli(startedAt).UTC()
	record.EndedAt = time.UnixMilli(endedAt).UTC()
	return record, nil
}

func nonNil(s []result.Snapshot) []result.Snapshot {
	if s == nil {
		return []result.Snapshot{}
	}
	return s
}

var _ storage.ResultStore = (*Store)(nil)
