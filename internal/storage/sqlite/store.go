// Package sqlite provides a SQLite-backed run store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eysenfalk/factorio-harmonizer/internal/platform/storage/sqlitemigrate"
	"github.com/eysenfalk/factorio-harmonizer/internal/storage"
	"github.com/eysenfalk/factorio-harmonizer/internal/storage/sqlite/migrations"
)

// Store persists analysis runs in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite run store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
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

// SaveRun inserts one run record.
func (s *Store) SaveRun(ctx context.Context, run storage.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	runID := strings.TrimSpace(run.ID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if len(run.Report) == 0 {
		return fmt.Errorf("run report is required")
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	packages, err := json.Marshal(run.Packages)
	if err != nil {
		return fmt.Errorf("encode packages: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO runs (id, created_at, packages, issues, critical, report)
VALUES (?, ?, ?, ?, ?, ?)
`, runID, toMillis(createdAt), string(packages), run.Issues, run.Critical, run.Report)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (storage.Run, error) {
	if err := ctx.Err(); err != nil {
		return storage.Run{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Run{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, created_at, packages, issues, critical, report
FROM runs WHERE id = ?
`, strings.TrimSpace(id))
	return scanRun(row)
}

// LatestRun fetches the most recently created run.
func (s *Store) LatestRun(ctx context.Context) (storage.Run, error) {
	if err := ctx.Err(); err != nil {
		return storage.Run{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Run{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, created_at, packages, issues, critical, report
FROM runs ORDER BY created_at DESC, id DESC LIMIT 1
`)
	return scanRun(row)
}

// ListRuns returns runs newest first, capped at limit when positive.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	query := `
SELECT id, created_at, packages, issues, critical, report
FROM runs ORDER BY created_at DESC, id DESC
`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.sqlDB.QueryContext(ctx, query+" LIMIT ?", limit)
	} else {
		rows, err = s.sqlDB.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []storage.Run
	for rows.Next() {
		run, err := scanRunRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row *sql.Row) (storage.Run, error) {
	run, err := scanFrom(row)
	if err == sql.ErrNoRows {
		return storage.Run{}, storage.ErrNotFound
	}
	return run, err
}

func scanRunRows(rows *sql.Rows) (storage.Run, error) {
	return scanFrom(rows)
}

func scanFrom(scanner rowScanner) (storage.Run, error) {
	var (
		run       storage.Run
		createdAt int64
		packages  string
	)
	if err := scanner.Scan(&run.ID, &createdAt, &packages, &run.Issues, &run.Critical, &run.Report); err != nil {
		if err == sql.ErrNoRows {
			return storage.Run{}, err
		}
		return storage.Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.CreatedAt = fromMillis(createdAt)
	if err := json.Unmarshal([]byte(packages), &run.Packages); err != nil {
		return storage.Run{}, fmt.Errorf("decode packages: %w", err)
	}
	return run, nil
}
