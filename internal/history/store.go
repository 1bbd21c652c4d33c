package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"arista/internal/job"
)

// DefaultLimit bounds Recent when no limit is given.
const DefaultLimit = 20

// Record is one persisted job run.
type Record struct {
	ID              string
	Input           string
	Output          string
	Device          string
	Preset          string
	Status          string
	Passes          int
	CompletedPasses int
	Cancelled       bool
	ErrorMessage    string
	StartedAt       time.Time
	FinishedAt      *time.Time
	Elapsed         time.Duration
}

// Finished reports whether the job reached a terminal status.
func (r Record) Finished() bool { return r.FinishedAt != nil }

// Store persists job runs backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at path and applies
// migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Writes come from a single run loop; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// JobStarted inserts a running row for j.
func (s *Store) JobStarted(ctx context.Context, j *job.Job) error {
	device, preset := names(j)
	started := j.StartedAt()
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, input, output, device, preset, status, passes, started_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET status = excluded.status, started_at = excluded.started_at`,
		j.ID,
		j.Request.Input,
		j.Request.Output,
		device,
		preset,
		j.Status().String(),
		j.PassCount(),
		formatTime(started),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// JobFinished stores the terminal outcome of j. A job that was never
// recorded as started is inserted.
func (s *Store) JobFinished(ctx context.Context, j *job.Job) error {
	device, preset := names(j)
	status := j.Status()
	completed := j.Pass()
	if status == job.StatusSucceeded {
		completed = j.PassCount()
	}
	errMsg := ""
	if err := j.Err(); err != nil {
		errMsg = err.Error()
	}
	started := j.StartedAt()
	if started.IsZero() {
		started = time.Now()
	}
	finished := j.FinishedAt()
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (
            id, input, output, device, preset, status, passes, completed_passes,
            cancelled, error_message, started_at, finished_at, elapsed_ms
         ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
            status = excluded.status,
            passes = excluded.passes,
            completed_passes = excluded.completed_passes,
            cancelled = excluded.cancelled,
            error_message = excluded.error_message,
            finished_at = excluded.finished_at,
            elapsed_ms = excluded.elapsed_ms`,
		j.ID,
		j.Request.Input,
		j.Request.Output,
		device,
		preset,
		status.String(),
		j.PassCount(),
		completed,
		boolToInt(j.Cancelled()),
		nullableString(errMsg),
		formatTime(started),
		formatTime(finished),
		j.Elapsed().Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

const recordColumns = "id, input, output, device, preset, status, passes, completed_passes, cancelled, error_message, started_at, finished_at, elapsed_ms"

// Recent returns the newest records first. A non-positive limit uses
// DefaultLimit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM jobs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get fetches a record by job id. It returns nil when the id is unknown.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM jobs WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &rec, nil
}

// Prune deletes finished records older than cutoff and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE finished_at IS NOT NULL AND finished_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

func names(j *job.Job) (string, string) {
	device, preset := "", ""
	if j.Request.Device != nil {
		device = j.Request.Device.ID
	}
	if p := j.Request.Preset; p != nil {
		preset = p.Name
		if device == "" {
			device = p.DeviceID
		}
	}
	return device, preset
}
