package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tafsync/internal/services"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// fixed width so stored timestamps sort lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Item is the outcome of one selection within a run.
type Item struct {
	Position    int    `json:"position"`
	FilePath    string `json:"file_path"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	ModelNumber string `json:"model_number,omitempty"`
	CoverPath   string `json:"cover_path,omitempty"`
}

// Run is one ProcessBatch invocation.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Total       int       `json:"total"`
	Successful  int       `json:"successful"`
	Failed      int       `json:"failed"`
	CatalogPath string    `json:"catalog_path,omitempty"`
	Error       string    `json:"error,omitempty"`
	Items       []Item    `json:"items,omitempty"`
}

// Store manages the journal database.
type Store struct {
	db   *sql.DB
	path string
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the journal database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "journal", "open", "create directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "journal", "open", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrPersistence, "journal", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrPersistence, "journal", "open", "schema", err)
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Record stores run and its items in one transaction.
func (s *Store) Record(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return services.Wrap(services.ErrValidation, "journal", "record", "run id required", nil)
	}
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, started_at, finished_at, total, successful, failed, catalog_path, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt),
			run.Total, run.Successful, run.Failed, run.CatalogPath, run.Error,
		); err != nil {
			return err
		}
		for _, item := range run.Items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_items (run_id, position, file_path, success, error, model_number, cover_path)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.ID, item.Position, item.FilePath, boolToInt(item.Success), item.Error, item.ModelNumber, item.CoverPath,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return services.Wrap(services.ErrPersistence, "journal", "record", run.ID, err)
	}
	return nil
}

// List returns up to limit runs, newest first, without their items.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, total, successful, failed, catalog_path, error
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "journal", "list", "", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrPersistence, "journal", "list", "scan", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "journal", "list", "", err)
	}
	return runs, nil
}

// Get returns one run including its items.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, total, successful, failed, catalog_path, error
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrNotFound, "journal", "get", id, nil)
		}
		return nil, services.Wrap(services.ErrPersistence, "journal", "get", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, file_path, success, error, model_number, cover_path
		 FROM run_items WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "journal", "get items", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item    Item
			success int
		)
		if err := rows.Scan(&item.Position, &item.FilePath, &success, &item.Error, &item.ModelNumber, &item.CoverPath); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "journal", "get items", "scan", err)
		}
		item.Success = success != 0
		run.Items = append(run.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "journal", "get items", id, err)
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run               Run
		started, finished string
	)
	if err := row.Scan(&run.ID, &started, &finished, &run.Total, &run.Successful, &run.Failed, &run.CatalogPath, &run.Error); err != nil {
		return Run{}, err
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return run, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
