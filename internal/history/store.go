package history

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

	"yayd/internal/jobs"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded job.
type Entry struct {
	ID            string
	Source        string
	Quality       string
	AudioOnly     bool
	ProxyUsed     bool
	OutputDir     string
	State         jobs.State
	StatusMessage string
	ErrorMessage  string
	ErrorCode     string
	OutputPath    string
	Title         string
	Collection    bool
	ItemCount     int
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// Filter narrows List results.
type Filter struct {
	States []jobs.State
	Limit  int
}

// Store manages the history ledger backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

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

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record upserts a terminal job snapshot. Non-terminal snapshots are rejected.
func (s *Store) Record(ctx context.Context, snap jobs.Snapshot) error {
	if !snap.State.IsTerminal() {
		return fmt.Errorf("record %s: job is %s", snap.ID, snap.State)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_history (
            id, source, quality, audio_only, proxy_used, output_dir, state,
            status_message, error_message, error_code, output_path, title,
            collection, item_count, created_at, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            state = excluded.state,
            status_message = excluded.status_message,
            error_message = excluded.error_message,
            error_code = excluded.error_code,
            output_path = excluded.output_path,
            title = excluded.title,
            collection = excluded.collection,
            item_count = excluded.item_count,
            started_at = excluded.started_at,
            finished_at = excluded.finished_at`,
		snap.ID,
		snap.Source,
		string(snap.Options.Quality),
		boolToInt(snap.Options.AudioOnly),
		boolToInt(snap.Options.Proxy != ""),
		snap.Options.OutputDir,
		string(snap.State),
		nullableString(snap.StatusMessage),
		nullableString(snap.Error),
		nullableString(snap.ErrorCode),
		nullableString(snap.OutputPath),
		nullableString(snap.Title),
		boolToInt(snap.Collection),
		snap.ItemCount,
		snap.CreatedAt.UTC().Format(timeLayout),
		nullableTime(snap.StartedAt),
		nullableTime(snap.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", snap.ID, err)
	}
	return nil
}

const entryColumns = `id, source, quality, audio_only, proxy_used, output_dir, state,
    status_message, error_message, error_code, output_path, title,
    collection, item_count, created_at, started_at, finished_at`

// Get returns one entry, or nil when the id is unknown.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM job_history WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history entry: %w", err)
	}
	return entry, nil
}

// List returns entries, most recently finished first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM job_history`
	var args []any
	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, state := range filter.States {
			placeholders[i] = "?"
			args = append(args, string(state))
		}
		query += ` WHERE state IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY finished_at DESC, created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Prune deletes entries that finished before cutoff and returns the count.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_history WHERE finished_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry                            Entry
		state                            string
		audioOnly, proxyUsed, collection int
		statusMessage, errorMessage      sql.NullString
		errorCode, outputPath, title     sql.NullString
		createdAt                        string
		startedAt, finishedAt            sql.NullString
	)
	if err := row.Scan(
		&entry.ID, &entry.Source, &entry.Quality, &audioOnly, &proxyUsed, &entry.OutputDir, &state,
		&statusMessage, &errorMessage, &errorCode, &outputPath, &title,
		&collection, &entry.ItemCount, &createdAt, &startedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	entry.State = jobs.State(state)
	entry.AudioOnly = audioOnly != 0
	entry.ProxyUsed = proxyUsed != 0
	entry.Collection = collection != 0
	entry.StatusMessage = statusMessage.String
	entry.ErrorMessage = errorMessage.String
	entry.ErrorCode = errorCode.String
	entry.OutputPath = outputPath.String
	entry.Title = title.String
	entry.CreatedAt = parseTime(createdAt)
	entry.StartedAt = parseNullableTime(startedAt)
	entry.FinishedAt = parseNullableTime(finishedAt)
	return &entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(timeLayout)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t := parseTime(value.String)
	if t.IsZero() {
		return nil
	}
	return &t
}
