// Package store provides the local SQLite mirror of derived notices, remote
// calendar events, and the sync cursor.
//
// The database runs embedded (ncruces/go-sqlite3) with WAL mode for
// concurrent reads. All multi-row phases of a run (sync apply, validation,
// delete sweep) execute inside one transaction via WithTx, so a crash never
// leaves the mirror ahead of the persisted sync token.
//
// The column mapping is a static, hand-written table: no reflection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/dalbodeule/noticecal/internal/model"
)

// Store wraps the SQLite connection holding the notice/event mirror.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the given path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created; call InitSchema before use.
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return s, nil
}

// OpenMemory opens an in-memory database, used by tests.
func OpenMemory() (*Store, error) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	// A pooled second connection would open its own empty database.
	conn.SetMaxOpenConns(1)

	return &Store{conn: conn, path: ":memory:"}, nil
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if s.path != ":memory:" {
		if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the mirror schema if it doesn't exist. Idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notices (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		memo TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		attachment_hash TEXT NOT NULL,
		application_start TEXT,
		application_end TEXT,
		result_start TEXT,
		result_end TEXT,
		application_event_id TEXT,
		result_event_id TEXT
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		title TEXT NOT NULL,
		memo TEXT NOT NULL
	);

	-- Singleton row: the sync cursor and the calendar it belongs to.
	CREATE TABLE IF NOT EXISTS sync_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		calendar_id TEXT NOT NULL,
		sync_token TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_notices_application_event
	    ON notices(application_event_id);
	CREATE INDEX IF NOT EXISTS idx_notices_result_event
	    ON notices(result_event_id);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx,
// letting Store and Tx reuse the same statement helpers.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx scopes mirror operations to one transaction.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a transaction, committing on nil and rolling back
// on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// --- Notices ---

// UpsertNotice inserts or updates a derived notice.
func (s *Store) UpsertNotice(ctx context.Context, n *model.Notice) error {
	return upsertNotice(ctx, s.conn, n)
}

// UpsertNotice inserts or updates a derived notice within the transaction.
func (t *Tx) UpsertNotice(ctx context.Context, n *model.Notice) error {
	return upsertNotice(ctx, t.tx, n)
}

func upsertNotice(ctx context.Context, q querier, n *model.Notice) error {
	query := `
	INSERT INTO notices (
		id, title, memo, content_hash, attachment_hash,
		application_start, application_end, result_start, result_end,
		application_event_id, result_event_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		memo = excluded.memo,
		content_hash = excluded.content_hash,
		attachment_hash = excluded.attachment_hash,
		application_start = excluded.application_start,
		application_end = excluded.application_end,
		result_start = excluded.result_start,
		result_end = excluded.result_end,
		application_event_id = excluded.application_event_id,
		result_event_id = excluded.result_event_id
	`

	appStart, appEnd := windowToNullStrings(n.Application)
	resStart, resEnd := windowToNullStrings(n.Result)

	_, err := q.ExecContext(ctx, query,
		n.ID,
		n.Title,
		n.Memo,
		n.ContentHash,
		n.AttachmentHash,
		appStart, appEnd,
		resStart, resEnd,
		stringToNullString(n.ApplicationEventID),
		stringToNullString(n.ResultEventID),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert notice %d: %w", n.ID, err)
	}

	return nil
}

// DeleteNotice removes a notice. Idempotent: deleting a missing id is nil.
func (s *Store) DeleteNotice(ctx context.Context, id int64) error {
	return deleteNotice(ctx, s.conn, id)
}

// DeleteNotice removes a notice within the transaction.
func (t *Tx) DeleteNotice(ctx context.Context, id int64) error {
	return deleteNotice(ctx, t.tx, id)
}

func deleteNotice(ctx context.Context, q querier, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM notices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete notice %d: %w", id, err)
	}
	return nil
}

// GetNotice retrieves one notice by board id.
// Returns sql.ErrNoRows when the notice is not mirrored.
func (s *Store) GetNotice(ctx context.Context, id int64) (*model.Notice, error) {
	return getNotice(ctx, s.conn, id)
}

// GetNotice retrieves one notice within the transaction.
func (t *Tx) GetNotice(ctx context.Context, id int64) (*model.Notice, error) {
	return getNotice(ctx, t.tx, id)
}

const noticeColumns = `id, title, memo, content_hash, attachment_hash,
	application_start, application_end, result_start, result_end,
	application_event_id, result_event_id`

func getNotice(ctx context.Context, q querier, id int64) (*model.Notice, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+noticeColumns+` FROM notices WHERE id = ?`, id)
	return scanNotice(row)
}

// ListNotices returns all mirrored notices ordered by board id.
func (s *Store) ListNotices(ctx context.Context) ([]*model.Notice, error) {
	return listNotices(ctx, s.conn)
}

// ListNotices returns all mirrored notices within the transaction.
func (t *Tx) ListNotices(ctx context.Context) ([]*model.Notice, error) {
	return listNotices(ctx, t.tx)
}

func listNotices(ctx context.Context, q querier) ([]*model.Notice, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+noticeColumns+` FROM notices ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list notices: %w", err)
	}
	defer rows.Close()

	var notices []*model.Notice
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, err
		}
		notices = append(notices, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notices: %w", err)
	}

	return notices, nil
}

// scanTarget lets scanNotice work on both *sql.Row and *sql.Rows.
type scanTarget interface {
	Scan(dest ...any) error
}

func scanNotice(row scanTarget) (*model.Notice, error) {
	var n model.Notice
	var appStart, appEnd, resStart, resEnd sql.NullString
	var appEvent, resEvent sql.NullString

	err := row.Scan(
		&n.ID,
		&n.Title,
		&n.Memo,
		&n.ContentHash,
		&n.AttachmentHash,
		&appStart, &appEnd,
		&resStart, &resEnd,
		&appEvent, &resEvent,
	)
	if err != nil {
		return nil, err
	}

	n.Application = nullStringsToWindow(appStart, appEnd)
	n.Result = nullStringsToWindow(resStart, resEnd)
	n.ApplicationEventID = nullStringToPtr(appEvent)
	n.ResultEventID = nullStringToPtr(resEvent)

	return &n, nil
}

// NoticeCount returns the number of mirrored notices.
func (s *Store) NoticeCount(ctx context.Context) (int, error) {
	var count int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM notices`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notices: %w", err)
	}
	return count, nil
}

// --- Events ---

// UpsertEvent inserts or updates a mirrored calendar event.
func (s *Store) UpsertEvent(ctx context.Context, e *model.Event) error {
	return upsertEvent(ctx, s.conn, e)
}

// UpsertEvent inserts or updates a mirrored event within the transaction.
func (t *Tx) UpsertEvent(ctx context.Context, e *model.Event) error {
	return upsertEvent(ctx, t.tx, e)
}

func upsertEvent(ctx context.Context, q querier, e *model.Event) error {
	query := `
	INSERT INTO events (id, start_at, end_at, title, memo)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		start_at = excluded.start_at,
		end_at = excluded.end_at,
		title = excluded.title,
		memo = excluded.memo
	`

	_, err := q.ExecContext(ctx, query,
		e.ID,
		e.Start.Format(time.RFC3339),
		e.End.Format(time.RFC3339),
		e.Title,
		e.Memo,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event %s: %w", e.ID, err)
	}

	return nil
}

// DeleteEvent removes a mirrored event. Idempotent.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	return deleteEvent(ctx, s.conn, id)
}

// DeleteEvent removes a mirrored event within the transaction.
func (t *Tx) DeleteEvent(ctx context.Context, id string) error {
	return deleteEvent(ctx, t.tx, id)
}

func deleteEvent(ctx context.Context, q querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	return nil
}

// ListEvents returns all mirrored calendar events.
func (s *Store) ListEvents(ctx context.Context) ([]*model.Event, error) {
	return listEvents(ctx, s.conn)
}

// ListEvents returns all mirrored events within the transaction.
func (t *Tx) ListEvents(ctx context.Context) ([]*model.Event, error) {
	return listEvents(ctx, t.tx)
}

func listEvents(ctx context.Context, q querier) ([]*model.Event, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, start_at, end_at, title, memo FROM events ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		var e model.Event
		var start, end string

		if err := rows.Scan(&e.ID, &start, &end, &e.Title, &e.Memo); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		if t, err := time.Parse(time.RFC3339, start); err == nil {
			e.Start = t
		}
		if t, err := time.Parse(time.RFC3339, end); err == nil {
			e.End = t
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// EventCount returns the number of mirrored events.
func (s *Store) EventCount(ctx context.Context) (int, error) {
	var count int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// --- Sync state ---

// GetSyncState returns the singleton sync state, or nil when the mirror has
// not been initialized yet.
func (s *Store) GetSyncState(ctx context.Context) (*model.SyncState, error) {
	return getSyncState(ctx, s.conn)
}

// GetSyncState returns the sync state within the transaction.
func (t *Tx) GetSyncState(ctx context.Context) (*model.SyncState, error) {
	return getSyncState(ctx, t.tx)
}

func getSyncState(ctx context.Context, q querier) (*model.SyncState, error) {
	row := q.QueryRowContext(ctx,
		`SELECT calendar_id, sync_token FROM sync_state WHERE id = 1`)

	var state model.SyncState
	var token sql.NullString
	if err := row.Scan(&state.CalendarID, &token); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}

	state.SyncToken = nullStringToPtr(token)
	return &state, nil
}

// SyncStateCount returns the number of sync state rows. More than one is a
// startup precondition violation; the schema CHECK guards new databases but
// older mirrors are verified explicitly.
func (s *Store) SyncStateCount(ctx context.Context) (int, error) {
	var count int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_state`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sync state rows: %w", err)
	}
	return count, nil
}

// SaveSyncState upserts the singleton sync state row.
func (s *Store) SaveSyncState(ctx context.Context, state *model.SyncState) error {
	return saveSyncState(ctx, s.conn, state)
}

// SaveSyncState upserts the sync state within the transaction. The sync
// engine persists the advanced token in the same transaction as the mirror
// writes it authorizes.
func (t *Tx) SaveSyncState(ctx context.Context, state *model.SyncState) error {
	return saveSyncState(ctx, t.tx, state)
}

func saveSyncState(ctx context.Context, q querier, state *model.SyncState) error {
	query := `
	INSERT INTO sync_state (id, calendar_id, sync_token)
	VALUES (1, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		calendar_id = excluded.calendar_id,
		sync_token = excluded.sync_token
	`

	_, err := q.ExecContext(ctx, query,
		state.CalendarID, stringToNullString(state.SyncToken))
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}

	return nil
}

// --- Column helpers ---

func windowToNullStrings(w *model.Window) (sql.NullString, sql.NullString) {
	if w == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: w.Start.Format(time.RFC3339), Valid: true},
		sql.NullString{String: w.End.Format(time.RFC3339), Valid: true}
}

// nullStringsToWindow rebuilds a window from its column pair. The pair is
// written together, so a half-set pair is treated as absent.
func nullStringsToWindow(start, end sql.NullString) *model.Window {
	if !start.Valid || !end.Valid {
		return nil
	}

	s, err := time.Parse(time.RFC3339, start.String)
	if err != nil {
		return nil
	}
	e, err := time.Parse(time.RFC3339, end.String)
	if err != nil {
		return nil
	}

	return &model.Window{Start: s, End: e}
}

func stringToNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullStringToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
