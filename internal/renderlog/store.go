// Package renderlog persists a record of every preview render and the
// post-render actions run on it, in SQLite or Postgres.
package renderlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type sqlDialect string

const (
	dialectSQLite   sqlDialect = "sqlite"
	dialectPostgres sqlDialect = "postgres"
)

// Render log statuses.
const (
	StatusRendered  = "rendered"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Entry is one render log event.
type Entry struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Preset     string    `json:"preset,omitempty"`
	OutputPath string    `json:"output_path"`
	PostRender string    `json:"post_render,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Query filters List. Zero values match everything.
type Query struct {
	Limit      int
	Offset     int
	Source     string
	PostRender string
	Status     string
	Since      *time.Time
}

// Result is a page of entries and the total number matching the query.
type Result struct {
	Data  []Entry `json:"data"`
	Total int     `json:"total"`
}

// MaintenanceQuery selects entries to delete. Before is required.
type MaintenanceQuery struct {
	Before *time.Time
	Status string
}

// Writer persists render log entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// Reader lists render log entries.
type Reader interface {
	List(ctx context.Context, q Query) (Result, error)
}

// Maintainer deletes old render log entries.
type Maintainer interface {
	Delete(ctx context.Context, q MaintenanceQuery) (int64, error)
}

// NoopWriter ignores all writes.
type NoopWriter struct{}

func (NoopWriter) Write(_ context.Context, _ Entry) error { return nil }

// Store persists entries to SQLite/Postgres.
type Store struct {
	db      *sql.DB
	dialect sqlDialect
}

// Open returns a Store for driver ("sqlite" or "postgres").
func Open(driver, dsn string) (*Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return NewSQLiteStore(dsn)
	case "postgres", "postgresql":
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported render log driver %q", driver)
	}
}

// NewSQLiteStore opens (and creates) a SQLite render log at dsn.
func NewSQLiteStore(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "review4d-renders.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite render log: %w", err)
	}
	// One connection keeps :memory: databases consistent across calls.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, dialect: dialectSQLite}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore connects to a Postgres render log.
func NewPostgresStore(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres render log: %w", err)
	}
	s := &Store{db: db, dialect: dialectPostgres}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping %s render log: %w", s.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS render_logs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	preset TEXT,
	output_path TEXT NOT NULL,
	post_render TEXT,
	status TEXT NOT NULL,
	error TEXT,
	created_at TIMESTAMP NOT NULL
);`
	if s.dialect == dialectPostgres {
		ddl = `
CREATE TABLE IF NOT EXISTS render_logs (
	id UUID PRIMARY KEY,
	source TEXT NOT NULL,
	preset TEXT,
	output_path TEXT NOT NULL,
	post_render TEXT,
	status TEXT NOT NULL,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL
);`
	}

	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize render log schema: %w", err)
	}
	return nil
}

// Write inserts entry, filling in ID, Status and CreatedAt when unset.
func (s *Store) Write(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = StatusRendered
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	query := s.bind(`INSERT INTO render_logs(id, source, preset, output_path, post_render, status, error, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Source,
		entry.Preset,
		entry.OutputPath,
		entry.PostRender,
		entry.Status,
		entry.Error,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write render log: %w", err)
	}
	return nil
}

// List returns the newest entries matching q.
func (s *Store) List(ctx context.Context, q Query) (Result, error) {
	where, args := filters(q)

	var total int
	countQuery := s.bind("SELECT COUNT(*) FROM render_logs" + where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return Result{}, fmt.Errorf("count render logs: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	listQuery := s.bind(`SELECT id, source, preset, output_path, post_render, status, error, created_at
	FROM render_logs` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	rows, err := s.db.QueryContext(ctx, listQuery, append(args, limit, q.Offset)...)
	if err != nil {
		return Result{}, fmt.Errorf("list render logs: %w", err)
	}
	defer rows.Close()

	result := Result{Total: total, Data: []Entry{}}
	for rows.Next() {
		var e Entry
		var preset, postRender, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.Source, &preset, &e.OutputPath, &postRender, &e.Status, &errMsg, &e.CreatedAt); err != nil {
			return Result{}, fmt.Errorf("scan render log: %w", err)
		}
		e.Preset, e.PostRender, e.Error = preset.String, postRender.String, errMsg.String
		result.Data = append(result.Data, e)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("list render logs: %w", err)
	}
	return result, nil
}

// Delete removes entries created before q.Before and returns how many were
// removed.
func (s *Store) Delete(ctx context.Context, q MaintenanceQuery) (int64, error) {
	if q.Before == nil {
		return 0, fmt.Errorf("delete render logs: before is required")
	}
	query := "DELETE FROM render_logs WHERE created_at < ?"
	args := []any{q.Before.UTC()}
	if q.Status != "" {
		query += " AND status = ?"
		args = append(args, q.Status)
	}
	res, err := s.db.ExecContext(ctx, s.bind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("delete render logs: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func filters(q Query) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if q.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, q.Source)
	}
	if q.PostRender != "" {
		clauses = append(clauses, "post_render = ?")
		args = append(args, q.PostRender)
	}
	if q.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, q.Status)
	}
	if q.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, q.Since.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// bind rewrites ? placeholders to $n for Postgres.
func (s *Store) bind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var (
		b      strings.Builder
		argNum = 1
	)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			fmt.Fprintf(&b, "$%d", argNum)
			argNum++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
