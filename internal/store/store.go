package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"regexp"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added composite interval index on (lft, rgt)
const currentSchemaVersion = 1

// Options configures the shape of the indexed table.
type Options struct {
	// ScopeColumns partition the table into independent forests. Each is
	// a nullable TEXT column; NULL is a valid, distinct partition value.
	ScopeColumns []string

	// AttrColumns are the caller-defined columns the store is allowed to
	// write. Columns are added to the table if missing.
	AttrColumns []string

	// OrderColumn names an explicit sibling sort column. When empty,
	// siblings are ordered by lft.
	OrderColumn string

	// SoftDelete makes deletion tombstone rows instead of removing them.
	SoftDelete bool
}

// Store provides durable storage for one nested-set forest.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db   *sql.DB
	opts Options

	mu        sync.Mutex
	unguarded bool
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically, and adds any
// missing scope/attribute columns declared in opts.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//   - Immediate transaction locking (serializes structural mutations)
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts Options) (*Store, error) {
	for _, col := range append(append([]string{}, opts.ScopeColumns...), opts.AttrColumns...) {
		if !identRe.MatchString(col) {
			return nil, fmt.Errorf("invalid column name %q", col)
		}
	}
	if opts.OrderColumn != "" && !identRe.MatchString(opts.OrderColumn) {
		return nil, fmt.Errorf("invalid order column %q", opts.OrderColumn)
	}

	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, opts: opts}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Options returns the table configuration the store was opened with.
func (s *Store) Options() Options {
	return s.opts
}

// Begin opens a mutation transaction. The DSN's _txlock=immediate makes
// SQLite take its write lock at BEGIN, so concurrent structural mutations
// serialize here rather than deadlocking mid-shift.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Querier is satisfied by both *sql.DB and *sql.Tx, letting read helpers
// run either standalone or inside a mutation transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Unguarded runs fn with the attribute write guard lifted. The guard is
// restored on every exit path, including panics and errors. Used by the
// importer, which must write arbitrary payload attributes.
func (s *Store) Unguarded(fn func() error) error {
	s.mu.Lock()
	prev := s.unguarded
	s.unguarded = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.unguarded = prev
		s.mu.Unlock()
	}()

	return fn()
}

// EnsureAttrColumn adds a caller attribute column to the table if it is
// missing and registers it as writable. Intended for setup, before the
// store is shared between goroutines.
func (s *Store) EnsureAttrColumn(col string) error {
	if err := ensureColumn(s.db, col); err != nil {
		return err
	}
	for _, c := range s.opts.AttrColumns {
		if c == col {
			return nil
		}
	}
	s.opts.AttrColumns = append(s.opts.AttrColumns, col)
	return nil
}

// assertWritable rejects attribute writes outside Options.AttrColumns
// unless the guard is currently lifted.
func (s *Store) assertWritable(attrs map[string]any) error {
	s.mu.Lock()
	open := s.unguarded
	s.mu.Unlock()

	for col := range attrs {
		if !identRe.MatchString(col) {
			return fmt.Errorf("invalid attribute column %q", col)
		}
		if open {
			continue
		}
		allowed := col == s.opts.OrderColumn && col != ""
		for _, a := range s.opts.AttrColumns {
			if a == col {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("attribute column %q is not writable", col)
		}
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the table if needed, runs migrations, and ensures
// the declared scope and attribute columns exist. Idempotent.
func applySchema(db *sql.DB, opts Options) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	extra := append(append([]string{}, opts.ScopeColumns...), opts.AttrColumns...)
	if opts.OrderColumn != "" {
		extra = append(extra, opts.OrderColumn)
	}
	for _, col := range extra {
		if err := ensureColumn(db, col); err != nil {
			return err
		}
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the composite interval index for existing databases.
// New databases get the single-column indexes from schema.sql; the
// composite index speeds up the range predicates used by boundary shifts.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_nodes_interval
		ON nodes(lft, rgt)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// ensureColumn adds a nullable TEXT column if the table doesn't have it.
func ensureColumn(db *sql.DB, col string) error {
	if !identRe.MatchString(col) {
		return fmt.Errorf("invalid column name %q", col)
	}

	rows, err := db.Query("PRAGMA table_info(nodes)")
	if err != nil {
		return fmt.Errorf("table info: %w", err)
	}

	exists := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("scan column info: %w", err)
		}
		if name == col {
			exists = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate column info: %w", err)
	}
	// Release the connection before ALTER: the pool is capped at one.
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close column info: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE nodes ADD COLUMN %s TEXT NULL", col)); err != nil {
		return fmt.Errorf("add column %q: %w", col, err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
