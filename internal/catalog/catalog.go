// Package catalog is the single local relational store (C5): projects,
// files, chunks, embeddings, definitions, function calls, full-text search,
// chat sessions, and the reindex queue all live in one SQLite database
// file. Grounded on the teacher's internal/store/sqlite_bm25.go — WAL
// pragmas, the FTS5-virtual-table idiom, and the corruption-detect-and-clear
// pattern on open — generalized here to host the whole schema instead of a
// single FTS index.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	"github.com/srag-go/srag/internal/srerrors"
)

// Catalog wraps the database connection. A single *sql.DB connection is
// used (max 1 open conn) so WAL writers never contend with themselves the
// way the teacher's BM25 index does.
type Catalog struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Open opens (creating if absent) the catalog database at path, enforcing
// WAL mode, a 5-second busy timeout, and foreign keys, then idempotently
// initializes the schema.
func Open(path string) (*Catalog, error) {
	if path != "" && path != ":memory:" {
		if err := validateIntegrity(path); err != nil {
			slog.Warn("catalog_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				return nil, srerrors.CatalogError("cannot remove corrupted catalog", rmErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, srerrors.CatalogError("create catalog directory", err)
			}
		}
	}

	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, srerrors.CatalogError("open catalog database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, srerrors.CatalogError("set pragma: "+p, err)
		}
	}

	c := &Catalog{db: db, path: path}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, srerrors.CatalogError("initialize schema", err)
	}
	if err := c.migrateLegacyColumns(); err != nil {
		_ = db.Close()
		return nil, srerrors.CatalogError("apply legacy migrations", err)
	}
	return c, nil
}

// validateIntegrity mirrors the teacher's validateSQLiteIntegrity: a
// quick PRAGMA integrity_check on an existing file before it is reused.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Close closes the underlying database, checkpointing WAL first.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return c.db.Close()
}

// DB exposes the underlying connection for components (e.g. the indexer)
// that need to run their own transactions against the catalog.
func (c *Catalog) DB() *sql.DB {
	return c.db
}

func (c *Catalog) initSchema() error {
	_, err := c.db.Exec(schemaSQL)
	return err
}

// migrateLegacyColumns tolerates databases created before chunks.suspicious
// existed: ALTER TABLE ADD COLUMN fails loudly on SQLite if the column is
// already there, so the duplicate-column error is swallowed.
func (c *Catalog) migrateLegacyColumns() error {
	_, err := c.db.Exec(`ALTER TABLE chunks ADD COLUMN suspicious INTEGER DEFAULT 0`)
	if err != nil && !isDuplicateColumn(err) {
		return err
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return contains(msg, "duplicate column name")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// execer is satisfied by both *sql.DB and *sql.Tx; catalog helpers take it
// so the same query-building code runs whether or not it's inside
// withImmediateTx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withImmediateTx runs fn inside a BEGIN IMMEDIATE transaction, committing
// on success and rolling back on any error, per the reindex transaction
// contract (spec.md §4.4). database/sql's Tx has no way to request IMMEDIATE
// locking, so the transaction is driven with raw statements against the
// single pooled connection (MaxOpenConns(1) guarantees fn's statements land
// on the same connection that issued BEGIN IMMEDIATE).
func (c *Catalog) withImmediateTx(ctx context.Context, fn func(tx execer) error) error {
	if _, err := c.db.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return srerrors.CatalogError("begin immediate transaction", err)
	}
	if err := fn(c.db); err != nil {
		_, _ = c.db.ExecContext(ctx, "ROLLBACK")
		return err
	}
	if _, err := c.db.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = c.db.ExecContext(ctx, "ROLLBACK")
		return srerrors.CatalogError("commit transaction", err)
	}
	return nil
}
