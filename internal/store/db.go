package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrUnavailable marks a transient failure talking to the database.
	// Callers decide whether to retry.
	ErrUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned when a node is unknown to the store.
	ErrNotFound = errors.New("not found")

	// ErrConflictOrMissing is returned when a score update targets a
	// location that no longer exists.
	ErrConflictOrMissing = errors.New("location missing or conflicting")

	// ErrDuplicate is returned when a location id is already stored.
	ErrDuplicate = errors.New("location already stored")
)

// unavailable joins a driver error with ErrUnavailable so both stay matchable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// insertError classifies a failed location insert. Constraint violations
// are caller errors, everything else is the store being unavailable.
func insertError(id string, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		switch msg := se.Error(); {
		case strings.Contains(msg, "UNIQUE"):
			return fmt.Errorf("insert location %s: %w", id, ErrDuplicate)
		case strings.Contains(msg, "FOREIGN KEY"):
			return fmt.Errorf("insert location %s: node %w", id, ErrNotFound)
		}
	}
	return unavailable(fmt.Sprintf("insert location %s", id), err)
}

// DB wraps a sql.DB connection to the visarea SQLite database.
type DB struct {
	*sql.DB
	Path string
}

// DefaultDBPath returns the default database path: ~/.visarea/visarea.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".visarea", "visarea.db"), nil
}

// Open opens (or creates) the SQLite database at the given path,
// configures pragmas, and runs migrations.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", fileDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db := &DB{DB: sqlDB, Path: path}
	if err := db.Ping(); err != nil {
		sqlDB.Close()
		return nil, unavailable("open sqlite", err)
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenMemory opens an in-memory SQLite database for testing.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Every pooled connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, Path: ":memory:"}
	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// connPragmas are per-connection settings. They go into the DSN so every
// connection the pool opens gets them, not just the first one.
var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// fileDSN builds the driver DSN for a database file. Transactions take the
// write lock at BEGIN so a read-then-write transaction waits on busy_timeout
// instead of failing with SQLITE_BUSY on lock upgrade.
func fileDSN(path string) string {
	params := url.Values{}
	for _, p := range connPragmas {
		params.Add("_pragma", p)
	}
	params.Set("_txlock", "immediate")
	return path + "?" + params.Encode()
}

func (db *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}
