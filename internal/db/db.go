package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	dbFile  = ".fieldwork/fieldwork.db"
	dataDir = ".fieldwork"
)

// ErrStorageUnavailable signals that the local store cannot be opened or
// written. Callers must surface this as a blocking precondition; offline
// capture is impossible without a working store.
var ErrStorageUnavailable = errors.New("local store unavailable")

// ErrBlobBusy signals that a blob rewrite was refused because the record is
// currently being uploaded.
var ErrBlobBusy = errors.New("evidence upload in flight")

// DB wraps the local fieldwork database.
type DB struct {
	conn    *sql.DB
	baseDir string
}

// DataDir returns the fieldwork data directory under baseDir.
func DataDir(baseDir string) string {
	return filepath.Join(baseDir, dataDir)
}

// Open opens an existing fieldwork database and runs pending migrations.
func Open(baseDir string) (*DB, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: database not found, run 'fieldsync init' first", ErrStorageUnavailable)
	}

	return open(baseDir, dbPath)
}

// Initialize creates the fieldwork database, its directory, and the schema.
func Initialize(baseDir string) (*DB, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", ErrStorageUnavailable, err)
	}

	return open(baseDir, dbPath)
}

func open(baseDir, dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrStorageUnavailable, err)
	}

	// WAL allows concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: enable WAL mode: %v", ErrStorageUnavailable, err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: set busy timeout: %v", ErrStorageUnavailable, err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	db := &DB{conn: conn, baseDir: baseDir}

	if err := db.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// NewFromConn wraps an already-open connection and installs the schema.
// Used by tests that bring their own driver.
func NewFromConn(conn *sql.DB) (*DB, error) {
	db := &DB{conn: conn}
	if err := db.RunMigrations(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying *sql.DB for callers that need raw transactions
// (e.g. the storage manager's cross-table cleanup).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// BaseDir returns the project base directory the store was opened from.
func (db *DB) BaseDir() string {
	return db.baseDir
}

// WriteProbe verifies the store accepts writes. Used by the preflight check.
func (db *DB) WriteProbe() error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('probe', ?)`,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: write probe: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// parseTimestamp tries the timestamp formats the SQLite drivers emit.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: "2006-01-02 15:04:05", Value: s}
}

func scanNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTimestamp(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
