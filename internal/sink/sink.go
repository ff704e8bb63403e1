// Package sink implements the shared append-only audit store.
//
// The sink is content-addressed: bytes are filed under their domain-separated
// SHA-256 digest, logical paths are bound to hashes through refs, and every
// decision record is chained to its predecessor so the full history can be
// verified by replay. Nothing is ever deleted; rebinding a path preserves the
// prior binding in history.
//
// Storage is SQLite with WAL mode for concurrent read access. SQLite only
// supports one writer at a time, so the pool is capped at a single
// connection.
package sink

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/phantomos/phantom/internal/fault"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added ref_history.bound_at
const currentSchemaVersion = 1

// Sink is the append-only content-addressed store shared by all three
// components. Methods are safe for concurrent use; appends are totally
// ordered by sequence number.
type Sink struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the sink database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// Idempotent - safe to call multiple times.
func Open(path string) (*Sink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fault.Wrap(err, fault.KindIO, "open", "failed to open audit database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fault.Wrap(err, fault.KindIO, "open", "failed to connect to audit database")
	}

	// Single writer to avoid SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Sink{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Sink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetNow overrides the wall clock, for tests.
func (s *Sink) SetNow(now func() time.Time) {
	s.now = now
}

// Store appends bytes and returns their content hash. Storing identical
// bytes twice is idempotent: the same hash comes back and no new row is
// written.
func (s *Sink) Store(ctx context.Context, data []byte) (string, error) {
	hash := BlobHash(data)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (hash, data, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, data, s.now().Unix())
	if err != nil {
		return "", fault.Wrap(err, fault.KindIO, "store", "failed to store blob")
	}
	return hash, nil
}

// Read returns the bytes filed under hash, verifying the digest on the way
// out. A digest mismatch means the store is corrupt.
func (s *Sink) Read(ctx context.Context, hash string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE hash = ?`, hash).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.KindNotFound, "blob", "no blob with hash %s", hash)
	}
	if err != nil {
		return nil, fault.Wrap(err, fault.KindIO, "read", "failed to read blob")
	}
	if got := BlobHash(data); got != hash {
		return nil, fault.New(fault.KindCorruptState, "blob_digest",
			"blob %s fails digest verification (got %s)", hash, got)
	}
	return data, nil
}

// Ref binds a logical path to a hash. The blob must already exist. Binding
// the same (path, hash) again is a no-op; rebinding to a different hash
// preserves the old binding in ref_history.
func (s *Sink) Ref(ctx context.Context, path, hash string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fault.Wrap(err, fault.KindIO, "ref", "failed to begin transaction")
	}
	defer tx.Rollback()

	var prior string
	var boundAt int64
	err = tx.QueryRowContext(ctx, `SELECT hash, bound_at FROM refs WHERE path = ?`, path).Scan(&prior, &boundAt)
	switch {
	case err == sql.ErrNoRows:
		// First binding for this path.
	case err != nil:
		return fault.Wrap(err, fault.KindIO, "ref", "failed to read current binding")
	case prior == hash:
		return nil
	default:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ref_history (path, hash, bound_at) VALUES (?, ?, ?)
		`, path, prior, boundAt)
		if err != nil {
			return fault.Wrap(err, fault.KindIO, "ref", "failed to preserve prior binding")
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refs (path, hash, bound_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, bound_at = excluded.bound_at
	`, path, hash, s.now().Unix())
	if err != nil {
		return fault.Wrap(err, fault.KindIO, "ref", "failed to bind path")
	}

	if err := tx.Commit(); err != nil {
		return fault.Wrap(err, fault.KindIO, "ref", "failed to commit binding")
	}
	return nil
}

// Resolve returns the current binding for a path.
func (s *Sink) Resolve(ctx context.Context, path string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM refs WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fault.Wrap(err, fault.KindIO, "resolve", "failed to resolve path")
	}
	return hash, true, nil
}

// RefHistory returns the prior bindings for a path, oldest first. The
// current binding is not included.
func (s *Sink) RefHistory(ctx context.Context, path string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash FROM ref_history WHERE path = ? ORDER BY id ASC
	`, path)
	if err != nil {
		return nil, fault.Wrap(err, fault.KindIO, "ref_history", "failed to read binding history")
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fault.Wrap(err, fault.KindIO, "ref_history", "failed to scan binding")
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fault.Wrap(err, fault.KindIO, "pragma", "failed to execute %q", pragma)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fault.Wrap(err, fault.KindIO, "schema", "failed to execute schema")
	}
	return runMigrations(db)
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fault.Wrap(err, fault.KindIO, "migrate", "failed to read schema version")
	}
	if version >= currentSchemaVersion {
		return nil
	}
	// Schema version 1 is established by schema.sql itself; later versions
	// add ALTER statements here.
	stmt := fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)
	if _, err := db.Exec(stmt); err != nil {
		return fault.Wrap(err, fault.KindIO, "migrate", "failed to set schema version")
	}
	return nil
}
