package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iishyfishyy/lookalike/internal/fingerprint"
)

// SQLiteStore is a persistent fingerprint cache using SQLite
// schemaVersion is bumped whenever stored rows change meaning.
// Version 2 stores source_mtime in nanoseconds.
const schemaVersion = "2"

type SQLiteStore struct {
	db      *sql.DB
	dbPath  string
	meta    Meta
	version string
	mu      sync.RWMutex
}

// NewSQLiteStore opens or creates the cache at dbPath for fingerprints
// produced as described by meta. Entries produced under different settings
// are dropped.
func NewSQLiteStore(dbPath string, meta Meta) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	version, _ := store.getMetadata("version")
	if stored, err := store.readMeta(); err == nil && (stored != meta || version != schemaVersion) {
		if _, err := db.Exec(`DELETE FROM fingerprints`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to reset cache: %w", err)
		}
	}

	for key, value := range map[string]string{
		"version":  schemaVersion,
		"provider": meta.Provider,
		"model":    meta.Model,
		"bits":     strconv.Itoa(meta.Bits),
		"seed":     strconv.FormatUint(meta.Seed, 10),
	} {
		if err := store.setMetadata(key, value); err != nil {
			db.Close()
			return nil, err
		}
	}
	store.meta = meta
	store.version = schemaVersion

	return store, nil
}

// OpenSQLiteStore opens an existing cache without changing its metadata
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database does not exist: %s", dbPath)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}

	meta, err := store.readMeta()
	if err != nil {
		db.Close()
		return nil, err
	}
	store.meta = meta
	store.version, _ = store.getMetadata("version")

	return store, nil
}

// initSchema creates the database schema
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fingerprints (
		collection TEXT NOT NULL,
		item_id TEXT NOT NULL,
		bits INTEGER NOT NULL,
		hash_key BLOB NOT NULL,
		source_mtime INTEGER NOT NULL,
		PRIMARY KEY (collection, item_id)
	);

	CREATE INDEX IF NOT EXISTS idx_mtime ON fingerprints(source_mtime);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Put stores entries in a single transaction
func (s *SQLiteStore) Put(ctx context.Context, entries ...Entry) error {
	for _, e := range entries {
		if e.Key.IsZero() {
			return fmt.Errorf("empty fingerprint for %s/%s", e.Collection, e.ItemID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO fingerprints (collection, item_id, bits, hash_key, source_mtime)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Collection, e.ItemID, e.Key.Bits(), e.Key.Bytes(), e.SourceTime.UnixNano()); err != nil {
			return fmt.Errorf("failed to store %s/%s: %w", e.Collection, e.ItemID, err)
		}
	}

	return tx.Commit()
}

// Get returns the entry for an item
func (s *SQLiteStore) Get(ctx context.Context, collection, itemID string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT collection, item_id, bits, hash_key, source_mtime
		FROM fingerprints WHERE collection = ? AND item_id = ?
	`, collection, itemID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// List returns all entries of a collection ordered by item ID
func (s *SQLiteStore) List(ctx context.Context, collection string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, item_id, bits, hash_key, source_mtime
		FROM fingerprints WHERE collection = ? ORDER BY item_id
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e     Entry
		bits  int
		key   []byte
		mtime int64
	)
	if err := row.Scan(&e.Collection, &e.ItemID, &bits, &key, &mtime); err != nil {
		return Entry{}, err
	}

	fp, err := fingerprint.New(key, bits)
	if err != nil {
		return Entry{}, fmt.Errorf("corrupt fingerprint for %s/%s: %w", e.Collection, e.ItemID, err)
	}
	e.Key = fp
	e.SourceTime = time.Unix(0, mtime)
	return e, nil
}

// Delete removes an entry
func (s *SQLiteStore) Delete(ctx context.Context, collection, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM fingerprints WHERE collection = ? AND item_id = ?`, collection, itemID)
	return err
}

// Clear removes all entries
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM fingerprints`)
	return err
}

// Count returns the number of stored entries
func (s *SQLiteStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM fingerprints`).Scan(&count); err != nil {
		return 0
	}
	return count
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Meta returns the settings the cached fingerprints were produced with
func (s *SQLiteStore) Meta() Meta {
	return s.meta
}

// IsValid checks whether cached entries can be reused for fingerprints
// produced as described by meta
func (s *SQLiteStore) IsValid(meta Meta) (bool, string) {
	stored := s.meta
	switch {
	case s.version != schemaVersion:
		return false, fmt.Sprintf("cache format changed: %s → %s", s.version, schemaVersion)
	case stored.Provider != meta.Provider:
		return false, fmt.Sprintf("provider changed: %s → %s", stored.Provider, meta.Provider)
	case stored.Model != meta.Model:
		return false, fmt.Sprintf("model changed: %s → %s", stored.Model, meta.Model)
	case stored.Bits != meta.Bits:
		return false, fmt.Sprintf("bits changed: %d → %d", stored.Bits, meta.Bits)
	case stored.Seed != meta.Seed:
		return false, fmt.Sprintf("seed changed: %d → %d", stored.Seed, meta.Seed)
	}
	return true, ""
}

// IndexedAt returns when UpdateIndexTime was last called
func (s *SQLiteStore) IndexedAt() (time.Time, error) {
	value, err := s.getMetadata("indexed_at")
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

// UpdateIndexTime updates the indexed_at timestamp
func (s *SQLiteStore) UpdateIndexTime() error {
	return s.setMetadata("indexed_at", time.Now().Format(time.RFC3339))
}

func (s *SQLiteStore) readMeta() (Meta, error) {
	var meta Meta
	var err error

	if meta.Provider, err = s.getMetadata("provider"); err != nil {
		return Meta{}, fmt.Errorf("failed to read provider metadata: %w", err)
	}
	if meta.Model, err = s.getMetadata("model"); err != nil {
		return Meta{}, fmt.Errorf("failed to read model metadata: %w", err)
	}

	bitsStr, err := s.getMetadata("bits")
	if err != nil {
		return Meta{}, fmt.Errorf("failed to read bits metadata: %w", err)
	}
	if meta.Bits, err = strconv.Atoi(bitsStr); err != nil {
		return Meta{}, fmt.Errorf("invalid bits: %w", err)
	}

	seedStr, err := s.getMetadata("seed")
	if err != nil {
		return Meta{}, fmt.Errorf("failed to read seed metadata: %w", err)
	}
	if meta.Seed, err = strconv.ParseUint(seedStr, 10, 64); err != nil {
		return Meta{}, fmt.Errorf("invalid seed: %w", err)
	}

	return meta, nil
}

// getMetadata retrieves a metadata value
func (s *SQLiteStore) getMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("metadata key not found: %s", key)
	}
	return value, err
}

// setMetadata stores a metadata value
func (s *SQLiteStore) setMetadata(key, value string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO metadata (key, value)
		VALUES (?, ?)
	`, key, value)
	return err
}
