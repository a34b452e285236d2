// Package store provides SQLite persistence for campfinder.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abelbrown/campfinder/internal/listing"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed-width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// SaveResult reports what SaveListings changed.
type SaveResult struct {
	Inserted int
	Updated  int
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		program_id TEXT NOT NULL DEFAULT '',
		host_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		price_cents INTEGER NOT NULL DEFAULT 0,
		age_min INTEGER NOT NULL DEFAULT 0,
		age_max INTEGER NOT NULL DEFAULT 0,
		categories TEXT NOT NULL DEFAULT '[]',
		featured INTEGER NOT NULL DEFAULT 0,
		image_url TEXT NOT NULL DEFAULT '',
		created_at TEXT,
		start_at TEXT,
		synced_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_listings_created ON listings(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_listings_program ON listings(program_id);
	CREATE INDEX IF NOT EXISTS idx_listings_host ON listings(host_id);

	CREATE TABLE IF NOT EXISTS favorites (
		user_id TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (user_id, listing_id)
	);

	CREATE TABLE IF NOT EXISTS notification_prefs (
		user_id TEXT PRIMARY KEY,
		email INTEGER NOT NULL,
		sms INTEGER NOT NULL,
		push INTEGER NOT NULL,
		weekly_digest INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_status (
		name TEXT PRIMARY KEY,
		last_sync TEXT NOT NULL,
		item_count INTEGER NOT NULL,
		last_error TEXT NOT NULL DEFAULT ''
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveListings upserts listings by ID inside one transaction.
// Thread-safe: acquires write lock.
func (s *Store) SaveListings(listings []listing.Listing) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res SaveResult
	if len(listings) == 0 {
		return res, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := tx.Prepare(`SELECT 1 FROM listings WHERE id = ?`)
	if err != nil {
		return res, fmt.Errorf("prepare lookup: %w", err)
	}
	defer exists.Close()

	upsert, err := tx.Prepare(`
		INSERT INTO listings (
			id, program_id, host_id, title, description, location,
			price_cents, age_min, age_max, categories, featured, image_url,
			created_at, start_at, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			program_id = excluded.program_id,
			host_id = excluded.host_id,
			title = excluded.title,
			description = excluded.description,
			location = excluded.location,
			price_cents = excluded.price_cents,
			age_min = excluded.age_min,
			age_max = excluded.age_max,
			categories = excluded.categories,
			featured = excluded.featured,
			image_url = excluded.image_url,
			created_at = excluded.created_at,
			start_at = excluded.start_at,
			synced_at = excluded.synced_at
	`)
	if err != nil {
		return res, fmt.Errorf("prepare upsert: %w", err)
	}
	defer upsert.Close()

	syncedAt := encodeTime(time.Now())
	for _, l := range listings {
		if strings.TrimSpace(l.ID) == "" {
			return SaveResult{}, fmt.Errorf("save listing %q: empty id", l.Title)
		}

		var one int
		err := exists.QueryRow(l.ID).Scan(&one)
		isNew := errors.Is(err, sql.ErrNoRows)
		if err != nil && !isNew {
			return SaveResult{}, fmt.Errorf("lookup listing %s: %w", l.ID, err)
		}

		categories, err := json.Marshal(nonNil(l.Categories))
		if err != nil {
			return SaveResult{}, fmt.Errorf("encode categories for %s: %w", l.ID, err)
		}

		_, err = upsert.Exec(
			l.ID,
			l.ProgramID,
			l.HostID,
			l.Title,
			l.Description,
			l.Location,
			l.PriceCents,
			l.AgeMin,
			l.AgeMax,
			string(categories),
			boolToInt(l.Featured),
			l.ImageURL,
			encodeTime(l.CreatedAt),
			encodeTime(l.StartAt),
			syncedAt,
		)
		if err != nil {
			return SaveResult{}, fmt.Errorf("upsert listing %s: %w", l.ID, err)
		}

		if isNew {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

const listingColumns = `
	id, program_id, host_id, title, description, location,
	price_cents, age_min, age_max, categories, featured, image_url,
	created_at, start_at
`

// GetListings returns listings newest first; unknown creation times last.
// limit <= 0 returns everything.
// Thread-safe: acquires read lock.
func (s *Store) GetListings(limit int) ([]listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + listingColumns + ` FROM listings
		ORDER BY created_at IS NULL, created_at DESC, id
		LIMIT ?`
	return s.queryListings(query, sqlLimit(limit))
}

// GetListingsByCategory returns listings tagged with category (case-insensitive),
// newest first.
// Thread-safe: acquires read lock.
func (s *Store) GetListingsByCategory(category string, limit int) ([]listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + listingColumns + ` FROM listings
		WHERE EXISTS (
			SELECT 1 FROM json_each(listings.categories)
			WHERE lower(trim(json_each.value)) = lower(trim(?))
		)
		ORDER BY created_at IS NULL, created_at DESC, id
		LIMIT ?`
	return s.queryListings(query, category, sqlLimit(limit))
}

// GetListing returns one listing or ErrNotFound.
// Thread-safe: acquires read lock.
func (s *Store) GetListing(id string) (listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.queryListings(`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	if err != nil {
		return listing.Listing{}, err
	}
	if len(items) == 0 {
		return listing.Listing{}, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	return items[0], nil
}

// CountListings returns the number of stored listings.
// Thread-safe: acquires read lock.
func (s *Store) CountListings() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM listings`).Scan(&count)
	return count, err
}

// DeleteListing removes a listing and any favorites pointing at it.
// Thread-safe: acquires write lock.
func (s *Store) DeleteListing(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM listings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if _, err := tx.Exec(`DELETE FROM favorites WHERE listing_id = ?`, id); err != nil {
		return fmt.Errorf("delete favorites for %s: %w", id, err)
	}
	return tx.Commit()
}

// queryListings executes a query and scans results into Listings.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryListings(query string, args ...any) ([]listing.Listing, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []listing.Listing{}
	for rows.Next() {
		var (
			l          listing.Listing
			categories string
			featured   int
			createdAt  sql.NullString
			startAt    sql.NullString
		)
		err := rows.Scan(
			&l.ID,
			&l.ProgramID,
			&l.HostID,
			&l.Title,
			&l.Description,
			&l.Location,
			&l.PriceCents,
			&l.AgeMin,
			&l.AgeMax,
			&categories,
			&featured,
			&l.ImageURL,
			&createdAt,
			&startAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(categories), &l.Categories); err != nil {
			return nil, fmt.Errorf("decode categories for %s: %w", l.ID, err)
		}
		if len(l.Categories) == 0 {
			l.Categories = nil
		}
		l.Featured = featured != 0
		l.CreatedAt = decodeTime(createdAt)
		l.StartAt = decodeTime(startAt)
		items = append(items, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// encodeTime returns nil for the zero time so the column stays NULL.
func encodeTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func decodeTime(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// boolToInt converts a bool to an int for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
