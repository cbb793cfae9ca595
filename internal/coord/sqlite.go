package coord

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteKV implements KV on a SQLite database shared by all worker processes.
// Each method is a single statement (or a single transaction), so atomicity
// comes from SQLite itself.
type SQLiteKV struct {
	db *sql.DB
}

// NewSQLiteKV opens (creating if needed) the coordination database in dataDir.
func NewSQLiteKV(dataDir string) (*SQLiteKV, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "coord.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open coordination database: %w", err)
	}

	kv := &SQLiteKV{db: db}
	if err := kv.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize coordination database: %w", err)
	}
	return kv, nil
}

// initialize creates the necessary tables
func (kv *SQLiteKV) initialize() error {
	entriesTable := `
	CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at DATETIME
	);`

	membersTable := `
	CREATE TABLE IF NOT EXISTS kv_members (
		set_name TEXT NOT NULL,
		member TEXT NOT NULL,
		expires_at DATETIME,
		PRIMARY KEY (set_name, member)
	);`

	countersTable := `
	CREATE TABLE IF NOT EXISTS kv_counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0
	);`

	listsTable := `
	CREATE TABLE IF NOT EXISTS kv_lists (
		list_name TEXT NOT NULL,
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		entry TEXT NOT NULL
	);`

	listIndex := `CREATE INDEX IF NOT EXISTS idx_kv_lists_name ON kv_lists (list_name, seq);`

	for _, stmt := range []string{entriesTable, membersTable, countersTable, listsTable, listIndex} {
		if _, err := kv.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (kv *SQLiteKV) Close() error {
	return kv.db.Close()
}

// SetIfAbsent atomically creates key=value with a TTL.
func (kv *SQLiteKV) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	// A lapsed entry must not block acquisition. The delete and insert run in
	// one transaction so two workers cannot both see the slot free.
	tx, err := kv.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM kv_entries WHERE key = ? AND expires_at IS NOT NULL AND expires_at <= ?", key, now); err != nil {
		return false, fmt.Errorf("failed to expire key: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING",
		key, value, expiry(now, ttl))
	if err != nil {
		return false, fmt.Errorf("failed to insert key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return affected > 0, nil
}

// Get returns the live value for key.
func (kv *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	row := kv.db.QueryRowContext(ctx,
		"SELECT value FROM kv_entries WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)",
		key, time.Now().UTC())

	var value string
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key: %w", err)
	}
	return value, true, nil
}

// Release deletes key only while it still holds value.
func (kv *SQLiteKV) Release(ctx context.Context, key, value string) error {
	_, err := kv.db.ExecContext(ctx,
		"DELETE FROM kv_entries WHERE key = ? AND value = ?", key, value)
	if err != nil {
		return fmt.Errorf("failed to release key: %w", err)
	}
	return nil
}

// AddMember inserts member into the named set with a TTL.
func (kv *SQLiteKV) AddMember(ctx context.Context, set, member string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	tx, err := kv.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM kv_members WHERE set_name = ? AND member = ? AND expires_at IS NOT NULL AND expires_at <= ?",
		set, member, now); err != nil {
		return false, fmt.Errorf("failed to expire member: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO kv_members (set_name, member, expires_at) VALUES (?, ?, ?) ON CONFLICT(set_name, member) DO NOTHING",
		set, member, expiry(now, ttl))
	if err != nil {
		return false, fmt.Errorf("failed to insert member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return affected > 0, nil
}

// HasMember reports whether member is a live entry of the named set.
func (kv *SQLiteKV) HasMember(ctx context.Context, set, member string) (bool, error) {
	row := kv.db.QueryRowContext(ctx,
		"SELECT 1 FROM kv_members WHERE set_name = ? AND member = ? AND (expires_at IS NULL OR expires_at > ?)",
		set, member, time.Now().UTC())

	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read member: %w", err)
	}
	return true, nil
}

// Incr atomically increments the named counter.
func (kv *SQLiteKV) Incr(ctx context.Context, counter string) (int64, error) {
	row := kv.db.QueryRowContext(ctx, `
	INSERT INTO kv_counters (name, value) VALUES (?, 1)
	ON CONFLICT(name) DO UPDATE SET value = value + 1
	RETURNING value`, counter)

	var value int64
	if err := row.Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	return value, nil
}

// Counter returns the named counter's current value.
func (kv *SQLiteKV) Counter(ctx context.Context, counter string) (int64, error) {
	row := kv.db.QueryRowContext(ctx, "SELECT value FROM kv_counters WHERE name = ?", counter)
	var value int64
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return value, nil
}

// PushBounded appends entry to the named list and trims it to max entries.
func (kv *SQLiteKV) PushBounded(ctx context.Context, list, entry string, max int) error {
	tx, err := kv.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO kv_lists (list_name, entry) VALUES (?, ?)", list, entry); err != nil {
		return fmt.Errorf("failed to push entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
	DELETE FROM kv_lists WHERE list_name = ? AND seq NOT IN (
		SELECT seq FROM kv_lists WHERE list_name = ? ORDER BY seq DESC LIMIT ?
	)`, list, list, max); err != nil {
		return fmt.Errorf("failed to trim list: %w", err)
	}

	return tx.Commit()
}

// Entries returns the list contents, oldest first.
func (kv *SQLiteKV) Entries(ctx context.Context, list string) ([]string, error) {
	rows, err := kv.db.QueryContext(ctx,
		"SELECT entry FROM kv_lists WHERE list_name = ? ORDER BY seq ASC", list)
	if err != nil {
		return nil, fmt.Errorf("failed to read list: %w", err)
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func expiry(now time.Time, ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return now.Add(ttl)
}
