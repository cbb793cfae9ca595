// Package store is the relational source of truth for groups, articles,
// collections, episodes, and the shared generation queue. There is no
// in-process collection cache: every worker replica reads the same rows.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"showrunner/internal/core"
)

// Store wraps the SQLite database shared by all workers.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "showrunner.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	groupsTable := `
	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		persona TEXT,
		voice TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		date_added DATETIME
	);`

	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		source_ref TEXT,
		link TEXT,
		title TEXT,
		published DATETIME,
		fingerprint TEXT,
		classification TEXT,
		collection_id TEXT,
		date_ingested DATETIME
	);`

	collectionsTable := `
	CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		name TEXT,
		description TEXT,
		status TEXT NOT NULL,
		parent_id TEXT,
		episode_id TEXT,
		date_created DATETIME,
		date_updated DATETIME
	);`

	collectionGroupsTable := `
	CREATE TABLE IF NOT EXISTS collection_groups (
		collection_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		PRIMARY KEY (collection_id, group_id)
	);`

	episodesTable := `
	CREATE TABLE IF NOT EXISTS episodes (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		collection_id TEXT,
		status TEXT NOT NULL,
		script TEXT,
		metadata TEXT,
		audio TEXT,
		publish_results TEXT,
		failure_reason TEXT,
		date_created DATETIME,
		date_published DATETIME
	);`

	queueTable := `
	CREATE TABLE IF NOT EXISTS generation_queue (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		collection_id TEXT,
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		claimed_by TEXT,
		date_enqueued DATETIME,
		date_claimed DATETIME
	);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_articles_collection ON articles (collection_id);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_group ON articles (group_id, date_ingested);`,
		`CREATE INDEX IF NOT EXISTS idx_collections_status ON collections (status);`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_group ON episodes (group_id, date_published);`,
		`CREATE INDEX IF NOT EXISTS idx_queue_status ON generation_queue (status, date_enqueued);`,
	}

	tables := []string{groupsTable, articlesTable, collectionsTable, collectionGroupsTable, episodesTable, queueTable}
	for _, stmt := range append(tables, indexes...) {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Groups ---

// CreateGroup persists a new group.
func (s *Store) CreateGroup(ctx context.Context, group *core.Group) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO groups (id, name, description, persona, voice, active, date_added)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		group.ID, group.Name, group.Description, group.Persona, group.Voice,
		boolToInt(group.Active), group.DateAdded)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by id.
func (s *Store) GetGroup(ctx context.Context, id string) (*core.Group, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, persona, voice, active, date_added FROM groups WHERE id = ?", id)
	return scanGroup(row)
}

// ListActiveGroups returns all groups the scheduler should consider.
func (s *Store) ListActiveGroups(ctx context.Context) ([]core.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, description, persona, voice, active, date_added FROM groups WHERE active = 1 ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []core.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	return groups, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*core.Group, error) {
	var group core.Group
	var active int
	err := row.Scan(&group.ID, &group.Name, &group.Description, &group.Persona,
		&group.Voice, &active, &group.DateAdded)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}
	group.Active = active != 0
	return &group, nil
}

// --- Articles ---

// SaveArticle persists a reviewed article.
func (s *Store) SaveArticle(ctx context.Context, article *core.Article) error {
	classification, _ := json.Marshal(article.Classification)
	_, err := s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO articles
	(id, group_id, source_ref, link, title, published, fingerprint, classification, collection_id, date_ingested)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		article.ID, article.GroupID, article.SourceRef, article.Link, article.Title,
		article.Published, article.Fingerprint, string(classification),
		nullable(article.CollectionID), article.DateIngested)
	if err != nil {
		return fmt.Errorf("failed to save article: %w", err)
	}
	return nil
}

// AttachArticle points an article at a collection.
func (s *Store) AttachArticle(ctx context.Context, articleID, collectionID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE articles SET collection_id = ? WHERE id = ?", collectionID, articleID)
	if err != nil {
		return fmt.Errorf("failed to attach article: %w", err)
	}
	return nil
}

// CollectionArticles returns all articles attached to a collection.
func (s *Store) CollectionArticles(ctx context.Context, collectionID string) ([]core.Article, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, group_id, source_ref, link, title, published, fingerprint, classification, collection_id, date_ingested
	FROM articles WHERE collection_id = ? ORDER BY published DESC`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// RecentArticles returns the newest unattached-or-attached articles for a
// group, used as the coordinator's last-resort fallback.
func (s *Store) RecentArticles(ctx context.Context, groupID string, limit int) ([]core.Article, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, group_id, source_ref, link, title, published, fingerprint, classification, collection_id, date_ingested
	FROM articles WHERE group_id = ? ORDER BY date_ingested DESC LIMIT ?`, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// NewestArticleTime returns the most recent publish time among a collection's
// articles (zero time when the collection is empty).
func (s *Store) NewestArticleTime(ctx context.Context, collectionID string) (time.Time, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT MAX(published) FROM articles WHERE collection_id = ?", collectionID)
	var newest sql.NullTime
	if err := row.Scan(&newest); err != nil {
		return time.Time{}, fmt.Errorf("failed to read newest article time: %w", err)
	}
	if !newest.Valid {
		return time.Time{}, nil
	}
	return newest.Time, nil
}

func scanArticles(rows *sql.Rows) ([]core.Article, error) {
	var articles []core.Article
	for rows.Next() {
		var article core.Article
		var classification string
		var collectionID sql.NullString
		err := rows.Scan(&article.ID, &article.GroupID, &article.SourceRef, &article.Link,
			&article.Title, &article.Published, &article.Fingerprint, &classification,
			&collectionID, &article.DateIngested)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		if classification != "" {
			_ = json.Unmarshal([]byte(classification), &article.Classification)
		}
		article.CollectionID = collectionID.String
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
