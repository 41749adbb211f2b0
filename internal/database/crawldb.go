package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/sitemapper/internal/crawler"
	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the name of the database file inside the data directory.
const FileName = "sitemapper.db"

// timeLayout keeps stored timestamps lexically sortable.
const timeLayout = "2006-01-02 15:04:05.000000000"

// ErrNotFound is returned when a crawl does not exist.
var ErrNotFound = errors.New("crawl not found")

// CrawlDB provides SQLite-based storage for crawl history.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	// Wait for other processes holding the write lock.
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := cdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables(ctx context.Context) error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS crawls (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		max_threads INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		partial INTEGER NOT NULL DEFAULT 0,
		sitemap_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crawls_seed ON crawls(seed);
	CREATE INDEX IF NOT EXISTS idx_crawls_started ON crawls(started_at);

	-- One row per sitemap entry of a crawl
	CREATE TABLE IF NOT EXISTS pages (
		crawl_id TEXT NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		status TEXT NOT NULL,
		content_hash TEXT,
		link_count INTEGER NOT NULL,
		PRIMARY KEY (crawl_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`

	_, err := cdb.db.ExecContext(ctx, schema)
	return err
}

// SaveCrawl stores a crawl and its pages in one transaction. A crawl without
// an ID gets a new UUID. It returns the crawl ID.
func (cdb *CrawlDB) SaveCrawl(ctx context.Context, crawl *CrawlRecord, pages []PageRecord) (string, error) {
	if crawl.ID == "" {
		crawl.ID = uuid.NewString()
	}

	sitemap := crawl.Sitemap
	if sitemap == nil {
		sitemap = crawler.Sitemap{}
	}
	sitemapJSON, err := json.Marshal(sitemap)
	if err != nil {
		return "", fmt.Errorf("failed to serialize sitemap: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
	INSERT INTO crawls (id, seed, started_at, finished_at, max_depth, max_threads, pages, failures, partial, sitemap_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		crawl.ID,
		crawl.Seed,
		formatTimestamp(crawl.StartedAt),
		formatTimestamp(crawl.FinishedAt),
		crawl.MaxDepth,
		crawl.MaxThreads,
		crawl.Pages,
		crawl.Failures,
		crawl.Partial,
		string(sitemapJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert crawl: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (crawl_id, url, depth, status, content_hash, link_count)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for i := range pages {
		pages[i].CrawlID = crawl.ID
		p := pages[i]
		var hash sql.NullString
		if p.ContentHash != "" {
			hash = sql.NullString{String: p.ContentHash, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, p.CrawlID, p.URL, p.Depth, string(p.Status), hash, p.LinkCount); err != nil {
			return "", fmt.Errorf("failed to insert page %s: %w", p.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit crawl: %w", err)
	}
	return crawl.ID, nil
}

const metadataColumns = `id, seed, started_at, finished_at, max_depth, max_threads, pages, failures, partial`

// ListCrawls returns the crawls of seed, newest first.
func (cdb *CrawlDB) ListCrawls(ctx context.Context, seed string) ([]CrawlMetadata, error) {
	query := `SELECT ` + metadataColumns + `
	FROM crawls
	WHERE seed = ?
	ORDER BY started_at DESC, rowid DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawls: %w", err)
	}
	defer rows.Close()

	results := []CrawlMetadata{}
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// ListSeeds returns every seed with at least one stored crawl.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM crawls ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	seeds := []string{}
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

// GetCrawl returns the crawl with the given ID, or ErrNotFound.
func (cdb *CrawlDB) GetCrawl(ctx context.Context, id string) (*CrawlRecord, error) {
	query := `SELECT ` + metadataColumns + `, sitemap_json
	FROM crawls
	WHERE id = ?
	`

	row := cdb.db.QueryRowContext(ctx, query, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// LatestCrawls returns up to n crawls of seed with their sitemaps, newest
// first.
func (cdb *CrawlDB) LatestCrawls(ctx context.Context, seed string, n int) ([]*CrawlRecord, error) {
	query := `SELECT ` + metadataColumns + `, sitemap_json
	FROM crawls
	WHERE seed = ?
	ORDER BY started_at DESC, rowid DESC
	LIMIT ?
	`

	rows, err := cdb.db.QueryContext(ctx, query, seed, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest crawls: %w", err)
	}
	defer rows.Close()

	records := []*CrawlRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetPages returns the page rows of a crawl ordered by URL.
func (cdb *CrawlDB) GetPages(ctx context.Context, crawlID string) ([]PageRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT crawl_id, url, depth, status, content_hash, link_count
	FROM pages
	WHERE crawl_id = ?
	ORDER BY url
	`, crawlID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	pages := []PageRecord{}
	for rows.Next() {
		var (
			p      PageRecord
			status string
			hash   sql.NullString
		)
		if err := rows.Scan(&p.CrawlID, &p.URL, &p.Depth, &status, &hash, &p.LinkCount); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Status = PageStatus(status)
		p.ContentHash = hash.String
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMetadata(s scanner) (CrawlMetadata, error) {
	var (
		meta              CrawlMetadata
		started, finished string
	)
	err := s.Scan(
		&meta.ID,
		&meta.Seed,
		&started,
		&finished,
		&meta.MaxDepth,
		&meta.MaxThreads,
		&meta.Pages,
		&meta.Failures,
		&meta.Partial,
	)
	if err != nil {
		return CrawlMetadata{}, fmt.Errorf("failed to scan crawl: %w", err)
	}
	meta.StartedAt = parseTimestamp(started)
	meta.FinishedAt = parseTimestamp(finished)
	return meta, nil
}

func scanRecord(s scanner) (*CrawlRecord, error) {
	var (
		record            CrawlRecord
		started, finished string
		sitemapJSON       string
	)
	err := s.Scan(
		&record.ID,
		&record.Seed,
		&started,
		&finished,
		&record.MaxDepth,
		&record.MaxThreads,
		&record.Pages,
		&record.Failures,
		&record.Partial,
		&sitemapJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan crawl: %w", err)
	}
	record.StartedAt = parseTimestamp(started)
	record.FinishedAt = parseTimestamp(finished)

	if err := json.Unmarshal([]byte(sitemapJSON), &record.Sitemap); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap of crawl %s: %w", record.ID, err)
	}
	return &record, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
