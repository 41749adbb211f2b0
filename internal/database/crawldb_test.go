package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newRecord(seed string, started time.Time, sitemap crawler.Sitemap) *CrawlRecord {
	return &CrawlRecord{
		CrawlMetadata: CrawlMetadata{
			Seed:       seed,
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			MaxDepth:   2,
			MaxThreads: 4,
			Pages:      len(sitemap),
		},
		Sitemap: sitemap,
	}
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Fatal("expected error for missing database")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = db.Close()
	})
}

// TestSaveAndGetCrawl tests storing and loading a crawl.
func TestSaveAndGetCrawl(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	record := newRecord("https://example.com", started, crawler.Sitemap{
		"https://example.com":   {"https://example.com/a"},
		"https://example.com/a": {},
	})
	record.Failures = 1
	record.Partial = true
	pages := []PageRecord{
		{URL: "https://example.com", Status: PageOK, ContentHash: ContentHash("<html></html>"), LinkCount: 1},
		{URL: "https://example.com/a", Depth: 1, Status: PageFailed},
	}

	id, err := db.SaveCrawl(ctx, record, pages)
	if err != nil {
		t.Fatalf("SaveCrawl: %v", err)
	}
	if id == "" || record.ID != id {
		t.Fatalf("expected generated id, got %q (record %q)", id, record.ID)
	}

	got, err := db.GetCrawl(ctx, id)
	if err != nil {
		t.Fatalf("GetCrawl: %v", err)
	}
	if got.Seed != "https://example.com" || got.Failures != 1 || !got.Partial || got.MaxThreads != 4 {
		t.Errorf("unexpected metadata %+v", got.CrawlMetadata)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if len(got.Sitemap) != 2 || len(got.Sitemap["https://example.com"]) != 1 {
		t.Errorf("unexpected sitemap %v", got.Sitemap)
	}
	if links := got.Sitemap["https://example.com/a"]; links == nil || len(links) != 0 {
		t.Errorf("empty link list should survive storage, got %#v", links)
	}

	stored, err := db.GetPages(ctx, id)
	if err != nil {
		t.Fatalf("GetPages: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(stored))
	}
	if stored[0].ContentHash != pages[0].ContentHash || stored[0].CrawlID != id {
		t.Errorf("unexpected first page %+v", stored[0])
	}
	if stored[1].Status != PageFailed || stored[1].ContentHash != "" || stored[1].Depth != 1 {
		t.Errorf("unexpected second page %+v", stored[1])
	}
}

func TestGetCrawl_NotFound(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	if _, err := db.GetCrawl(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveCrawl_DuplicateID(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	record := newRecord("https://example.com", time.Now(), crawler.Sitemap{})
	record.ID = "fixed"
	if _, err := db.SaveCrawl(ctx, record, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := db.SaveCrawl(ctx, record, nil); err == nil {
		t.Error("expected error for duplicate id")
	}
}

// TestHistoryQueries tests listing seeds and crawls.
func TestHistoryQueries(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := range 3 {
		id, err := db.SaveCrawl(ctx, newRecord("https://b.test", base.Add(time.Duration(i)*time.Hour), crawler.Sitemap{
			"https://b.test": {},
		}), nil)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	if _, err := db.SaveCrawl(ctx, newRecord("https://a.test", base, crawler.Sitemap{}), nil); err != nil {
		t.Fatal(err)
	}

	t.Run("ListSeeds", func(t *testing.T) {
		t.Parallel()

		seeds, err := db.ListSeeds(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(seeds) != 2 || seeds[0] != "https://a.test" || seeds[1] != "https://b.test" {
			t.Errorf("unexpected seeds %v", seeds)
		}
	})

	t.Run("ListCrawls newest first", func(t *testing.T) {
		t.Parallel()

		crawls, err := db.ListCrawls(ctx, "https://b.test")
		if err != nil {
			t.Fatal(err)
		}
		if len(crawls) != 3 {
			t.Fatalf("expected 3 crawls, got %d", len(crawls))
		}
		if crawls[0].ID != ids[2] || crawls[2].ID != ids[0] {
			t.Errorf("unexpected order %v", crawls)
		}
	})

	t.Run("ListCrawls unknown seed", func(t *testing.T) {
		t.Parallel()

		crawls, err := db.ListCrawls(ctx, "https://none.test")
		if err != nil {
			t.Fatal(err)
		}
		if crawls == nil || len(crawls) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", crawls)
		}
	})

	t.Run("LatestCrawls", func(t *testing.T) {
		t.Parallel()

		latest, err := db.LatestCrawls(ctx, "https://b.test", 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(latest) != 2 || latest[0].ID != ids[2] || latest[1].ID != ids[1] {
			t.Errorf("unexpected latest crawls %+v", latest)
		}
		if _, ok := latest[0].Sitemap["https://b.test"]; !ok {
			t.Error("expected sitemap to be loaded")
		}
	})
}

type mapBodies map[string]string

func (m mapBodies) Body(url string) (string, bool) {
	body, ok := m[url]
	return body, ok
}

func TestNewCrawlRecord(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	report := model.NewSiteReport("https://example.com")
	report.CrawlID = "id-1"
	report.MaxDepth = 3
	report.MaxThreads = 8
	report.Crawl = &crawler.Result{
		Seed: "https://example.com",
		Sitemap: crawler.Sitemap{
			"https://example.com":      {"https://example.com/ok", "https://example.com/bad"},
			"https://example.com/ok":   {},
			"https://example.com/bad":  {},
			"https://example.com/lost": {},
		},
		Depths: map[string]int{
			"https://example.com":      0,
			"https://example.com/ok":   1,
			"https://example.com/bad":  1,
			"https://example.com/lost": 1,
		},
		Failures: []crawler.Failure{{URL: "https://example.com/bad", Depth: 1, Kind: crawler.FailureNetwork}},
		Partial:  true,
		Stats:    crawler.Stats{StartedAt: started, FinishedAt: started.Add(time.Minute)},
	}
	bodies := mapBodies{
		"https://example.com":     "<html>root</html>",
		"https://example.com/ok":  "<html>ok</html>",
		"https://example.com/bad": "should be ignored",
	}

	record, pages := NewCrawlRecord(report, bodies)
	if record.ID != "id-1" || record.Pages != 4 || record.Failures != 1 || !record.Partial {
		t.Errorf("unexpected record %+v", record.CrawlMetadata)
	}
	if !record.StartedAt.Equal(started) || record.MaxDepth != 3 || record.MaxThreads != 8 {
		t.Errorf("unexpected settings %+v", record.CrawlMetadata)
	}
	if len(pages) != 4 {
		t.Fatalf("expected 4 pages, got %d", len(pages))
	}

	byURL := make(map[string]PageRecord, len(pages))
	for _, p := range pages {
		byURL[p.URL] = p
	}
	if p := byURL["https://example.com"]; p.ContentHash != ContentHash("<html>root</html>") || p.LinkCount != 2 {
		t.Errorf("unexpected root page %+v", p)
	}
	if p := byURL["https://example.com/bad"]; p.Status != PageFailed || p.ContentHash != "" {
		t.Errorf("unexpected failed page %+v", p)
	}
	if p := byURL["https://example.com/lost"]; p.Status != PageOK || p.ContentHash != "" {
		t.Errorf("page without body should have no hash, got %+v", p)
	}
}

func TestContentHash(t *testing.T) {
	t.Parallel()

	// SHA3-256 of the empty string.
	const empty = "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"
	if got := ContentHash(""); got != empty {
		t.Errorf("ContentHash(\"\") = %s, want %s", got, empty)
	}
	if ContentHash("a") == ContentHash("b") {
		t.Error("different bodies should hash differently")
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-01-02 03:04:05.000000006", time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)},
		{"2026-01-02 03:04:05", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2026-01-02T03:04:05Z", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"garbage", time.Time{}},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.in); !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
