package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/database"
	"github.com/nao1215/sitemapper/internal/model"
)

func TestNewCompareCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCompareCmd()
	if cmd.Use != "compare [url]" {
		t.Errorf("expected use 'compare [url]', got %q", cmd.Use)
	}
	for _, name := range []string{"with-id", "from", "to", "db-dir", "json", "markdown"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
}

func TestCompareCrawls(t *testing.T) {
	t.Parallel()

	const seed = "https://example.com"
	dbDir := seedHistory(t, seed, []string{"c1", "c2", "c3"},
		crawler.Sitemap{seed: {seed + "/old"}, seed + "/old": {}},
		crawler.Sitemap{seed: {seed + "/a"}, seed + "/a": {}},
		crawler.Sitemap{seed: {seed + "/a", seed + "/b"}, seed + "/a": {}, seed + "/b": {}},
	)
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	t.Run("latest two", func(t *testing.T) {
		t.Parallel()
		diff, err := compareCrawls(ctx, db, seed, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff.BaseID != "c2" || diff.TargetID != "c3" {
			t.Errorf("expected c2 -> c3, got %s -> %s", diff.BaseID, diff.TargetID)
		}
		if len(diff.AddedPages) != 1 || diff.AddedPages[0] != seed+"/b" {
			t.Errorf("unexpected added pages %v", diff.AddedPages)
		}
		if len(diff.ChangedPages) != 1 || diff.ChangedPages[0].URL != seed {
			t.Errorf("unexpected changed pages %+v", diff.ChangedPages)
		}
		if !diff.BaseDate.Before(diff.TargetDate) {
			t.Error("expected base date before target date")
		}
	})

	t.Run("with id", func(t *testing.T) {
		t.Parallel()
		diff, err := compareCrawls(ctx, db, seed, "c1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff.BaseID != "c1" {
			t.Errorf("expected base c1, got %s", diff.BaseID)
		}
		if len(diff.RemovedPages) != 1 || diff.RemovedPages[0] != seed+"/old" {
			t.Errorf("unexpected removed pages %v", diff.RemovedPages)
		}
	})

	t.Run("with latest id", func(t *testing.T) {
		t.Parallel()
		if _, err := compareCrawls(ctx, db, seed, "c3"); err == nil {
			t.Error("expected error comparing the latest crawl with itself")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		if _, err := compareCrawls(ctx, db, seed, "nope"); err == nil {
			t.Error("expected error for unknown crawl ID")
		}
	})

	t.Run("unknown seed", func(t *testing.T) {
		t.Parallel()
		if _, err := compareCrawls(ctx, db, "https://unknown.example", ""); err == nil {
			t.Error("expected error for seed without history")
		}
	})
}

func TestCompareCrawls_NeedsTwo(t *testing.T) {
	t.Parallel()

	const seed = "https://example.com"
	dbDir := seedHistory(t, seed, []string{"only"}, crawler.Sitemap{seed: {}})
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	_, err = compareCrawls(context.Background(), db, seed, "")
	if err == nil || !strings.Contains(err.Error(), "at least 2 crawls") {
		t.Errorf("expected 'at least 2 crawls' error, got %v", err)
	}
}

func TestCompareCmd_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	from := filepath.Join(dir, "old.json")
	to := filepath.Join(dir, "new.json")
	if err := os.WriteFile(from, []byte(`{"https://example.com":["https://example.com/a"]}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(to, []byte(`{"https://example.com":[],"https://example.com/b":[]}`), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := runRoot(t, "compare", "--from", from, "--to", to, "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var diff model.SitemapDiff
	if err := json.Unmarshal([]byte(out), &diff); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(diff.AddedPages) != 1 || diff.AddedPages[0] != "https://example.com/b" {
		t.Errorf("unexpected added pages %v", diff.AddedPages)
	}
	if len(diff.ChangedPages) != 1 || len(diff.ChangedPages[0].RemovedLinks) != 1 {
		t.Errorf("unexpected changed pages %+v", diff.ChangedPages)
	}
}

func TestCompareCmd_InvalidFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"json and markdown", []string{"compare", "-j", "-m", "example.com"}},
		{"from without to", []string{"compare", "--from", "a.json"}},
		{"no seed", []string{"compare", "--db-dir", t.TempDir()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := runRoot(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCrawlThenCompare(t *testing.T) {
	var withNews atomic.Bool
	srv := newTestSite(t, &withNews)
	cfgPath := writeEmptyConfig(t)
	dbDir := t.TempDir()

	crawlArgs := []string{"crawl", "-c", cfgPath, "-d", "1", "--no-analysis", "--out-dir", "", "--db-dir", dbDir, srv.URL}
	if _, err := runRoot(t, crawlArgs...); err != nil {
		t.Fatalf("first crawl: %v", err)
	}
	withNews.Store(true)
	if _, err := runRoot(t, crawlArgs...); err != nil {
		t.Fatalf("second crawl: %v", err)
	}

	out, err := runRoot(t, "compare", "--db-dir", dbDir, srv.URL)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !strings.Contains(out, "Pages: +1 -0, 1 changed") {
		t.Errorf("unexpected comparison: %s", out)
	}
	if !strings.Contains(out, "+ "+srv.URL+"/news") {
		t.Errorf("expected /news to be reported as added, got: %s", out)
	}
}
