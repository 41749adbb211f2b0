package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/database"
)

// seedHistory stores the given sitemaps of seed as consecutive crawls one
// hour apart, oldest first, and returns the database directory.
func seedHistory(t *testing.T, seed string, ids []string, sitemaps ...crawler.Sitemap) string {
	t.Helper()

	dbDir := t.TempDir()
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, sitemap := range sitemaps {
		record := &database.CrawlRecord{
			CrawlMetadata: database.CrawlMetadata{
				ID:         ids[i],
				Seed:       seed,
				StartedAt:  start.Add(time.Duration(i) * time.Hour),
				FinishedAt: start.Add(time.Duration(i)*time.Hour + time.Minute),
				MaxDepth:   2,
				MaxThreads: 10,
				Pages:      len(sitemap),
				Partial:    i == 0,
			},
			Sitemap: sitemap,
		}
		if _, err := db.SaveCrawl(context.Background(), record, nil); err != nil {
			t.Fatal(err)
		}
	}
	return dbDir
}

func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	if cmd.Use != "history [url]" {
		t.Errorf("expected use 'history [url]', got %q", cmd.Use)
	}
	flag := cmd.Flags().Lookup("list-seeds")
	if flag == nil {
		t.Fatal("expected list-seeds flag")
	}
	if flag.Shorthand != "L" {
		t.Errorf("expected shorthand 'L', got %q", flag.Shorthand)
	}
	if cmd.Flags().Lookup("db-dir") == nil {
		t.Error("expected db-dir flag")
	}
}

func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	const seed = "https://example.com"
	dbDir := seedHistory(t, seed, []string{"crawl-old", "crawl-new"},
		crawler.Sitemap{seed: {}},
		crawler.Sitemap{seed: {seed + "/a"}, seed + "/a": {}},
	)

	t.Run("requires a seed", func(t *testing.T) {
		t.Parallel()
		_, err := runRoot(t, "history", "--db-dir", dbDir)
		if err == nil {
			t.Fatal("expected error without seed")
		}
	})

	t.Run("lists seeds", func(t *testing.T) {
		t.Parallel()
		out, err := runRoot(t, "history", "--db-dir", dbDir, "--list-seeds")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Crawled sites (1)") || !strings.Contains(out, seed) {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("lists crawls newest first", func(t *testing.T) {
		t.Parallel()
		out, err := runRoot(t, "history", "--db-dir", dbDir, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Crawl history for "+seed+" (2 crawls)") {
			t.Errorf("unexpected output: %s", out)
		}
		newIdx := strings.Index(out, "crawl-new")
		oldIdx := strings.Index(out, "crawl-old")
		if newIdx < 0 || oldIdx < 0 || newIdx > oldIdx {
			t.Errorf("expected crawl-new before crawl-old, got: %s", out)
		}
		if !strings.Contains(out, "partial") || !strings.Contains(out, "complete") {
			t.Errorf("expected crawl status column, got: %s", out)
		}
	})

	t.Run("unknown seed", func(t *testing.T) {
		t.Parallel()
		out, err := runRoot(t, "history", "--db-dir", dbDir, "https://unknown.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No crawl history found") {
			t.Errorf("unexpected output: %s", out)
		}
	})
}

func TestListStoredSeeds_Empty(t *testing.T) {
	t.Parallel()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := listStoredSeeds(context.Background(), db, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No crawled sites found") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestResolveSeed(t *testing.T) {
	t.Parallel()

	dbDir := seedHistory(t, "https://example.com/", []string{"a"}, crawler.Sitemap{})
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	tests := []struct {
		arg  string
		want string
	}{
		{"https://example.com/", "https://example.com/"},
		{"https://example.com", "https://example.com/"},
		{"example.com", "https://example.com/"},
		{"example.com/", "https://example.com/"},
		{"other.example", "other.example"},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			t.Parallel()
			got, err := resolveSeed(context.Background(), db, tt.arg)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("resolveSeed(%q) = %q, want %q", tt.arg, got, tt.want)
			}
		})
	}
}
