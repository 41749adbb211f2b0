package database

import (
	"encoding/hex"
	"time"

	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/model"
	"golang.org/x/crypto/sha3"
)

// PageStatus tells whether a page body was retrieved.
type PageStatus string

const (
	// PageOK means the page was fetched and its links extracted.
	PageOK PageStatus = "ok"

	// PageFailed means the fetch failed; the page has no links.
	PageFailed PageStatus = "failed"
)

// CrawlMetadata describes a stored crawl without its sitemap.
type CrawlMetadata struct {
	ID         string    `json:"id"`
	Seed       string    `json:"seed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	MaxDepth   int       `json:"max_depth"`
	MaxThreads int       `json:"max_threads"`
	Pages      int       `json:"pages"`
	Failures   int       `json:"failures"`
	Partial    bool      `json:"partial"`
}

// CrawlRecord is a stored crawl with its sitemap.
type CrawlRecord struct {
	CrawlMetadata

	Sitemap crawler.Sitemap `json:"sitemap"`
}

// PageRecord is one sitemap entry of a stored crawl.
type PageRecord struct {
	CrawlID string     `json:"crawl_id"`
	URL     string     `json:"url"`
	Depth   int        `json:"depth"`
	Status  PageStatus `json:"status"`

	// ContentHash is the hex SHA3-256 of the body, empty when the body was
	// not kept.
	ContentHash string `json:"content_hash,omitempty"`

	LinkCount int `json:"link_count"`
}

// BodySource returns the body of a crawled page.
type BodySource interface {
	Body(url string) (string, bool)
}

// ContentHash returns the hex-encoded SHA3-256 digest of body.
func ContentHash(body string) string {
	sum := sha3.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// NewCrawlRecord converts a finished report into the rows SaveCrawl stores.
// bodies may be nil, in which case pages carry no content hash.
func NewCrawlRecord(report *model.SiteReport, bodies BodySource) (*CrawlRecord, []PageRecord) {
	result := report.Crawl
	if result == nil {
		result = &crawler.Result{Seed: report.Seed, Sitemap: crawler.Sitemap{}}
	}

	failed := make(map[string]bool, len(result.Failures))
	for _, f := range result.Failures {
		failed[f.URL] = true
	}

	started := result.Stats.StartedAt
	if started.IsZero() {
		started = report.DateCrawled
	}
	finished := result.Stats.FinishedAt
	if finished.IsZero() {
		finished = started
	}

	record := &CrawlRecord{
		CrawlMetadata: CrawlMetadata{
			ID:         report.CrawlID,
			Seed:       report.Seed,
			StartedAt:  started,
			FinishedAt: finished,
			MaxDepth:   report.MaxDepth,
			MaxThreads: report.MaxThreads,
			Pages:      len(result.Sitemap),
			Failures:   len(result.Failures),
			Partial:    result.Partial,
		},
		Sitemap: result.Sitemap,
	}

	urls := result.Sitemap.URLs()
	pages := make([]PageRecord, 0, len(urls))
	for _, u := range urls {
		page := PageRecord{
			URL:       u,
			Depth:     result.Depths[u],
			Status:    PageOK,
			LinkCount: len(result.Sitemap[u]),
		}
		if failed[u] {
			page.Status = PageFailed
		} else if bodies != nil {
			if body, ok := bodies.Body(u); ok {
				page.ContentHash = ContentHash(body)
			}
		}
		pages = append(pages, page)
	}
	return record, pages
}
