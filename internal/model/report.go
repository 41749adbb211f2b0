package model

import (
	"time"

	"github.com/nao1215/sitemapper/internal/crawler"
)

// SiteReport is the complete result for one seed: the crawl, the content
// analysis and where both were persisted.
type SiteReport struct {
	// Seed is the URL the crawl started from, after normalization.
	Seed string `json:"seed"`

	// DateCrawled is when the crawl started.
	DateCrawled time.Time `json:"date_crawled"`

	// CrawlID identifies the crawl in the history database. Empty when the
	// crawl was not stored.
	CrawlID string `json:"crawl_id,omitempty"`

	// MaxDepth and MaxThreads are the settings the crawl ran with.
	MaxDepth   int `json:"max_depth"`
	MaxThreads int `json:"max_threads"`

	// Crawl is the sitemap and its auxiliary data.
	Crawl *crawler.Result `json:"crawl,omitempty"`

	// Analysis is nil when analysis was disabled or has not run.
	Analysis *SiteAnalysis `json:"analysis,omitempty"`

	// OutputDir is the directory holding the persisted files.
	OutputDir string `json:"output_dir,omitempty"`

	// Steps lists the pipeline steps that ran, in order.
	Steps []string `json:"steps,omitempty"`

	// Error is the error that stopped processing of this seed, if any.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewSiteReport creates an empty report for seed.
func NewSiteReport(seed string) *SiteReport {
	return &SiteReport{
		Seed:        seed,
		DateCrawled: time.Now(),
	}
}

// SetError records err on the report.
func (r *SiteReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Sitemap returns the crawled sitemap, or nil before the crawl finished.
func (r *SiteReport) Sitemap() crawler.Sitemap {
	if r.Crawl == nil {
		return nil
	}
	return r.Crawl.Sitemap
}

// Summary condenses the report for terminal output.
func (r *SiteReport) Summary() *Summary {
	s := &Summary{
		Seed:        r.Seed,
		DateCrawled: r.DateCrawled,
		CrawlID:     r.CrawlID,
		OutputDir:   r.OutputDir,
		Error:       r.ErrorMessage,
		Readability: make(map[string]int),
	}

	if r.Crawl != nil {
		s.Pages = len(r.Crawl.Sitemap)
		s.Links = r.Crawl.Sitemap.LinkCount()
		s.Failures = r.Crawl.Failures
		s.Partial = r.Crawl.Partial
		s.Elapsed = r.Crawl.Stats.Elapsed
		for _, d := range r.Crawl.Depths {
			s.DeepestLevel = max(s.DeepestLevel, d)
		}
	}

	if r.Analysis != nil {
		s.Keywords = r.Analysis.Keywords
		for band, n := range r.Analysis.BandCounts() {
			s.Readability[band.String()] = n
		}
		if r.Analysis.SEO != nil {
			s.SEOIssues = r.Analysis.SEO.Bad
		}
	}
	return s
}

// Summary is the human-oriented digest of a SiteReport.
type Summary struct {
	Seed        string    `json:"seed"`
	DateCrawled time.Time `json:"date_crawled"`
	CrawlID     string    `json:"crawl_id,omitempty"`
	OutputDir   string    `json:"output_dir,omitempty"`

	// Pages is the number of sitemap entries, failed pages included.
	Pages int `json:"pages"`

	// Links is the number of outbound links across all pages.
	Links int `json:"links"`

	// DeepestLevel is the largest depth at which a page was visited.
	DeepestLevel int `json:"deepest_level"`

	Failures []crawler.Failure `json:"failures,omitempty"`
	Partial  bool              `json:"partial"`
	Elapsed  time.Duration     `json:"elapsed"`

	Keywords []string `json:"keywords,omitempty"`

	// Readability counts pages per band label.
	Readability map[string]int `json:"readability,omitempty"`

	SEOIssues []string `json:"seo_issues,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// HasFailures reports whether any page failed.
func (s *Summary) HasFailures() bool {
	return len(s.Failures) > 0
}

// AnalyzedPages returns the number of pages with a readability score.
func (s *Summary) AnalyzedPages() int {
	total := 0
	for _, n := range s.Readability {
		total += n
	}
	return total
}
