package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/model"
)

// File names of the persisted layout.
const (
	SitemapFile            = "sitemap.json"
	CrawlSummaryFile       = "crawl_summary.json"
	KeywordsFile           = "keywords.json"
	SEOFile                = "seo_analysis_results.json"
	OrganizationFile       = "content_organization_analysis.json"
	OptimizationFile       = "url_optimization_analysis.json"
	ReadabilityFile        = "content_analysis_input.json"
	AggregatedOrganization = "aggregated_content_organization_analysis.json"
	AggregatedOptimization = "aggregated_url_optimization_analysis.json"
	AggregatedReadability  = "aggregated_content_analysis_input.json"
)

const (
	dirPerm  = 0750
	filePerm = 0600
)

// ErrNoCrawl is returned when persisting a report that has no crawl result.
var ErrNoCrawl = errors.New("report has no crawl result")

// directoryReplacer turns a URL into a single path segment.
var directoryReplacer = strings.NewReplacer(
	"//", "_",
	"/", "_",
	":", "_",
	"?", "_",
	"&", "_",
	"=", "_",
)

// SanitizeForDirectory makes url usable as a directory name by replacing
// "//", "/", ":", "?", "&" and "=" with "_".
func SanitizeForDirectory(url string) string {
	return directoryReplacer.Replace(url)
}

// CrawlSummary is the crawl data persisted next to the sitemap.
type CrawlSummary struct {
	Seed     string            `json:"seed"`
	Depths   map[string]int    `json:"depths"`
	Failures []crawler.Failure `json:"failures"`
	Partial  bool              `json:"partial"`
	Stats    crawler.Stats     `json:"stats"`
	CrawlID  string            `json:"crawl_id,omitempty"`
	SavedAt  time.Time         `json:"saved_at"`
}

// Persister writes crawl results below a base directory.
type Persister struct {
	baseDir string
}

// NewPersister creates a Persister rooted at baseDir.
func NewPersister(baseDir string) *Persister {
	return &Persister{baseDir: baseDir}
}

// Dir returns the directory a seed is persisted in.
func (p *Persister) Dir(seed string) string {
	return filepath.Join(p.baseDir, SanitizeForDirectory(seed))
}

// Save writes the sitemap, the crawl summary and, when present, the
// analysis files of report. It returns the seed directory.
func (p *Persister) Save(report *model.SiteReport) (string, error) {
	if report.Crawl == nil {
		return "", ErrNoCrawl
	}

	dir := p.Dir(report.Seed)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	sitemap := report.Crawl.Sitemap
	if sitemap == nil {
		sitemap = crawler.Sitemap{}
	}
	if err := writeJSONFile(filepath.Join(dir, SitemapFile), sitemap); err != nil {
		return "", err
	}

	failures := report.Crawl.Failures
	if failures == nil {
		failures = []crawler.Failure{}
	}
	summary := CrawlSummary{
		Seed:     report.Crawl.Seed,
		Depths:   report.Crawl.Depths,
		Failures: failures,
		Partial:  report.Crawl.Partial,
		Stats:    report.Crawl.Stats,
		CrawlID:  report.CrawlID,
		SavedAt:  time.Now(),
	}
	if err := writeJSONFile(filepath.Join(dir, CrawlSummaryFile), summary); err != nil {
		return "", err
	}

	if report.Analysis != nil {
		if err := p.saveAnalysis(dir, report.Analysis); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func (p *Persister) saveAnalysis(dir string, analysis *model.SiteAnalysis) error {
	keywords := analysis.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	if err := writeJSONFile(filepath.Join(dir, KeywordsFile), keywords); err != nil {
		return err
	}
	if analysis.SEO != nil {
		if err := writeJSONFile(filepath.Join(dir, SEOFile), analysis.SEO); err != nil {
			return err
		}
	}

	for _, page := range analysis.Pages {
		pageDir := filepath.Join(dir, SanitizeForDirectory(page.URL))
		if err := os.MkdirAll(pageDir, dirPerm); err != nil {
			return fmt.Errorf("failed to create page directory: %w", err)
		}
		files := []struct {
			name  string
			value any
			ok    bool
		}{
			{OrganizationFile, page.Organization, page.Organization != nil},
			{OptimizationFile, page.Optimization, page.Optimization != nil},
			{ReadabilityFile, page.Readability, page.Readability != nil},
		}
		for _, f := range files {
			if !f.ok {
				continue
			}
			if err := writeJSONFile(filepath.Join(pageDir, f.name), f.value); err != nil {
				return err
			}
		}
	}

	if err := writeJSONFile(filepath.Join(dir, AggregatedOrganization), analysis.Organizations()); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(dir, AggregatedOptimization), analysis.Optimizations()); err != nil {
		return err
	}
	return writeJSONFile(filepath.Join(dir, AggregatedReadability), analysis.Readabilities())
}

// writeJSONFile writes v as two-space indented JSON.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadSitemap reads a sitemap.json written by Save.
func LoadSitemap(path string) (crawler.Sitemap, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user
	if err != nil {
		return nil, fmt.Errorf("failed to read sitemap: %w", err)
	}
	var sitemap crawler.Sitemap
	if err := json.Unmarshal(data, &sitemap); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap: %w", err)
	}
	return sitemap, nil
}
