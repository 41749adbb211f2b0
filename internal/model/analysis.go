package model

import (
	"slices"
	"strings"
)

// ContentOrganization describes how a page structures its content.
type ContentOrganization struct {
	// URL is the analyzed page.
	URL string `json:"url"`

	// Headings holds the trimmed text of every h1-h6 element in document order.
	Headings []string `json:"headings"`

	// NumberOfSections is the number of <section> elements.
	NumberOfSections int `json:"number_of_sections"`

	// Recommendations lists structural improvements.
	Recommendations []string `json:"recommendations"`

	// SchemaDetected is true when the page embeds JSON-LD.
	SchemaDetected bool `json:"schema_detected"`

	// SchemaSuggestion is a ready-to-paste JSON-LD script, set only when
	// SchemaDetected is false.
	SchemaSuggestion string `json:"schema_suggestion,omitempty"`
}

// URLOptimization collects the on-page signals search engines read.
type URLOptimization struct {
	URL             string   `json:"url"`
	Title           string   `json:"title"`
	MetaDescription string   `json:"meta_description"`
	Keywords        []string `json:"keywords"`
	H1              []string `json:"h1"`

	// TopKeywords are the site-wide keywords that occur in this page's text.
	TopKeywords []string `json:"top_keywords"`
}

// Readability is the Flesch reading-ease assessment of a page.
type Readability struct {
	URL             string          `json:"url"`
	Score           float64         `json:"readability_score"`
	Band            ReadabilityBand `json:"-"`
	Interpretation  string          `json:"interpretation"`
	Recommendations []string        `json:"recommendations"`
}

// NewReadability builds a Readability for score, filling in the band text.
func NewReadability(url string, score float64) Readability {
	band := BandForScore(score)
	return Readability{
		URL:             url,
		Score:           score,
		Band:            band,
		Interpretation:  band.Interpretation(),
		Recommendations: band.Recommendations(),
	}
}

// WordCount is a word and how often it occurs.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// SEOResult is the search-engine checklist for the seed page.
type SEOResult struct {
	URL string `json:"url"`

	// Keywords are the most frequent non-stop-words of the page body.
	Keywords []WordCount `json:"keywords"`

	// Good lists checks that passed.
	Good []string `json:"good"`

	// Bad lists checks that failed.
	Bad []string `json:"bad"`

	// SchemaSuggestion is set when the page has no JSON-LD.
	SchemaSuggestion *string `json:"schema_suggestion"`
}

// PageAnalysis groups the per-page results. A nil field means the
// corresponding analyzer did not produce a result for the page.
type PageAnalysis struct {
	URL          string               `json:"url"`
	Organization *ContentOrganization `json:"content_organization,omitempty"`
	Optimization *URLOptimization     `json:"url_optimization,omitempty"`
	Readability  *Readability         `json:"readability,omitempty"`
}

// SiteAnalysis is the outcome of analyzing every page of a sitemap.
type SiteAnalysis struct {
	// Keywords are the site-wide top terms.
	Keywords []string `json:"keywords"`

	// Pages holds one entry per analyzed page, sorted by URL.
	Pages []PageAnalysis `json:"pages"`

	// SEO is the checklist for the seed page.
	SEO *SEOResult `json:"seo,omitempty"`

	// Skipped lists pages that could not be loaded or parsed.
	Skipped []string `json:"skipped,omitempty"`
}

// Organizations returns every content organization result in page order.
func (a *SiteAnalysis) Organizations() []ContentOrganization {
	out := make([]ContentOrganization, 0, len(a.Pages))
	for _, p := range a.Pages {
		if p.Organization != nil {
			out = append(out, *p.Organization)
		}
	}
	return out
}

// Optimizations returns every URL optimization result in page order.
func (a *SiteAnalysis) Optimizations() []URLOptimization {
	out := make([]URLOptimization, 0, len(a.Pages))
	for _, p := range a.Pages {
		if p.Optimization != nil {
			out = append(out, *p.Optimization)
		}
	}
	return out
}

// Readabilities returns every readability result in page order.
func (a *SiteAnalysis) Readabilities() []Readability {
	out := make([]Readability, 0, len(a.Pages))
	for _, p := range a.Pages {
		if p.Readability != nil {
			out = append(out, *p.Readability)
		}
	}
	return out
}

// BandCounts counts pages per readability band.
func (a *SiteAnalysis) BandCounts() map[ReadabilityBand]int {
	counts := make(map[ReadabilityBand]int, len(Bands))
	for _, r := range a.Readabilities() {
		counts[r.Band]++
	}
	return counts
}

// SortPages orders Pages by URL.
func (a *SiteAnalysis) SortPages() {
	slices.SortFunc(a.Pages, func(x, y PageAnalysis) int {
		return strings.Compare(x.URL, y.URL)
	})
}
