package analysis

import (
	"context"
	"strings"

	"github.com/nao1215/sitemapper/internal/model"
)

// Analyzer inspects one page and records its result in out. Analyzers hold
// no per-page state, so one instance serves all pages concurrently.
type Analyzer interface {
	// Name identifies the analyzer in logs.
	Name() string

	// Analyze examines page. site carries corpus-wide data such as keywords.
	Analyze(ctx context.Context, page *Page, site *SiteContext, out *model.PageAnalysis) error
}

// SiteContext is the corpus-level data shared by all page analyses.
type SiteContext struct {
	// Keywords are the site-wide top terms.
	Keywords []string
}

// DefaultAnalyzers returns the built-in per-page analyzers.
func DefaultAnalyzers() []Analyzer {
	return []Analyzer{
		NewOrganizationAnalyzer(),
		NewOptimizationAnalyzer(),
		NewReadabilityAnalyzer(),
	}
}

// OrganizationAnalyzer reports headings, sections and structured data.
type OrganizationAnalyzer struct{}

// NewOrganizationAnalyzer creates an OrganizationAnalyzer.
func NewOrganizationAnalyzer() *OrganizationAnalyzer {
	return &OrganizationAnalyzer{}
}

// Name returns the analyzer name.
func (a *OrganizationAnalyzer) Name() string {
	return "content_organization"
}

// Analyze fills out.Organization.
func (a *OrganizationAnalyzer) Analyze(_ context.Context, page *Page, _ *SiteContext, out *model.PageAnalysis) error {
	result := &model.ContentOrganization{
		URL:              page.URL,
		Headings:         page.Headings(),
		NumberOfSections: page.SectionCount(),
		Recommendations:  []string{},
		SchemaDetected:   page.HasJSONLD(),
	}

	if len(page.H1s()) > 1 {
		result.Recommendations = append(result.Recommendations, "Avoid using multiple H1 tags.")
	}

	if !result.SchemaDetected {
		suggestion, err := suggestArticle(page)
		if err != nil {
			return err
		}
		result.SchemaSuggestion = suggestion
	}

	out.Organization = result
	return nil
}

// OptimizationAnalyzer collects title, description, keywords and headings.
type OptimizationAnalyzer struct{}

// NewOptimizationAnalyzer creates an OptimizationAnalyzer.
func NewOptimizationAnalyzer() *OptimizationAnalyzer {
	return &OptimizationAnalyzer{}
}

// Name returns the analyzer name.
func (a *OptimizationAnalyzer) Name() string {
	return "url_optimization"
}

// Analyze fills out.Optimization.
func (a *OptimizationAnalyzer) Analyze(_ context.Context, page *Page, site *SiteContext, out *model.PageAnalysis) error {
	title, ok := page.Title()
	if !ok {
		title = "No title"
	}
	description, ok := page.MetaDescription()
	if !ok {
		description = "No meta description"
	}

	topKeywords := []string{}
	if site != nil {
		text := strings.ToLower(page.Text())
		for _, kw := range site.Keywords {
			if strings.Contains(text, kw) {
				topKeywords = append(topKeywords, kw)
			}
		}
	}

	out.Optimization = &model.URLOptimization{
		URL:             page.URL,
		Title:           title,
		MetaDescription: description,
		Keywords:        page.MetaKeywords(),
		H1:              page.H1s(),
		TopKeywords:     topKeywords,
	}
	return nil
}

// ReadabilityAnalyzer scores the page text. Pages without text get no
// result.
type ReadabilityAnalyzer struct{}

// NewReadabilityAnalyzer creates a ReadabilityAnalyzer.
func NewReadabilityAnalyzer() *ReadabilityAnalyzer {
	return &ReadabilityAnalyzer{}
}

// Name returns the analyzer name.
func (a *ReadabilityAnalyzer) Name() string {
	return "readability"
}

// Analyze fills out.Readability when the page has text.
func (a *ReadabilityAnalyzer) Analyze(_ context.Context, page *Page, _ *SiteContext, out *model.PageAnalysis) error {
	score, ok := FleschReadingEase(page.Text())
	if !ok {
		return nil
	}
	r := model.NewReadability(page.URL, score)
	out.Readability = &r
	return nil
}

// SEO runs the search-engine checklist against the seed page.
func SEO(page *Page) (*model.SEOResult, error) {
	result := &model.SEOResult{
		URL:      page.URL,
		Keywords: WordFrequencies(page.BodyText(), DefaultKeywordCount),
		Good:     []string{},
		Bad:      []string{},
	}

	if title, ok := page.Title(); ok && title != "" {
		result.Good = append(result.Good, "Title Exists! Great!")
	} else {
		result.Bad = append(result.Bad, "Title does not exist! Add a Title")
	}

	if description, ok := page.MetaDescription(); ok && description != "" {
		result.Good = append(result.Good, "Description Exists! Great!")
	} else {
		result.Bad = append(result.Bad, "Description does not exist! Add a Meta Description")
	}

	if len(page.H1s()) == 0 {
		result.Bad = append(result.Bad, "No H1 found!")
	}

	for _, img := range page.Images() {
		if !img.HasAlt {
			result.Bad = append(result.Bad, "No Alt attribute for image: "+img.Src)
		}
	}

	if page.HasJSONLD() {
		result.Good = append(result.Good, "Schema markup detected!")
	} else {
		result.Bad = append(result.Bad, "No schema markup detected.")
		suggestion, err := suggestArticle(page)
		if err != nil {
			return nil, err
		}
		result.SchemaSuggestion = &suggestion
	}
	return result, nil
}

// UnreachableSEO is the checklist result for a seed page that could not be
// loaded.
func UnreachableSEO(url string) *model.SEOResult {
	return &model.SEOResult{
		URL:      url,
		Keywords: []model.WordCount{},
		Good:     []string{},
		Bad:      []string{"Error: Unable to access the website."},
	}
}
