package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/model"
)

const richPage = `<!DOCTYPE html>
<html>
<head>
  <title>Gopher Gardening</title>
  <meta name="description" content="Growing carrots with gophers.">
  <meta name="keywords" content="gophers, carrots">
  <script>var tracking = "ignored words here";</script>
  <style>.hidden { display: none }</style>
</head>
<body>
  <h1>Gardening</h1>
  <section><h2>Carrots</h2><p>Carrots grow well. Gophers like carrots.</p></section>
  <section><h3> Soil </h3><p>Good soil helps.</p></section>
  <img src="/a.png" alt="a carrot">
  <img src="/b.png">
</body>
</html>`

const bareBody = `<html><body><h1>One</h1><h1>Two</h1><p>Text</p>
<script type="application/ld+json">{"@type":"Article"}</script></body></html>`

func mustParse(t *testing.T, url, body string) *Page {
	t.Helper()
	page, err := ParsePage(url, body)
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	return page
}

func TestPage(t *testing.T) {
	t.Parallel()

	page := mustParse(t, "https://example.com", richPage)

	if title, ok := page.Title(); !ok || title != "Gopher Gardening" {
		t.Errorf("Title() = %q, %v", title, ok)
	}
	if desc, ok := page.MetaDescription(); !ok || desc != "Growing carrots with gophers." {
		t.Errorf("MetaDescription() = %q, %v", desc, ok)
	}
	if got := page.MetaKeywords(); !slices.Equal(got, []string{"gophers, carrots"}) {
		t.Errorf("MetaKeywords() = %v", got)
	}
	if got := page.Headings(); !slices.Equal(got, []string{"Gardening", "Carrots", "Soil"}) {
		t.Errorf("Headings() = %v", got)
	}
	if got := page.H1s(); !slices.Equal(got, []string{"Gardening"}) {
		t.Errorf("H1s() = %v", got)
	}
	if got := page.SectionCount(); got != 2 {
		t.Errorf("SectionCount() = %d", got)
	}
	if page.HasJSONLD() {
		t.Error("HasJSONLD() = true")
	}

	images := page.Images()
	if len(images) != 2 || !images[0].HasAlt || images[1].HasAlt || images[1].Src != "/b.png" {
		t.Errorf("Images() = %+v", images)
	}

	text := page.Text()
	if strings.Contains(text, "tracking") || strings.Contains(text, "display") {
		t.Errorf("Text() contains script or style content: %q", text)
	}
	if !strings.Contains(text, "Gardening Carrots Carrots grow well.") {
		t.Errorf("Text() does not separate elements: %q", text)
	}
	if strings.Contains(page.BodyText(), "Gopher Gardening") {
		t.Errorf("BodyText() contains the title: %q", page.BodyText())
	}

	t.Run("missing head elements", func(t *testing.T) {
		t.Parallel()

		p := mustParse(t, "https://example.com", "<p>hi</p>")
		if _, ok := p.Title(); ok {
			t.Error("expected no title")
		}
		if _, ok := p.MetaDescription(); ok {
			t.Error("expected no description")
		}
		if got := p.MetaKeywords(); got == nil || len(got) != 0 {
			t.Errorf("MetaKeywords() = %v", got)
		}
	})
}

func TestExtractKeywords(t *testing.T) {
	t.Parallel()

	t.Run("fewer than two distinct documents", func(t *testing.T) {
		t.Parallel()

		for _, docs := range [][]string{nil, {"gopher"}, {"same text", "same text"}} {
			if got := ExtractKeywords(docs, 10); len(got) != 0 {
				t.Errorf("ExtractKeywords(%q) = %v", docs, got)
			}
		}
	})

	t.Run("ranks distinctive terms and drops stop words", func(t *testing.T) {
		t.Parallel()

		docs := []string{
			"The gopher digs tunnels. The gopher eats carrots.",
			"The gopher sleeps. Carrots are orange.",
			"Kubernetes clusters and Kubernetes pods.",
		}
		got := ExtractKeywords(docs, 3)
		if len(got) != 3 {
			t.Fatalf("expected 3 keywords, got %v", got)
		}
		for _, kw := range got {
			if isStopWord(kw) {
				t.Errorf("stop word %q in %v", kw, got)
			}
		}
		if !slices.Contains(got, "kubernetes") {
			t.Errorf("expected kubernetes in %v", got)
		}
		if again := ExtractKeywords(docs, 3); !slices.Equal(got, again) {
			t.Errorf("ranking not deterministic: %v vs %v", got, again)
		}
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		got := ExtractKeywords([]string{"alpha beta gamma delta", "epsilon zeta eta theta"}, 5)
		if len(got) != 5 {
			t.Errorf("expected 5 keywords, got %v", got)
		}
	})
}

func TestWordFrequencies(t *testing.T) {
	t.Parallel()

	got := WordFrequencies("Go go GO! Rust rust. the and 42 go2", 10)
	want := []model.WordCount{{Word: "go", Count: 3}, {Word: "rust", Count: 2}}
	if !slices.Equal(got, want) {
		t.Errorf("WordFrequencies() = %v, want %v", got, want)
	}
	if got := WordFrequencies("a b c", 10); len(got) != 0 {
		t.Errorf("expected no words, got %v", got)
	}
}

func TestFleschReadingEase(t *testing.T) {
	t.Parallel()

	if _, ok := FleschReadingEase("   "); ok {
		t.Error("expected empty text to be skipped")
	}
	if _, ok := FleschReadingEase(strings.Repeat("x", 101)); ok {
		t.Error("expected over-long words to be dropped")
	}

	easy, ok := FleschReadingEase("The cat sat. The dog ran. We had fun.")
	if !ok || model.BandForScore(easy) != model.BandEasy {
		t.Errorf("simple text scored %v", easy)
	}

	hard, ok := FleschReadingEase("Internationalization considerations necessitate comprehensive organizational reconfiguration, notwithstanding administrative responsibilities regarding interdepartmental communication infrastructure")
	if !ok || hard >= easy || model.BandForScore(hard) != model.BandExtremelyDifficult {
		t.Errorf("complex text scored %v", hard)
	}
}

func TestCountSyllables(t *testing.T) {
	t.Parallel()

	tests := map[string]int{
		"cat":       1,
		"make":      1,
		"table":     2,
		"beautiful": 3,
		"rhythm":    1,
		"the":       1,
	}
	for word, want := range tests {
		if got := countSyllables(word); got != want {
			t.Errorf("countSyllables(%q) = %d, want %d", word, got, want)
		}
	}
}

func TestCountSentences(t *testing.T) {
	t.Parallel()

	tests := map[string]int{
		"no punctuation":   1,
		"One. Two! Three?": 3,
		"Wait... what":     2,
		"Done.":            1,
		"":                 1,
	}
	for text, want := range tests {
		if got := countSentences(text); got != want {
			t.Errorf("countSentences(%q) = %d, want %d", text, got, want)
		}
	}
}

func TestGenerateArticleJSONLD(t *testing.T) {
	t.Parallel()

	script, err := JSONLDScript(GenerateArticleJSONLD("Title", UnknownAuthor, UnknownDate, UnknownImage, "Desc"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(script, `<script type="application/ld+json">`) || !strings.HasSuffix(script, "</script>") {
		t.Fatalf("unexpected wrapper: %s", script)
	}

	raw := strings.TrimSuffix(strings.TrimPrefix(script, `<script type="application/ld+json">`), "</script>")
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["@type"] != "Article" || decoded["headline"] != "Title" || decoded["articleBody"] != "Desc" {
		t.Errorf("unexpected article: %v", decoded)
	}
	author, _ := decoded["author"].(map[string]any)
	if author["name"] != UnknownAuthor {
		t.Errorf("unexpected author: %v", decoded["author"])
	}
}

func TestAnalyzers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("organization", func(t *testing.T) {
		t.Parallel()

		var out model.PageAnalysis
		if err := NewOrganizationAnalyzer().Analyze(ctx, mustParse(t, "https://a.test", richPage), nil, &out); err != nil {
			t.Fatal(err)
		}
		org := out.Organization
		if org == nil || org.NumberOfSections != 2 || org.SchemaDetected || len(org.Recommendations) != 0 {
			t.Fatalf("unexpected result %+v", org)
		}
		if !strings.Contains(org.SchemaSuggestion, `"headline": "Gopher Gardening"`) {
			t.Errorf("unexpected suggestion %s", org.SchemaSuggestion)
		}

		var bare model.PageAnalysis
		if err := NewOrganizationAnalyzer().Analyze(ctx, mustParse(t, "https://b.test", bareBody), nil, &bare); err != nil {
			t.Fatal(err)
		}
		if !bare.Organization.SchemaDetected || bare.Organization.SchemaSuggestion != "" {
			t.Errorf("expected schema detected, got %+v", bare.Organization)
		}
		if !slices.Equal(bare.Organization.Recommendations, []string{"Avoid using multiple H1 tags."}) {
			t.Errorf("unexpected recommendations %v", bare.Organization.Recommendations)
		}
	})

	t.Run("optimization", func(t *testing.T) {
		t.Parallel()

		var out model.PageAnalysis
		site := &SiteContext{Keywords: []string{"carrots", "kubernetes", "soil"}}
		if err := NewOptimizationAnalyzer().Analyze(ctx, mustParse(t, "https://a.test", richPage), site, &out); err != nil {
			t.Fatal(err)
		}
		opt := out.Optimization
		if opt.Title != "Gopher Gardening" || opt.MetaDescription != "Growing carrots with gophers." {
			t.Errorf("unexpected head data %+v", opt)
		}
		if !slices.Equal(opt.TopKeywords, []string{"carrots", "soil"}) {
			t.Errorf("TopKeywords = %v", opt.TopKeywords)
		}

		var bare model.PageAnalysis
		if err := NewOptimizationAnalyzer().Analyze(ctx, mustParse(t, "https://b.test", "<p>x</p>"), nil, &bare); err != nil {
			t.Fatal(err)
		}
		if bare.Optimization.Title != "No title" || bare.Optimization.MetaDescription != "No meta description" {
			t.Errorf("unexpected defaults %+v", bare.Optimization)
		}
	})

	t.Run("readability", func(t *testing.T) {
		t.Parallel()

		var out model.PageAnalysis
		if err := NewReadabilityAnalyzer().Analyze(ctx, mustParse(t, "https://a.test", richPage), nil, &out); err != nil {
			t.Fatal(err)
		}
		if out.Readability == nil || out.Readability.Interpretation == "" {
			t.Errorf("unexpected readability %+v", out.Readability)
		}

		var empty model.PageAnalysis
		if err := NewReadabilityAnalyzer().Analyze(ctx, mustParse(t, "https://b.test", "<html></html>"), nil, &empty); err != nil {
			t.Fatal(err)
		}
		if empty.Readability != nil {
			t.Errorf("expected empty page to be skipped, got %+v", empty.Readability)
		}
	})
}

func TestSEO(t *testing.T) {
	t.Parallel()

	result, err := SEO(mustParse(t, "https://a.test", richPage))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(result.Good, []string{"Title Exists! Great!", "Description Exists! Great!"}) {
		t.Errorf("Good = %v", result.Good)
	}
	if !slices.Equal(result.Bad, []string{"No Alt attribute for image: /b.png", "No schema markup detected."}) {
		t.Errorf("Bad = %v", result.Bad)
	}
	if result.SchemaSuggestion == nil {
		t.Error("expected schema suggestion")
	}
	if len(result.Keywords) == 0 || result.Keywords[0].Word != "carrots" {
		t.Errorf("Keywords = %v", result.Keywords)
	}

	bare, err := SEO(mustParse(t, "https://b.test", "<p>hello</p>"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Title does not exist! Add a Title", "Description does not exist! Add a Meta Description", "No H1 found!"} {
		if !slices.Contains(bare.Bad, want) {
			t.Errorf("expected %q in %v", want, bare.Bad)
		}
	}

	unreachable := UnreachableSEO("https://c.test")
	if !slices.Equal(unreachable.Bad, []string{"Error: Unable to access the website."}) {
		t.Errorf("unexpected unreachable result %+v", unreachable)
	}
}

// fakeFetcher serves bodies from a map and counts calls.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++
	body, ok := f.pages[rawURL]
	if !ok {
		return "", errors.New("not found")
	}
	return body, nil
}

func (f *fakeFetcher) callCount(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

// failingAnalyzer always returns an error.
type failingAnalyzer struct{}

func (failingAnalyzer) Name() string { return "failing" }

func (failingAnalyzer) Analyze(context.Context, *Page, *SiteContext, *model.PageAnalysis) error {
	return errors.New("boom")
}

func TestRunner(t *testing.T) {
	t.Parallel()

	const (
		seed  = "https://site.test/"
		about = "https://site.test/about"
		gone  = "https://site.test/gone"
	)
	sitemap := crawler.Sitemap{
		seed:  {about, gone},
		about: {seed},
		gone:  {},
	}

	t.Run("uses stored pages and fetches the rest", func(t *testing.T) {
		t.Parallel()

		store := NewPageStore()
		store.StorePage(seed, 0, richPage)
		fetcher := newFakeFetcher(map[string]string{
			seed:  "<p>should not be fetched</p>",
			about: "<html><head><title>About</title></head><body><p>About the soil team.</p></body></html>",
		})

		result, err := NewRunner(fetcher, WithPageStore(store), WithConcurrency(2)).Run(context.Background(), seed, sitemap)
		if err != nil {
			t.Fatal(err)
		}

		if fetcher.callCount(seed) != 0 {
			t.Error("stored page was fetched again")
		}
		if fetcher.callCount(about) != 1 {
			t.Errorf("about fetched %d times", fetcher.callCount(about))
		}
		if !slices.Equal(result.Skipped, []string{gone}) {
			t.Errorf("Skipped = %v", result.Skipped)
		}
		if len(result.Pages) != 2 || result.Pages[0].URL != seed || result.Pages[1].URL != about {
			t.Fatalf("unexpected pages %+v", result.Pages)
		}
		for _, p := range result.Pages {
			if p.Organization == nil || p.Optimization == nil || p.Readability == nil {
				t.Errorf("incomplete analysis for %s: %+v", p.URL, p)
			}
		}
		if len(result.Keywords) == 0 {
			t.Error("expected keywords from two distinct pages")
		}
		if result.SEO == nil || result.SEO.URL != seed || slices.Contains(result.SEO.Bad, "Error: Unable to access the website.") {
			t.Errorf("unexpected SEO %+v", result.SEO)
		}
	})

	t.Run("unreachable seed", func(t *testing.T) {
		t.Parallel()

		result, err := NewRunner(newFakeFetcher(nil)).Run(context.Background(), seed, sitemap)
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Pages) != 0 || len(result.Skipped) != 3 {
			t.Errorf("unexpected result %+v", result)
		}
		if len(result.Keywords) != 0 {
			t.Errorf("expected no keywords, got %v", result.Keywords)
		}
		if !slices.Equal(result.SEO.Bad, []string{"Error: Unable to access the website."}) {
			t.Errorf("unexpected SEO %+v", result.SEO)
		}
	})

	t.Run("nil fetcher analyzes stored pages only", func(t *testing.T) {
		t.Parallel()

		store := NewPageStore()
		store.StorePage(about, 1, "<p>About.</p>")
		result, err := NewRunner(nil, WithPageStore(store)).Run(context.Background(), seed, sitemap)
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Pages) != 1 || result.Pages[0].URL != about {
			t.Errorf("unexpected pages %+v", result.Pages)
		}
	})

	t.Run("analyzer errors are not fatal", func(t *testing.T) {
		t.Parallel()

		store := NewPageStore()
		store.StorePage(seed, 0, richPage)
		result, err := NewRunner(nil,
			WithPageStore(store),
			WithAnalyzers(failingAnalyzer{}, NewReadabilityAnalyzer()),
		).Run(context.Background(), seed, sitemap)
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Pages) != 1 || result.Pages[0].Readability == nil || result.Pages[0].Organization != nil {
			t.Errorf("unexpected pages %+v", result.Pages)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := NewRunner(newFakeFetcher(nil)).Run(ctx, seed, sitemap); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestPageStore(t *testing.T) {
	t.Parallel()

	store := NewPageStore()
	var sink crawler.PageSink = store

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.StorePage("https://a.test/"+strings.Repeat("x", i), i, "body")
		}()
	}
	wg.Wait()

	if store.Len() != 20 {
		t.Errorf("Len() = %d", store.Len())
	}
	if body, ok := store.Body("https://a.test/"); !ok || body != "body" {
		t.Errorf("Body() = %q, %v", body, ok)
	}
	if _, ok := store.Body("https://missing.test"); ok {
		t.Error("expected missing page")
	}
}
