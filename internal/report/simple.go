package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitemapper/internal/model"
)

// SimpleWriter outputs human-readable plain text for terminals. It uses no
// ANSI colors so the output can be piped to files.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether empty sections are shown.
	showEmpty bool

	// verbose lists every page of the sitemap.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables the per-page sitemap listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.SiteReport) (int, error) {
	var sb strings.Builder
	summary := report.Summary()

	w.writeHeader(&sb, summary)
	w.writeAnalysis(&sb, summary)
	if w.verbose {
		w.writeSitemap(&sb, report)
	}
	w.writeFailures(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeAnalysis(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          SITEMAP REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:           %s\n", s.Seed)
	fmt.Fprintf(sb, "Crawl Date:     %s\n", s.DateCrawled.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Pages:          %d\n", s.Pages)
	fmt.Fprintf(sb, "Links:          %d\n", s.Links)
	fmt.Fprintf(sb, "Deepest Level:  %d\n", s.DeepestLevel)
	fmt.Fprintf(sb, "Elapsed:        %s\n", s.Elapsed)
	fmt.Fprintf(sb, "Status:         %s\n", statusText(s))
	if s.CrawlID != "" {
		fmt.Fprintf(sb, "Crawl ID:       %s\n", s.CrawlID)
	}
	if s.OutputDir != "" {
		fmt.Fprintf(sb, "Output:         %s\n", s.OutputDir)
	}
	sb.WriteString("\n")
}

// writeAnalysis writes readability counts, keywords and SEO issues.
func (w *SimpleWriter) writeAnalysis(sb *strings.Builder, s *model.Summary) {
	if s.AnalyzedPages() == 0 && len(s.Keywords) == 0 && len(s.SEOIssues) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "CONTENT ANALYSIS")

	sb.WriteString("  Readability:\n")
	for _, band := range model.Bands {
		fmt.Fprintf(sb, "    %-20s %d\n", band.String()+":", s.Readability[band.String()])
	}
	sb.WriteString("\n")

	if len(s.Keywords) > 0 {
		fmt.Fprintf(sb, "  Top keywords: %s\n\n", strings.Join(s.Keywords, ", "))
	} else if w.showEmpty {
		sb.WriteString("  Top keywords: none\n\n")
	}

	if len(s.SEOIssues) > 0 {
		sb.WriteString("  SEO issues:\n")
		for _, issue := range s.SEOIssues {
			fmt.Fprintf(sb, "    [!] %s\n", issue)
		}
		sb.WriteString("\n")
	}
}

// writeSitemap lists every page with its depth and link count.
func (w *SimpleWriter) writeSitemap(sb *strings.Builder, report *model.SiteReport) {
	if report.Crawl == nil {
		return
	}
	writeSection(sb, "SITEMAP")
	for _, u := range report.Crawl.Sitemap.URLs() {
		fmt.Fprintf(sb, "  [%d] %s (%d links)\n", report.Crawl.Depths[u], u, len(report.Crawl.Sitemap[u]))
	}
	sb.WriteString("\n")
}

// writeFailures lists pages that could not be fetched.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, s *model.Summary) {
	if !s.HasFailures() && !w.showEmpty {
		return
	}

	writeSection(sb, "FAILURES")
	if !s.HasFailures() {
		sb.WriteString("  No failures\n\n")
		return
	}
	for _, f := range s.Failures {
		fmt.Fprintf(sb, "  * %s\n", f.URL)
		fmt.Fprintf(sb, "    Depth: %d  Kind: %s\n", f.Depth, f.Kind)
		if f.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", f.Error)
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitemapper\n")
	sb.WriteString("https://github.com/nao1215/sitemapper\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// WriteDiff outputs a sitemap diff in human-readable format.
func (w *SimpleWriter) WriteDiff(diff *model.SitemapDiff) (int, error) {
	var sb strings.Builder

	addedLinks, removedLinks := diff.LinkChanges()
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Comparison for %s\n", diff.Seed)
	fmt.Fprintf(&sb, "  Base:   %s %s\n", diff.BaseDate.Format("2006-01-02 15:04:05"), diff.BaseID)
	fmt.Fprintf(&sb, "  Target: %s %s\n\n", diff.TargetDate.Format("2006-01-02 15:04:05"), diff.TargetID)
	fmt.Fprintf(&sb, "  Pages: +%d -%d, %d changed\n", len(diff.AddedPages), len(diff.RemovedPages), len(diff.ChangedPages))
	fmt.Fprintf(&sb, "  Links: +%d -%d\n\n", addedLinks, removedLinks)

	if !diff.HasChanges() {
		sb.WriteString("  No changes.\n")
		return w.output.Write([]byte(sb.String()))
	}

	for _, p := range diff.AddedPages {
		fmt.Fprintf(&sb, "  + %s\n", p)
	}
	for _, p := range diff.RemovedPages {
		fmt.Fprintf(&sb, "  - %s\n", p)
	}
	for _, c := range diff.ChangedPages {
		fmt.Fprintf(&sb, "  ~ %s\n", c.URL)
		for _, l := range c.AddedLinks {
			fmt.Fprintf(&sb, "      + %s\n", l)
		}
		for _, l := range c.RemovedLinks {
			fmt.Fprintf(&sb, "      - %s\n", l)
		}
	}
	return w.output.Write([]byte(sb.String()))
}
