package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitemapper/internal/model"
)

// maxSitemapRows bounds the sitemap table; larger sites are truncated and
// the full sitemap is left to sitemap.json.
const maxSitemapRows = 200

// MarkdownWriter outputs reports in Markdown format for documentation and
// sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.SiteReport) (int, error) {
	summary := report.Summary()
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeReadability(md, summary)
	w.writeKeywords(md, summary)
	if report.Analysis != nil && report.Analysis.SEO != nil {
		w.writeSEO(md, report.Analysis.SEO)
	}
	w.writeSitemap(md, report)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeReadability(md, summary)
	w.writeKeywords(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report title, the crawl overview and an alert.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.Summary) {
	md.H1("Sitemap Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + s.Seed + "`"},
		{"Crawl Date", s.DateCrawled.Format("2006-01-02 15:04:05 MST")},
		{"Pages", strconv.Itoa(s.Pages)},
		{"Links", strconv.Itoa(s.Links)},
		{"Deepest Level", strconv.Itoa(s.DeepestLevel)},
		{"Failures", strconv.Itoa(len(s.Failures))},
		{"Elapsed", s.Elapsed.String()},
		{"Status", statusText(s)},
	}
	if s.CrawlID != "" {
		rows = append(rows, []string{"Crawl ID", "`" + s.CrawlID + "`"})
	}
	if s.OutputDir != "" {
		rows = append(rows, []string{"Output", "`" + s.OutputDir + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case s.Error != "":
		md.Cautionf("Processing failed: %s", s.Error)
	case s.Partial:
		md.Warningf("The crawl stopped early. The sitemap holds %d page(s) found before it stopped.", s.Pages)
	case s.HasFailures():
		md.Importantf("%d page(s) could not be fetched. They appear in the sitemap with no links.", len(s.Failures))
	default:
		md.Tip("Every reachable page within the depth limit was fetched.")
	}
	md.PlainText("")
}

// writeReadability writes band counts and a mermaid pie chart.
func (w *MarkdownWriter) writeReadability(md *markdown.Markdown, s *model.Summary) {
	if s.AnalyzedPages() == 0 {
		return
	}

	md.H2("Readability")
	md.PlainText("")

	rows := make([][]string, 0, len(model.Bands))
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages by Readability"),
		piechart.WithShowData(true),
	)
	for _, band := range model.Bands {
		n := s.Readability[band.String()]
		rows = append(rows, []string{band.String(), band.Interpretation(), strconv.Itoa(n)})
		if n > 0 {
			chart.LabelAndIntValue(band.String(), uint64(n)) //nolint:gosec // n is a positive count
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Band", "Meaning", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeKeywords writes the site-wide keywords.
func (w *MarkdownWriter) writeKeywords(md *markdown.Markdown, s *model.Summary) {
	if len(s.Keywords) == 0 {
		return
	}
	md.H2("Top Keywords")
	md.PlainText("")
	md.BulletList(s.Keywords...)
	md.PlainText("")
}

// writeSEO writes the seed page checklist.
func (w *MarkdownWriter) writeSEO(md *markdown.Markdown, seo *model.SEOResult) {
	md.H2("SEO Checklist")
	md.PlainText("")

	if len(seo.Good) > 0 {
		md.PlainText("**Passed**")
		md.PlainText("")
		md.BulletList(seo.Good...)
		md.PlainText("")
	}
	if len(seo.Bad) > 0 {
		md.PlainText("**Needs work**")
		md.PlainText("")
		md.BulletList(seo.Bad...)
		md.PlainText("")
	}
	if len(seo.Keywords) > 0 {
		rows := make([][]string, len(seo.Keywords))
		for i, kw := range seo.Keywords {
			rows[i] = []string{kw.Word, strconv.Itoa(kw.Count)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Word", "Count"},
			Rows:   rows,
		})
		md.PlainText("")
	}
	if seo.SchemaSuggestion != nil {
		md.Details("Suggested JSON-LD", "```html\n"+*seo.SchemaSuggestion+"\n```")
		md.PlainText("")
	}
}

// writeSitemap writes one row per page with its depth and links.
func (w *MarkdownWriter) writeSitemap(md *markdown.Markdown, report *model.SiteReport) {
	if report.Crawl == nil {
		return
	}

	md.H2("Sitemap")
	md.PlainText("")

	urls := report.Crawl.Sitemap.URLs()
	if len(urls) == 0 {
		md.PlainText("No pages were visited.")
		md.PlainText("")
		return
	}

	shown := urls
	if len(shown) > maxSitemapRows {
		shown = shown[:maxSitemapRows]
	}
	rows := make([][]string, len(shown))
	for i, u := range shown {
		links := report.Crawl.Sitemap[u]
		rows[i] = []string{
			truncateString(u, 80),
			strconv.Itoa(report.Crawl.Depths[u]),
			strconv.Itoa(len(links)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Links"},
		Rows:   rows,
	})
	md.PlainText("")
	if len(urls) > len(shown) {
		md.Note(fmt.Sprintf("Showing %d of %d pages. See sitemap.json for the full list.", len(shown), len(urls)))
		md.PlainText("")
	}
}

// writeFailures writes the failure log.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, s *model.Summary) {
	if !s.HasFailures() {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, len(s.Failures))
	for i, f := range s.Failures {
		rows[i] = []string{
			truncateString(f.URL, 60),
			strconv.Itoa(f.Depth),
			string(f.Kind),
			truncateString(f.Error, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Kind", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitemapper](https://github.com/nao1215/sitemapper)*")
}

// WriteDiff outputs a sitemap diff in Markdown format.
func (w *MarkdownWriter) WriteDiff(diff *model.SitemapDiff) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Sitemap Comparison")
	md.PlainText("")

	addedLinks, removedLinks := diff.LinkChanges()
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + diff.Seed + "`"},
			{"Base", crawlLabel(diff.BaseID, diff.BaseDate.Format("2006-01-02 15:04:05"))},
			{"Target", crawlLabel(diff.TargetID, diff.TargetDate.Format("2006-01-02 15:04:05"))},
			{"Pages Added", strconv.Itoa(len(diff.AddedPages))},
			{"Pages Removed", strconv.Itoa(len(diff.RemovedPages))},
			{"Pages Changed", strconv.Itoa(len(diff.ChangedPages))},
			{"Links Added", strconv.Itoa(addedLinks)},
			{"Links Removed", strconv.Itoa(removedLinks)},
		},
	})
	md.PlainText("")

	if !diff.HasChanges() {
		md.Tip("The sitemaps are identical.")
		return len(md.String()), md.Build()
	}

	if len(diff.AddedPages) > 0 {
		md.H2("Added Pages")
		md.PlainText("")
		md.BulletList(diff.AddedPages...)
		md.PlainText("")
	}
	if len(diff.RemovedPages) > 0 {
		md.H2("Removed Pages")
		md.PlainText("")
		md.BulletList(diff.RemovedPages...)
		md.PlainText("")
	}
	if len(diff.ChangedPages) > 0 {
		md.H2("Changed Pages")
		md.PlainText("")
		rows := make([][]string, len(diff.ChangedPages))
		for i, c := range diff.ChangedPages {
			rows[i] = []string{
				truncateString(c.URL, 60),
				joinOrDash(c.AddedLinks),
				joinOrDash(c.RemovedLinks),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Page", "Added Links", "Removed Links"},
			Rows:   rows,
		})
		md.PlainText("")
	}
	return len(md.String()), md.Build()
}

func crawlLabel(id, date string) string {
	if id == "" {
		return date
	}
	return fmt.Sprintf("%s (`%s`)", date, id)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, "<br>")
}
