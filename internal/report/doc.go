// Package report renders and persists crawl results.
//
// Writers implement the Writer interface:
//   - SimpleWriter: plain text for terminals
//   - JSONWriter and FullJSONWriter: JSON for tools
//   - MarkdownWriter: Markdown with a mermaid readability chart
//
// The same writers render a model.SitemapDiff through DiffWriter.
//
// Persister writes the on-disk layout of one crawl: the sitemap, the
// per-page analysis files and the aggregated analysis files.
package report
