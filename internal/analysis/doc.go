// Package analysis inspects the pages of a crawled sitemap.
//
// Each Analyzer examines one parsed Page and fills part of a
// model.PageAnalysis:
//   - OrganizationAnalyzer: headings, sections, JSON-LD detection and an
//     Article JSON-LD suggestion when none is present
//   - OptimizationAnalyzer: title, meta description, meta keywords, h1
//     texts and the site-wide keywords the page mentions
//   - ReadabilityAnalyzer: Flesch reading ease and its band
//
// Corpus-level work happens in Runner: keywords are ranked by TF-IDF across
// all pages, and the SEO checklist runs on the seed page only.
//
// Runner takes page bodies from a PageStore filled during the crawl and
// fetches only what is missing. A page that cannot be loaded is skipped and
// logged, never fatal.
package analysis
