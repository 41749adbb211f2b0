// Package model defines the data structures shared by the analysis,
// report, database and pipeline packages.
//
// The main types are:
//   - SiteReport: everything produced for one seed URL
//   - Summary: a condensed SiteReport for terminal output
//   - SiteAnalysis and PageAnalysis: content analysis results
//   - ReadabilityBand: Flesch reading-ease bands
//   - SitemapDiff: the difference between two stored crawls
//
// Keeping these types in their own package lets the producers and the
// consumers import them without importing each other.
package model
