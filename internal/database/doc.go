// Package database stores crawl history in SQLite.
//
// Every crawl gets a row in crawls, keyed by a UUID, holding its settings,
// counters and the complete sitemap as JSON. The pages table keeps one row
// per sitemap entry with its depth, whether the fetch succeeded, how many
// links it had and a SHA3-256 hash of the body, so two crawls of a seed can
// be compared without keeping page contents.
//
// The driver is modernc.org/sqlite, which needs no cgo. The database lives in
// a single file (sitemapper.db) and runs in WAL mode.
package database
