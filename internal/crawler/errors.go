package crawler

import "errors"

// Configuration errors returned by Crawl before any page is fetched.
var (
	// ErrInvalidDepth is returned when the maximum depth is negative.
	ErrInvalidDepth = errors.New("max depth must be zero or greater")

	// ErrInvalidThreads is returned when fewer than one worker is requested.
	ErrInvalidThreads = errors.New("max threads must be at least 1")

	// ErrInvalidTimeout is returned for a negative fetch timeout or budget.
	ErrInvalidTimeout = errors.New("timeout must not be negative")

	// ErrEmptySeed is returned when the seed URL is blank.
	ErrEmptySeed = errors.New("seed URL is empty")

	// ErrNilFetcher is returned when the Crawler has no Fetcher.
	ErrNilFetcher = errors.New("fetcher is nil")
)
