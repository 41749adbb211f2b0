package crawler

import "time"

// FailureKind classifies why a page produced no links.
type FailureKind string

const (
	// FailureNetwork covers timeouts and connection failures.
	FailureNetwork FailureKind = "network"

	// FailureHTTPStatus means the server answered with a non-2xx status.
	FailureHTTPStatus FailureKind = "http_status"

	// FailureParse means the body could not be read or parsed.
	FailureParse FailureKind = "parse"

	// FailureCanceled means the crawl was stopped while the page was in flight.
	FailureCanceled FailureKind = "canceled"

	// FailureInternal means visiting the page panicked.
	FailureInternal FailureKind = "internal"
)

// Failure describes one page that could not be fetched or parsed.
type Failure struct {
	URL        string      `json:"url"`
	Depth      int         `json:"depth"`
	Kind       FailureKind `json:"kind"`
	Detail     string      `json:"detail,omitempty"`
	StatusCode int         `json:"status_code,omitempty"`
	Error      string      `json:"error"`
}

// Stats summarizes the work done by one crawl.
type Stats struct {
	// Claimed is the number of distinct URLs that passed the frontier.
	Claimed int `json:"claimed"`

	// Fetched is the number of successful fetches.
	Fetched int `json:"fetched"`

	// Failed is the number of pages that ended in a Failure.
	Failed int `json:"failed"`

	// MaxInFlight is the highest number of simultaneous fetches observed.
	MaxInFlight int `json:"max_in_flight"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Result is the outcome of a crawl. It is not modified after Crawl returns.
type Result struct {
	// Seed is the normalized seed URL.
	Seed string `json:"seed"`

	// Sitemap maps each visited URL to its outbound links.
	Sitemap Sitemap `json:"sitemap"`

	// Depths holds the depth at which each Sitemap key was visited.
	Depths map[string]int `json:"depths"`

	// Failures lists the pages that failed, sorted by URL.
	Failures []Failure `json:"failures"`

	// Partial is set when the budget, cancellation or the page limit
	// stopped the crawl before the site was fully explored.
	Partial bool `json:"partial"`

	Stats Stats `json:"stats"`
}

// FailureCount returns the number of failed pages.
func (r *Result) FailureCount() int {
	return len(r.Failures)
}

// Complete reports whether every reachable page within the depth limit was
// fetched without failure.
func (r *Result) Complete() bool {
	return !r.Partial && len(r.Failures) == 0
}
