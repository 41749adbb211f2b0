package crawler

import (
	"sync"

	"github.com/nao1215/sitemapper/internal/urlnorm"
)

// Frontier records which URLs have been claimed for fetching.
// It is the only deduplication gate of a crawl.
//
// Design decision: TryClaim checks and records a URL under one lock, so
// two workers that discover the same link at the same time cannot both
// fetch it. Keys come from the urlnorm.KeyPolicy while the sitemap keeps
// the URL as it was found.
type Frontier struct {
	mu      sync.Mutex
	claimed map[string]struct{}
	policy  urlnorm.KeyPolicy
	limit   int
	refused bool
}

// NewFrontier creates an empty Frontier. A positive limit caps the number
// of URLs that can ever be claimed.
func NewFrontier(policy urlnorm.KeyPolicy, limit int) *Frontier {
	return &Frontier{
		claimed: make(map[string]struct{}),
		policy:  policy,
		limit:   limit,
	}
}

// TryClaim returns true exactly once per URL key across all goroutines.
// The lookup and the insertion happen under the same lock.
func (f *Frontier) TryClaim(rawURL string) bool {
	key := f.policy.Key(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.claimed[key]; ok {
		return false
	}
	if f.limit > 0 && len(f.claimed) >= f.limit {
		f.refused = true
		return false
	}
	f.claimed[key] = struct{}{}
	return true
}

// Claimed reports whether rawURL has already been claimed.
func (f *Frontier) Claimed(rawURL string) bool {
	key := f.policy.Key(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.claimed[key]
	return ok
}

// Len returns the number of claimed URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.claimed)
}

// LimitReached reports whether a claim was refused because of the limit.
func (f *Frontier) LimitReached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refused
}
