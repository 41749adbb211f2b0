package crawler

import (
	"sort"
	"sync"
)

// Sitemap maps every visited URL to the links found on it, in page order.
// Values may contain duplicates; pages that failed map to an empty list.
type Sitemap map[string][]string

// URLs returns the visited URLs in lexical order.
func (s Sitemap) URLs() []string {
	urls := make([]string, 0, len(s))
	for u := range s {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// LinkCount returns the total number of recorded outbound links.
func (s Sitemap) LinkCount() int {
	n := 0
	for _, links := range s {
		n += len(links)
	}
	return n
}

// Clone returns a deep copy of s.
func (s Sitemap) Clone() Sitemap {
	out := make(Sitemap, len(s))
	for u, links := range s {
		out[u] = append(make([]string, 0, len(links)), links...)
	}
	return out
}

// Graph is the concurrently built Sitemap of one crawl.
type Graph struct {
	mu     sync.RWMutex
	links  map[string][]string
	depths map[string]int
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		links:  make(map[string][]string),
		depths: make(map[string]int),
	}
}

// Record stores the outbound links of url found at depth.
// The slice is copied; a nil slice is stored as empty.
// A second Record for the same URL overwrites the first.
func (g *Graph) Record(url string, depth int, links []string) {
	stored := append(make([]string, 0, len(links)), links...)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.links[url] = stored
	g.depths[url] = depth
}

// Len returns the number of recorded URLs.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.links)
}

// Sitemap returns a deep copy of the recorded links.
func (g *Graph) Sitemap() Sitemap {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Sitemap(g.links).Clone()
}

// Depths returns a copy of the depth at which each URL was recorded.
func (g *Graph) Depths() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]int, len(g.depths))
	for u, d := range g.depths {
		out[u] = d
	}
	return out
}
