package analysis

import "sync"

// PageStore keeps the bodies fetched during a crawl so analysis does not
// download them again. It implements crawler.PageSink.
type PageStore struct {
	mu    sync.RWMutex
	pages map[string]string
}

// NewPageStore creates an empty PageStore.
func NewPageStore() *PageStore {
	return &PageStore{pages: make(map[string]string)}
}

// StorePage records body for url. A later call for the same url wins.
func (s *PageStore) StorePage(url string, _ int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = body
}

// Body returns the stored body of url.
func (s *PageStore) Body(url string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.pages[url]
	return body, ok
}

// Len returns the number of stored pages.
func (s *PageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}
