// Package crawler discovers the link structure of a website.
//
// # Architecture
//
// A Crawler starts from one seed URL and follows absolute hyperlinks up to a
// maximum depth. Each visit is a task on an unbounded queue drained by a
// fixed number of workers, so a page that yields N links only enqueues N
// tasks and never blocks the worker that found them.
//
// # Components
//
//   - Frontier: the deduplication gate; TryClaim checks and marks a URL in
//     one critical section so no URL is fetched twice
//   - Graph: the concurrent URL to outbound links mapping
//   - HTMLExtractor: pulls absolute http(s) href targets out of a page
//   - workerPool: the task queue and its workers
//   - Crawler: the scheduler tying them together
//
// # Depth
//
// The seed has depth 0. A page at depth d is fetched when d <= maxDepth and
// its links are followed only when d < maxDepth, so maxDepth 0 fetches the
// seed alone.
//
// # Failures
//
// Per-page failures never abort a crawl. The page is recorded with an empty
// link list and a Failure entry is added to the Result. Only invalid
// configuration makes Crawl return an error.
//
// # Usage
//
//	c := crawler.New(fetch.New(fetch.Config{}),
//		crawler.WithMaxDepth(2),
//		crawler.WithMaxThreads(10),
//	)
//	result, err := c.Crawl(ctx, "example.com")
package crawler
