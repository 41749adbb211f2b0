// Package urlnorm turns user supplied seeds into fetchable absolute URLs and
// derives the keys used for crawl deduplication.
package urlnorm

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds the reachability probe issued for bare hosts.
const DefaultProbeTimeout = 5 * time.Second

// Prober checks whether a URL answers at all.
// Any HTTP response, whatever its status, counts as reachable; only
// transport failures are reported as errors.
type Prober interface {
	Probe(ctx context.Context, rawURL string, timeout time.Duration) error
}

// Normalizer canonicalizes raw seed strings.
type Normalizer struct {
	prober  Prober
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithProbeTimeout sets the timeout of the HTTPS reachability probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(n *Normalizer) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithLogger sets the logger used to report probe fallbacks.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// New creates a Normalizer. A nil prober disables probing, in which case
// bare hosts always fall back to http://.
func New(prober Prober, opts ...Option) *Normalizer {
	n := &Normalizer{
		prober:  prober,
		timeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

// Normalize returns raw unchanged when it already starts with http:// or
// https://. Otherwise it probes the https:// form and returns it when the
// host answers, falling back to http:// on any failure. It never fails.
func (n *Normalizer) Normalize(ctx context.Context, raw string) string {
	raw = strings.TrimSpace(raw)
	if HasScheme(raw) {
		return raw
	}

	secure := "https://" + raw
	if n.prober == nil {
		return "http://" + raw
	}

	if err := n.prober.Probe(ctx, secure, n.timeout); err != nil {
		n.logger.Debug("https probe failed, falling back to http",
			"host", raw,
			"error", err,
		)
		return "http://" + raw
	}
	return secure
}

// HasScheme reports whether s starts with a recognized http(s) scheme.
// The comparison ignores the case of the scheme.
func HasScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
