package urlnorm

import (
	"errors"
	"net/url"
	"strings"
)

// KeyPolicy decides which URL strings are considered the same page when
// deduplicating a crawl. It never changes the URLs recorded in a sitemap.
type KeyPolicy string

const (
	// PolicyExact compares URLs byte for byte.
	PolicyExact KeyPolicy = "exact"

	// PolicyLenient lower-cases scheme and host, drops the default port,
	// the fragment and a trailing slash, and sorts query parameters.
	PolicyLenient KeyPolicy = "lenient"
)

// ErrUnknownKeyPolicy is returned by ParseKeyPolicy for unsupported names.
var ErrUnknownKeyPolicy = errors.New("unknown key policy: must be 'exact' or 'lenient'")

// ParseKeyPolicy converts a configuration string into a KeyPolicy.
// The empty string selects PolicyExact.
func ParseKeyPolicy(s string) (KeyPolicy, error) {
	switch KeyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyExact:
		return PolicyExact, nil
	case PolicyLenient:
		return PolicyLenient, nil
	default:
		return "", ErrUnknownKeyPolicy
	}
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Key returns the deduplication key of rawURL under the policy.
func (p KeyPolicy) Key(rawURL string) string {
	if p != PolicyLenient {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if port := u.Port(); port == defaultPorts[u.Scheme] {
		u.Host = strings.TrimSuffix(u.Host, ":"+port)
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	return u.String()
}
