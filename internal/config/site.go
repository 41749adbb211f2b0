package config

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/nao1215/sitemapper/internal/urlnorm"
)

// SiteConfig holds the settings of one site in the config file.
type SiteConfig struct {
	// Cookie is sent with every request to the site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the crawl depth. Nil keeps the global value.
	Depth *int `yaml:"depth,omitempty"`

	// Threads overrides the number of workers. Nil keeps the global value.
	Threads *int `yaml:"threads,omitempty"`

	// KeyPolicy overrides URL deduplication ("exact" or "lenient").
	KeyPolicy string `yaml:"keyPolicy,omitempty"`

	// IgnorePatterns are glob patterns of URL paths never followed.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, restrict following to matching paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File is the structure of the .sitemapper configuration file.
type File struct {
	// Sites maps a host name (e.g. "example.com") to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless the site overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// Validate checks the defaults and every site entry. Errors name the
// offending section and wrap the same sentinels as Config.Validate.
func (cf *File) Validate() error {
	if err := cf.Defaults.validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for _, host := range slices.Sorted(maps.Keys(cf.Sites)) {
		site := cf.Sites[host]
		if err := site.validate(); err != nil {
			return fmt.Errorf("site %q: %w", host, err)
		}
	}
	return nil
}

func (sc SiteConfig) validate() error {
	if sc.Depth != nil && *sc.Depth < 0 {
		return ErrInvalidDepth
	}
	if sc.Threads != nil && *sc.Threads < 1 {
		return ErrInvalidThreads
	}
	if sc.KeyPolicy != "" {
		if _, err := urlnorm.ParseKeyPolicy(sc.KeyPolicy); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidKeyPolicy, sc.KeyPolicy)
		}
	}
	return nil
}

// GetSiteConfig merges the entry for host over the defaults.
// The returned value shares no maps or slices with cf.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.Depth != nil {
		result.Depth = site.Depth
	}
	if site.Threads != nil {
		result.Threads = site.Threads
	}
	if site.KeyPolicy != "" {
		result.KeyPolicy = site.KeyPolicy
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}

// Settings are the effective crawl settings of one target.
type Settings struct {
	Depth          int
	Threads        int
	KeyPolicy      urlnorm.KeyPolicy
	Cookie         string
	Headers        map[string]string
	IgnorePatterns []string
	FollowPatterns []string
}

// SettingsFor resolves the settings of target: the config file entry for
// its host overrides the global values unless the user pinned them with a
// flag. Validate must have succeeded before calling it.
func (c *Config) SettingsFor(target string) Settings {
	s := Settings{
		Depth:   c.CrawlDepth,
		Threads: c.Threads,
	}
	policy := c.KeyPolicy

	if c.SiteConfigs != nil {
		site := c.SiteConfigs.GetSiteConfig(SiteKey(target))
		s.Cookie = site.Cookie
		s.Headers = site.Headers
		s.IgnorePatterns = site.IgnorePatterns
		s.FollowPatterns = site.FollowPatterns
		if site.Depth != nil && !c.Explicit.Depth {
			s.Depth = *site.Depth
		}
		if site.Threads != nil && !c.Explicit.Threads {
			s.Threads = *site.Threads
		}
		if site.KeyPolicy != "" && !c.Explicit.KeyPolicy {
			policy = site.KeyPolicy
		}
	}

	kp, err := urlnorm.ParseKeyPolicy(policy)
	if err != nil {
		kp = urlnorm.PolicyExact
	}
	s.KeyPolicy = kp
	return s
}

// SiteKey returns the lower-cased host of target, which may or may not
// carry a scheme. It is the key of File.Sites.
func SiteKey(target string) string {
	target = strings.TrimSpace(target)
	if !urlnorm.HasScheme(target) {
		target = "http://" + target
	}
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(target)
	}
	return strings.ToLower(u.Hostname())
}
