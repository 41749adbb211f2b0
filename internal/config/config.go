package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitemapper/internal/urlnorm"
)

// Default configuration values.
const (
	// AppName is used for XDG directory paths.
	AppName = "sitemapper"

	// DefaultCrawlDepth is the number of hops followed from each seed.
	DefaultCrawlDepth = 2

	// DefaultThreads is the number of concurrent fetches per crawl.
	DefaultThreads = 10

	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 20 * time.Second

	// DefaultProbeTimeout bounds the HTTPS probe for seeds without a scheme.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultAnalysisTimeout bounds fetches issued by the analyzers for
	// pages the crawl did not keep.
	DefaultAnalysisTimeout = 10 * time.Second

	// DefaultBatchSize is the number of seeds crawled at the same time.
	DefaultBatchSize = 1

	// DefaultUserAgent is the desktop browser string sent with requests.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

	// DefaultMaxBodySize limits how much of a response is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultKeyPolicy compares URLs byte for byte.
	DefaultKeyPolicy = string(urlnorm.PolicyExact)

	// DefaultTorStartupTimeout is the time allowed for the embedded Tor
	// daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all options of one sitemapper invocation.
// It is filled from defaults, environment and CLI flags and then passed
// down explicitly; nothing reads it from global state.
type Config struct {
	// Targets are the seed URLs or bare host names to crawl.
	Targets []string

	// CrawlDepth is the maximum hop distance from the seed.
	// 0 fetches the seed only.
	CrawlDepth int

	// Threads is the number of concurrent fetches of one crawl.
	Threads int

	// Timeout bounds each page fetch.
	Timeout time.Duration

	// ProbeTimeout bounds the HTTPS reachability probe of bare hosts.
	ProbeTimeout time.Duration

	// AnalysisTimeout bounds the fetches made by the analyzers.
	AnalysisTimeout time.Duration

	// Budget is an optional wall-clock limit for each crawl. Zero disables it.
	Budget time.Duration

	// CrawlDelay is the minimum interval between two requests of a crawl.
	CrawlDelay time.Duration

	// MaxPages caps the pages of one crawl. Zero means no cap.
	MaxPages int

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize is the largest response body read, in bytes.
	MaxBodySize int64

	// KeyPolicy selects URL deduplication: "exact" or "lenient".
	KeyPolicy string

	// ConfigFilePath is an explicit path to the YAML config file.
	ConfigFilePath string

	// SiteConfigs is the loaded config file, nil when none was found.
	SiteConfigs *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output.
	MarkdownReport bool

	// ReportFile is written instead of stdout when set.
	ReportFile string

	// OutputDir receives the per-seed sitemap and analysis directories.
	// Empty disables writing them.
	OutputDir string

	// NoAnalysis skips the content analyzers.
	NoAnalysis bool

	// DBDir is the directory of the history database.
	DBDir string

	// SaveToDB records crawls in the history database.
	SaveToDB bool

	// ProxyAddress routes fetches through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes fetches through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded daemon bootstrap.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// Explicit records which per-site settings the user pinned on the
	// command line; those win over the config file.
	Explicit Explicit
}

// Explicit marks settings given as command line flags.
type Explicit struct {
	Depth     bool
	Threads   bool
	KeyPolicy bool
}

// NewConfig returns a Config holding the defaults.
func NewConfig() *Config {
	return &Config{
		CrawlDepth:        DefaultCrawlDepth,
		Threads:           DefaultThreads,
		Timeout:           DefaultTimeout,
		ProbeTimeout:      DefaultProbeTimeout,
		AnalysisTimeout:   DefaultAnalysisTimeout,
		BatchSize:         DefaultBatchSize,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		KeyPolicy:         DefaultKeyPolicy,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/sitemapper.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/sitemapper.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate reports the first invalid setting. It is called once, before
// any network activity.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.CrawlDepth < 0 {
		return ErrInvalidDepth
	}
	if c.Threads < 1 {
		return ErrInvalidThreads
	}
	if c.Timeout <= 0 || c.ProbeTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Budget < 0 {
		return ErrInvalidBudget
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if _, err := urlnorm.ParseKeyPolicy(c.KeyPolicy); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidKeyPolicy, c.KeyPolicy)
	}
	if c.ProxyAddress != "" && c.UseTor {
		return ErrConflictingProxy
	}
	if c.SiteConfigs != nil {
		if err := c.SiteConfigs.Validate(); err != nil {
			return err
		}
	}
	return nil
}
