package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment variable read by ApplyEnv.
const EnvPrefix = "SITEMAPPER"

// env lists the SITEMAPPER_* variables, e.g. SITEMAPPER_USER_AGENT.
// Unset variables stay nil.
type env struct {
	Depth     *int           `split_words:"true"`
	Threads   *int           `split_words:"true"`
	Timeout   *time.Duration `split_words:"true"`
	UserAgent *string        `split_words:"true"`
	OutputDir *string        `split_words:"true"`
	DBDir     *string        `split_words:"true"`
	Proxy     *string        `split_words:"true"`
	KeyPolicy *string        `split_words:"true"`
}

// ApplyEnv overrides c with the SITEMAPPER_* variables that are set.
func (c *Config) ApplyEnv() error {
	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if e.Depth != nil {
		c.CrawlDepth = *e.Depth
	}
	if e.Threads != nil {
		c.Threads = *e.Threads
	}
	if e.Timeout != nil {
		c.Timeout = *e.Timeout
	}
	if e.UserAgent != nil {
		c.UserAgent = *e.UserAgent
	}
	if e.OutputDir != nil {
		c.OutputDir = *e.OutputDir
	}
	if e.DBDir != nil {
		c.DBDir = *e.DBDir
	}
	if e.Proxy != nil {
		c.ProxyAddress = *e.Proxy
	}
	if e.KeyPolicy != nil {
		c.KeyPolicy = *e.KeyPolicy
	}
	return nil
}
