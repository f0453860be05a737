package config

import (
	"fmt"
	"time"

	"github.com/Sriram-PR/statifier/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// NumWorkers
	if c.NumWorkers <= 0 {
		warnings = append(warnings, "num_workers should be > 0, defaulting to 100")
		c.NumWorkers = 100
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost <= 0 {
		warnings = append(warnings, fmt.Sprintf(
			"max_requests_per_host should be > 0, defaulting to num_workers (%d)", c.NumWorkers))
		c.MaxRequestsPerHost = c.NumWorkers
	}

	// RequestDelay
	if c.RequestDelay < 0 {
		warnings = append(warnings, "request_delay cannot be negative, setting to 0")
		c.RequestDelay = 0
	} else if c.RequestDelay == 0 {
		c.RequestDelay = 10 * time.Millisecond
	}

	// FetchTimeout is mandatory
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Minute
	}

	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 30
	}

	if c.StatsInterval <= 0 {
		c.StatsInterval = 30 * time.Second
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './statifier_state'")
		c.StateDir = "./statifier_state"
	}

	if c.ProgressCounterFile == "" {
		c.ProgressCounterFile = c.StateDir + "/crawler_progress_counter"
	}
	if c.CrawlLogFile == "" {
		c.CrawlLogFile = c.StateDir + "/crawl.log"
	}
	if c.LockFile == "" {
		c.LockFile = c.StateDir + "/statifier.lock"
	}

	// Dedup mode and bloom sizing
	switch c.DedupMode {
	case "":
		c.DedupMode = "memory"
	case "memory", "bloom":
	default:
		return warnings, fmt.Errorf("%w: dedup_mode must be 'memory' or 'bloom', got '%s'", utils.ErrConfigValidation, c.DedupMode)
	}
	if c.BloomCapacity == 0 {
		c.BloomCapacity = 2_000_000
	}
	if c.BloomFalsePositive <= 0 || c.BloomFalsePositive >= 1 {
		if c.BloomFalsePositive != 0 {
			warnings = append(warnings, "bloom_false_positive must be in (0,1), defaulting to 0.00001")
		}
		c.BloomFalsePositive = 0.00001
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	siteWarnings, err := c.Site.Validate()
	warnings = append(warnings, siteWarnings...)
	if err != nil {
		return warnings, err
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = c.FetchTimeout
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 10
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks SiteConfig fields and applies defaults.
// Missing seeds, domains or output directory are reported as warnings here; the
// crawl engine refuses to start on them.
func (c *SiteConfig) Validate() (warnings []string, err error) {
	if len(c.SeedURLs()) == 0 {
		warnings = append(warnings, "site has no urls")
	}
	if len(c.AllowedDomains()) == 0 {
		warnings = append(warnings, "site has no domains")
	}
	if c.OutputDir == "" {
		warnings = append(warnings, "site has no output_dir")
	}

	if c.DefaultIndex == "" {
		c.DefaultIndex = "index.html"
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = "fr"
	}

	if _, err := utils.CompileRewritePattern(c.URLRegex); err != nil {
		return warnings, err
	}
	if c.URLRegex == "" && c.URLReplacement != "" {
		warnings = append(warnings, "url_replacement is set but url_regex is empty, no rewrite will happen")
	}

	return warnings, nil
}
