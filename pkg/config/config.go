package config

import (
	"time"

	"github.com/Sriram-PR/statifier/pkg/utils"
)

// SiteConfig holds the parameters of one statification crawl
type SiteConfig struct {
	URLs              string `yaml:"urls"`                         // Comma-separated seed URLs
	Domains           string `yaml:"domains"`                      // Comma-separated domain allow-list
	URLRegex          string `yaml:"url_regex,omitempty"`          // Pattern rewritten in textual content (case-insensitive)
	URLReplacement    string `yaml:"url_replacement,omitempty"`    // Literal replacement for URLRegex matches
	OutputDir         string `yaml:"output_dir"`                   // Mirror root (the snapshot repository)
	DeleteFiles       string `yaml:"delete_files,omitempty"`       // Comma-separated files removed after a successful crawl
	DeleteDirectories string `yaml:"delete_directories,omitempty"` // Comma-separated directories removed after a successful crawl
	DefaultIndex      string `yaml:"default_index,omitempty"`      // File name used for directory-like paths
	UserAgent         string `yaml:"user_agent,omitempty"`
	AcceptLanguage    string `yaml:"accept_language,omitempty"`
	SkipExternal      bool   `yaml:"skip_external,omitempty"` // Record external links without fetching them
}

// AppConfig holds the global application configuration
type AppConfig struct {
	NumWorkers          int              `yaml:"num_workers"`
	MaxRequestsPerHost  int              `yaml:"max_requests_per_host"`
	RequestDelay        time.Duration    `yaml:"request_delay"`
	FetchTimeout        time.Duration    `yaml:"fetch_timeout,omitempty"`
	MaxBodyBytes        int64            `yaml:"max_body_bytes,omitempty"` // Responses larger than this are cut off
	StatsInterval       time.Duration    `yaml:"stats_interval,omitempty"`
	DefaultUserAgent    string           `yaml:"default_user_agent"`
	StateDir            string           `yaml:"state_dir"`
	ProgressCounterFile string           `yaml:"progress_counter_file"`
	CrawlLogFile        string           `yaml:"crawl_log_file"`
	LockFile            string           `yaml:"lock_file"`
	DedupMode           string           `yaml:"dedup_mode,omitempty"`           // "memory" (exact) or "bloom"
	BloomCapacity       uint             `yaml:"bloom_capacity,omitempty"`       // Expected fingerprint count for bloom mode
	BloomFalsePositive  float64          `yaml:"bloom_false_positive,omitempty"` // Target false-positive rate for bloom mode
	HTTPClientSettings  HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	Site                SiteConfig       `yaml:"site"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// SeedURLs returns the configured seed URLs in order
func (c SiteConfig) SeedURLs() []string {
	return utils.SplitCommaList(c.URLs)
}

// AllowedDomains returns the configured domain allow-list
func (c SiteConfig) AllowedDomains() []string {
	return utils.SplitCommaList(c.Domains)
}

// FilesToDelete returns the post-crawl file deletion list
func (c SiteConfig) FilesToDelete() []string {
	return utils.SplitCommaList(c.DeleteFiles)
}

// DirectoriesToDelete returns the post-crawl directory deletion list
func (c SiteConfig) DirectoriesToDelete() []string {
	return utils.SplitCommaList(c.DeleteDirectories)
}

// GetEffectiveUserAgent determines the user agent sent with every request
func GetEffectiveUserAgent(siteCfg SiteConfig, appCfg AppConfig) string {
	if siteCfg.UserAgent != "" {
		return siteCfg.UserAgent
	}
	if appCfg.DefaultUserAgent != "" {
		return appCfg.DefaultUserAgent
	}
	return "statifier/1.0"
}
