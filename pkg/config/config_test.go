package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestSiteConfig_CommaLists(t *testing.T) {
	site := SiteConfig{
		URLs:              "http://www.example.com/, http://www.example.com/news.rss",
		Domains:           "www.example.com,example.com",
		DeleteFiles:       "",
		DeleteDirectories: " tmp , cache ",
	}
	assert.Equal(t, []string{"http://www.example.com/", "http://www.example.com/news.rss"}, site.SeedURLs())
	assert.Equal(t, []string{"www.example.com", "example.com"}, site.AllowedDomains())
	assert.Empty(t, site.FilesToDelete())
	assert.Equal(t, []string{"tmp", "cache"}, site.DirectoriesToDelete())
}

func TestGetEffectiveUserAgent(t *testing.T) {
	tests := []struct {
		name string
		site SiteConfig
		app  AppConfig
		want string
	}{
		{"site overrides", SiteConfig{UserAgent: "site"}, AppConfig{DefaultUserAgent: "app"}, "site"},
		{"app fallback", SiteConfig{}, AppConfig{DefaultUserAgent: "app"}, "app"},
		{"hardcoded default", SiteConfig{}, AppConfig{}, "statifier/1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetEffectiveUserAgent(tt.site, tt.app))
		})
	}
}

func TestAppConfig_YAMLDecode(t *testing.T) {
	raw := `
num_workers: 12
request_delay: 50ms
fetch_timeout: 2m
state_dir: /var/lib/statifier
site:
  urls: http://web/
  domains: web
  url_regex: (https?://)?web(.example.com/?)?
  url_replacement: /
  output_dir: /srv/mirror
`
	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	assert.Equal(t, 12, cfg.NumWorkers)
	assert.Equal(t, "50ms", cfg.RequestDelay.String())
	assert.Equal(t, "/srv/mirror", cfg.Site.OutputDir)
	assert.Equal(t, []string{"http://web/"}, cfg.Site.SeedURLs())
	assert.Equal(t, "/", cfg.Site.URLReplacement)
}
