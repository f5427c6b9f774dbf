package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/seoaudit/internal/check"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	d := DefaultConfig()
	assert.Equal(t, d.Crawl.MaxDepth, cfg.Crawl.MaxDepth)
	assert.Equal(t, d.Crawl.Timeout, cfg.Crawl.Timeout)
	assert.Equal(t, d.Render.Axe.ScriptURL, cfg.Render.Axe.ScriptURL)
	assert.Equal(t, []string{FormatXLSX}, cfg.Report.Formats)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Crawl.Seeds)
	assert.True(t, cfg.Crawl.RespectRobots)
}

func TestLoadFileAndEnv(t *testing.T) {
	file := writeFile(t, "seoaudit.yaml", `
crawl:
  seeds: ["https://example.com/"]
  max_depth: 2
  timeout: 5s
  exclude_patterns: ["/admin/"]
render:
  enabled: true
  axe:
    enabled: true
    timeout: 10s
lighthouse:
  enabled: true
  strategy: Desktop
checks:
  categories: ["links", "core-web-vitals"]
  exclude: ["navigation_depth"]
report:
  formats: [csv, json]
log:
  level: debug
`)
	t.Setenv("SEOAUDIT_CRAWL_MAX_URLS", "42")
	t.Setenv("SEOAUDIT_LOG_ENCODING", "json")
	t.Setenv("SEOAUDIT_LIGHTHOUSE_API_KEY", "secret")

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/"}, cfg.Crawl.Seeds)
	assert.Equal(t, 2, cfg.Crawl.MaxDepth)
	assert.Equal(t, 42, cfg.Crawl.MaxURLs)
	assert.Equal(t, 5*time.Second, cfg.Crawl.Timeout)
	assert.True(t, cfg.Render.Enabled)
	assert.True(t, cfg.Render.Axe.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Render.Axe.Timeout)
	assert.True(t, cfg.Lighthouse.Enabled)
	assert.Equal(t, StrategyDesktop, cfg.Lighthouse.Strategy)
	assert.Equal(t, "secret", cfg.Lighthouse.APIKey)
	assert.Equal(t, DefaultPageSpeedEndpoint, cfg.Lighthouse.Endpoint)
	assert.Equal(t, []string{FormatCSV, FormatJSON}, cfg.Report.Formats)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Encoding)

	sel, err := cfg.Checks.Selection()
	require.NoError(t, err)
	assert.Equal(t, []check.Category{check.CategoryLinks, check.CategoryCoreWebVitals}, sel.Categories)
	assert.Equal(t, []string{"navigation_depth"}, sel.Exclude)

	assert.False(t, cfg.Crawl.ShouldCrawl("https://example.com/admin/users"))
	assert.True(t, cfg.Crawl.ShouldCrawl("https://example.com/blog"))
}

func TestLoadWithBoundOverride(t *testing.T) {
	v := viper.New()
	v.Set("log.level", "warn")
	cfg, err := LoadWith(v, "")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadPreset(t *testing.T) {
	v := viper.New()
	v.Set("crawl.concurrency", 3)
	cfg, err := LoadPreset(v, "", PresetPolite)
	require.NoError(t, err)
	assert.True(t, cfg.Crawl.RespectNofollow)
	assert.InDelta(t, 1.0, cfg.Crawl.RequestsPerSecond, 0)
	assert.Equal(t, 3, cfg.Crawl.Concurrency)

	_, err = LoadPreset(viper.New(), "", "reckless")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := writeFile(t, "bad.yaml", "report:\n  formats: [pdf]\n")
	_, err = Load(bad)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AuditConfig)
		ok     bool
	}{
		{"defaults", func(*AuditConfig) {}, true},
		{"clamps concurrency", func(c *AuditConfig) { c.Crawl.Concurrency = 0 }, true},
		{"negative depth", func(c *AuditConfig) { c.Crawl.MaxDepth = -1 }, false},
		{"negative rate", func(c *AuditConfig) { c.Crawl.RequestsPerSecond = -1 }, false},
		{"empty user agent", func(c *AuditConfig) { c.Crawl.UserAgent = " " }, false},
		{"bad seed", func(c *AuditConfig) { c.Crawl.Seeds = []string{"ftp://example.com"} }, false},
		{"bad category", func(c *AuditConfig) { c.Checks.Categories = []string{"gossip"} }, false},
		{"bad pattern", func(c *AuditConfig) { c.Crawl.IncludePatterns = []string{"("} }, false},
		{"axe without script", func(c *AuditConfig) {
			c.Render.Axe.Enabled = true
			c.Render.Axe.ScriptURL = ""
		}, false},
		{"lighthouse strategy", func(c *AuditConfig) { c.Lighthouse.Strategy = "tablet" }, false},
		{"lighthouse endpoint", func(c *AuditConfig) {
			c.Lighthouse.Enabled = true
			c.Lighthouse.Endpoint = "localhost:9000"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				require.NoError(t, err)
				assert.GreaterOrEqual(t, c.Crawl.Concurrency, 1)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestShouldCrawlExtensions(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Crawl.CompilePatterns())

	assert.False(t, c.Crawl.ShouldCrawl("https://example.com/files/report.PDF"))
	assert.False(t, c.Crawl.ShouldCrawl("https://example.com/logo.png?v=2"))
	assert.True(t, c.Crawl.ShouldCrawl("https://example.com/docs.html"))
	assert.True(t, c.Crawl.ShouldCrawl("https://example.com"))
	assert.True(t, c.Crawl.ShouldCrawl("https://example.com/v1.2/"))
}

func TestCloneIsDeep(t *testing.T) {
	c := DefaultConfig()
	c.Crawl.Seeds = []string{"https://example.com/"}
	c.Crawl.Headers = map[string]string{"X-Test": "1"}

	clone := c.Clone()
	clone.Crawl.Seeds[0] = "https://other.org/"
	clone.Crawl.Headers["X-Test"] = "2"
	clone.Report.Formats[0] = FormatCSV

	assert.Equal(t, "https://example.com/", c.Crawl.Seeds[0])
	assert.Equal(t, "1", c.Crawl.Headers["X-Test"])
	assert.Equal(t, FormatXLSX, c.Report.Formats[0])
}

func TestPreset(t *testing.T) {
	for _, name := range Presets {
		c, err := Preset(name)
		require.NoError(t, err, name)
		require.NoError(t, c.Validate(), name)
	}

	full, err := Preset(PresetFull)
	require.NoError(t, err)
	assert.True(t, full.Render.Enabled)
	assert.True(t, full.Render.Axe.Enabled)

	_, err = Preset("turbo")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
