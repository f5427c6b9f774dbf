// Package config defines audit configuration and loads it from files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/logger"
	"github.com/spider-crawler/seoaudit/internal/urlutil"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Report formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ReportFormats lists the supported export formats.
var ReportFormats = []string{FormatXLSX, FormatCSV, FormatJSON}

// DefaultAxeScriptURL is the axe-core build injected into rendered pages.
const DefaultAxeScriptURL = "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.8.2/axe.min.js"

// DefaultPageSpeedEndpoint is the PageSpeed Insights v5 API.
const DefaultPageSpeedEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

// Lighthouse strategies.
const (
	StrategyMobile  = "mobile"
	StrategyDesktop = "desktop"
)

// AuditConfig holds all configuration for an audit run.
type AuditConfig struct {
	Crawl      CrawlConfig      `mapstructure:"crawl" json:"crawl"`
	Render     RenderConfig     `mapstructure:"render" json:"render"`
	Lighthouse LighthouseConfig `mapstructure:"lighthouse" json:"lighthouse"`
	Checks     ChecksConfig     `mapstructure:"checks" json:"checks"`
	Execution  ExecutionConfig  `mapstructure:"execution" json:"execution"`
	Storage    StorageConfig    `mapstructure:"storage" json:"storage"`
	Report     ReportConfig     `mapstructure:"report" json:"report"`
	Log        logger.Config    `mapstructure:"log" json:"log"`
}

// CrawlConfig controls discovery.
type CrawlConfig struct {
	// Seed URLs; the first one is the site root.
	Seeds []string `mapstructure:"seeds" json:"seeds"`

	// Maximum link depth from the seeds (0 = seeds only).
	MaxDepth int `mapstructure:"max_depth" json:"max_depth"`

	// Maximum number of pages to fetch (0 = unlimited)
	MaxURLs int `mapstructure:"max_urls" json:"max_urls"`

	Concurrency       int           `mapstructure:"concurrency" json:"concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" json:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout"`
	UserAgent         string        `mapstructure:"user_agent" json:"user_agent"`

	// Treat sibling subdomains as internal
	IncludeSubdomains bool `mapstructure:"include_subdomains" json:"include_subdomains"`

	// Do not follow rel="nofollow" links
	RespectNofollow bool `mapstructure:"respect_nofollow" json:"respect_nofollow"`

	// Skip URLs disallowed by robots.txt
	RespectRobots bool `mapstructure:"respect_robots" json:"respect_robots"`

	// Seed the crawl with the URLs of the site's XML sitemaps
	UseSitemaps bool `mapstructure:"use_sitemaps" json:"use_sitemaps"`

	MaxRedirects    int   `mapstructure:"max_redirects" json:"max_redirects"`
	MaxResponseSize int64 `mapstructure:"max_response_size" json:"max_response_size"`

	IgnoreQueryParams []string          `mapstructure:"ignore_query_params" json:"ignore_query_params"`
	IncludePatterns   []string          `mapstructure:"include_patterns" json:"include_patterns"`
	ExcludePatterns   []string          `mapstructure:"exclude_patterns" json:"exclude_patterns"`
	ExcludeExtensions []string          `mapstructure:"exclude_extensions" json:"exclude_extensions"`
	Headers           map[string]string `mapstructure:"headers" json:"headers,omitempty"`

	compiledIncludes []*regexp.Regexp
	compiledExcludes []*regexp.Regexp
}

// RenderConfig controls headless Chromium.
type RenderConfig struct {
	Enabled      bool          `mapstructure:"enabled" json:"enabled"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
	ChromiumPath string        `mapstructure:"chromium_path" json:"chromium_path"`
	// Extra settle time after the load event so late layout shifts are counted.
	Settle time.Duration `mapstructure:"settle" json:"settle"`
	Axe    AxeConfig     `mapstructure:"axe" json:"axe"`
}

// AxeConfig controls the axe-core accessibility scan.
type AxeConfig struct {
	Enabled   bool          `mapstructure:"enabled" json:"enabled"`
	ScriptURL string        `mapstructure:"script_url" json:"script_url"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
}

// LighthouseConfig controls Lighthouse runs through PageSpeed Insights.
type LighthouseConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Optional; unauthenticated requests share a small public quota
	APIKey   string `mapstructure:"api_key" json:"-"`
	Strategy string `mapstructure:"strategy" json:"strategy"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Bounds one Lighthouse run, API round trip included
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" json:"requests_per_second"`
}

// ChecksConfig selects which checks run. Empty means all.
type ChecksConfig struct {
	Include    []string `mapstructure:"include" json:"include"`
	Categories []string `mapstructure:"categories" json:"categories"`
	Exclude    []string `mapstructure:"exclude" json:"exclude"`
}

// ExecutionConfig controls check execution.
type ExecutionConfig struct {
	// Pages analyzed concurrently
	Workers int `mapstructure:"workers" json:"workers"`
}

// StorageConfig controls persistence.
type StorageConfig struct {
	// SQLite database path; empty disables persistence
	Path string `mapstructure:"path" json:"path"`
	// Entries kept in the in-memory response cache
	CacheSize int `mapstructure:"cache_size" json:"cache_size"`
	// Age after which cached responses are refetched (0 = never reuse)
	CacheTTL time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
}

// ReportConfig controls exports.
type ReportConfig struct {
	Formats   []string `mapstructure:"formats" json:"formats"`
	OutputDir string   `mapstructure:"output_dir" json:"output_dir"`
	BaseName  string   `mapstructure:"base_name" json:"base_name"`
}

// DefaultConfig returns an AuditConfig with sensible defaults.
func DefaultConfig() *AuditConfig {
	return &AuditConfig{
		Crawl: CrawlConfig{
			MaxDepth:          3,
			MaxURLs:           500,
			Concurrency:       5,
			RequestsPerSecond: 10,
			Timeout:           30 * time.Second,
			UserAgent:         "SEOAudit/1.0 (+https://github.com/spider-crawler/seoaudit)",
			IncludeSubdomains: false,
			RespectRobots:     true,
			MaxRedirects:      10,
			MaxResponseSize:   10 * 1024 * 1024,
			IgnoreQueryParams: slices.Clone(urlutil.DefaultTrackingParams),
			ExcludeExtensions: []string{
				".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
				".zip", ".rar", ".tar", ".gz", ".7z",
				".mp3", ".mp4", ".avi", ".mov", ".wmv",
				".jpg", ".jpeg", ".png", ".gif", ".bmp", ".ico", ".svg", ".webp",
				".css", ".js", ".woff", ".woff2", ".ttf", ".eot",
			},
		},
		Render: RenderConfig{
			Enabled: false,
			Timeout: 30 * time.Second,
			Settle:  time.Second,
			Axe: AxeConfig{
				Enabled:   false,
				ScriptURL: DefaultAxeScriptURL,
				Timeout:   30 * time.Second,
			},
		},
		Lighthouse: LighthouseConfig{
			Enabled:           false,
			Strategy:          StrategyMobile,
			Endpoint:          DefaultPageSpeedEndpoint,
			Timeout:           2 * time.Minute,
			RequestsPerSecond: 1,
		},
		Execution: ExecutionConfig{Workers: 4},
		Storage: StorageConfig{
			CacheSize: 256,
			CacheTTL:  24 * time.Hour,
		},
		Report: ReportConfig{
			Formats:   []string{FormatXLSX},
			OutputDir: ".",
			BaseName:  "seo-audit",
		},
		Log: logger.Config{
			Level:       logger.DefaultLevel,
			Encoding:    logger.DefaultEncoding,
			OutputPaths: []string{"stderr"},
		},
	}
}

// Validate clamps out-of-range limits and rejects values that cannot work.
func (c *AuditConfig) Validate() error {
	if c.Crawl.Concurrency < 1 {
		c.Crawl.Concurrency = 1
	}
	if c.Crawl.Timeout < time.Second {
		c.Crawl.Timeout = time.Second
	}
	if c.Crawl.MaxRedirects < 0 {
		c.Crawl.MaxRedirects = 0
	}
	if c.Render.Timeout < time.Second {
		c.Render.Timeout = time.Second
	}
	if c.Render.Axe.Timeout < time.Second {
		c.Render.Axe.Timeout = time.Second
	}
	if c.Lighthouse.Timeout < time.Second {
		c.Lighthouse.Timeout = time.Second
	}
	c.Lighthouse.Strategy = strings.ToLower(c.Lighthouse.Strategy)
	if c.Execution.Workers < 1 {
		c.Execution.Workers = 1
	}

	switch {
	case c.Crawl.MaxDepth < 0:
		return fmt.Errorf("%w: crawl.max_depth must not be negative", ErrInvalidConfig)
	case c.Crawl.MaxURLs < 0:
		return fmt.Errorf("%w: crawl.max_urls must not be negative", ErrInvalidConfig)
	case c.Crawl.RequestsPerSecond < 0:
		return fmt.Errorf("%w: crawl.requests_per_second must not be negative", ErrInvalidConfig)
	case strings.TrimSpace(c.Crawl.UserAgent) == "":
		return fmt.Errorf("%w: crawl.user_agent is empty", ErrInvalidConfig)
	case c.Render.Axe.Enabled && c.Render.Axe.ScriptURL == "":
		return fmt.Errorf("%w: render.axe.script_url is empty", ErrInvalidConfig)
	case c.Lighthouse.Enabled && !urlutil.IsHTTP(c.Lighthouse.Endpoint):
		return fmt.Errorf("%w: lighthouse.endpoint %q is not an http(s) URL", ErrInvalidConfig, c.Lighthouse.Endpoint)
	case c.Lighthouse.Strategy != StrategyMobile && c.Lighthouse.Strategy != StrategyDesktop:
		return fmt.Errorf("%w: unknown lighthouse.strategy %q", ErrInvalidConfig, c.Lighthouse.Strategy)
	case c.Lighthouse.RequestsPerSecond < 0:
		return fmt.Errorf("%w: lighthouse.requests_per_second must not be negative", ErrInvalidConfig)
	}

	for _, seed := range c.Crawl.Seeds {
		if !urlutil.IsHTTP(seed) {
			return fmt.Errorf("%w: seed %q is not an http(s) URL", ErrInvalidConfig, seed)
		}
	}
	for _, f := range c.Report.Formats {
		if !slices.Contains(ReportFormats, strings.ToLower(f)) {
			return fmt.Errorf("%w: unknown report format %q", ErrInvalidConfig, f)
		}
	}
	if _, err := c.Checks.Selection(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Crawl.CompilePatterns(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Selection converts the checks section into an executor selection.
func (c ChecksConfig) Selection() (check.Selection, error) {
	sel := check.Selection{
		IDs:     slices.Clone(c.Include),
		Exclude: slices.Clone(c.Exclude),
	}
	for _, name := range c.Categories {
		cat, err := check.ParseCategory(name)
		if err != nil {
			return check.Selection{}, fmt.Errorf("checks.categories: %w", err)
		}
		sel.Categories = append(sel.Categories, cat)
	}
	return sel, nil
}

// CompilePatterns compiles include/exclude regex patterns.
func (c *CrawlConfig) CompilePatterns() error {
	c.compiledIncludes = make([]*regexp.Regexp, 0, len(c.IncludePatterns))
	c.compiledExcludes = make([]*regexp.Regexp, 0, len(c.ExcludePatterns))

	for _, pattern := range c.IncludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid include pattern '%s': %w", pattern, err)
		}
		c.compiledIncludes = append(c.compiledIncludes, re)
	}
	for _, pattern := range c.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		c.compiledExcludes = append(c.compiledExcludes, re)
	}
	return nil
}

// ShouldCrawl applies the include/exclude patterns and the extension filter.
// CompilePatterns must have run.
func (c *CrawlConfig) ShouldCrawl(rawURL string) bool {
	if c.IsExtensionExcluded(extension(rawURL)) {
		return false
	}
	for _, re := range c.compiledExcludes {
		if re.MatchString(rawURL) {
			return false
		}
	}
	if len(c.compiledIncludes) == 0 {
		return true
	}
	for _, re := range c.compiledIncludes {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// IsExtensionExcluded checks if a file extension should be skipped.
func (c *CrawlConfig) IsExtensionExcluded(ext string) bool {
	if ext == "" {
		return false
	}
	return slices.Contains(c.ExcludeExtensions, strings.ToLower(ext))
}

func extension(rawURL string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
		if j := strings.IndexByte(p, '/'); j >= 0 {
			p = p[j:]
		} else {
			return ""
		}
	}
	return path.Ext(p)
}

// Clone creates a deep copy of the configuration.
func (c *AuditConfig) Clone() *AuditConfig {
	clone := *c

	clone.Crawl.Seeds = slices.Clone(c.Crawl.Seeds)
	clone.Crawl.IgnoreQueryParams = slices.Clone(c.Crawl.IgnoreQueryParams)
	clone.Crawl.IncludePatterns = slices.Clone(c.Crawl.IncludePatterns)
	clone.Crawl.ExcludePatterns = slices.Clone(c.Crawl.ExcludePatterns)
	clone.Crawl.ExcludeExtensions = slices.Clone(c.Crawl.ExcludeExtensions)
	clone.Crawl.compiledIncludes = slices.Clone(c.Crawl.compiledIncludes)
	clone.Crawl.compiledExcludes = slices.Clone(c.Crawl.compiledExcludes)
	if c.Crawl.Headers != nil {
		clone.Crawl.Headers = make(map[string]string, len(c.Crawl.Headers))
		for k, v := range c.Crawl.Headers {
			clone.Crawl.Headers[k] = v
		}
	}

	clone.Checks.Include = slices.Clone(c.Checks.Include)
	clone.Checks.Categories = slices.Clone(c.Checks.Categories)
	clone.Checks.Exclude = slices.Clone(c.Checks.Exclude)
	clone.Report.Formats = slices.Clone(c.Report.Formats)
	clone.Log.OutputPaths = slices.Clone(c.Log.OutputPaths)

	return &clone
}

// Preset names.
const (
	PresetDefault = "default"
	PresetFast    = "fast"
	PresetPolite  = "polite"
	PresetFull    = "full"
)

// Presets lists the preset names accepted by Preset.
var Presets = []string{PresetDefault, PresetFast, PresetPolite, PresetFull}

// Preset returns the defaults adjusted for a common audit scenario.
func Preset(name string) (*AuditConfig, error) {
	c := DefaultConfig()
	switch strings.ToLower(name) {
	case "", PresetDefault:
	case PresetFast:
		c.Crawl.Concurrency = 20
		c.Crawl.RequestsPerSecond = 50
		c.Crawl.Timeout = 10 * time.Second
		c.Execution.Workers = 16
	case PresetPolite:
		c.Crawl.Concurrency = 2
		c.Crawl.RequestsPerSecond = 1
		c.Crawl.Timeout = 60 * time.Second
		c.Crawl.RespectNofollow = true
	case PresetFull:
		c.Crawl.MaxDepth = 5
		c.Crawl.MaxURLs = 0
		c.Render.Enabled = true
		c.Render.Axe.Enabled = true
		c.Crawl.UseSitemaps = true
		c.Report.Formats = []string{FormatXLSX, FormatCSV, FormatJSON}
	default:
		return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
	return c, nil
}
