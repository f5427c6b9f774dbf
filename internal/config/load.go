package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SEOAUDIT_CRAWL_MAX_DEPTH.
const EnvPrefix = "SEOAUDIT"

// Load reads configuration from file (optional), SEOAUDIT_* environment
// variables and the defaults, in decreasing precedence.
func Load(file string) (*AuditConfig, error) {
	return LoadWith(viper.New(), file)
}

// LoadWith is Load on a caller-owned viper instance, so command-line flags
// bound to v take precedence over everything else.
func LoadWith(v *viper.Viper, file string) (*AuditConfig, error) {
	return LoadPreset(v, file, PresetDefault)
}

// LoadPreset is LoadWith with the defaults taken from a named preset.
func LoadPreset(v *viper.Viper, file, preset string) (*AuditConfig, error) {
	defaults, err := Preset(preset)
	if err != nil {
		return nil, err
	}
	setDefaults(v, defaults)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &AuditConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *AuditConfig) {
	v.SetDefault("crawl.seeds", []string{})
	v.SetDefault("crawl.max_depth", d.Crawl.MaxDepth)
	v.SetDefault("crawl.max_urls", d.Crawl.MaxURLs)
	v.SetDefault("crawl.concurrency", d.Crawl.Concurrency)
	v.SetDefault("crawl.requests_per_second", d.Crawl.RequestsPerSecond)
	v.SetDefault("crawl.timeout", d.Crawl.Timeout)
	v.SetDefault("crawl.user_agent", d.Crawl.UserAgent)
	v.SetDefault("crawl.include_subdomains", d.Crawl.IncludeSubdomains)
	v.SetDefault("crawl.respect_nofollow", d.Crawl.RespectNofollow)
	v.SetDefault("crawl.respect_robots", d.Crawl.RespectRobots)
	v.SetDefault("crawl.use_sitemaps", d.Crawl.UseSitemaps)
	v.SetDefault("crawl.max_redirects", d.Crawl.MaxRedirects)
	v.SetDefault("crawl.max_response_size", d.Crawl.MaxResponseSize)
	v.SetDefault("crawl.ignore_query_params", d.Crawl.IgnoreQueryParams)
	v.SetDefault("crawl.include_patterns", []string{})
	v.SetDefault("crawl.exclude_patterns", []string{})
	v.SetDefault("crawl.exclude_extensions", d.Crawl.ExcludeExtensions)

	v.SetDefault("render.enabled", d.Render.Enabled)
	v.SetDefault("render.timeout", d.Render.Timeout)
	v.SetDefault("render.chromium_path", d.Render.ChromiumPath)
	v.SetDefault("render.settle", d.Render.Settle)
	v.SetDefault("render.axe.enabled", d.Render.Axe.Enabled)
	v.SetDefault("render.axe.script_url", d.Render.Axe.ScriptURL)
	v.SetDefault("render.axe.timeout", d.Render.Axe.Timeout)

	v.SetDefault("lighthouse.enabled", d.Lighthouse.Enabled)
	v.SetDefault("lighthouse.api_key", d.Lighthouse.APIKey)
	v.SetDefault("lighthouse.strategy", d.Lighthouse.Strategy)
	v.SetDefault("lighthouse.endpoint", d.Lighthouse.Endpoint)
	v.SetDefault("lighthouse.timeout", d.Lighthouse.Timeout)
	v.SetDefault("lighthouse.requests_per_second", d.Lighthouse.RequestsPerSecond)

	v.SetDefault("checks.include", []string{})
	v.SetDefault("checks.categories", []string{})
	v.SetDefault("checks.exclude", []string{})

	v.SetDefault("execution.workers", d.Execution.Workers)

	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.cache_size", d.Storage.CacheSize)
	v.SetDefault("storage.cache_ttl", d.Storage.CacheTTL)

	v.SetDefault("report.formats", d.Report.Formats)
	v.SetDefault("report.output_dir", d.Report.OutputDir)
	v.SetDefault("report.base_name", d.Report.BaseName)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("log.output_paths", d.Log.OutputPaths)
}
