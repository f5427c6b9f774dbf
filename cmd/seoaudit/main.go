// Package main is the entry point for the seoaudit command.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/logger"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds the state shared by every command.
type app struct {
	v          *viper.Viper
	configFile string
	preset     string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "seoaudit",
		Short: "Crawl a site and audit it for SEO issues",
		Long: `seoaudit crawls a website, builds its internal link graph and runs
on-page and site-wide SEO checks, writing the findings to XLSX, CSV or JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "config file (YAML, JSON or TOML)")
	pf.StringVar(&a.preset, "preset", config.PresetDefault, fmt.Sprintf("configuration preset %v", config.Presets))
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log encoding (console, json)")

	root.AddCommand(
		a.newAuditCmd(),
		a.newAnalyzeCmd(),
		a.newChecksCmd(),
		a.newAuditsCmd(),
		a.newReportCmd(),
		a.newCacheCmd(),
		newVersionCmd(),
	)
	return root
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"log-format":  "log.encoding",
	"depth":       "crawl.max_depth",
	"max-urls":    "crawl.max_urls",
	"concurrency": "crawl.concurrency",
	"rps":         "crawl.requests_per_second",
	"timeout":     "crawl.timeout",
	"user-agent":  "crawl.user_agent",
	"subdomains":  "crawl.include_subdomains",
	"nofollow":    "crawl.respect_nofollow",
	"robots":      "crawl.respect_robots",
	"sitemaps":    "crawl.use_sitemaps",
	"exclude-url": "crawl.exclude_patterns",
	"render":      "render.enabled",
	"axe":         "render.axe.enabled",
	"lighthouse":  "lighthouse.enabled",
	"strategy":    "lighthouse.strategy",
	"check":       "checks.include",
	"category":    "checks.categories",
	"skip":        "checks.exclude",
	"workers":     "execution.workers",
	"db":          "storage.path",
	"format":      "report.formats",
	"output":      "report.output_dir",
	"name":        "report.base_name",
}

// load binds the flags of the running command and loads the configuration.
// Binding happens here rather than at construction so commands sharing a
// flag name do not steal each other's bindings.
func (a *app) load(cmd *cobra.Command) (*config.AuditConfig, logger.Logger, error) {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = a.v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return nil, nil, bindErr
	}

	cfg, err := config.LoadPreset(a.v, a.configFile, a.preset)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}

func addCrawlFlags(fs *pflag.FlagSet) {
	fs.IntP("depth", "d", 0, "maximum link depth from the seeds")
	fs.Int("max-urls", 0, "maximum number of pages (0 = unlimited)")
	fs.Int("concurrency", 0, "concurrent fetches")
	fs.Float64("rps", 0, "requests per second per host")
	fs.Duration("timeout", 0, "HTTP request timeout")
	fs.String("user-agent", "", "User-Agent header")
	fs.Bool("subdomains", false, "treat subdomains as internal")
	fs.Bool("nofollow", false, "do not follow rel=nofollow links")
	fs.Bool("robots", true, "skip URLs disallowed by robots.txt (--robots=false to ignore)")
	fs.Bool("sitemaps", false, "also crawl the URLs listed in the site's XML sitemaps")
	fs.StringSlice("exclude-url", nil, "regex of URLs not to crawl (repeatable)")
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.Bool("render", false, "render pages in headless Chromium for Core Web Vitals")
	fs.Bool("axe", false, "run axe-core accessibility scans (implies --render)")
	fs.Bool("lighthouse", false, "run Lighthouse through PageSpeed Insights (key: SEOAUDIT_LIGHTHOUSE_API_KEY)")
	fs.String("strategy", config.StrategyMobile, "Lighthouse strategy (mobile, desktop)")
	fs.StringSlice("check", nil, "only run these check ids")
	fs.StringSlice("category", nil, "only run checks of these categories")
	fs.StringSlice("skip", nil, "check ids to skip")
	fs.Int("workers", 0, "pages analyzed concurrently")
	fs.String("db", "", "SQLite database for results and the response cache")
	fs.StringSlice("format", nil, "report formats (xlsx, csv, json)")
	fs.StringP("output", "o", "", "report output directory")
	fs.String("name", "", "report file base name")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// serveMetrics exposes reg on addr until the returned stop is called.
func serveMetrics(addr string, reg *prometheus.Registry, log logger.Logger) (stop func()) {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("Serving metrics", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", logger.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
