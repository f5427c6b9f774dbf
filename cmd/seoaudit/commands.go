package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/spider-crawler/seoaudit/internal/audit"
	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/checks"
	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/logger"
	"github.com/spider-crawler/seoaudit/internal/report"
	"github.com/spider-crawler/seoaudit/internal/storage"
)

func (a *app) newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit [url...]",
		Short: "Crawl a site and run every check with site-wide context",
		Long: `Crawl from the given seed URLs (or crawl.seeds from the config) and run
on-page and site-wide checks. The first seed is the site root.`,
		Example: `  seoaudit audit https://example.com
  seoaudit audit https://example.com --depth 2 --format xlsx,json -o reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, au *audit.Auditor) (*audit.Summary, error) {
				return au.Run(ctx, args...)
			})
		},
	}
	addCrawlFlags(cmd.Flags())
	addRunFlags(cmd.Flags())
	return cmd
}

func (a *app) newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <url>...",
		Short: "Check single pages without crawling",
		Long: `Fetch each URL and run the page checks. Links are not followed, so
site-wide checks report that they need a crawl.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, au *audit.Auditor) (*audit.Summary, error) {
				return au.AnalyzeURLs(ctx, args...)
			})
		},
	}
	addRunFlags(cmd.Flags())
	cmd.Flags().Duration("timeout", 0, "HTTP request timeout")
	cmd.Flags().String("user-agent", "", "User-Agent header")
	return cmd
}

type runFunc func(ctx context.Context, au *audit.Auditor) (*audit.Summary, error)

func (a *app) run(cmd *cobra.Command, fn runFunc) error {
	cfg, log, err := a.load(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()
	if cfg.Render.Axe.Enabled {
		cfg.Render.Enabled = true
	}

	reg := prometheus.NewRegistry()
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	stop := serveMetrics(metricsAddr, reg, log)
	defer stop()

	au, err := audit.New(cfg, audit.WithLogger(log), audit.WithRegisterer(reg))
	if err != nil {
		return err
	}
	defer au.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	sum, err := fn(ctx, au)
	if sum != nil {
		printSummary(cmd.OutOrStdout(), sum)
	}
	if errors.Is(err, context.Canceled) {
		log.Warn("Audit interrupted")
	}
	return err
}

func printSummary(w io.Writer, sum *audit.Summary) {
	fmt.Fprintf(w, "\nAudit of %s (%s)\n", sum.RootURL, sum.Mode)
	if sum.AuditID != "" {
		fmt.Fprintf(w, "  ID:        %s\n", sum.AuditID)
	}
	fmt.Fprintf(w, "  Pages:     %d", len(sum.Pages))
	if len(sum.Failures) > 0 {
		fmt.Fprintf(w, " (%d failed to fetch)", len(sum.Failures))
	}
	if len(sum.Blocked) > 0 {
		fmt.Fprintf(w, " (%d blocked by robots.txt)", len(sum.Blocked))
	}
	fmt.Fprintln(w)
	if len(sum.Sitemap) > 0 {
		fmt.Fprintf(w, "  Sitemap:   %d URLs\n", len(sum.Sitemap))
	}
	s := sum.Stats
	fmt.Fprintf(w, "  Results:   %d (pass %d, fail %d, warning %d, info %d, error %d)\n",
		s.Total, s.Pass, s.Fail, s.Warning, s.Info, s.Error)
	fmt.Fprintf(w, "  Pass rate: %.1f%%\n", s.PassRate)
	fmt.Fprintf(w, "  Duration:  %s\n", sum.Duration.Round(time.Millisecond))

	if sum.Site != nil {
		g := sum.Site.GraphStats()
		fmt.Fprintf(w, "  Graph:     %d links, %d orphans, %d unreachable, %d dead ends, max depth %d\n",
			g.Edges, g.Orphans, g.Unreachable, g.DeadEnds, g.MaxDepth)
		var depths []string
		for _, b := range sum.Site.DepthDistribution() {
			label := strconv.Itoa(b.Depth)
			if b.Depth == crawlctx.Unreachable {
				label = "unreachable"
			}
			depths = append(depths, fmt.Sprintf("%s:%d", label, b.URLCount))
		}
		fmt.Fprintf(w, "  Depths:    %s\n", strings.Join(depths, " "))
	}

	issues := report.New(sum.AuditID, sum.RootURL, sum.Results, sum.Pages).Issues()
	if len(issues) > 0 {
		fmt.Fprintln(w, "\nTop issues:")
		t := newTable(w, "Severity", "Check", "Category", "Fail", "Warn")
		for i, is := range issues {
			if i == 10 {
				break
			}
			t.AppendRow(table.Row{is.Severity, is.CheckName, is.Category, is.Failures, is.Warnings})
		}
		t.Render()
	}

	if len(sum.Files) > 0 {
		fmt.Fprintln(w, "\nReports:")
		for _, f := range sum.Files {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}

func (a *app) newChecksCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "checks",
		Short: "List the available checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := checks.NewRegistry(checks.Options{})
			if err != nil {
				return err
			}
			list := reg.All()
			if category != "" {
				cat, err := check.ParseCategory(category)
				if err != nil {
					return err
				}
				list = reg.ByCategory(cat)
			}

			t := newTable(cmd.OutOrStdout(), "ID", "Name", "Category", "Severity", "Site")
			for _, c := range list {
				site := ""
				if c.RequiresSiteContext() {
					site = "yes"
				}
				t.AppendRow(table.Row{c.ID(), c.Name(), c.Category(), c.Severity(), site})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list checks of this category")
	return cmd
}

// openDatabase opens the configured database; listing and re-exporting
// need one.
func (a *app) openDatabase(cmd *cobra.Command) (*config.AuditConfig, *storage.Database, logger.Logger, error) {
	cfg, log, err := a.load(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Storage.Path == "" {
		return nil, nil, nil, errors.New("no database configured (use --db or storage.path)")
	}
	db, err := storage.NewDatabase(cfg.Storage.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, db, log, nil
}

func (a *app) newAuditsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audits",
		Short: "List stored audits",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, _, err := a.openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			audits, err := db.ListAudits(cmd.Context(), limit)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "ID", "Started", "Status", "Pages", "Results", "Pass rate", "Root")
			for _, au := range audits {
				t.AppendRow(table.Row{
					au.ID, au.StartedAt.Format("2006-01-02 15:04"), au.Status,
					au.PageCount, au.ResultCount, fmt.Sprintf("%.1f%%", au.Stats.PassRate), au.RootURL,
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite database")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of audits to show (0 = all)")
	cmd.AddCommand(a.newAuditShowCmd(), a.newAuditDeleteCmd())
	return cmd
}

func (a *app) newAuditShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <audit-id>",
		Short: "Show the stats and issues of a stored audit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, _, err := a.openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			au, err := db.GetAudit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			counts, err := db.IssueCounts(cmd.Context(), au.ID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			s := au.Stats
			fmt.Fprintf(w, "Audit %s of %s (%s)\n", au.ID, au.RootURL, au.Status)
			fmt.Fprintf(w, "  Pages:     %d\n", au.PageCount)
			fmt.Fprintf(w, "  Results:   %d (pass %d, fail %d, warning %d, info %d, error %d)\n",
				s.Total, s.Pass, s.Fail, s.Warning, s.Info, s.Error)
			fmt.Fprintf(w, "  Pass rate: %.1f%%\n", s.PassRate)
			if len(counts) == 0 {
				return nil
			}
			fmt.Fprintln(w)
			t := newTable(w, "Check", "Category", "Severity", "Fail", "Warn", "Pages")
			for _, c := range counts {
				t.AppendRow(table.Row{c.CheckID, c.Category, c.Severity, c.Failures, c.Warnings, c.Pages})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite database")
	return cmd
}

func (a *app) newAuditDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <audit-id>...",
		Short: "Delete stored audits with their pages, links and results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, log, err := a.openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			for _, id := range args {
				if err := db.DeleteAudit(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				log.Info("Audit deleted", logger.String("audit_id", id))
			}
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite database")
	return cmd
}

func (a *app) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persistent response cache",
	}
	var olderThan time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Remove cached responses older than --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, _, err := a.openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.PurgeCache(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached responses\n", n)
			return nil
		},
	}
	purge.Flags().String("db", "", "SQLite database")
	purge.Flags().DurationVar(&olderThan, "older-than", 0, "keep responses fetched within this window")
	cmd.AddCommand(purge)
	return cmd
}

func (a *app) newReportCmd() *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "report <audit-id>",
		Short: "Export a stored audit again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, log, err := a.openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			r, err := report.NewGenerator(db).Generate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var filter []check.Status
			for _, s := range statuses {
				if s == "" {
					continue
				}
				filter = append(filter, check.Status(strings.ToUpper(s[:1])+strings.ToLower(s[1:])))
			}
			files, err := report.WriteFiles(r.Filter(filter...), cfg.Report.OutputDir, cfg.Report.BaseName, cfg.Report.Formats)
			if err != nil {
				return err
			}
			log.Info("Report written", logger.String("audit_id", r.AuditID), logger.Strings("files", files))
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite database")
	cmd.Flags().StringSlice("format", nil, "report formats (xlsx, csv, json)")
	cmd.Flags().StringP("output", "o", "", "report output directory")
	cmd.Flags().String("name", "", "report file base name")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only export results with these statuses (fail, warning, ...)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "seoaudit %s\n", version)
		},
	}
}
