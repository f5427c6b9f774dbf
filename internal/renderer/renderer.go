// Package renderer renders pages in headless Chromium to capture the
// JavaScript DOM, Core Web Vitals and axe-core accessibility results.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/spider-crawler/seoaudit/internal/config"
	"github.com/spider-crawler/seoaudit/internal/logger"
	"github.com/spider-crawler/seoaudit/internal/page"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("renderer closed")

// Result is what one render captured.
type Result struct {
	HTML       string
	FinalURL   string
	StatusCode int
	LoadTime   time.Duration
	Vitals     map[string]float64
	Axe        *page.AxeReport
}

// Apply attaches the rendered DOM and measurements to c.
func (r *Result) Apply(c *page.Content) error {
	if err := c.SetRendered(r.HTML, r.LoadTime, r.Vitals); err != nil {
		return err
	}
	if r.Axe != nil {
		c.Axe = r.Axe
	}
	return nil
}

// Renderer drives one shared browser with a bounded number of tabs.
type Renderer struct {
	cfg    config.RenderConfig
	log    logger.Logger
	tabs   chan struct{}
	mu     sync.Mutex
	closed bool

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// New starts Chromium. tabs bounds concurrent renders.
func New(cfg config.RenderConfig, userAgent string, tabs int, log logger.Logger) (*Renderer, error) {
	if tabs < 1 {
		tabs = 1
	}
	if log == nil {
		log = logger.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(1366, 768),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	if cfg.ChromiumPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromiumPath))
	}

	r := &Renderer{
		cfg:  cfg,
		log:  log,
		tabs: make(chan struct{}, tabs),
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	r.browserCtx, r.browserCancel = chromedp.NewContext(r.allocCtx)

	// Running an empty action list launches the browser.
	if err := chromedp.Run(r.browserCtx); err != nil {
		r.Close()
		return nil, fmt.Errorf("start chromium: %w", err)
	}
	return r, nil
}

// Render loads url in a fresh tab. When withAxe is set and axe is enabled in
// the configuration, an axe-core scan runs on the loaded page; its failure
// is logged and leaves Result.Axe nil.
func (r *Renderer) Render(ctx context.Context, url string, withAxe bool) (*Result, error) {
	var res *Result
	err := r.withTab(ctx, r.cfg.Timeout, func(tabCtx context.Context) error {
		var err error
		res, err = r.render(tabCtx, url)
		if err != nil {
			return err
		}
		if withAxe && r.cfg.Axe.Enabled {
			report, axeErr := r.scan(tabCtx)
			if axeErr != nil {
				r.log.Warn("Axe scan failed", logger.String("url", url), logger.Error(axeErr))
			}
			res.Axe = report
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}
	return res, nil
}

// Scan loads url and runs axe-core on it.
func (r *Renderer) Scan(ctx context.Context, url string) (*page.AxeReport, error) {
	var report *page.AxeReport
	err := r.withTab(ctx, r.cfg.Timeout+r.cfg.Axe.Timeout, func(tabCtx context.Context) error {
		if err := chromedp.Run(tabCtx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		); err != nil {
			return err
		}
		var err error
		report, err = r.scan(tabCtx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("axe scan %s: %w", url, err)
	}
	return report, nil
}

// withTab runs fn in a new tab once a slot is free.
func (r *Renderer) withTab(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case r.tabs <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-r.tabs }()

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	// tie the tab to the caller's context as well
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	return fn(tabCtx)
}

func (r *Renderer) render(ctx context.Context, url string) (*Result, error) {
	res := &Result{}

	var (
		statusMu sync.Mutex
		status   int
	)
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			statusMu.Lock()
			if status == 0 {
				status = int(e.Response.Status)
			}
			statusMu.Unlock()
		}
	})

	var v vitals
	start := time.Now()
	err := chromedp.Run(ctx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(vitalsObserver).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}
	wall := time.Since(start)

	err = chromedp.Run(ctx,
		chromedp.Sleep(r.cfg.Settle),
		chromedp.Location(&res.FinalURL),
		chromedp.Evaluate(readVitals, &v),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			res.HTML, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}

	res.Vitals = v.toMap()
	res.LoadTime = wall
	if v.Load != nil && *v.Load > 0 {
		res.LoadTime = time.Duration(*v.Load * float64(time.Millisecond))
	}

	statusMu.Lock()
	res.StatusCode = status
	statusMu.Unlock()
	return res, nil
}

// scan injects axe-core into the loaded document and runs it.
func (r *Renderer) scan(ctx context.Context) (*page.AxeReport, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Axe.Timeout)
	defer cancel()

	awaitPromise := func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}

	var loaded bool
	report := &page.AxeReport{}
	err := chromedp.Run(ctx,
		chromedp.Evaluate(injectScript(r.cfg.Axe.ScriptURL), &loaded, awaitPromise),
		chromedp.Evaluate(runAxe, report, awaitPromise),
	)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Close shuts the browser down.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.browserCancel != nil {
		r.browserCancel()
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}
}
