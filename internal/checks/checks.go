// Package checks contains the built-in audit rules, one file per category.
package checks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spider-crawler/seoaudit/internal/check"
)

// Thresholds used by the built-in checks.
var Thresholds = struct {
	TitleMinLength    int
	TitleMaxLength    int
	MetaDescMinLength int
	MetaDescMaxLength int
	H1MaxLength       int

	MinWordCount     int
	ThinWordCount    int
	MinInternalLinks int
	MaxInternalLinks int

	NavDepthGood int
	NavDepthMax  int

	DeepLinkDepth     int
	DeepLinkRatioGood float64
	DeepLinkRatioMin  float64

	LoadTimeGood time.Duration
	LoadTimeMax  time.Duration

	LCPGood, LCPPoor float64
	FCPGood, FCPPoor float64
	CLSGood, CLSPoor float64

	// Lighthouse audit scores in [0, 1]
	LighthousePass     float64
	LighthouseFail     float64
	LighthouseCritical float64
	LighthouseFindings int

	MinOpenGraphTags   int
	MinSecurityHeaders int
	MinCookieFlags     int
	MaxRedirectChain   int
	URLMaxLength       int
}{
	TitleMinLength:    30,
	TitleMaxLength:    60,
	MetaDescMinLength: 70,
	MetaDescMaxLength: 155,
	H1MaxLength:       70,

	MinWordCount:     300,
	ThinWordCount:    200,
	MinInternalLinks: 5,
	MaxInternalLinks: 100,

	NavDepthGood: 3,
	NavDepthMax:  5,

	DeepLinkDepth:     3,
	DeepLinkRatioGood: 30,
	DeepLinkRatioMin:  15,

	LoadTimeGood: 3 * time.Second,
	LoadTimeMax:  5 * time.Second,

	LCPGood: 2500, LCPPoor: 4000,
	FCPGood: 1800, FCPPoor: 3000,
	CLSGood: 0.1, CLSPoor: 0.25,

	LighthousePass:     0.9,
	LighthouseFail:     0.8,
	LighthouseCritical: 0.5,
	LighthouseFindings: 20,

	MinOpenGraphTags:   2,
	MinSecurityHeaders: 3,
	MinCookieFlags:     2,
	MaxRedirectChain:   2,
	URLMaxLength:       115,
}

// Options configures the checks that depend on external collaborators.
type Options struct {
	// AxeScanner runs axe-core for pages rendered without a scan attached.
	// Nil disables on-demand scans.
	AxeScanner AxeScanner
	// AxeTimeout bounds one on-demand scan.
	AxeTimeout time.Duration

	// Lighthouse runs Lighthouse audits. Nil reports them as unavailable.
	Lighthouse LighthouseRunner
	// LighthouseTimeout bounds one Lighthouse run.
	LighthouseTimeout time.Duration
}

// Defaults applied when the matching Options timeout is zero.
const (
	DefaultAxeTimeout        = 30 * time.Second
	DefaultLighthouseTimeout = 2 * time.Minute
)

var constructors = []func(Options) check.Check{
	// Meta Tags
	newTitlePresence,
	newTitleLength,
	newDescriptionPresence,
	newDescriptionLength,
	newCanonicalURL,
	newRobotsMeta,
	newOpenGraph,
	// Header Structure
	newH1Presence,
	newHeaderHierarchy,
	newH1Uniqueness,
	// Images
	newImageAltText,
	newResponsiveImages,
	// Links
	newOrphanPage,
	newNavigationDepth,
	newInternalLinks,
	newNofollowLinks,
	newBrokenInternalLinks,
	newDeepLinkRatio,
	newExternalLinkSecurity,
	// Content
	newContentWordCount,
	newDuplicateContent,
	newDuplicateTitle,
	newThinContent,
	// Performance
	newPageLoadTime,
	newCompression,
	newCacheHeaders,
	newLighthouseAudit,
	// Core Web Vitals
	newLCP,
	newFCP,
	newCLS,
	// Accessibility
	newLangAttribute,
	newAxeAudit,
	// Mobile Usability
	newViewport,
	// Security
	newSecurityHeaders,
	newCookieFlags,
	// Structured Data
	newStructuredData,
	// International SEO
	newHreflang,
	// Technical SEO
	newHTTPStatus,
	newURLStructure,
}

// All returns a fresh instance of every built-in check in report order.
func All(opts Options) []check.Check {
	if opts.AxeTimeout <= 0 {
		opts.AxeTimeout = DefaultAxeTimeout
	}
	if opts.LighthouseTimeout <= 0 {
		opts.LighthouseTimeout = DefaultLighthouseTimeout
	}
	out := make([]check.Check, 0, len(constructors))
	for _, newCheck := range constructors {
		out = append(out, newCheck(opts))
	}
	return out
}

// NewRegistry registers every built-in check.
func NewRegistry(opts Options) (*check.Registry, error) {
	reg := check.NewRegistry()
	for _, c := range All(opts) {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register built-in checks: %w", err)
		}
	}
	return reg, nil
}

// bounded runs fn under a deadline and stops waiting for it once the deadline
// passes, whether or not fn honours ctx. A nil value without an error is
// reported as an empty report.
func bounded[T any](timeout time.Duration, fn func(context.Context) (*T, error)) (*T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type outcome struct {
		value *T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("timed out after %s", timeout)
		}
		if o.err == nil && o.value == nil {
			return nil, errors.New("empty report")
		}
		return o.value, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("timed out after %s", timeout)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// truncate shortens s for use as evidence.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// sample joins up to n items for evidence, noting how many were left out.
func sample(items []string, n int) string {
	if len(items) <= n {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(items[:n], ", "), len(items)-n)
}

// without returns items minus drop, preserving order.
func without(items []string, drop string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it != drop {
			out = append(out, it)
		}
	}
	return out
}
