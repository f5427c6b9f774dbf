// Package check defines the audit rule contract, the registry that holds every
// rule, and the executor that runs rules against pages with failure isolation.
package check

import (
	"fmt"
	"strings"

	"github.com/spider-crawler/seoaudit/internal/crawlctx"
	"github.com/spider-crawler/seoaudit/internal/page"
)

// Status is the outcome of one finding.
type Status string

const (
	StatusPass    Status = "Pass"
	StatusFail    Status = "Fail"
	StatusWarning Status = "Warning"
	StatusInfo    Status = "Info"
	StatusError   Status = "Error"
)

// Severity ranks how much a finding matters.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// Severities lists every severity from most to least important.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	for _, v := range Severities {
		if s == v {
			return true
		}
	}
	return false
}

// Category groups related checks.
type Category string

const (
	CategoryMetaTags         Category = "Meta Tags"
	CategoryHeaderStructure  Category = "Header Structure"
	CategoryImages           Category = "Images"
	CategoryLinks            Category = "Links"
	CategoryContent          Category = "Content"
	CategoryPerformance      Category = "Performance"
	CategoryCoreWebVitals    Category = "Core Web Vitals"
	CategoryAccessibility    Category = "Accessibility"
	CategoryMobileUsability  Category = "Mobile Usability"
	CategorySecurity         Category = "Security"
	CategoryStructuredData   Category = "Structured Data"
	CategoryInternationalSEO Category = "International SEO"
	CategoryTechnicalSEO     Category = "Technical SEO"
)

// AllCategories is the fixed category set in report order.
var AllCategories = []Category{
	CategoryMetaTags,
	CategoryHeaderStructure,
	CategoryImages,
	CategoryLinks,
	CategoryContent,
	CategoryPerformance,
	CategoryCoreWebVitals,
	CategoryAccessibility,
	CategoryMobileUsability,
	CategorySecurity,
	CategoryStructuredData,
	CategoryInternationalSEO,
	CategoryTechnicalSEO,
}

// Valid reports whether c is one of AllCategories.
func (c Category) Valid() bool {
	for _, v := range AllCategories {
		if c == v {
			return true
		}
	}
	return false
}

// ParseCategory matches name against the known categories, ignoring case and
// treating '-' and '_' as spaces.
func ParseCategory(name string) (Category, error) {
	want := strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(name))
	for _, c := range AllCategories {
		if strings.EqualFold(string(c), want) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", name)
}

// Check is one independent audit rule.
//
// Execute must not modify p or site. A check that needs site-wide data and
// receives a nil site returns a single Info result instead of an error.
// Returning no results means the rule had nothing to look at on this page.
type Check interface {
	ID() string
	Name() string
	Category() Category
	Severity() Severity
	RequiresSiteContext() bool
	Execute(p *page.Content, site *crawlctx.CrawlContext) ([]Result, error)
}

// Base implements the identity half of Check. Concrete checks embed it and
// add Execute.
type Base struct {
	id          string
	name        string
	category    Category
	severity    Severity
	siteContext bool
}

// NewBase describes a check.
func NewBase(id, name string, category Category, severity Severity) Base {
	return Base{id: id, name: name, category: category, severity: severity}
}

// WithSiteContext marks the check as needing a finalized crawl context.
func (b Base) WithSiteContext() Base {
	b.siteContext = true
	return b
}

func (b Base) ID() string                { return b.id }
func (b Base) Name() string              { return b.name }
func (b Base) Category() Category        { return b.category }
func (b Base) Severity() Severity        { return b.severity }
func (b Base) RequiresSiteContext() bool { return b.siteContext }

// Result builds a finding for p carrying this check's identity.
func (b Base) Result(p *page.Content, status Status, message, recommendation, evidence string) Result {
	return Result{
		URL:            p.URL,
		CheckID:        b.id,
		CheckName:      b.name,
		Category:       b.category,
		Status:         status,
		Severity:       b.severity,
		Message:        message,
		Recommendation: recommendation,
		Evidence:       evidence,
	}
}

// One wraps Result in a slice.
func (b Base) One(p *page.Content, status Status, message, recommendation, evidence string) []Result {
	return []Result{b.Result(p, status, message, recommendation, evidence)}
}

// ContextRequired is the single Info result a site-wide check returns when it
// runs without a crawl context. purpose completes "Requires site-wide crawl to".
func (b Base) ContextRequired(p *page.Content, purpose string) []Result {
	return b.One(p, StatusInfo,
		"Requires site-wide crawl to "+purpose,
		"Run an audit with crawling enabled to get site-wide analysis",
		"Crawl required")
}

// Validate reports why c cannot be registered, or nil.
func Validate(c Check) error {
	if c == nil {
		return fmt.Errorf("%w: nil check", ErrInvalidCheck)
	}
	switch {
	case strings.TrimSpace(c.ID()) == "":
		return fmt.Errorf("%w: empty id", ErrInvalidCheck)
	case strings.TrimSpace(c.Name()) == "":
		return fmt.Errorf("%w: %s: empty name", ErrInvalidCheck, c.ID())
	case !c.Category().Valid():
		return fmt.Errorf("%w: %s: unknown category %q", ErrInvalidCheck, c.ID(), c.Category())
	case !c.Severity().Valid():
		return fmt.Errorf("%w: %s: unknown severity %q", ErrInvalidCheck, c.ID(), c.Severity())
	}
	return nil
}
