// Package storage persists audits, their crawl graph and check results in
// SQLite, and doubles as the persistent response cache.
package storage

import (
	"time"

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
)

// Audit statuses.
const (
	AuditRunning   = "running"
	AuditCompleted = "completed"
	AuditFailed    = "failed"
)

// Audit is one audit run.
type Audit struct {
	ID          string      `json:"id"`
	RootURL     string      `json:"root_url"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Status      string      `json:"status"`
	PageCount   int         `json:"page_count"`
	ResultCount int         `json:"result_count"`
	Stats       check.Stats `json:"stats"`
	ConfigJSON  string      `json:"-"`
}

// Page is a crawled page with its graph metrics.
type Page struct {
	ID      int64  `json:"id"`
	AuditID string `json:"audit_id"`
	crawlctx.PageRecord
	Depth         int  `json:"depth"`
	InLinks       int  `json:"in_links"`
	OutLinks      int  `json:"out_links"`
	ExternalLinks int  `json:"external_links"`
	Orphan        bool `json:"orphan"`
	Duplicates    int  `json:"duplicates"`
}

// NewPage combines a page snapshot with its metrics.
func NewPage(record crawlctx.PageRecord, m crawlctx.PageMetrics) Page {
	return Page{
		PageRecord:    record,
		Depth:         m.Depth,
		InLinks:       m.InLinks,
		OutLinks:      m.OutLinks,
		ExternalLinks: m.ExternalOut,
		Orphan:        m.Orphan,
		Duplicates:    m.Duplicates,
	}
}

// IssueCount is one row of the v_issue_counts view.
type IssueCount struct {
	CheckID   string         `json:"check_id"`
	CheckName string         `json:"check_name"`
	Category  check.Category `json:"category"`
	Severity  check.Severity `json:"severity"`
	Failures  int            `json:"failures"`
	Warnings  int            `json:"warnings"`
	Pages     int            `json:"pages"`
}
