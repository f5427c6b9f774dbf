package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/spider-crawler/seoaudit/internal/check"
	"github.com/spider-crawler/seoaudit/internal/crawlctx"
)

// ErrNotFound is returned when a requested audit does not exist.
var ErrNotFound = errors.New("not found")

// Database handles all database operations.
type Database struct {
	db        *sql.DB
	mu        sync.RWMutex
	batchSize int
}

// NewDatabase opens (creating if needed) the SQLite database at path and
// applies the schema.
func NewDatabase(path string) (*Database, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, batchSize: 500}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := d.db.Exec(ViewsSchema); err != nil {
		return fmt.Errorf("failed to create views: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// --- Audit Operations ---

// CreateAudit starts a new audit record. cfg is stored as JSON for reference.
func (d *Database) CreateAudit(ctx context.Context, rootURL string, cfg any) (*Audit, error) {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode audit config: %w", err)
	}
	a := &Audit{
		ID:         uuid.NewString(),
		RootURL:    rootURL,
		StartedAt:  time.Now().UTC(),
		Status:     AuditRunning,
		ConfigJSON: string(configJSON),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO audits (id, root_url, started_at, status, config_json)
		VALUES (?, ?, ?, ?, ?)
	`, a.ID, a.RootURL, a.StartedAt, a.Status, a.ConfigJSON)
	if err != nil {
		return nil, fmt.Errorf("create audit: %w", err)
	}
	return a, nil
}

// CompleteAudit records the final status and statistics of an audit.
func (d *Database) CompleteAudit(ctx context.Context, id, status string, pages int, stats check.Stats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode audit stats: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.ExecContext(ctx, `
		UPDATE audits
		SET completed_at = ?, status = ?, page_count = ?, result_count = ?, stats_json = ?
		WHERE id = ?
	`, time.Now().UTC(), status, pages, stats.Total, string(statsJSON), id)
	if err != nil {
		return fmt.Errorf("complete audit %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("complete audit %s: %w", id, ErrNotFound)
	}
	return nil
}

const auditColumns = `id, root_url, started_at, completed_at, status, page_count, result_count, stats_json, config_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*Audit, error) {
	var (
		a         Audit
		completed sql.NullTime
		statsJSON sql.NullString
		cfgJSON   sql.NullString
	)
	if err := row.Scan(&a.ID, &a.RootURL, &a.StartedAt, &completed, &a.Status,
		&a.PageCount, &a.ResultCount, &statsJSON, &cfgJSON); err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		a.CompletedAt = &t
	}
	if statsJSON.Valid && statsJSON.String != "" {
		if err := json.Unmarshal([]byte(statsJSON.String), &a.Stats); err != nil {
			return nil, fmt.Errorf("decode stats of audit %s: %w", a.ID, err)
		}
	}
	a.ConfigJSON = cfgJSON.String
	return &a, nil
}

// GetAudit retrieves an audit by id.
func (d *Database) GetAudit(ctx context.Context, id string) (*Audit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, err := scanAudit(d.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audits WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit %s: %w", id, ErrNotFound)
	}
	return a, err
}

// ListAudits returns the most recent audits first. limit <= 0 returns all.
func (d *Database) ListAudits(ctx context.Context, limit int) ([]*Audit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx, `SELECT `+auditColumns+` FROM audits ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []*Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

// DeleteAudit removes an audit and everything recorded for it.
func (d *Database) DeleteAudit(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.ExecContext(ctx, `DELETE FROM audits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete audit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Batched writes ---

// batch runs insert for every item in transactions of batchSize rows.
func batch[T any](ctx context.Context, d *Database, query string, items []T, args func(T) []any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for start := 0; start < len(items); start += d.batchSize {
		end := min(start+d.batchSize, len(items))
		if err := d.insertChunk(ctx, query, len(items[start:end]), func(i int) []any {
			return args(items[start+i])
		}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) insertChunk(ctx context.Context, query string, n int, args func(int) []any) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SavePages stores the pages of an audit.
func (d *Database) SavePages(ctx context.Context, auditID string, pages []Page) error {
	err := batch(ctx, d, `
		INSERT INTO pages (audit_id, url, status_code, title, h1, word_count, content_hash, is_indexable,
			depth, in_links, out_links, external_links, is_orphan, duplicates)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(audit_id, url) DO UPDATE SET
			status_code = excluded.status_code,
			title = excluded.title,
			h1 = excluded.h1,
			word_count = excluded.word_count,
			content_hash = excluded.content_hash,
			is_indexable = excluded.is_indexable,
			depth = excluded.depth,
			in_links = excluded.in_links,
			out_links = excluded.out_links,
			external_links = excluded.external_links,
			is_orphan = excluded.is_orphan,
			duplicates = excluded.duplicates
	`, pages, func(p Page) []any {
		return []any{auditID, p.URL, p.StatusCode, p.Title, p.H1, p.WordCount, p.ContentFingerprint, p.Indexable,
			p.Depth, p.InLinks, p.OutLinks, p.ExternalLinks, p.Orphan, p.Duplicates}
	})
	if err != nil {
		return fmt.Errorf("save pages: %w", err)
	}
	return nil
}

// SaveLinks stores crawl graph edges in order.
func (d *Database) SaveLinks(ctx context.Context, auditID string, edges []crawlctx.LinkEdge) error {
	err := batch(ctx, d, `
		INSERT INTO links (audit_id, from_url, to_url, anchor_text, is_internal, is_nofollow)
		VALUES (?, ?, ?, ?, ?, ?)
	`, edges, func(e crawlctx.LinkEdge) []any {
		return []any{auditID, e.Source, e.Target, e.AnchorText, e.IsInternal, e.IsNofollow}
	})
	if err != nil {
		return fmt.Errorf("save links: %w", err)
	}
	return nil
}

// SaveResults stores check results in order.
func (d *Database) SaveResults(ctx context.Context, auditID string, results []check.Result) error {
	err := batch(ctx, d, `
		INSERT INTO results (audit_id, url, check_id, check_name, category, status, severity, message, recommendation, evidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, results, func(r check.Result) []any {
		return []any{auditID, r.URL, r.CheckID, r.CheckName, string(r.Category), string(r.Status),
			string(r.Severity), r.Message, r.Recommendation, r.Evidence}
	})
	if err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	return nil
}

// --- Reads ---

// GetPages returns the pages of an audit sorted by URL.
func (d *Database) GetPages(ctx context.Context, auditID string) ([]Page, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, audit_id, url, status_code, title, h1, word_count, content_hash, is_indexable,
			depth, in_links, out_links, external_links, is_orphan, duplicates
		FROM pages WHERE audit_id = ? ORDER BY url
	`, auditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.AuditID, &p.URL, &p.StatusCode, &p.Title, &p.H1, &p.WordCount,
			&p.ContentFingerprint, &p.Indexable, &p.Depth, &p.InLinks, &p.OutLinks, &p.ExternalLinks,
			&p.Orphan, &p.Duplicates); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// GetLinks returns the edges of an audit in insertion order.
func (d *Database) GetLinks(ctx context.Context, auditID string) ([]crawlctx.LinkEdge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT from_url, to_url, anchor_text, is_internal, is_nofollow
		FROM links WHERE audit_id = ? ORDER BY id
	`, auditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []crawlctx.LinkEdge
	for rows.Next() {
		var e crawlctx.LinkEdge
		if err := rows.Scan(&e.Source, &e.Target, &e.AnchorText, &e.IsInternal, &e.IsNofollow); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// GetResults returns the results of an audit in insertion order, optionally
// restricted to the given statuses.
func (d *Database) GetResults(ctx context.Context, auditID string, statuses ...check.Status) ([]check.Result, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	query := `SELECT url, check_id, check_name, category, status, severity, message, recommendation, evidence
		FROM results WHERE audit_id = ?`
	args := []any{auditID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(",?", len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY id`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []check.Result
	for rows.Next() {
		var r check.Result
		if err := rows.Scan(&r.URL, &r.CheckID, &r.CheckName, &r.Category, &r.Status, &r.Severity,
			&r.Message, &r.Recommendation, &r.Evidence); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// IssueCounts returns failing and warning checks of an audit, most failures
// first.
func (d *Database) IssueCounts(ctx context.Context, auditID string) ([]IssueCount, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT check_id, check_name, category, severity, failures, warnings, pages
		FROM v_issue_counts WHERE audit_id = ?
		ORDER BY failures DESC, warnings DESC, check_id
	`, auditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []IssueCount
	for rows.Next() {
		var c IssueCount
		if err := rows.Scan(&c.CheckID, &c.CheckName, &c.Category, &c.Severity, &c.Failures, &c.Warnings, &c.Pages); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
