package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spider-crawler/seoaudit/internal/fetcher"
)

var _ fetcher.Store = (*Database)(nil)

// CachedResponse returns the stored response for url, or nil if none.
func (d *Database) CachedResponse(ctx context.Context, url string) (*fetcher.Response, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var (
		resp          fetcher.Response
		contentType   sql.NullString
		headersJSON   sql.NullString
		redirectsJSON sql.NullString
		ttfbMs        int64
		responseMs    int64
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT url, final_url, status_code, content_type, headers_json, redirects_json, body,
			truncated, ttfb_ms, response_time_ms, fetched_at
		FROM page_cache WHERE url = ?
	`, url).Scan(&resp.RequestURL, &resp.FinalURL, &resp.StatusCode, &contentType, &headersJSON,
		&redirectsJSON, &resp.Body, &resp.Truncated, &ttfbMs, &responseMs, &resp.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached response %s: %w", url, err)
	}

	resp.ContentType = contentType.String
	resp.TTFB = time.Duration(ttfbMs) * time.Millisecond
	resp.ResponseTime = time.Duration(responseMs) * time.Millisecond
	resp.Headers = http.Header{}
	if headersJSON.String != "" {
		if err := json.Unmarshal([]byte(headersJSON.String), &resp.Headers); err != nil {
			return nil, fmt.Errorf("decode cached headers %s: %w", url, err)
		}
	}
	if redirectsJSON.String != "" {
		if err := json.Unmarshal([]byte(redirectsJSON.String), &resp.Redirects); err != nil {
			return nil, fmt.Errorf("decode cached redirects %s: %w", url, err)
		}
	}
	return &resp, nil
}

// CacheResponse stores resp, replacing any previous entry for its URL.
func (d *Database) CacheResponse(ctx context.Context, resp *fetcher.Response) error {
	headersJSON, err := json.Marshal(resp.Headers)
	if err != nil {
		return fmt.Errorf("encode headers: %w", err)
	}
	redirectsJSON, err := json.Marshal(resp.Redirects)
	if err != nil {
		return fmt.Errorf("encode redirects: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO page_cache (url, final_url, status_code, content_type, headers_json,
			redirects_json, body, truncated, ttfb_ms, response_time_ms, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, resp.RequestURL, resp.FinalURL, resp.StatusCode, resp.ContentType, string(headersJSON),
		string(redirectsJSON), resp.Body, resp.Truncated, resp.TTFB.Milliseconds(),
		resp.ResponseTime.Milliseconds(), resp.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("cache response %s: %w", resp.RequestURL, err)
	}
	return nil
}

// PurgeCache removes cached responses fetched before cutoff and reports how
// many were deleted.
func (d *Database) PurgeCache(ctx context.Context, cutoff time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.ExecContext(ctx, `DELETE FROM page_cache WHERE fetched_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}
