package storage

// Schema contains SQL statements to create database tables.
const Schema = `
-- Audits table: one row per audit run
CREATE TABLE IF NOT EXISTS audits (
    id TEXT PRIMARY KEY,
    root_url TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    completed_at DATETIME,
    status TEXT NOT NULL DEFAULT 'running',
    page_count INTEGER DEFAULT 0,
    result_count INTEGER DEFAULT 0,
    stats_json TEXT,
    config_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_audits_started_at ON audits(started_at);

-- Pages table: page snapshot plus crawl graph metrics
CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    audit_id TEXT NOT NULL REFERENCES audits(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    status_code INTEGER,
    title TEXT,
    h1 TEXT,
    word_count INTEGER DEFAULT 0,
    content_hash TEXT,
    is_indexable BOOLEAN DEFAULT 1,
    depth INTEGER DEFAULT -1,
    in_links INTEGER DEFAULT 0,
    out_links INTEGER DEFAULT 0,
    external_links INTEGER DEFAULT 0,
    is_orphan BOOLEAN DEFAULT 0,
    duplicates INTEGER DEFAULT 0,
    UNIQUE(audit_id, url)
);

CREATE INDEX IF NOT EXISTS idx_pages_audit ON pages(audit_id);
CREATE INDEX IF NOT EXISTS idx_pages_content_hash ON pages(audit_id, content_hash);

-- Links table: every edge of the crawl graph, duplicates included
CREATE TABLE IF NOT EXISTS links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    audit_id TEXT NOT NULL REFERENCES audits(id) ON DELETE CASCADE,
    from_url TEXT NOT NULL,
    to_url TEXT NOT NULL,
    anchor_text TEXT,
    is_internal BOOLEAN DEFAULT 0,
    is_nofollow BOOLEAN DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_links_audit_from ON links(audit_id, from_url);
CREATE INDEX IF NOT EXISTS idx_links_audit_to ON links(audit_id, to_url);

-- Results table: check findings
CREATE TABLE IF NOT EXISTS results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    audit_id TEXT NOT NULL REFERENCES audits(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    check_id TEXT NOT NULL,
    check_name TEXT NOT NULL,
    category TEXT NOT NULL,
    status TEXT NOT NULL,
    severity TEXT NOT NULL,
    message TEXT,
    recommendation TEXT,
    evidence TEXT
);

CREATE INDEX IF NOT EXISTS idx_results_audit ON results(audit_id);
CREATE INDEX IF NOT EXISTS idx_results_status ON results(audit_id, status);
CREATE INDEX IF NOT EXISTS idx_results_check ON results(audit_id, check_id);

-- Page cache: fetched responses reused across runs
CREATE TABLE IF NOT EXISTS page_cache (
    url TEXT PRIMARY KEY,
    final_url TEXT NOT NULL,
    status_code INTEGER NOT NULL,
    content_type TEXT,
    headers_json TEXT,
    redirects_json TEXT,
    body BLOB,
    truncated BOOLEAN DEFAULT 0,
    ttfb_ms INTEGER DEFAULT 0,
    response_time_ms INTEGER DEFAULT 0,
    fetched_at DATETIME NOT NULL
);
`

// ViewsSchema contains reporting views.
const ViewsSchema = `
-- Failing checks per audit, worst first
CREATE VIEW IF NOT EXISTS v_issue_counts AS
SELECT
    audit_id,
    check_id,
    check_name,
    category,
    severity,
    SUM(CASE WHEN status = 'Fail' THEN 1 ELSE 0 END) AS failures,
    SUM(CASE WHEN status = 'Warning' THEN 1 ELSE 0 END) AS warnings,
    COUNT(DISTINCT url) AS pages
FROM results
WHERE status IN ('Fail', 'Warning')
GROUP BY audit_id, check_id, check_name, category, severity;
`
