package db

// SchemaVersion is the current database schema version
const SchemaVersion = 1

const schema = `
-- Checklist items table
CREATE TABLE IF NOT EXISTS checklist_items (
    id TEXT PRIMARY KEY,
    review_id TEXT NOT NULL,
    phase TEXT NOT NULL DEFAULT 'on_site',
    title TEXT NOT NULL,
    completed INTEGER NOT NULL DEFAULT 0,
    completed_at DATETIME,
    completed_by TEXT DEFAULT '',
    notes TEXT DEFAULT '',
    sync_status TEXT NOT NULL DEFAULT 'pending',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Field evidence table; blobs live here and nowhere else
CREATE TABLE IF NOT EXISTS field_evidence (
    id TEXT PRIMARY KEY,
    review_id TEXT NOT NULL,
    checklist_item_id TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'photo',
    mime_type TEXT NOT NULL DEFAULT 'application/octet-stream',
    file_name TEXT NOT NULL DEFAULT '',
    file_size INTEGER NOT NULL DEFAULT 0,
    data BLOB,
    thumbnail BLOB,
    gps_lat REAL,
    gps_lon REAL,
    gps_accuracy REAL,
    captured_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    annotated INTEGER NOT NULL DEFAULT 0,
    sync_status TEXT NOT NULL DEFAULT 'pending',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (checklist_item_id) REFERENCES checklist_items(id)
);

-- Draft findings table; evidence_ids is a JSON array of weak references
CREATE TABLE IF NOT EXISTS draft_findings (
    id TEXT PRIMARY KEY,
    review_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT DEFAULT '',
    severity TEXT NOT NULL DEFAULT 'observation',
    area_code TEXT DEFAULT '',
    question_id TEXT DEFAULT '',
    evidence_ids TEXT DEFAULT '[]',
    gps_lat REAL,
    gps_lon REAL,
    gps_accuracy REAL,
    sync_status TEXT NOT NULL DEFAULT 'pending',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Sync queue table; payload is a metadata-only snapshot, never a blob
CREATE TABLE IF NOT EXISTS sync_queue (
    id TEXT PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    action TEXT NOT NULL,
    payload JSON NOT NULL,
    retry_count INTEGER NOT NULL DEFAULT 0,
    max_retries INTEGER NOT NULL DEFAULT 3,
    last_attempt_at DATETIME,
    last_error TEXT DEFAULT '',
    conflicted INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Offline sessions table (audit trail of offline working windows)
CREATE TABLE IF NOT EXISTS offline_sessions (
    id TEXT PRIMARY KEY,
    review_id TEXT NOT NULL,
    reviewer_id TEXT NOT NULL,
    device TEXT DEFAULT '',
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    ended_at DATETIME,
    synced_at DATETIME
);

-- Schema metadata and sync bookkeeping
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Secondary indexes backing the range queries
CREATE INDEX IF NOT EXISTS idx_checklist_review ON checklist_items(review_id);
CREATE INDEX IF NOT EXISTS idx_checklist_status ON checklist_items(sync_status);
CREATE INDEX IF NOT EXISTS idx_evidence_review ON field_evidence(review_id);
CREATE INDEX IF NOT EXISTS idx_evidence_item ON field_evidence(checklist_item_id);
CREATE INDEX IF NOT EXISTS idx_evidence_status ON field_evidence(sync_status);
CREATE INDEX IF NOT EXISTS idx_findings_review ON draft_findings(review_id);
CREATE INDEX IF NOT EXISTS idx_findings_status ON draft_findings(sync_status);
CREATE INDEX IF NOT EXISTS idx_queue_created ON sync_queue(created_at);
CREATE INDEX IF NOT EXISTS idx_queue_entity ON sync_queue(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_sessions_review ON offline_sessions(review_id);
`
