package queue

// Schema for the item store. Additive changes only; destructive changes
// require users to clear the database.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS items (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    external_id   TEXT    NOT NULL UNIQUE,
    title         TEXT    NOT NULL,
    published_at  TEXT,
    duration_secs INTEGER NOT NULL DEFAULT 0,
    status        TEXT    NOT NULL,
    processed_at  TEXT,
    notes         TEXT,
    created_at    TEXT    NOT NULL,
    updated_at    TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
CREATE INDEX IF NOT EXISTS idx_items_published_at ON items(published_at);

CREATE TABLE IF NOT EXISTS transcripts (
    item_id    INTEGER PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
    body       TEXT    NOT NULL,
    language   TEXT    NOT NULL DEFAULT '',
    created_at TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_records (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id       INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    agent_kind    TEXT    NOT NULL,
    findings_json TEXT    NOT NULL DEFAULT '[]',
    summary       TEXT    NOT NULL DEFAULT '',
    confidence    TEXT    NOT NULL DEFAULT '',
    raw_output    TEXT    NOT NULL DEFAULT '',
    created_at    TEXT    NOT NULL,
    updated_at    TEXT    NOT NULL,
    UNIQUE(item_id, agent_kind)
);
`
