package catalog

// schema is the initial-version DDL. Timestamps are ISO-8601 UTC strings
// with second precision; the zero-padded format makes lexical comparison
// valid, so queries compare them directly.
const schema = `
CREATE TABLE IF NOT EXISTS cards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_path TEXT NOT NULL,
    card_key TEXT NOT NULL,
    adapter TEXT NOT NULL,
    content TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    display_text TEXT NOT NULL DEFAULT '',
    gradable INTEGER NOT NULL DEFAULT 1,
    source_line INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    UNIQUE(source_path, card_key, adapter)
);

CREATE TABLE IF NOT EXISTS card_state (
    card_id INTEGER PRIMARY KEY REFERENCES cards(id),
    status TEXT NOT NULL CHECK(status IN ('active','inactive','deleted')),
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS card_relations (
    upstream_card_id INTEGER NOT NULL REFERENCES cards(id),
    downstream_card_id INTEGER NOT NULL REFERENCES cards(id),
    relation_type TEXT NOT NULL,
    PRIMARY KEY (upstream_card_id, downstream_card_id, relation_type)
);

CREATE TABLE IF NOT EXISTS card_tags (
    card_id INTEGER NOT NULL REFERENCES cards(id),
    tag TEXT NOT NULL,
    PRIMARY KEY (card_id, tag)
);

CREATE TABLE IF NOT EXISTS review_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id INTEGER NOT NULL REFERENCES cards(id),
    session_id TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    grade INTEGER NOT NULL CHECK(grade IN (0, 1)),
    time_on_front_ms INTEGER,
    time_on_card_ms INTEGER,
    feedback TEXT CHECK(feedback IS NULL OR feedback IN ('too_hard','just_right','too_easy')),
    response TEXT
);

CREATE TABLE IF NOT EXISTS recommendations (
    card_id INTEGER NOT NULL REFERENCES cards(id),
    scheduler_id TEXT NOT NULL,
    time TEXT NOT NULL,
    precision_seconds INTEGER NOT NULL,
    PRIMARY KEY (card_id, scheduler_id)
);

CREATE TABLE IF NOT EXISTS card_flags (
    card_id INTEGER NOT NULL REFERENCES cards(id),
    flag TEXT NOT NULL,
    note TEXT,
    created_at TEXT NOT NULL,
    PRIMARY KEY (card_id, flag)
);

CREATE INDEX IF NOT EXISTS idx_cards_source_path ON cards(source_path);
CREATE INDEX IF NOT EXISTS idx_card_state_status ON card_state(status);
CREATE INDEX IF NOT EXISTS idx_recommendations_time ON recommendations(time);
`
