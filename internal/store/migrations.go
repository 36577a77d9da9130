package store

const schema = `
CREATE TABLE IF NOT EXISTS theaters (
    arm TEXT PRIMARY KEY,
    status TEXT NOT NULL DEFAULT 'idle',
    current_item_id TEXT,
    total_progress INTEGER NOT NULL DEFAULT 0,
    energy_allocation INTEGER NOT NULL DEFAULT 50,
    last_activity TIMESTAMP
);

CREATE TABLE IF NOT EXISTS logs (
    id TEXT PRIMARY KEY,
    arm TEXT NOT NULL REFERENCES theaters(arm),
    timestamp TIMESTAMP NOT NULL,
    action TEXT NOT NULL,
    details TEXT,
    duration_min INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_logs_arm_timestamp ON logs(arm, timestamp DESC);

CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    arm TEXT NOT NULL REFERENCES theaters(arm),
    title TEXT NOT NULL,
    description TEXT,
    gap INTEGER NOT NULL DEFAULT 0,
    early_bonus BOOLEAN NOT NULL DEFAULT FALSE,
    manually_selected BOOLEAN NOT NULL DEFAULT FALSE,
    locked BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP,
    last_updated TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_arm ON items(arm);

CREATE TABLE IF NOT EXISTS reflections (
    id TEXT PRIMARY KEY,
    arm TEXT NOT NULL REFERENCES theaters(arm),
    timestamp TIMESTAMP NOT NULL,
    evidence TEXT NOT NULL,
    context TEXT
);

CREATE INDEX IF NOT EXISTS idx_reflections_arm_timestamp ON reflections(arm, timestamp DESC);

CREATE TABLE IF NOT EXISTS metrics (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    combined_progress INTEGER NOT NULL DEFAULT 0,
    energy_ibm INTEGER NOT NULL DEFAULT 50,
    energy_cs INTEGER NOT NULL DEFAULT 50,
    overload_risk INTEGER NOT NULL DEFAULT 0,
    last_sync TIMESTAMP
);
`
