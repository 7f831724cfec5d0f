package postgres

// Schema contains the SQL statements to create the database schema for
// PostgreSQL. All statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS owners (
    id TEXT PRIMARY KEY,
    display_name TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL REFERENCES owners(id),
    day TEXT NOT NULL,              -- YYYY-MM-DD bucket
    start_time TIMESTAMPTZ NOT NULL,
    end_time TIMESTAMPTZ,
    event_type TEXT NOT NULL,
    title TEXT,
    provider TEXT,
    external_id TEXT,
    details JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_events_owner_day ON events(owner, day);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_provider_ext
    ON events(owner, provider, external_id)
    WHERE external_id IS NOT NULL AND external_id != '';

CREATE TABLE IF NOT EXISTS sessions (
    owner TEXT NOT NULL,
    day TEXT NOT NULL,
    snapshot JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (owner, day)
);
`

// MigrationVector adds the embedding column used for similarity search.
// Applied only when the pgvector extension is present.
const MigrationVector = `
ALTER TABLE events ADD COLUMN IF NOT EXISTS embedding_vec vector(768);
CREATE INDEX IF NOT EXISTS idx_events_embedding
    ON events USING ivfflat (embedding_vec vector_cosine_ops);
`
