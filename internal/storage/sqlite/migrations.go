package sqlite

import (
	"context"
	"database/sql"
)

// schema contains the SQL statements to set up the database schema.
// These run on Init to ensure tables and indices exist.
//
// Record tables keep the full record as a JSON body tagged with schema_version;
// the remaining columns and child tables are index projections of that body.
const schema = `
CREATE TABLE IF NOT EXISTS plants (
    id TEXT PRIMARY KEY,
    scientific_name TEXT NOT NULL,
    family TEXT NOT NULL,
    origin TEXT NOT NULL,
    plant_type TEXT NOT NULL,
    conservation_status TEXT NOT NULL DEFAULT '',
    schema_version INTEGER NOT NULL,
    body TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS plant_regions (
    plant_id TEXT NOT NULL,
    region TEXT NOT NULL,
    PRIMARY KEY (plant_id, region),
    FOREIGN KEY (plant_id) REFERENCES plants(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS plant_common_names (
    plant_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (plant_id, position),
    FOREIGN KEY (plant_id) REFERENCES plants(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS identifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    plant_id TEXT,
    confirmed_plant_id TEXT,
    is_confirmed INTEGER NOT NULL DEFAULT 0,
    schema_version INTEGER NOT NULL,
    body TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    schema_version INTEGER NOT NULL,
    body TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS plant_collections (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    plant_id TEXT NOT NULL,
    schema_version INTEGER NOT NULL,
    body TEXT NOT NULL,
    added_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    body TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    record_id TEXT NOT NULL,
    payload BLOB NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    next_attempt_at INTEGER NOT NULL,
    last_error TEXT NOT NULL DEFAULT '',
    buried INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_plants_scientific_name ON plants(scientific_name);
CREATE INDEX IF NOT EXISTS idx_plants_family ON plants(family);
CREATE INDEX IF NOT EXISTS idx_plants_type ON plants(plant_type);
CREATE INDEX IF NOT EXISTS idx_plants_origin ON plants(origin);
CREATE INDEX IF NOT EXISTS idx_plant_regions_region ON plant_regions(region);
CREATE INDEX IF NOT EXISTS idx_plant_common_names_name ON plant_common_names(name);
CREATE INDEX IF NOT EXISTS idx_identifications_user ON identifications(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_plant_collections_user ON plant_collections(user_id, added_at);
CREATE INDEX IF NOT EXISTS idx_outbox_due ON outbox(buried, next_attempt_at);
CREATE INDEX IF NOT EXISTS idx_outbox_record ON outbox(record_id, id);
`

// runMigrations executes the schema setup.
func runMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
