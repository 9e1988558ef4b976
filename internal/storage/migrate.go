package storage

import (
	"context"
	"fmt"
)

// schema is applied idempotently at start-up. archive_entries and catalogues
// belong to the catalogue management service; they are only created here so a
// fresh database can serve lookups.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
	`CREATE TABLE IF NOT EXISTS catalogues (
  id INT PRIMARY KEY,
  fonds_id INT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS archive_entries (
  catalogue_id INT NOT NULL,
  id TEXT NOT NULL,
  PRIMARY KEY (catalogue_id, id)
)`,
	`CREATE TABLE IF NOT EXISTS original_text_index (
  catalogue_id INT NOT NULL,
  id TEXT NOT NULL,
  entry_id TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  type INT NOT NULL DEFAULT 0,
  version TEXT NOT NULL DEFAULT '',
  remark TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL DEFAULT '',
  size BIGINT NOT NULL DEFAULT 0,
  md5 TEXT NOT NULL DEFAULT '',
  order_number INT NOT NULL DEFAULT 0,
  content_index TEXT,
  content_index_status SMALLINT NOT NULL DEFAULT 0,
  pdf_md5 TEXT,
  pdf_conver_status SMALLINT NOT NULL DEFAULT 0,
  file_attributes JSONB,
  create_time TIMESTAMPTZ,
  gmt_create TIMESTAMPTZ,
  gmt_modified TIMESTAMPTZ,
  PRIMARY KEY (catalogue_id, id)
)`,
	`CREATE INDEX IF NOT EXISTS original_text_index_entry_order_idx
  ON original_text_index (catalogue_id, entry_id, order_number)`,
	`CREATE INDEX IF NOT EXISTS original_text_index_title_trgm_idx
  ON original_text_index USING gin (title gin_trgm_ops)`,
}

func Migrate(ctx context.Context, db *DB) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
