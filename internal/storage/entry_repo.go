package storage

import (
	"context"
	"fmt"
)

// EntryRepo answers existence checks against archival entries.
type EntryRepo struct {
	db *DB
}

func NewEntryRepo(db *DB) *EntryRepo {
	return &EntryRepo{db: db}
}

func (r *EntryRepo) Exists(ctx context.Context, catalogueID int, entryID string) (bool, error) {
	if entryID == "" {
		return false, nil
	}
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM archive_entries WHERE catalogue_id=$1 AND id=$2)`, catalogueID, entryID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check entry exists: %w", err)
	}
	return ok, nil
}
