package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"origtext/internal/util"
)

type CatalogueRepo struct {
	db *DB
}

func NewCatalogueRepo(db *DB) *CatalogueRepo {
	return &CatalogueRepo{db: db}
}

// ResolveOwner returns the fonds id that owns the catalogue's blob namespace.
func (r *CatalogueRepo) ResolveOwner(ctx context.Context, catalogueID int) (int, error) {
	var fondsID int
	err := r.db.Pool.QueryRow(ctx, `SELECT fonds_id FROM catalogues WHERE id=$1`, catalogueID).Scan(&fondsID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, util.NotFound(fmt.Sprintf("catalogue %d not found", catalogueID))
	}
	if err != nil {
		return 0, fmt.Errorf("resolve catalogue owner: %w", err)
	}
	return fondsID, nil
}
