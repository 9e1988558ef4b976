package docstore

import (
	"context"
	"fmt"
	"time"

	"origtext/internal/models"
)

// Filter narrows FindAll. With AllEntries set the entry restriction is
// ignored; otherwise only EntryIDs match and an empty set matches nothing.
// An empty Types matches every type.
type Filter struct {
	Types      []int
	EntryIDs   []string
	AllEntries bool
}

// Store is the durable document store and the source of truth for artifacts.
type Store interface {
	Save(ctx context.Context, o models.OriginalText) error
	SaveAll(ctx context.Context, items []models.OriginalText) error
	FindByID(ctx context.Context, catalogueID int, id string) (models.OriginalText, bool, error)
	DeleteByID(ctx context.Context, catalogueID int, id string) error
	// UpdateMetadata and UpdateOrder touch only their own fields, so they never
	// overwrite processing results written concurrently. A missing id is a no-op.
	UpdateMetadata(ctx context.Context, catalogueID int, id string, m models.Metadata, modified time.Time) error
	UpdateOrder(ctx context.Context, catalogueID int, id string, order int, modified time.Time) error
	FindAll(ctx context.Context, catalogueID int, f Filter, page models.Page) ([]models.OriginalText, int64, error)
}

// CollectionName is the per-catalogue namespace for artifact documents.
func CollectionName(catalogueID int) string {
	return fmt.Sprintf("archive_record_originalText_%d", catalogueID)
}

// metadataFields and orderFields are keyed by stored field name.
func metadataFields(m models.Metadata, modified time.Time) map[string]any {
	return map[string]any{
		"title":       m.Title,
		"type":        m.Type,
		"version":     m.Version,
		"remark":      m.Remark,
		"gmtModified": modified,
	}
}

func orderFields(order int, modified time.Time) map[string]any {
	return map[string]any{
		"orderNumber": order,
		"gmtModified": modified,
	}
}

func groupByCatalogue(items []models.OriginalText) map[int][]models.OriginalText {
	out := make(map[int][]models.OriginalText)
	for _, it := range items {
		out[it.CatalogueID] = append(out[it.CatalogueID], it)
	}
	return out
}

func matchesTypes(types []int, t int) bool {
	if len(types) == 0 {
		return true
	}
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}
