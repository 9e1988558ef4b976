package originals

import (
	"context"
	"fmt"

	"origtext/internal/models"
	"origtext/internal/util"
)

// Sort swaps the order numbers of two artifacts. Both are loaded before any
// write; writes go A document, A index, B document, B index.
func (s *Service) Sort(ctx context.Context, catalogueID int, idA, idB string) error {
	if idA == idB {
		return nil
	}
	a, err := s.mustFind(ctx, catalogueID, idA)
	if err != nil {
		return err
	}
	b, err := s.mustFind(ctx, catalogueID, idB)
	if err != nil {
		return err
	}

	now := s.now()
	if err := s.setOrder(ctx, catalogueID, a.ID, b.OrderNumber, now); err != nil {
		return err
	}
	if err := s.setOrder(ctx, catalogueID, b.ID, a.OrderNumber, now); err != nil {
		return err
	}
	s.log.Info("original texts reordered", "catalogueId", catalogueID, "a", a.ID, "b", b.ID)
	return nil
}

func (s *Service) mustFind(ctx context.Context, catalogueID int, id string) (models.OriginalText, error) {
	o, found, err := s.docs.FindByID(ctx, catalogueID, id)
	if err != nil {
		return models.OriginalText{}, util.Failed("load original text failed", err)
	}
	if !found {
		return models.OriginalText{}, util.NotFound(fmt.Sprintf("original text %s not found", id))
	}
	return o, nil
}
