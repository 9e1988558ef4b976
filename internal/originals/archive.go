package originals

import (
	"context"
	"errors"
	"fmt"

	"github.com/tiendc/go-deepcopy"

	"origtext/internal/models"
	"origtext/internal/util"
)

type ArchiveRequest struct {
	TargetCatalogueID int
	// IDMap maps source artifact ids to target ids.
	IDMap map[string]string
	// EntryMap maps source entry ids to target entry ids.
	EntryMap map[string]string
	Sources  []models.OriginalText
}

var errNoStoredFile = errors.New("source has no stored file")

// Archive copies artifacts into the target catalogue. A failing item is
// reported in its result and does not stop the batch. Successful copies are
// written in one batch, document store first.
func (s *Service) Archive(ctx context.Context, req ArchiveRequest) ([]models.ArchivingResult, error) {
	if len(req.IDMap) == 0 || len(req.EntryMap) == 0 {
		return nil, util.Validation("archive id and entry mappings must not be empty")
	}

	now := s.now()
	results := make([]models.ArchivingResult, 0, len(req.Sources))
	copies := make([]models.OriginalText, 0, len(req.Sources))
	for _, src := range req.Sources {
		res := models.ArchivingResult{
			SourceID:      src.ID,
			SourceEntryID: src.EntryID,
			Title:         src.Title,
			Kind:          models.ResultKindFile,
		}
		dst, err := s.archiveCopy(src, req)
		if err != nil {
			res.Status = models.ResultFailure
			res.Message = err.Error()
			results = append(results, res)
			s.log.Warn("archive item failed", "sourceId", src.ID, "error", err)
			continue
		}
		dst.GmtCreate = now
		dst.GmtModified = now
		res.TargetID = dst.ID
		res.Status = models.ResultSuccess
		results = append(results, res)
		copies = append(copies, dst)
	}

	if len(copies) > 0 {
		if err := s.docs.SaveAll(ctx, copies); err != nil {
			return nil, util.Failed("archive save failed", err)
		}
		if err := s.index.SaveAll(ctx, copies); err != nil {
			return nil, util.Failed("archive index failed", err)
		}
	}
	s.log.Info("archive batch finished",
		"targetCatalogueId", req.TargetCatalogueID, "items", len(req.Sources), "copied", len(copies))
	return results, nil
}

// archiveCopy copies src into the target scope; the attribute map is deep-copied. A missing per-item id
// mapping gets a fresh id; a missing entry mapping leaves the entry empty.
func (s *Service) archiveCopy(src models.OriginalText, req ArchiveRequest) (dst models.OriginalText, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("copy failed: %v", r)
		}
	}()
	if src.MD5 == "" {
		return models.OriginalText{}, errNoStoredFile
	}
	dst = src
	dst.FileAttributesMap = nil
	if src.FileAttributesMap != nil {
		if err := deepcopy.Copy(&dst.FileAttributesMap, src.FileAttributesMap); err != nil {
			return models.OriginalText{}, fmt.Errorf("copy attributes failed: %w", err)
		}
	}
	dst.CatalogueID = req.TargetCatalogueID
	dst.ID = req.IDMap[src.ID]
	if dst.ID == "" {
		dst.ID = s.newID()
	}
	dst.EntryID = req.EntryMap[src.EntryID]
	return dst, nil
}
