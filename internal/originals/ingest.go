package originals

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"origtext/internal/blobstore"
	"origtext/internal/models"
	"origtext/internal/util"
)

// Upload is a file received from a caller. Size may be -1 when unknown.
type Upload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

func (u Upload) Empty() bool {
	return u.Reader == nil || u.Size == 0
}

type storedFile struct {
	Name   string
	Size   int64
	Digest string
}

// Save stores a new file and its metadata under an existing entry.
func (s *Service) Save(ctx context.Context, meta models.OriginalText, up Upload) (models.OriginalText, error) {
	if up.Empty() {
		return models.OriginalText{}, util.Validation("file must not be empty")
	}
	owner, err := s.resolveOwner(ctx, meta.CatalogueID)
	if err != nil {
		return models.OriginalText{}, err
	}
	exists, err := s.entries.Exists(ctx, meta.CatalogueID, meta.EntryID)
	if err != nil {
		return models.OriginalText{}, util.Failed("check entry failed", err)
	}
	if !exists {
		return models.OriginalText{}, util.Validation(fmt.Sprintf("entry %q does not exist", meta.EntryID))
	}

	stored, err := s.storeUpload(ctx, owner, up)
	if err != nil {
		return models.OriginalText{}, err
	}
	order, err := s.seq.Next(ctx, meta.CatalogueID, meta.EntryID)
	if err != nil {
		return models.OriginalText{}, util.Failed("assign order number failed", err)
	}

	now := s.now()
	art := meta
	art.ID = s.newID()
	art.OrderNumber = order
	art.CreateTime = now
	art.GmtCreate = now
	art.GmtModified = now
	art.FileAttributesMap = nil
	applyStoredFile(&art, stored)

	if err := s.persist(ctx, art); err != nil {
		return models.OriginalText{}, err
	}
	s.log.Info("original text saved",
		"catalogueId", art.CatalogueID, "entryId", art.EntryID, "id", art.ID, "md5", art.MD5, "orderNumber", art.OrderNumber)
	s.schedule(ctx, art)
	return art, nil
}

// Update changes descriptive metadata and optionally replaces the file. An
// unknown id is saved as a new artifact.
func (s *Service) Update(ctx context.Context, meta models.OriginalText, up Upload) (models.OriginalText, error) {
	var (
		existing models.OriginalText
		found    bool
		err      error
	)
	if meta.ID != "" {
		existing, found, err = s.docs.FindByID(ctx, meta.CatalogueID, meta.ID)
		if err != nil {
			return models.OriginalText{}, util.Failed("load original text failed", err)
		}
	}
	if !found {
		return s.Save(ctx, meta, up)
	}

	if up.Empty() {
		return s.updateMetadata(ctx, existing, meta.Metadata())
	}

	art := existing
	art.Title = meta.Title
	art.Type = meta.Type
	art.Version = meta.Version
	art.Remark = meta.Remark

	owner, err := s.resolveOwner(ctx, art.CatalogueID)
	if err != nil {
		return models.OriginalText{}, err
	}
	stored, err := s.storeUpload(ctx, owner, up)
	if err != nil {
		return models.OriginalText{}, err
	}
	art.FileAttributesMap = nil
	applyStoredFile(&art, stored)
	art.GmtModified = s.now()

	if err := s.persist(ctx, art); err != nil {
		return models.OriginalText{}, err
	}
	s.log.Info("original text updated", "catalogueId", art.CatalogueID, "id", art.ID, "fileReplaced", true)
	s.schedule(ctx, art)
	return art, nil
}

func (s *Service) updateMetadata(ctx context.Context, existing models.OriginalText, m models.Metadata) (models.OriginalText, error) {
	now := s.now()
	if err := s.setMetadata(ctx, existing.CatalogueID, existing.ID, m, now); err != nil {
		return models.OriginalText{}, err
	}
	s.log.Info("original text updated", "catalogueId", existing.CatalogueID, "id", existing.ID, "fileReplaced", false)

	// Re-read so the caller sees any processing result recorded meanwhile.
	art, found, err := s.docs.FindByID(ctx, existing.CatalogueID, existing.ID)
	if err != nil || !found {
		art = existing
		art.Title, art.Type, art.Version, art.Remark = m.Title, m.Type, m.Version, m.Remark
		art.GmtModified = now
	}
	return art, nil
}

// Delete removes each referenced artifact from the document store and the
// index. Blobs stay for external collection. Unknown ids are ignored. One
// failing item does not stop the others; all failures are returned joined.
func (s *Service) Delete(ctx context.Context, refs []models.ArtifactRef) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(s.deleteSlots)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			if err := s.deleteOne(ctx, ref); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", ref.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (s *Service) deleteOne(ctx context.Context, ref models.ArtifactRef) error {
	existing, found, err := s.docs.FindByID(ctx, ref.CatalogueID, ref.ID)
	if err != nil {
		return util.Failed("load original text failed", err)
	}
	entryID := ""
	if found {
		entryID = existing.EntryID
		if err := s.docs.DeleteByID(ctx, ref.CatalogueID, ref.ID); err != nil {
			return util.Failed("delete original text failed", err)
		}
	}
	if err := s.index.Delete(ctx, ref.CatalogueID, ref.ID, entryID); err != nil {
		return util.Failed("delete indexed original text failed", err)
	}
	if found {
		s.log.Info("original text deleted", "catalogueId", ref.CatalogueID, "id", ref.ID)
	}
	return nil
}

func (s *Service) resolveOwner(ctx context.Context, catalogueID int) (int, error) {
	owner, err := s.owners.ResolveOwner(ctx, catalogueID)
	if errors.Is(err, util.ErrNotFound) {
		return 0, util.Validation(fmt.Sprintf("catalogue %d does not exist", catalogueID))
	}
	if err != nil {
		return 0, util.Failed("resolve catalogue failed", err)
	}
	return owner, nil
}

// storeUpload spools the upload to scratch, hashes it and stores it
// content-addressed. The scratch area is released on every path.
func (s *Service) storeUpload(ctx context.Context, owner int, up Upload) (stored storedFile, err error) {
	scratch, err := util.NewScratch(s.scratchDir, "upload")
	if err != nil {
		return storedFile{}, err
	}
	defer scratch.ReleaseInto(&err)

	path, n, err := scratch.WriteFrom(up.Filename, up.Reader)
	if err != nil {
		return storedFile{}, err
	}
	if n == 0 {
		return storedFile{}, util.Validation("file must not be empty")
	}
	digest, _, err := s.hasher.HexFile(path)
	if err != nil {
		return storedFile{}, util.Failed("hash upload failed", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return storedFile{}, util.Failed("read upload failed", err)
	}
	defer f.Close()
	if err := s.blobs.Put(ctx, blobstore.PathFor(owner, digest), digest, f); err != nil {
		return storedFile{}, util.Failed("file upload failed", err)
	}
	return storedFile{Name: util.SafeBase(up.Filename), Size: n, Digest: digest}, nil
}

// applyStoredFile sets the physical fields and resets processing state.
// PDF uploads are their own rendition.
func applyStoredFile(o *models.OriginalText, f storedFile) {
	o.Name = f.Name
	o.Size = f.Size
	o.MD5 = f.Digest
	o.ContentIndex = ""
	o.ContentIndexStatus = models.StatusPending
	o.PDFMD5 = ""
	o.PDFConverStatus = models.StatusPending
	if util.LowerExt(f.Name) == ".pdf" {
		o.PDFMD5 = f.Digest
		o.PDFConverStatus = models.StatusSuccess
	}
}
