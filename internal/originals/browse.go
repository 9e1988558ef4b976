package originals

import (
	"context"
	"io"

	"origtext/internal/blobstore"
	"origtext/internal/docstore"
	"origtext/internal/models"
	"origtext/internal/util"
)

// List pages through an entry's artifacts by order number, optionally
// filtered by a title substring.
func (s *Service) List(ctx context.Context, catalogueID int, entryID, title string, page models.Page) (models.PageResult, error) {
	page = page.Normalize()
	items, total, err := s.index.Search(ctx, catalogueID, entryID, title, page)
	if err != nil {
		return models.PageResult{}, util.Failed("list original texts failed", err)
	}
	return models.PageResult{Items: items, Total: total, Page: page.Number, Size: page.Size}, nil
}

type ScrollRequest struct {
	ArchivingAll bool
	CatalogueID  int
	EntryIDs     []string
	Types        []int
	Page         models.Page
}

// Scroll enumerates archive candidates: by type across the whole catalogue,
// or restricted to the given entries.
func (s *Service) Scroll(ctx context.Context, req ScrollRequest) (models.PageResult, error) {
	page := req.Page.Normalize()
	items, total, err := s.docs.FindAll(ctx, req.CatalogueID, docstore.Filter{
		Types:      req.Types,
		EntryIDs:   req.EntryIDs,
		AllEntries: req.ArchivingAll,
	}, page)
	if err != nil {
		return models.PageResult{}, util.Failed("scroll original texts failed", err)
	}
	return models.PageResult{Items: items, Total: total, Page: page.Number, Size: page.Size}, nil
}

// Get returns the descriptive fields of an artifact, or an empty map.
func (s *Service) Get(ctx context.Context, catalogueID int, id string) (map[string]any, error) {
	o, found, err := s.docs.FindByID(ctx, catalogueID, id)
	if err != nil {
		return nil, util.Failed("load original text failed", err)
	}
	if !found {
		return map[string]any{}, nil
	}
	return o.Describe(), nil
}

func (s *Service) FileAttributes(ctx context.Context, catalogueID int, id string) (map[string]any, error) {
	o, found, err := s.docs.FindByID(ctx, catalogueID, id)
	if err != nil {
		return nil, util.Failed("load original text failed", err)
	}
	if !found || o.FileAttributesMap == nil {
		return map[string]any{}, nil
	}
	return o.FileAttributesMap, nil
}

type DownloadKind int

const (
	DownloadOriginal DownloadKind = 1
	DownloadPDF      DownloadKind = 2
)

// Download is a scratch-backed file handle. Close releases the scratch area.
type Download struct {
	Filename string
	Size     int64
	io.ReadCloser
}

func (s *Service) Download(ctx context.Context, kind DownloadKind, catalogueID int, id string) (dl *Download, err error) {
	o, err := s.mustFind(ctx, catalogueID, id)
	if err != nil {
		return nil, err
	}
	digest, filename := o.MD5, o.Name
	if kind != DownloadOriginal {
		if o.PDFConverStatus != models.StatusSuccess || o.PDFMD5 == "" {
			return nil, util.Failed("no PDF rendition available", nil)
		}
		digest, filename = o.PDFMD5, o.PDFName()
	}
	owner, err := s.resolveOwner(ctx, catalogueID)
	if err != nil {
		return nil, err
	}

	scratch, err := util.NewScratch(s.scratchDir, "download")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			scratch.ReleaseInto(&err)
		}
	}()

	f, err := scratch.Create(filename)
	if err != nil {
		return nil, err
	}
	if err := s.blobs.Get(ctx, blobstore.PathFor(owner, digest), digest, f); err != nil {
		_ = f.Close()
		return nil, err
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return nil, util.Failed("write scratch file", err)
	}
	sf, err := util.OpenScratchFile(scratch, path)
	if err != nil {
		return nil, err
	}
	info, err := sf.Stat()
	if err != nil {
		_ = sf.Close()
		return nil, util.Failed("stat download", err)
	}
	return &Download{Filename: filename, Size: info.Size(), ReadCloser: sf}, nil
}
