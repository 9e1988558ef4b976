package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"origtext/internal/models"
	"origtext/internal/originals"
	"origtext/internal/util"
)

type artifactForm struct {
	ID          string `form:"id"`
	CatalogueID int    `form:"catalogueId" binding:"required"`
	EntryID     string `form:"entryId"`
	Title       string `form:"title"`
	Type        int    `form:"type"`
	Version     string `form:"version"`
	Remark      string `form:"remark"`
}

func (f artifactForm) model() models.OriginalText {
	return models.OriginalText{
		ID:          f.ID,
		CatalogueID: f.CatalogueID,
		EntryID:     f.EntryID,
		Title:       f.Title,
		Type:        f.Type,
		Version:     f.Version,
		Remark:      f.Remark,
	}
}

type artifactQuery struct {
	CatalogueID int    `form:"catalogueId" binding:"required"`
	ID          string `form:"id" binding:"required"`
}

type listQuery struct {
	CatalogueID int    `form:"catalogueId" binding:"required"`
	EntryID     string `form:"entryId" binding:"required"`
	Title       string `form:"title"`
	Page        int    `form:"page"`
	Size        int    `form:"size"`
}

type scrollQuery struct {
	ArchivingAll bool     `form:"archivingAll"`
	CatalogueID  int      `form:"catalogueId" binding:"required"`
	EntryIDs     []string `form:"entryIds"`
	Types        []int    `form:"types"`
	Page         int      `form:"page"`
	Size         int      `form:"size"`
}

type sortRequest struct {
	CatalogueID int    `json:"catalogueId" binding:"required"`
	IDA         string `json:"idA" binding:"required"`
	IDB         string `json:"idB" binding:"required"`
}

type archiveRequest struct {
	TargetCatalogueID int                   `json:"targetCatalogueId" binding:"required"`
	IDMap             map[string]string     `json:"idMap"`
	EntryMap          map[string]string     `json:"entryMap"`
	Sources           []models.OriginalText `json:"sources"`
}

func (s *Server) handleSave(c *gin.Context) {
	var form artifactForm
	if err := c.ShouldBind(&form); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	up, closeFn, err := formUpload(c)
	if err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	defer closeFn()

	art, err := s.svc.Save(c.Request.Context(), form.model(), up)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, art)
}

func (s *Server) handleUpdate(c *gin.Context) {
	var form artifactForm
	if err := c.ShouldBind(&form); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	up, closeFn, err := formUpload(c)
	if err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	defer closeFn()

	art, err := s.svc.Update(c.Request.Context(), form.model(), up)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, art)
}

func (s *Server) handleDelete(c *gin.Context) {
	var refs []models.ArtifactRef
	if err := c.ShouldBindJSON(&refs); err != nil {
		writeErr(c, http.StatusBadRequest, util.Validation("malformed JSON request body"))
		return
	}
	if err := s.svc.Delete(c.Request.Context(), refs); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGet(c *gin.Context) {
	var q artifactQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	out, err := s.svc.Get(c.Request.Context(), q.CatalogueID, q.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleFileAttributes(c *gin.Context) {
	var q artifactQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	out, err := s.svc.FileAttributes(c.Request.Context(), q.CatalogueID, q.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDownload(c *gin.Context) {
	var q artifactQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	kind := originals.DownloadOriginal
	switch c.DefaultQuery("type", "1") {
	case "1":
	case "2":
		kind = originals.DownloadPDF
	default:
		writeErr(c, http.StatusBadRequest, util.Validation("type must be 1 or 2"))
		return
	}

	dl, err := s.svc.Download(c.Request.Context(), kind, q.CatalogueID, q.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer func() {
		if err := dl.Close(); err != nil {
			s.log.Error("release download failed", "catalogueId", q.CatalogueID, "id", q.ID, "error", err)
		}
	}()
	c.DataFromReader(http.StatusOK, dl.Size, "application/octet-stream", dl, map[string]string{
		"Content-Disposition": "attachment;filename=" + url.QueryEscape(dl.Filename),
	})
}

func (s *Server) handleList(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	out, err := s.svc.List(c.Request.Context(), q.CatalogueID, q.EntryID, q.Title, models.Page{Number: q.Page, Size: q.Size})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSort(c *gin.Context) {
	var req sortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	if err := s.svc.Sort(c.Request.Context(), req.CatalogueID, req.IDA, req.IDB); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleScroll(c *gin.Context) {
	var q scrollQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	out, err := s.svc.Scroll(c.Request.Context(), originals.ScrollRequest{
		ArchivingAll: q.ArchivingAll,
		CatalogueID:  q.CatalogueID,
		EntryIDs:     q.EntryIDs,
		Types:        q.Types,
		Page:         models.Page{Number: q.Page, Size: q.Size},
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleArchive(c *gin.Context) {
	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, err)
		return
	}
	results, err := s.svc.Archive(c.Request.Context(), originals.ArchiveRequest{
		TargetCatalogueID: req.TargetCatalogueID,
		IDMap:             req.IDMap,
		EntryMap:          req.EntryMap,
		Sources:           req.Sources,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// formUpload opens the optional multipart "file" part.
func formUpload(c *gin.Context) (originals.Upload, func(), error) {
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return originals.Upload{}, func() {}, nil
	}
	if err != nil {
		return originals.Upload{}, func() {}, util.Validation("malformed multipart request")
	}
	f, err := fh.Open()
	if err != nil {
		return originals.Upload{}, func() {}, util.Failed("read upload failed", err)
	}
	return uploadFrom(fh, f), func() { _ = f.Close() }, nil
}

func uploadFrom(fh *multipart.FileHeader, f multipart.File) originals.Upload {
	return originals.Upload{Filename: fh.Filename, Size: fh.Size, Reader: f}
}
