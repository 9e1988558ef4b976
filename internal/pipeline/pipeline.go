package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"origtext/internal/blobstore"
	"origtext/internal/convert"
	"origtext/internal/extract"
	"origtext/internal/models"
	"origtext/internal/util"
)

type Documents interface {
	FindByID(ctx context.Context, catalogueID int, id string) (models.OriginalText, bool, error)
	Save(ctx context.Context, o models.OriginalText) error
}

type Index interface {
	Save(ctx context.Context, o models.OriginalText) error
}

type Entries interface {
	Exists(ctx context.Context, catalogueID int, entryID string) (bool, error)
}

type OwnerResolver interface {
	ResolveOwner(ctx context.Context, catalogueID int) (int, error)
}

type Options struct {
	ScratchDir      string
	BlobTimeout     time.Duration
	ConvertTimeout  time.Duration
	// InlineTextLimit is the largest extracted text Stage leaves in the outcome.
	InlineTextLimit int
	Hasher          util.Hasher
	Logger          *slog.Logger
}

// Pipeline turns a freshly stored artifact into its finished state: extracted
// text, a PDF rendition and file attributes. It never returns step failures;
// they end up in the status fields of the Outcome.
type Pipeline struct {
	blobs   blobstore.Store
	docs    Documents
	index   Index
	entries Entries
	owners  OwnerResolver
	formats *extract.Registry
	conv    convert.Converter
	opts    Options
	log     *slog.Logger
}

func New(blobs blobstore.Store, docs Documents, index Index, entries Entries, owners OwnerResolver,
	formats *extract.Registry, conv convert.Converter, opts Options) *Pipeline {
	if formats == nil {
		formats = extract.Default()
	}
	if opts.BlobTimeout <= 0 {
		opts.BlobTimeout = 2 * time.Minute
	}
	if opts.ConvertTimeout <= 0 {
		opts.ConvertTimeout = 5 * time.Minute
	}
	if opts.InlineTextLimit <= 0 {
		opts.InlineTextLimit = 256 << 10
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		blobs:   blobs,
		docs:    docs,
		index:   index,
		entries: entries,
		owners:  owners,
		formats: formats,
		conv:    conv,
		opts:    opts,
		log:     log,
	}
}

// Outcome carries the processed state of one artifact between processing and persistence.
type Outcome struct {
	ContentIndex       string               `json:"contentIndex,omitempty"`
	ContentRef         string               `json:"contentRef,omitempty"`
	ContentIndexStatus models.ProcessStatus `json:"contentIndexStatus"`
	PDFMD5             string               `json:"pdfMd5,omitempty"`
	PDFConverStatus    models.ProcessStatus `json:"pdfConverStatus"`
	Attributes         map[string]any       `json:"attributes,omitempty"`
	ContentError       string               `json:"contentError,omitempty"`
	PDFError           string               `json:"pdfError,omitempty"`
}

func failedOutcome(err error) Outcome {
	return Outcome{
		ContentIndexStatus: models.StatusFailed,
		PDFConverStatus:    models.StatusFailed,
		ContentError:       err.Error(),
		PDFError:           err.Error(),
	}
}

// Run processes the artifact and persists the outcome.
func (p *Pipeline) Run(ctx context.Context, art models.OriginalText) {
	out := p.Process(ctx, art)
	if _, err := p.Persist(ctx, art, out); err != nil {
		p.log.Error("persist processed original text failed",
			"catalogueId", art.CatalogueID, "id", art.ID, "error", err)
	}
}

// Process downloads the stored file into a private scratch area and runs the
// extraction and PDF steps. The scratch area is released before returning.
func (p *Pipeline) Process(ctx context.Context, art models.OriginalText) Outcome {
	log := p.log.With("catalogueId", art.CatalogueID, "id", art.ID, "md5", art.MD5)
	start := time.Now()

	owner, err := p.owners.ResolveOwner(ctx, art.CatalogueID)
	if err != nil {
		log.Warn("resolve owner failed", "error", err)
		return failedOutcome(err)
	}
	scratch, err := util.NewScratch(p.opts.ScratchDir, "postprocess")
	if err != nil {
		log.Warn("scratch area unavailable", "error", err)
		return failedOutcome(err)
	}
	defer func() {
		if err := scratch.Release(); err != nil {
			log.Error("release scratch failed", "error", err)
		}
	}()

	src, err := p.fetch(ctx, scratch, owner, art)
	if err != nil {
		log.Warn("fetch stored file failed", "error", err)
		return failedOutcome(err)
	}

	out := Outcome{Attributes: map[string]any{}}
	if mt, err := mimetype.DetectFile(src); err == nil {
		out.Attributes["mimeType"] = mt.String()
	}

	format, ok := p.formats.Lookup(art.Name)
	if !ok {
		out.ContentIndexStatus = models.StatusUnsupported
		out.PDFConverStatus = models.StatusUnsupported
		log.Info("post-processing skipped, unsupported format", "name", art.Name)
		return out
	}

	p.extractStep(ctx, format, src, &out)
	p.pdfStep(ctx, format, scratch, owner, art, src, &out)

	log.Info("post-processing finished",
		"contentIndexStatus", out.ContentIndexStatus.String(),
		"pdfConverStatus", out.PDFConverStatus.String(),
		"elapsed", time.Since(start).String(),
	)
	return out
}

func (p *Pipeline) fetch(ctx context.Context, scratch *util.Scratch, owner int, art models.OriginalText) (path string, err error) {
	if art.MD5 == "" {
		return "", fmt.Errorf("artifact has no stored file")
	}
	f, err := scratch.Create(art.Name)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = util.Failed("write scratch file", cerr)
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.BlobTimeout)
	defer cancel()
	if err := p.blobs.Get(fetchCtx, blobstore.PathFor(owner, art.MD5), art.MD5, f); err != nil {
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("fetch timed out after %s: %w", p.opts.BlobTimeout, err)
		}
		return "", err
	}
	return f.Name(), nil
}

func (p *Pipeline) extractStep(ctx context.Context, format extract.Format, src string, out *Outcome) {
	if format.Extractor == nil {
		out.ContentIndexStatus = models.StatusUnsupported
		return
	}
	res, err := safeExtract(ctx, format.Extractor, src)
	maps.Copy(out.Attributes, res.Attributes)
	if err != nil {
		out.ContentIndexStatus = models.StatusFailed
		out.ContentError = err.Error()
		return
	}
	out.ContentIndex = res.Text
	out.ContentIndexStatus = models.StatusSuccess
}

func safeExtract(ctx context.Context, ex extract.Extractor, src string) (res extract.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return ex.Extract(ctx, src)
}

func (p *Pipeline) pdfStep(ctx context.Context, format extract.Format, scratch *util.Scratch, owner int,
	art models.OriginalText, src string, out *Outcome) {
	switch {
	case format.NativePDF:
		out.PDFMD5 = art.MD5
		out.PDFConverStatus = models.StatusSuccess
		if n, err := convert.PageCount(src); err == nil {
			out.Attributes["pageCount"] = n
		}
	case format.Convertible && p.conv != nil:
		digest, err := p.render(ctx, scratch, owner, src, out)
		if err != nil {
			out.PDFConverStatus = models.StatusFailed
			out.PDFError = err.Error()
			return
		}
		out.PDFMD5 = digest
		out.PDFConverStatus = models.StatusSuccess
	default:
		out.PDFConverStatus = models.StatusUnsupported
	}
}

// render converts src, normalises the result and stores it content-addressed.
func (p *Pipeline) render(ctx context.Context, scratch *util.Scratch, owner int, src string, out *Outcome) (string, error) {
	outDir := filepath.Join(scratch.Dir(), "pdf")
	if err := util.EnsureDir(outDir); err != nil {
		return "", err
	}
	convCtx, cancel := context.WithTimeout(ctx, p.opts.ConvertTimeout)
	defer cancel()
	converted, err := p.conv.ToPDF(convCtx, src, outDir)
	if err != nil {
		return "", err
	}

	final := filepath.Join(scratch.Dir(), "rendition.pdf")
	if err := convert.Optimize(converted, final); err != nil {
		p.log.Warn("pdf optimize failed, keeping converter output", "error", err)
		final = converted
	}
	if n, err := convert.PageCount(final); err == nil {
		out.Attributes["pageCount"] = n
	}

	digest, _, err := p.opts.Hasher.HexFile(final)
	if err != nil {
		return "", util.Failed("hash pdf rendition", err)
	}
	f, err := os.Open(final)
	if err != nil {
		return "", util.Failed("open pdf rendition", err)
	}
	defer f.Close()

	putCtx, cancelPut := context.WithTimeout(ctx, p.opts.BlobTimeout)
	defer cancelPut()
	if err := p.blobs.Put(putCtx, blobstore.PathFor(owner, digest), digest, f); err != nil {
		return "", err
	}
	return digest, nil
}

// Persist applies out to the stored record, document store first. It is
// abandoned without error when the entry or artifact is gone, or when the
// stored file was replaced after processing began.
func (p *Pipeline) Persist(ctx context.Context, art models.OriginalText, out Outcome) (bool, error) {
	log := p.log.With("catalogueId", art.CatalogueID, "id", art.ID)

	exists, err := p.entries.Exists(ctx, art.CatalogueID, art.EntryID)
	if err != nil {
		return false, fmt.Errorf("check entry: %w", err)
	}
	if !exists {
		log.Info("entry removed during post-processing, result dropped", "entryId", art.EntryID)
		return false, nil
	}
	current, found, err := p.docs.FindByID(ctx, art.CatalogueID, art.ID)
	if err != nil {
		return false, fmt.Errorf("reload original text: %w", err)
	}
	if !found {
		log.Info("original text removed during post-processing, result dropped")
		return false, nil
	}
	if current.MD5 != art.MD5 {
		log.Info("file replaced during post-processing, result dropped", "md5", art.MD5, "currentMd5", current.MD5)
		return false, nil
	}

	if out.ContentRef != "" {
		text, err := p.loadText(ctx, art.CatalogueID, out.ContentRef)
		if err != nil {
			return false, err
		}
		out.ContentIndex, out.ContentRef = text, ""
	}

	Apply(&current, out)
	current.GmtModified = time.Now()
	if err := p.docs.Save(ctx, current); err != nil {
		return false, fmt.Errorf("save processed original text: %w", err)
	}
	if err := p.index.Save(ctx, current); err != nil {
		return false, fmt.Errorf("index processed original text: %w", err)
	}
	return true, nil
}

// Stage moves extracted text above the inline limit into the blob store and
// leaves a reference in its place, keeping the outcome small enough to pass
// between workflow activities. Persist reads the text back.
func (p *Pipeline) Stage(ctx context.Context, art models.OriginalText, out Outcome) Outcome {
	if len(out.ContentIndex) <= p.opts.InlineTextLimit {
		return out
	}
	digest := p.opts.Hasher.Hex([]byte(out.ContentIndex))
	owner, err := p.owners.ResolveOwner(ctx, art.CatalogueID)
	if err == nil {
		putCtx, cancel := context.WithTimeout(ctx, p.opts.BlobTimeout)
		err = p.blobs.Put(putCtx, blobstore.PathFor(owner, digest), textKey(digest), strings.NewReader(out.ContentIndex))
		cancel()
	}
	if err != nil {
		p.log.Warn("stage extracted text failed", "catalogueId", art.CatalogueID, "id", art.ID, "error", err)
		out.ContentIndex = ""
		out.ContentIndexStatus = models.StatusFailed
		out.ContentError = fmt.Sprintf("stage extracted text: %v", err)
		return out
	}
	out.ContentIndex = ""
	out.ContentRef = digest
	return out
}

func textKey(digest string) string {
	return digest + ".txt"
}

func (p *Pipeline) loadText(ctx context.Context, catalogueID int, digest string) (string, error) {
	owner, err := p.owners.ResolveOwner(ctx, catalogueID)
	if err != nil {
		return "", fmt.Errorf("resolve owner: %w", err)
	}
	getCtx, cancel := context.WithTimeout(ctx, p.opts.BlobTimeout)
	defer cancel()
	var b strings.Builder
	if err := p.blobs.Get(getCtx, blobstore.PathFor(owner, digest), textKey(digest), &b); err != nil {
		return "", fmt.Errorf("load staged text: %w", err)
	}
	return b.String(), nil
}

// Apply copies the outcome's statuses and payloads onto o.
func Apply(o *models.OriginalText, out Outcome) {
	o.ContentIndexStatus = out.ContentIndexStatus
	o.ContentIndex = ""
	if out.ContentIndexStatus == models.StatusSuccess {
		o.ContentIndex = out.ContentIndex
	}
	o.PDFConverStatus = out.PDFConverStatus
	o.PDFMD5 = ""
	if out.PDFConverStatus == models.StatusSuccess {
		o.PDFMD5 = out.PDFMD5
	}
	if len(out.Attributes) > 0 {
		if o.FileAttributesMap == nil {
			o.FileAttributesMap = make(map[string]any, len(out.Attributes))
		}
		maps.Copy(o.FileAttributesMap, out.Attributes)
	}
}
