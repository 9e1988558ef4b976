package originals

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"origtext/internal/blobstore"
	"origtext/internal/docstore"
	"origtext/internal/models"
	"origtext/internal/sequence"
	"origtext/internal/util"
)

// Index is the query projection kept in step with the document store.
type Index interface {
	Save(ctx context.Context, o models.OriginalText) error
	SaveAll(ctx context.Context, items []models.OriginalText) error
	Delete(ctx context.Context, catalogueID int, id, entryID string) error
	UpdateMetadata(ctx context.Context, catalogueID int, id string, m models.Metadata, modified time.Time) error
	UpdateOrder(ctx context.Context, catalogueID int, id string, order int, modified time.Time) error
	Search(ctx context.Context, catalogueID int, entryID, title string, page models.Page) ([]models.OriginalText, int64, error)
}

type Entries interface {
	Exists(ctx context.Context, catalogueID int, entryID string) (bool, error)
}

type OwnerResolver interface {
	ResolveOwner(ctx context.Context, catalogueID int) (int, error)
}

// Scheduler hands an artifact to post-processing. It must not wait for the
// processing to finish.
type Scheduler interface {
	Schedule(ctx context.Context, art models.OriginalText) error
}

type Deps struct {
	Blobs      blobstore.Store
	Docs       docstore.Store
	Index      Index
	Entries    Entries
	Owners     OwnerResolver
	Sequencer  sequence.Sequencer
	Scheduler  Scheduler
	Hasher     util.Hasher
	ScratchDir string
	// DeleteSlots bounds concurrent per-item deletes.
	DeleteSlots int
	Logger      *slog.Logger
}

type Service struct {
	blobs       blobstore.Store
	docs        docstore.Store
	index       Index
	entries     Entries
	owners      OwnerResolver
	seq         sequence.Sequencer
	sched       Scheduler
	hasher      util.Hasher
	scratchDir  string
	deleteSlots int
	log         *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	slots := d.DeleteSlots
	if slots <= 0 {
		slots = 8
	}
	return &Service{
		blobs:       d.Blobs,
		docs:        d.Docs,
		index:       d.Index,
		entries:     d.Entries,
		owners:      d.Owners,
		seq:         d.Sequencer,
		sched:       d.Scheduler,
		hasher:      d.Hasher,
		scratchDir:  d.ScratchDir,
		deleteSlots: slots,
		log:         log,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// persist writes the document store first so it is never behind the index.
func (s *Service) persist(ctx context.Context, o models.OriginalText) error {
	if err := s.docs.Save(ctx, o); err != nil {
		return util.Failed("save original text failed", err)
	}
	if err := s.index.Save(ctx, o); err != nil {
		return util.Failed("index original text failed", err)
	}
	return nil
}

// setMetadata and setOrder write only their own fields, leaving processing
// results recorded concurrently by the pipeline untouched.
func (s *Service) setMetadata(ctx context.Context, catalogueID int, id string, m models.Metadata, modified time.Time) error {
	if err := s.docs.UpdateMetadata(ctx, catalogueID, id, m, modified); err != nil {
		return util.Failed("update original text failed", err)
	}
	if err := s.index.UpdateMetadata(ctx, catalogueID, id, m, modified); err != nil {
		return util.Failed("update indexed original text failed", err)
	}
	return nil
}

func (s *Service) setOrder(ctx context.Context, catalogueID int, id string, order int, modified time.Time) error {
	if err := s.docs.UpdateOrder(ctx, catalogueID, id, order, modified); err != nil {
		return util.Failed("reorder original text failed", err)
	}
	if err := s.index.UpdateOrder(ctx, catalogueID, id, order, modified); err != nil {
		return util.Failed("reorder indexed original text failed", err)
	}
	return nil
}

func (s *Service) schedule(ctx context.Context, o models.OriginalText) {
	if s.sched == nil {
		return
	}
	if err := s.sched.Schedule(context.WithoutCancel(ctx), o); err != nil {
		s.log.Error("schedule post-processing failed",
			"catalogueId", o.CatalogueID, "id", o.ID, "md5", o.MD5, "error", err)
	}
}
