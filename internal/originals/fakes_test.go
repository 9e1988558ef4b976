package originals

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"origtext/internal/blobstore"
	"origtext/internal/docstore"
	"origtext/internal/models"
	"origtext/internal/sequence"
	"origtext/internal/util"
)

type memDocs struct {
	mu        sync.Mutex
	items     map[string]models.OriginalText
	saveErr   error
	deleteErr map[string]error
	// afterFind runs after every FindByID, outside the lock, to interleave
	// writes from another actor.
	afterFind func(id string)
}

func newMemDocs() *memDocs { return &memDocs{items: map[string]models.OriginalText{}} }

func (m *memDocs) Save(ctx context.Context, o models.OriginalText) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.items[o.ID] = o
	return nil
}

func (m *memDocs) SaveAll(ctx context.Context, items []models.OriginalText) error {
	for _, it := range items {
		if err := m.Save(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

func (m *memDocs) FindByID(ctx context.Context, catalogueID int, id string) (models.OriginalText, bool, error) {
	m.mu.Lock()
	o, ok := m.items[id]
	hook := m.afterFind
	m.mu.Unlock()
	if hook != nil {
		defer hook(id)
	}
	if ok && o.CatalogueID != catalogueID {
		return models.OriginalText{}, false, nil
	}
	return o, ok, nil
}

func (m *memDocs) DeleteByID(ctx context.Context, catalogueID int, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[id]; err != nil {
		return err
	}
	delete(m.items, id)
	return nil
}

func (m *memDocs) UpdateMetadata(ctx context.Context, catalogueID int, id string, md models.Metadata, modified time.Time) error {
	m.mutate(id, func(o *models.OriginalText) {
		o.Title, o.Type, o.Version, o.Remark = md.Title, md.Type, md.Version, md.Remark
		o.GmtModified = modified
	})
	return nil
}

func (m *memDocs) UpdateOrder(ctx context.Context, catalogueID int, id string, order int, modified time.Time) error {
	m.mutate(id, func(o *models.OriginalText) {
		o.OrderNumber = order
		o.GmtModified = modified
	})
	return nil
}

func (m *memDocs) mutate(id string, fn func(o *models.OriginalText)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
	if !ok {
		return
	}
	fn(&o)
	m.items[id] = o
}

func (m *memDocs) get(id string) (models.OriginalText, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
	return o, ok
}

func (m *memDocs) FindAll(ctx context.Context, catalogueID int, f docstore.Filter, page models.Page) ([]models.OriginalText, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := map[string]bool{}
	for _, e := range f.EntryIDs {
		entries[e] = true
	}
	var out []models.OriginalText
	for _, o := range m.items {
		if o.CatalogueID != catalogueID {
			continue
		}
		if !f.AllEntries && !entries[o.EntryID] {
			continue
		}
		if len(f.Types) > 0 && !containsInt(f.Types, o.Type) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return pageOf(out, page), int64(len(out)), nil
}

func (m *memDocs) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type memIndex struct {
	mu    sync.Mutex
	items map[string]models.OriginalText
}

func newMemIndex() *memIndex { return &memIndex{items: map[string]models.OriginalText{}} }

func (m *memIndex) Save(ctx context.Context, o models.OriginalText) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[o.ID] = o
	return nil
}

func (m *memIndex) SaveAll(ctx context.Context, items []models.OriginalText) error {
	for _, it := range items {
		_ = m.Save(ctx, it)
	}
	return nil
}

func (m *memIndex) Delete(ctx context.Context, catalogueID int, id, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memIndex) UpdateMetadata(ctx context.Context, catalogueID int, id string, md models.Metadata, modified time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.items[id]; ok {
		o.Title, o.Type, o.Version, o.Remark = md.Title, md.Type, md.Version, md.Remark
		o.GmtModified = modified
		m.items[id] = o
	}
	return nil
}

func (m *memIndex) UpdateOrder(ctx context.Context, catalogueID int, id string, order int, modified time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.items[id]; ok {
		o.OrderNumber = order
		o.GmtModified = modified
		m.items[id] = o
	}
	return nil
}

func (m *memIndex) Search(ctx context.Context, catalogueID int, entryID, title string, page models.Page) ([]models.OriginalText, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OriginalText
	for _, o := range m.items {
		if o.CatalogueID == catalogueID && o.EntryID == entryID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return pageOf(out, page), int64(len(out)), nil
}

func (m *memIndex) MaxOrderNumber(ctx context.Context, catalogueID int, entryID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, o := range m.items {
		if o.CatalogueID == catalogueID && o.EntryID == entryID && o.OrderNumber > max {
			max = o.OrderNumber
		}
	}
	return max, nil
}

func (m *memIndex) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *memIndex) get(id string) (models.OriginalText, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
	return o, ok
}

type entrySet map[string]bool

func (e entrySet) Exists(ctx context.Context, catalogueID int, entryID string) (bool, error) {
	return e[entryID], nil
}

type owners map[int]int

func (o owners) ResolveOwner(ctx context.Context, catalogueID int) (int, error) {
	owner, ok := o[catalogueID]
	if !ok {
		return 0, util.NotFound("catalogue not found")
	}
	return owner, nil
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingScheduler) Schedule(ctx context.Context, art models.OriginalText) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, art.ID)
	return nil
}

func (r *recordingScheduler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

type fixture struct {
	svc     *Service
	docs    *memDocs
	index   *memIndex
	sched   *recordingScheduler
	blobs   *blobstore.Local
	scratch string
}

const (
	testCatalogue = 7
	testOwner     = 42
	testEntry     = "entry-1"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	blobs, err := blobstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	docs := newMemDocs()
	index := newMemIndex()
	sched := &recordingScheduler{}
	scratch := t.TempDir()
	svc := NewService(Deps{
		Blobs:      blobs,
		Docs:       docs,
		Index:      index,
		Entries:    entrySet{testEntry: true, "entry-2": true},
		Owners:     owners{testCatalogue: testOwner, 8: testOwner},
		Sequencer:  sequence.NewLocalSequencer(index),
		Scheduler:  sched,
		ScratchDir: scratch,
	})
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	return &fixture{svc: svc, docs: docs, index: index, sched: sched, blobs: blobs, scratch: scratch}
}

func (f *fixture) requireScratchEmpty(t *testing.T) {
	t.Helper()
	empty, err := util.DirEmpty(f.scratch)
	require.NoError(t, err)
	require.True(t, empty, "scratch area left behind")
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func pageOf(items []models.OriginalText, page models.Page) []models.OriginalText {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
