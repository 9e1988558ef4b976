package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"origtext/internal/blobstore"
	"origtext/internal/models"
	"origtext/internal/util"
)

type memBlobs struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{objs: map[string][]byte{}} }

func (m *memBlobs) Put(ctx context.Context, p blobstore.Path, key string, r io.ReadSeeker) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[p.Object("", key)] = b
	return nil
}

func (m *memBlobs) Get(ctx context.Context, p blobstore.Path, key string, w io.Writer) error {
	m.mu.Lock()
	b, ok := m.objs[p.Object("", key)]
	m.mu.Unlock()
	if !ok {
		return util.NotFound("stored file not found")
	}
	_, err := w.Write(b)
	return err
}

type memDocs struct {
	mu    sync.Mutex
	items map[string]models.OriginalText
	saves int
}

func newMemDocs() *memDocs { return &memDocs{items: map[string]models.OriginalText{}} }

func (m *memDocs) FindByID(ctx context.Context, catalogueID int, id string) (models.OriginalText, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
	return o, ok, nil
}

func (m *memDocs) Save(ctx context.Context, o models.OriginalText) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[o.ID] = o
	m.saves++
	return nil
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

type entrySet map[string]bool

func (e entrySet) Exists(ctx context.Context, catalogueID int, entryID string) (bool, error) {
	return e[entryID], nil
}

type fixedOwner int

func (f fixedOwner) ResolveOwner(ctx context.Context, catalogueID int) (int, error) {
	return int(f), nil
}

type fakeConverter struct {
	out []byte
	err error
}

func (c fakeConverter) ToPDF(ctx context.Context, srcPath, outDir string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	out := filepath.Join(outDir, base+".pdf")
	return out, os.WriteFile(out, c.out, 0o644)
}

// store puts content in the blob store and returns an artifact pointing at it.
func store(blobs *memBlobs, h util.Hasher, owner int, name string, content []byte) models.OriginalText {
	digest := h.Hex(content)
	_ = blobs.Put(context.Background(), blobstore.PathFor(owner, digest), digest, bytes.NewReader(content))
	return models.OriginalText{
		ID:          "art-" + name,
		CatalogueID: 5,
		EntryID:     "entry-1",
		Name:        name,
		Size:        int64(len(content)),
		MD5:         digest,
		OrderNumber: 1,
	}
}
