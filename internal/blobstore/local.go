package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"origtext/internal/util"
)

// Local keeps blobs under a directory tree. Used for single-node setups and tests.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if err := util.EnsureDir(root); err != nil {
		return nil, err
	}
	return &Local{root: root}, nil
}

func (l *Local) file(p Path, key string) string {
	return filepath.Join(l.root, p.Owner, p.A, p.B, filepath.Base(key))
}

func (l *Local) Put(ctx context.Context, p Path, key string, r io.ReadSeeker) error {
	if err := ctx.Err(); err != nil {
		return util.Failed("file upload failed", err)
	}
	dst := l.file(p, key)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if err := util.EnsureDir(filepath.Dir(dst)); err != nil {
		return util.Failed("file upload failed", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return util.Failed("file upload failed", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "tmp-*")
	if err != nil {
		return util.Failed("file upload failed", fmt.Errorf("create temp blob: %w", err))
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return util.Failed("file upload failed", fmt.Errorf("write temp blob: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return util.Failed("file upload failed", fmt.Errorf("close temp blob: %w", err))
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return util.Failed("file upload failed", fmt.Errorf("rename temp blob: %w", err))
	}
	return nil
}

func (l *Local) Get(ctx context.Context, p Path, key string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return util.Failed("file download failed", err)
	}
	f, err := os.Open(l.file(p, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return util.NotFound("stored file not found")
		}
		return util.Failed("file download failed", err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return util.Failed("file download failed", err)
	}
	return nil
}
