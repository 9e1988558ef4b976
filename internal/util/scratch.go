package util

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Scratch is a private working directory owned by a single operation.
// Release must run on every exit path.
type Scratch struct {
	dir string
}

func NewScratch(root, pattern string) (*Scratch, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := EnsureDir(root); err != nil {
		return nil, Failed("scratch area unavailable", err)
	}
	dir, err := os.MkdirTemp(root, pattern+"-*")
	if err != nil {
		return nil, Failed("scratch area unavailable", fmt.Errorf("mkdir temp: %w", err))
	}
	return &Scratch{dir: dir}, nil
}

func (s *Scratch) Dir() string { return s.dir }

func (s *Scratch) Path(name string) string {
	return SafeJoin(s.dir, name)
}

// WriteFrom copies r into a file inside the scratch dir and returns its path and size.
func (s *Scratch) WriteFrom(name string, r io.Reader) (string, int64, error) {
	path := s.Path(name)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, Failed("write scratch file", fmt.Errorf("create %s: %w", path, err))
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return "", n, Failed("write scratch file", fmt.Errorf("copy %s: %w", path, err))
	}
	if err := f.Close(); err != nil {
		return "", n, Failed("write scratch file", fmt.Errorf("close %s: %w", path, err))
	}
	return path, n, nil
}

// Create opens a new writable file inside the scratch dir.
func (s *Scratch) Create(name string) (*os.File, error) {
	f, err := os.Create(s.Path(name))
	if err != nil {
		return nil, Failed("create scratch file", err)
	}
	return f, nil
}

// Release removes the scratch dir. Failures are reported, not swallowed.
func (s *Scratch) Release() error {
	if s == nil || s.dir == "" {
		return nil
	}
	dir := s.dir
	s.dir = ""
	if err := os.RemoveAll(dir); err != nil {
		return Failed("release scratch area", fmt.Errorf("remove %s: %w", dir, err))
	}
	return nil
}

// ReleaseInto releases s and joins any failure into *errp.
func (s *Scratch) ReleaseInto(errp *error) {
	if rerr := s.Release(); rerr != nil {
		*errp = errors.Join(*errp, rerr)
	}
}

// ScratchFile is a read handle that releases its scratch dir on Close.
type ScratchFile struct {
	*os.File
	scratch *Scratch
}

func OpenScratchFile(s *Scratch, path string) (*ScratchFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Failed("open scratch file", err)
	}
	return &ScratchFile{File: f, scratch: s}, nil
}

func (f *ScratchFile) Close() error {
	cerr := f.File.Close()
	rerr := f.scratch.Release()
	if cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		return errors.Join(Failed("close scratch file", cerr), rerr)
	}
	return rerr
}

// DirEmpty reports whether dir has no entries. Used to audit scratch roots.
func DirEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
