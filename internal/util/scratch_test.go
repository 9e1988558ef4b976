package util

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScratchReleaseRemovesFiles(t *testing.T) {
	root := t.TempDir()
	s, err := NewScratch(root, "upload")
	require.NoError(t, err)

	path, n, err := s.WriteFrom("../../evil.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
	require.Equal(t, s.Dir(), filepath.Dir(path))

	require.NoError(t, s.Release())
	empty, err := DirEmpty(root)
	require.NoError(t, err)
	require.True(t, empty)

	// second release is a no-op
	require.NoError(t, s.Release())
}

func TestScratchFileCloseReleases(t *testing.T) {
	root := t.TempDir()
	s, err := NewScratch(root, "download")
	require.NoError(t, err)
	path, _, err := s.WriteFrom("a.bin", strings.NewReader("payload"))
	require.NoError(t, err)

	f, err := OpenScratchFile(s, path)
	require.NoError(t, err)
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "payload", string(b))
	require.NoError(t, f.Close())

	_, err = os.Stat(path)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestErrorKinds(t *testing.T) {
	err := Failed("blob upload failed", errors.New("boom"))
	require.ErrorIs(t, err, ErrOperationFailed)
	require.NotErrorIs(t, err, ErrValidation)
	require.Equal(t, "blob upload failed", UserMessage(err))
	require.ErrorIs(t, Validation("file is empty"), ErrValidation)
	require.ErrorIs(t, NotFound("missing"), ErrNotFound)
}
