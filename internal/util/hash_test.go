package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherKnownDigests(t *testing.T) {
	cases := map[string]string{
		"":       "900150983cd24fb0d6963f7d28e17f72",
		"md5":    "900150983cd24fb0d6963f7d28e17f72",
		"sha256": "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	}
	for algo, want := range cases {
		h, err := NewHasher(algo)
		require.NoError(t, err)
		got, n, err := h.HexFromReader(strings.NewReader("abc"))
		require.NoError(t, err)
		require.Equal(t, int64(3), n)
		require.Equal(t, want, got, algo)
		require.Equal(t, want, h.Hex([]byte("abc")))
	}
}

func TestHasherBlake3IsStable(t *testing.T) {
	h, err := NewHasher("BLAKE3")
	require.NoError(t, err)
	require.Equal(t, DigestBLAKE3, h.Algorithm())
	a := h.Hex([]byte("same bytes"))
	b, _, err := h.HexFromReader(strings.NewReader("same bytes"))
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

func TestHasherRejectsUnknown(t *testing.T) {
	_, err := NewHasher("crc32")
	require.Error(t, err)
}
