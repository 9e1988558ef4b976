package util

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	DigestMD5    = "md5"
	DigestSHA256 = "sha256"
	DigestBLAKE3 = "blake3"
)

// Hasher computes lowercase hex content digests with a fixed algorithm.
type Hasher struct {
	algo string
	mk   func() hash.Hash
}

func NewHasher(algo string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(algo)) {
	case "", DigestMD5:
		return Hasher{algo: DigestMD5, mk: md5.New}, nil
	case DigestSHA256:
		return Hasher{algo: DigestSHA256, mk: sha256.New}, nil
	case DigestBLAKE3:
		return Hasher{algo: DigestBLAKE3, mk: func() hash.Hash { return blake3.New() }}, nil
	default:
		return Hasher{}, fmt.Errorf("unknown digest algorithm %q", algo)
	}
}

func (h Hasher) Algorithm() string {
	if h.algo == "" {
		return DigestMD5
	}
	return h.algo
}

func (h Hasher) newHash() hash.Hash {
	if h.mk == nil {
		return md5.New()
	}
	return h.mk()
}

// HexFromReader consumes r and returns its digest and byte count.
func (h Hasher) HexFromReader(r io.Reader) (string, int64, error) {
	x := h.newHash()
	n, err := io.Copy(x, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(x.Sum(nil)), n, nil
}

func (h Hasher) Hex(b []byte) string {
	x := h.newHash()
	_, _ = x.Write(b)
	return hex.EncodeToString(x.Sum(nil))
}

func (h Hasher) HexFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return h.HexFromReader(f)
}
