package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Path places a blob under its scope owner and the first two digest byte pairs.
type Path struct {
	Owner string
	A     string
	B     string
}

// PathFor derives the content-addressed directory for digest under owner.
func PathFor(owner int, digest string) Path {
	d := strings.ToLower(digest)
	for len(d) < 4 {
		d += "0"
	}
	return Path{Owner: fmt.Sprintf("%d", owner), A: d[0:2], B: d[2:4]}
}

func (p Path) String() string {
	return p.Owner + "/" + p.A + "/" + p.B
}

// Object is the full object key for key under p, with an optional prefix.
func (p Path) Object(prefix, key string) string {
	name := p.String() + "/" + key
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Store is the blob storage contract. Identical keys under the same path
// address identical bytes, so a second Put of an existing key succeeds
// without rewriting.
type Store interface {
	Put(ctx context.Context, p Path, key string, r io.ReadSeeker) error
	Get(ctx context.Context, p Path, key string, w io.Writer) error
}
