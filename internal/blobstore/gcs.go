package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"origtext/internal/util"
)

type GCSOptions struct {
	Bucket         string
	Prefix         string
	MaxRetries     int
	AttemptTimeout time.Duration
	Logger         *slog.Logger
}

// GCS stores blobs in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	opts   GCSOptions
	log    *slog.Logger
}

func NewGCS(ctx context.Context, opts GCSOptions) (*GCS, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket must be provided")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return NewGCSWithClient(client, opts), nil
}

func NewGCSWithClient(client *storage.Client, opts GCSOptions) *GCS {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 4
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 50 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &GCS{client: client, opts: opts, log: log}
}

func (g *GCS) Close() error {
	return g.client.Close()
}

// Put uploads r with a DoesNotExist precondition. A failed precondition means
// the same content is already stored and counts as success.
func (g *GCS) Put(ctx context.Context, p Path, key string, r io.ReadSeeker) error {
	object := p.Object(g.opts.Prefix, key)
	backoff := time.Second
	var lastErr error

	for i := 0; i < g.opts.MaxRetries; i++ {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return util.Failed("file upload failed", fmt.Errorf("rewind %s: %w", object, err))
		}
		err := g.putOnce(ctx, object, r)
		if err == nil {
			return nil
		}
		lastErr = err
		g.log.Warn("blob upload failed, will retry",
			"object", object,
			"attempt", i+1,
			"maxRetries", g.opts.MaxRetries,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return util.Failed("file upload failed", ctx.Err())
		}
	}
	return util.Failed("file upload failed", fmt.Errorf("upload %s after %d attempts: %w", object, g.opts.MaxRetries, lastErr))
}

func (g *GCS) putOnce(ctx context.Context, object string, r io.Reader) error {
	writeCtx, cancel := context.WithTimeout(ctx, g.opts.AttemptTimeout)
	defer cancel()

	w := g.client.Bucket(g.opts.Bucket).Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		if isPreconditionFailed(err) {
			g.log.Debug("blob already stored", "object", object)
			return nil
		}
		return fmt.Errorf("copy to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			g.log.Debug("blob already stored", "object", object)
			return nil
		}
		return fmt.Errorf("finalize gcs write: %w", err)
	}
	return nil
}

func (g *GCS) Get(ctx context.Context, p Path, key string, w io.Writer) error {
	object := p.Object(g.opts.Prefix, key)
	rc, err := g.client.Bucket(g.opts.Bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return util.NotFound("stored file not found")
		}
		return util.Failed("file download failed", fmt.Errorf("open %s: %w", object, err))
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		return util.Failed("file download failed", fmt.Errorf("read %s: %w", object, err))
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusPreconditionFailed
	}
	return false
}
