package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"origtext/internal/models"
)

var ErrRunnerStopped = errors.New("post-processing runner stopped")

type runner interface {
	Run(ctx context.Context, art models.OriginalText)
}

// AsyncRunner runs post-processing in-process on a bounded number of goroutines.
// Schedule never waits for the work to finish.
type AsyncRunner struct {
	p       runner
	sem     *semaphore.Weighted
	log     *slog.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool
}

func NewAsyncRunner(p runner, slots int, log *slog.Logger) *AsyncRunner {
	if slots <= 0 {
		slots = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &AsyncRunner{p: p, sem: semaphore.NewWeighted(int64(slots)), log: log}
}

func (r *AsyncRunner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.started = true
	r.log.Info("post-processing runner started")
}

func (r *AsyncRunner) Schedule(ctx context.Context, art models.OriginalText) error {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.started || r.stopped {
		return ErrRunnerStopped
	}
	runCtx := r.ctx
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.sem.Acquire(runCtx, 1); err != nil {
			r.log.Warn("post-processing dropped", "catalogueId", art.CatalogueID, "id", art.ID, "error", err)
			return
		}
		defer r.sem.Release(1)
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("post-processing panic", "catalogueId", art.CatalogueID, "id", art.ID, "panic", rec)
			}
		}()
		r.p.Run(runCtx, art)
	}()
	return nil
}

// Stop rejects new work and waits up to timeout for running work before
// cancelling it.
func (r *AsyncRunner) Stop(timeout time.Duration) {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.stopped = true
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case <-done:
		r.log.Info("post-processing runner stopped gracefully")
	case <-time.After(timeout):
		r.log.Warn("post-processing runner stop timeout, cancelling")
		r.cancel()
		<-done
	}
	r.cancel()
}
