// Package app wires the stores, the pipeline and the service from config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"origtext/internal/blobstore"
	"origtext/internal/config"
	"origtext/internal/convert"
	"origtext/internal/docstore"
	"origtext/internal/extract"
	"origtext/internal/originals"
	"origtext/internal/pipeline"
	"origtext/internal/sequence"
	"origtext/internal/storage"
	"origtext/internal/util"
)

// Stack holds the opened backends. Close releases them in reverse order.
type Stack struct {
	Config   config.Config
	DB       *storage.DB
	Index    *storage.IndexRepo
	Entries  *storage.EntryRepo
	Owners   storage.OwnerResolver
	Docs     docstore.Store
	Blobs    blobstore.Store
	Redis    *redis.Client
	Hasher   util.Hasher
	Pipeline *pipeline.Pipeline

	closers []func()
	log     *slog.Logger
	// redisDown records a failed startup ping.
	redisDown bool
}

func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*Stack, error) {
	if log == nil {
		log = slog.Default()
	}
	st := &Stack{Config: cfg, log: log}
	opened := false
	defer func() {
		if !opened {
			st.Close()
		}
	}()

	var err error
	st.Hasher, err = util.NewHasher(cfg.DigestAlgo)
	if err != nil {
		return nil, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	st.DB, err = storage.NewDB(dbCtx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	st.closers = append(st.closers, st.DB.Close)
	if err := storage.Migrate(dbCtx, st.DB); err != nil {
		return nil, err
	}
	st.Index = storage.NewIndexRepo(st.DB)
	st.Entries = storage.NewEntryRepo(st.DB)

	st.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	st.closers = append(st.closers, func() { _ = st.Redis.Close() })
	if err := st.Redis.Ping(ctx).Err(); err != nil {
		st.redisDown = true
		log.Warn("redis unavailable, owner lookups bypass the cache", "addr", cfg.RedisAddr, "error", err)
	}
	st.Owners = storage.NewCachedOwnerResolver(storage.NewCatalogueRepo(st.DB), st.Redis, cfg.OwnerCacheTTL, log)

	if err := st.openDocs(ctx); err != nil {
		return nil, err
	}
	if err := st.openBlobs(ctx); err != nil {
		return nil, err
	}

	st.Pipeline = pipeline.New(st.Blobs, st.Docs, st.Index, st.Entries, st.Owners,
		extract.Default(), convert.NewSoffice(cfg.SofficeBin, cfg.ConvertTimeout, log),
		pipeline.Options{
			ScratchDir:     cfg.ScratchDir,
			BlobTimeout:    cfg.BlobTimeout,
			ConvertTimeout: cfg.ConvertTimeout,
			Hasher:         st.Hasher,
			Logger:         log,
		})
	opened = true
	return st, nil
}

func (st *Stack) openDocs(ctx context.Context) error {
	switch st.Config.DocStore {
	case "mongo":
		m, err := docstore.NewMongo(ctx, st.Config.MongoURI, st.Config.MongoDatabase)
		if err != nil {
			return err
		}
		st.Docs = m
		st.closers = append(st.closers, func() { _ = m.Close(context.Background()) })
	case "firestore":
		f, err := docstore.NewFirestore(ctx, st.Config.FirestoreProject)
		if err != nil {
			return err
		}
		st.Docs = f
		st.closers = append(st.closers, func() { _ = f.Close() })
	default:
		return fmt.Errorf("unknown document store %q", st.Config.DocStore)
	}
	return nil
}

func (st *Stack) openBlobs(ctx context.Context) error {
	switch st.Config.BlobStore {
	case "gcs":
		g, err := blobstore.NewGCS(ctx, blobstore.GCSOptions{
			Bucket: st.Config.GCSBucket,
			Prefix: st.Config.GCSPrefix,
			Logger: st.log,
		})
		if err != nil {
			return err
		}
		st.Blobs = g
		st.closers = append(st.closers, func() { _ = g.Close() })
	case "local":
		l, err := blobstore.NewLocal(st.Config.BlobDir)
		if err != nil {
			return err
		}
		st.Blobs = l
	default:
		return fmt.Errorf("unknown blob store %q", st.Config.BlobStore)
	}
	return nil
}

// Sequencer returns the shared Redis counter or the single-process fallback.
// The fallback is also used when Redis did not answer at startup, since every
// Save would otherwise fail on the counter.
func (st *Stack) Sequencer() sequence.Sequencer {
	if st.Config.UseRedisSequencer {
		if !st.redisDown {
			return sequence.NewRedisSequencer(st.Redis, st.Index)
		}
		st.logger().Warn("redis unavailable, order numbers come from the in-process sequencer; run a single instance until redis is back")
	}
	return sequence.NewLocalSequencer(st.Index)
}

func (st *Stack) logger() *slog.Logger {
	if st.log == nil {
		return slog.Default()
	}
	return st.log
}

func (st *Stack) Service(sched originals.Scheduler) *originals.Service {
	return originals.NewService(originals.Deps{
		Blobs:      st.Blobs,
		Docs:       st.Docs,
		Index:      st.Index,
		Entries:    st.Entries,
		Owners:     st.Owners,
		Sequencer:  st.Sequencer(),
		Scheduler:  sched,
		Hasher:     st.Hasher,
		ScratchDir: st.Config.ScratchDir,
		Logger:     st.logger(),
	})
}

func (st *Stack) Close() {
	for i := len(st.closers) - 1; i >= 0; i-- {
		st.closers[i]()
	}
	st.closers = nil
}
