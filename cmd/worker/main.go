package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"origtext/internal/activities"
	"origtext/internal/app"
	"origtext/internal/config"
	"origtext/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	cfg := config.Load()
	log := slog.Default()

	st, err := app.Open(context.Background(), cfg, log)
	if err != nil {
		log.Error("open backends failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalAddress,
		Logger:   tlog.NewStructuredLogger(log),
	})
	if err != nil {
		log.Error("temporal dial failed", "address", cfg.TemporalAddress, "error", err)
		os.Exit(1)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.PipelineSlots,
	})
	workflows.Register(w)
	activities.Register(w, activities.New(st.Pipeline))

	log.Info("origtext worker listening", "address", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue,
		"docstore", cfg.DocStore, "blobstore", cfg.BlobStore)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Error("worker stopped", "error", err)
	}
}
