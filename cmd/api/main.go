package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"origtext/internal/api"
	"origtext/internal/app"
	"origtext/internal/config"
	"origtext/internal/originals"
	"origtext/internal/pipeline"
	"origtext/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	cfg := config.Load()
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Error("open backends failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var sched originals.Scheduler
	switch cfg.PipelineMode {
	case "inprocess":
		runner := pipeline.NewAsyncRunner(st.Pipeline, cfg.PipelineSlots, log)
		runner.Start(context.Background())
		defer runner.Stop(10 * time.Second)
		sched = runner
	default:
		tc, err := tclient.Dial(tclient.Options{
			HostPort: cfg.TemporalAddress,
			Logger:   tlog.NewStructuredLogger(log),
		})
		if err != nil {
			log.Error("temporal dial failed", "address", cfg.TemporalAddress, "error", err)
			os.Exit(1)
		}
		defer tc.Close()
		sched = workflows.NewTemporalScheduler(tc, cfg.TemporalTaskQueue, cfg.ActivityTime, log)
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(cfg, st.Service(sched), log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("origtext api listening", "addr", cfg.APIAddr, "pipeline", cfg.PipelineMode,
		"docstore", cfg.DocStore, "blobstore", cfg.BlobStore)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("api server failed", "error", err)
	}
}
