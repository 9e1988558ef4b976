package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ORIGTEXT_DIGEST", "")
	cfg := Load()
	if cfg.DigestAlgo != "md5" {
		t.Fatalf("unexpected digest default: %s", cfg.DigestAlgo)
	}
	if cfg.DocStore != "mongo" {
		t.Fatalf("unexpected docstore default: %s", cfg.DocStore)
	}
	if cfg.BlobStore != "gcs" {
		t.Fatalf("unexpected blobstore default: %s", cfg.BlobStore)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ORIGTEXT_PIPELINE_SLOTS", "9")
	t.Setenv("ORIGTEXT_BLOB_TIMEOUT", "45s")
	t.Setenv("ORIGTEXT_REDIS_SEQUENCER", "false")
	t.Setenv("ORIGTEXT_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("ORIGTEXT_REDIS_DB", "not-a-number")

	cfg := Load()
	if cfg.PipelineSlots != 9 {
		t.Fatalf("slots: got %d", cfg.PipelineSlots)
	}
	if cfg.BlobTimeout != 45*time.Second {
		t.Fatalf("blob timeout: got %s", cfg.BlobTimeout)
	}
	if cfg.UseRedisSequencer {
		t.Fatalf("expected redis sequencer disabled")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("cors origins: got %q", cfg.CORSOrigins)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("invalid int should fall back, got %d", cfg.RedisDB)
	}
}
