package app

import (
	"path/filepath"
	"testing"
)

func TestNewRejectsMissingRecordingsDir(t *testing.T) {
	t.Setenv("XRR_RECORDINGS_DIR", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("XRR_PRETTY_LOG", "false")
	t.Setenv("XRR_LOG_LEVEL", "error")

	if _, err := New(); err == nil {
		t.Fatal("New() should fail when the recordings directory does not exist")
	}
}

func TestNewWithoutRedis(t *testing.T) {
	t.Setenv("XRR_RECORDINGS_DIR", t.TempDir())
	t.Setenv("XRR_REDIS_ADDR", "")
	t.Setenv("XRR_PRETTY_LOG", "false")
	t.Setenv("XRR_LOG_LEVEL", "error")

	a, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.redisClient != nil {
		t.Error("redis client should be nil when the status feed is disabled")
	}
	if err := a.shutdown(); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}
