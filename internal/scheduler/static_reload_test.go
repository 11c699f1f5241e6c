package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
	"github.com/MrSnakeDoc/xrrecorder/internal/static"
)

func writeManifest(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	manifest := "files:\n"
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		manifest += "  " + name + ":\n    path: ./" + name + "\n"
	}
	path := filepath.Join(dir, "static.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestStaticReloader_StartLoadsImmediately(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, map[string]string{"frontend.html": "v1"})

	cache := static.NewCache()
	sr := NewStaticReloader(static.NewLoader(path, logger.Nop()), cache, logger.Nop(), time.Hour, make(chan struct{}, 1))
	if err := sr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sr.Stop()

	a, ok := cache.Get("frontend.html")
	if !ok || string(a.Body) != "v1" {
		t.Fatalf("frontend.html = %q, %v; want v1", a.Body, ok)
	}
}

func TestStaticReloader_ManualTrigger(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, map[string]string{"frontend.html": "v1"})

	cache := static.NewCache()
	trigger := make(chan struct{}, 1)
	sr := NewStaticReloader(static.NewLoader(path, logger.Nop()), cache, logger.Nop(), 0, trigger)
	if err := sr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sr.Stop()

	writeManifest(t, dir, map[string]string{"frontend.html": "v2", "app.js": "js"})
	trigger <- struct{}{}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a, ok := cache.Get("frontend.html"); ok && string(a.Body) == "v2" && cache.Count() == 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("manual trigger did not reload assets")
}

func TestStaticReloader_StartFailsWithoutManifest(t *testing.T) {
	sr := NewStaticReloader(static.NewLoader("/nonexistent/static.yaml", logger.Nop()), static.NewCache(), logger.Nop(), time.Hour, nil)
	if err := sr.Start(context.Background()); err == nil {
		t.Fatal("Start should fail when the manifest is missing")
	}
}

func TestStaticReloader_FailedReloadKeepsAssets(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, map[string]string{"frontend.html": "v1"})

	cache := static.NewCache()
	sr := NewStaticReloader(static.NewLoader(path, logger.Nop()), cache, logger.Nop(), 0, nil)
	if err := sr.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := sr.Reload(context.Background()); err == nil {
		t.Fatal("Reload should fail once the manifest is gone")
	}
	if cache.Count() != 1 {
		t.Errorf("Count() = %d, want previous asset kept", cache.Count())
	}
	sr.Stop()
	sr.Stop()
}
