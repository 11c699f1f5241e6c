package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
	"github.com/MrSnakeDoc/xrrecorder/internal/static"
)

// StaticReloader handles periodic and manual reloading of the static assets
type StaticReloader struct {
	loader        *static.Loader
	cache         *static.Cache
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
}

// NewStaticReloader creates a new static asset reloader
func NewStaticReloader(
	loader *static.Loader,
	cache *static.Cache,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *StaticReloader {
	return &StaticReloader{
		loader:        loader,
		cache:         cache,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the assets once, then reloads them on every tick and manual
// trigger until Stop or ctx is done.
func (sr *StaticReloader) Start(ctx context.Context) error {
	// Load immediately on start
	if err := sr.Reload(ctx); err != nil {
		return fmt.Errorf("initial static reload failed: %w", err)
	}

	// Start periodic reload; a zero interval means manual reloads only.
	var ticker *time.Ticker
	var tick <-chan time.Time
	if sr.interval > 0 {
		ticker = time.NewTicker(sr.interval)
		tick = ticker.C
	}
	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-tick:
				if err := sr.Reload(ctx); err != nil {
					sr.logger.Error("failed to reload static assets",
						logger.Error(err))
				}
			case <-sr.manualTrigger:
				sr.logger.Info("manual static reload triggered")
				if err := sr.Reload(ctx); err != nil {
					sr.logger.Error("failed to reload static assets",
						logger.Error(err))
				}
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader. Safe to call more than once.
func (sr *StaticReloader) Stop() {
	sr.stopOnce.Do(func() { close(sr.stopCh) })
}

// Reload reads the manifest and swaps the cache contents. On failure the
// previous assets stay in place.
func (sr *StaticReloader) Reload(ctx context.Context) error {
	sr.logger.Info("reloading static assets",
		logger.String("manifest", sr.loader.Path()))

	assets, err := sr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load static assets: %w", err)
	}

	sr.cache.Replace(assets)
	sr.logger.Info("static assets loaded",
		logger.Int("count", len(assets)))

	if _, ok := sr.cache.Get(static.IndexName); !ok {
		sr.logger.Warn("static manifest has no index page",
			logger.String("expected", static.IndexName))
	}
	return nil
}
