package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/xrrecorder/internal/config"
	"github.com/MrSnakeDoc/xrrecorder/internal/connmgr"
	"github.com/MrSnakeDoc/xrrecorder/internal/devices"
	"github.com/MrSnakeDoc/xrrecorder/internal/dispatch"
	"github.com/MrSnakeDoc/xrrecorder/internal/files"
	"github.com/MrSnakeDoc/xrrecorder/internal/hostctl"
	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver"
	"github.com/MrSnakeDoc/xrrecorder/internal/httpserver/deps"
	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
	"github.com/MrSnakeDoc/xrrecorder/internal/protocol"
	"github.com/MrSnakeDoc/xrrecorder/internal/recorder"
	"github.com/MrSnakeDoc/xrrecorder/internal/redis"
	"github.com/MrSnakeDoc/xrrecorder/internal/scheduler"
	"github.com/MrSnakeDoc/xrrecorder/internal/static"
	"github.com/MrSnakeDoc/xrrecorder/internal/statusfeed"
	"github.com/MrSnakeDoc/xrrecorder/internal/utils"
	"github.com/MrSnakeDoc/xrrecorder/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	conns       *connmgr.Manager
	supervisor  *recorder.Supervisor
	reloader    *scheduler.StaticReloader
}

func New() (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	info, err := os.Stat(cfg.RecordingsDir)
	if err != nil {
		return nil, fmt.Errorf("recordings directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("recordings directory %s is not a directory", cfg.RecordingsDir)
	}

	// The status feed is optional: without Redis the service still records.
	var (
		redisClient *goredis.Client
		feed        *statusfeed.Publisher
	)
	if cfg.StatusFeedEnabled() {
		redisClient, err = redis.New(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Warn("status feed disabled, redis unavailable", logger.Error(err))
		} else {
			feed = statusfeed.NewPublisher(redisClient, cfg.StatusChannel, loggerClient)
			loggerClient.Info("status feed enabled", logger.String("channel", cfg.StatusChannel))
		}
	} else {
		loggerClient.Info("redis address not configured, status feed disabled")
	}

	runner := utils.ExecRunner{}

	conns := connmgr.New(connmgr.Options{
		PingInterval:    cfg.PingInterval,
		WriteWait:       cfg.WriteWait,
		MaxMessageBytes: cfg.MaxMessageBytes,
		AllowedOrigins:  cfg.AllowedOrigins,
	}, loggerClient)

	supervisor := recorder.New(recorder.Options{
		Tool:            cfg.CaptureTool,
		OutputDir:       cfg.RecordingsDir,
		StatusPrefix:    cfg.StatusLinePrefix,
		DiagnosticLimit: cfg.DiagnosticLimit,
		StopTimeout:     cfg.StopTimeout,
		OnChange: func(st recorder.Status) {
			conns.Broadcast(protocol.NewStatus(st))
			if feed != nil {
				feed.Notify(st)
			}
		},
	}, recorder.ExecLauncher{}, loggerClient)

	registry := files.NewRegistry(
		cfg.RecordingsDir,
		files.NewFFProbe(cfg.ProbeTool, cfg.ProbeTimeout, runner),
		loggerClient,
	)
	loggerClient.Info("serving recordings", logger.String("dir", registry.Dir()))

	dispatcher := dispatch.New(dispatch.Deps{
		Recorder:      supervisor,
		Files:         registry,
		Devices:       devices.NewLister(cfg.DeviceTool, runner, loggerClient),
		Host:          hostctl.New(cfg.ShutdownCmd, cfg.RebootCmd, runner, loggerClient),
		Broadcaster:   conns,
		DefaultDevice: cfg.DefaultDevice,
		Logger:        loggerClient,
	})

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)

	cache := static.NewCache()
	reloader := scheduler.NewStaticReloader(
		static.NewLoader(cfg.StaticManifest, loggerClient),
		cache,
		loggerClient,
		cfg.StaticReloadInterval,
		reloadTrigger,
	)

	d := deps.Deps{
		Logger:               loggerClient,
		StartTime:            time.Now(),
		Version:              version.Version,
		Commit:               version.Commit,
		BuildDate:            version.BuildDate,
		GoVersion:            version.GoVersion,
		TimeNow:              time.Now,
		AllowedCIDRS:         cfg.AllowedCIDRS,
		TrustProxy:           cfg.TrustProxy,
		Static:               cache,
		Files:                registry,
		DownloadBurst:        cfg.DownloadBurst,
		DownloadRefillPerMin: cfg.DownloadRefillPerMin,
		Conns:                conns,
		OnMessage: func(ctx context.Context, c *connmgr.Conn, raw []byte) {
			dispatcher.Handle(ctx, c, raw)
		},
		Recorder:      supervisor,
		StatusFeed:    feed,
		ReloadTrigger: reloadTrigger,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		redisClient: redisClient,
		conns:       conns,
		supervisor:  supervisor,
		reloader:    reloader,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting xrrecorder v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.Full())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load the UI once, then keep refreshing it.
	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start static reloader: %w", err)
	}
	a.logger.Info("static reloader started",
		logger.Duration("interval", a.cfg.StaticReloadInterval))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			a.logger.Info("⏳ Shutting down gracefully...")
		}
		return a.shutdown()
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("✅ xrrecorder stopped cleanly")
	return nil
}

// shutdown stops every component and reports all failures together.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.reloader.Stop()

	var err error
	if serr := a.server.Stop(shutdownCtx); serr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to stop server: %w", serr))
	}
	// Hijacked WebSocket connections outlive server.Stop.
	if cerr := a.conns.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close websocket clients: %w", cerr))
	}
	if rerr := a.supervisor.Shutdown(shutdownCtx); rerr != nil {
		if errors.Is(rerr, context.DeadlineExceeded) {
			a.logger.Warn("capture process killed on shutdown deadline")
		}
		err = multierr.Append(err, fmt.Errorf("failed to stop recorder: %w", rerr))
	}

	if a.redisClient != nil {
		if rerr := a.redisClient.Close(); rerr != nil {
			a.logger.Warnf("failed to close redis: %v", rerr)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
	return err
}
