package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/xrrecorder/internal/connmgr"
	"github.com/MrSnakeDoc/xrrecorder/internal/files"
	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
	"github.com/MrSnakeDoc/xrrecorder/internal/recorder"
	"github.com/MrSnakeDoc/xrrecorder/internal/static"
	"github.com/MrSnakeDoc/xrrecorder/internal/statusfeed"
)

// StatusReader reads the recording session without changing it.
type StatusReader interface {
	Status(ctx context.Context) (recorder.Status, error)
}

type Deps struct {
	Logger               logger.Logger
	StartTime            time.Time
	Version              string
	Commit               string
	BuildDate            string
	GoVersion            string
	TimeNow              func() time.Time      // for testing, defaults to time.Now
	AllowedCIDRS         []string              // IPs allowed to access /infra and /reload
	TrustProxy           bool                  // true if running behind a trusted reverse proxy
	Static               *static.Cache         // UI assets served by name
	Files                *files.Registry       // recordings served under /recordings
	DownloadBurst        int                   // download rate limit bucket size per client IP
	DownloadRefillPerMin int                   // download rate limit refill per client IP
	Conns                *connmgr.Manager      // WebSocket clients
	OnMessage            connmgr.Handler       // inbound WebSocket message handler
	Recorder             StatusReader          // recording session, read-only here
	StatusFeed           *statusfeed.Publisher // nil when the Redis feed is disabled
	ReloadTrigger        chan struct{}         // Channel to trigger manual static asset reload
}
