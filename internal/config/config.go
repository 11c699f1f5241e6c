package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort       string        // ex: ":8080"
	ShutdownTimeout  time.Duration // ex: 10s
	HTTPWriteTimeout time.Duration // long enough for recording downloads

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// WebSocket connections
	PingInterval    time.Duration // heartbeat period per connection (default: 10s)
	WriteWait       time.Duration // deadline for a single frame write
	MaxMessageBytes int64         // max inbound message size
	AllowedOrigins  []string      // optional, Origin header patterns (e.g. "*.lan")

	// Capture
	RecordingsDir    string        // directory holding the recordings
	CaptureTool      string        // ex: "arecord"
	DefaultDevice    string        // used when a start command omits the device
	StatusLinePrefix string        // capture stderr lines starting with this are live status
	DiagnosticLimit  int           // max bytes of diagnostic text kept per session
	StopTimeout      time.Duration // wait before killing, then before abandoning, a stopping process

	// Probe / devices / host
	ProbeTool    string        // ex: "ffprobe"
	ProbeTimeout time.Duration // per probe invocation
	DeviceTool   string        // ex: "arecord" (run with -l)
	ShutdownCmd  []string      // ex: ["sudo", "shutdown", "-h", "now"]
	RebootCmd    []string      // ex: ["sudo", "reboot"]

	// Static assets
	StaticManifest       string        // path to the static.yaml manifest
	StaticReloadInterval time.Duration // interval to reload static assets (default: 1h)

	// Recording downloads
	DownloadBurst        int // tokens per client IP
	DownloadRefillPerMin int // refill rate per client IP

	// Redis status feed (disabled when RedisAddr is empty)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts
	StatusChannel       string        // pub/sub channel for status snapshots

	AllowedCIDRS []string // optional, restrict /infra and /reload to specific IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:       getenv("XRR_LISTEN_PORT", ":8080"),
		ShutdownTimeout:  mustDuration("XRR_SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: mustDuration("XRR_HTTP_WRITE_TIMEOUT", 10*time.Minute),

		// Logging
		LogLevel:  getenv("XRR_LOG_LEVEL", "info"),
		PrettyLog: mustBool("XRR_PRETTY_LOG", true),

		// WebSocket
		PingInterval:    mustDuration("XRR_PING_INTERVAL", 10*time.Second),
		WriteWait:       mustDuration("XRR_WRITE_WAIT", 5*time.Second),
		MaxMessageBytes: int64(getenvInt("XRR_MAX_MESSAGE_BYTES", 64*1024)),
		AllowedOrigins:  splitAndTrim(getenv("XRR_ALLOWED_ORIGINS", "")),

		// Capture
		RecordingsDir:    requireEnv("XRR_RECORDINGS_DIR"),
		CaptureTool:      getenv("XRR_CAPTURE_TOOL", "arecord"),
		DefaultDevice:    getenv("XRR_DEFAULT_DEVICE", "default"),
		StatusLinePrefix: getenv("XRR_STATUS_LINE_PREFIX", "Max peak"),
		DiagnosticLimit:  getenvInt("XRR_DIAGNOSTIC_LIMIT", 64*1024),
		StopTimeout:      mustDuration("XRR_STOP_TIMEOUT", 10*time.Second),

		// Probe / devices / host
		ProbeTool:    getenv("XRR_PROBE_TOOL", "ffprobe"),
		ProbeTimeout: mustDuration("XRR_PROBE_TIMEOUT", 10*time.Second),
		DeviceTool:   getenv("XRR_DEVICE_TOOL", "arecord"),
		ShutdownCmd:  strings.Fields(getenv("XRR_SHUTDOWN_CMD", "sudo shutdown -h now")),
		RebootCmd:    strings.Fields(getenv("XRR_REBOOT_CMD", "sudo reboot")),

		// Static assets
		StaticManifest:       getenv("XRR_STATIC_MANIFEST", "./static.yaml"),
		StaticReloadInterval: mustDuration("XRR_STATIC_RELOAD_INTERVAL", time.Hour),

		// Downloads
		DownloadBurst:        getenvInt("XRR_DOWNLOAD_BURST", 10),
		DownloadRefillPerMin: getenvInt("XRR_DOWNLOAD_REFILL_PER_MIN", 60),

		// Redis settings
		RedisAddr:           getenv("XRR_REDIS_ADDR", ""),
		RedisUser:           getenv("XRR_REDIS_USERNAME", ""),
		RedisPassword:       getenv("XRR_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("XRR_REDIS_DB", 0),
		RedisDT:             mustDuration("XRR_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("XRR_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("XRR_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("XRR_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("XRR_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("XRR_REDIS_POOL_SIZE", 4),
		RedisConnectTimeout: mustDuration("XRR_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("XRR_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("XRR_REDIS_WARN_THRESHOLD", 3),
		StatusChannel:       getenv("XRR_STATUS_CHANNEL", "xrrecorder:status"),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("XRR_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("XRR_TRUST_PROXY", false),
	}

	if cfg.PingInterval <= 0 {
		panic(fmt.Sprintf("❌ FATAL: XRR_PING_INTERVAL must be > 0, got %v", cfg.PingInterval))
	}
	if len(cfg.ShutdownCmd) == 0 || len(cfg.RebootCmd) == 0 {
		panic("❌ FATAL: XRR_SHUTDOWN_CMD and XRR_REBOOT_CMD must not be blank")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// StatusFeedEnabled reports whether status snapshots are published to Redis.
func (c *Config) StatusFeedEnabled() bool {
	return c.RedisAddr != ""
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
