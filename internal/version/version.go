package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	Version   = "dev"                           // ex: v0.1.0
	Commit    = "none"                          // ex: abcd123
	BuildDate = time.Now().Format(time.RFC3339) // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version()               // go version
)

// Full returns a one-line build description for logs and /healthz.
func Full() string {
	return fmt.Sprintf("xrrecorder %s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}
