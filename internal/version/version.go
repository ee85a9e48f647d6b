package version

import (
	"runtime"
	"time"
)

var (
	Version   = "dev"                           // ex: v0.2.0
	Commit    = "none"                          // ex: abcd123
	BuildDate = time.Now().Format(time.RFC3339) // overridden via -ldflags in releases
	GoVersion = runtime.Version()
)
