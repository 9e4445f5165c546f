// httpmetrics CLI - serve in-process metrics and goroutine dumps over HTTP
package main

import (
	"github.com/techop/httpmetrics/pkg/cli"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.Commit = Commit
	cli.BuildDate = BuildDate
	cli.Execute()
}
