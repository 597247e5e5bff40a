package main

import (
	"os"

	"gst-reconciliation-service/cmd/reconciler/cmd"
)

// Build-time version information, injected via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.HandleError(err))
	}
}
