package main

import (
	"os"

	"github.com/tphakala/push-dispatcher/cmd"
	"github.com/tphakala/push-dispatcher/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	build := buildinfo.New(version, buildDate)

	if err := cmd.RootCommand(build).Execute(); err != nil {
		os.Exit(1)
	}
}
