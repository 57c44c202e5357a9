package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/omdmaps/pipeline/internal/cli"
)

// version is injected via ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand(version).ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.ReportError(os.Stderr, err)
		os.Exit(1)
	}
}
