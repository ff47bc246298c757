// Command sous ingests markdown recipes and answers questions about them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/sous/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sous/internal/adapters/driving/cli"
	"github.com/custodia-labs/sous/internal/logger"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := file.LoadEnv(); err != nil {
		logger.Warn("%v", err)
	}

	cli.SetVersion(version)
	if err := cli.Execute(ctx, bootstrap); err != nil {
		stop()
		os.Exit(1)
	}
}
