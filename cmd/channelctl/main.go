package main

import (
	"context"
	"os"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/cli/command"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/infra/shutdown"
)

func main() {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	app := command.App()
	if err := app.RunContext(ctx, os.Args); err != nil {
		command.PrintError("%v", err)
		cancel()
		os.Exit(1)
	}
}
