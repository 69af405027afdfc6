package command

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/urfave/cli/v2"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/telemetry/logger"
)

// commandTimeout bounds one command's backend work.
const commandTimeout = 2 * time.Minute

func rootPasswordFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "root-password",
		Usage:    "Password of the root hierarchy",
		EnvVars:  []string{"CHANNELCTL_ROOT_PASSWORD"},
		Required: true,
	}
}

// commandContext bounds the command and tags its log lines with a fresh
// operation ID.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithOperationID(ctx, ulid.Make().String())
	return context.WithTimeout(ctx, commandTimeout)
}

// RootCommand returns the root subcommand group.
func RootCommand() *cli.Command {
	return &cli.Command{
		Name:  "root",
		Usage: "Manage the root channel",
		Subcommands: []*cli.Command{
			{
				Name:   "open",
				Usage:  "Open a new hierarchy and publish its category directory",
				Flags:  []cli.Flag{rootPasswordFlag()},
				Action: rootOpen,
			},
		},
	}
}

func rootOpen(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	root, _, err := rt.NewRoot(ctx, c.String("root-password"))
	if err != nil {
		return err
	}
	return rt.Print(c, newRootView(root.Tree()))
}

// TreeCommand returns the tree command.
func TreeCommand() *cli.Command {
	return &cli.Command{
		Name:   "tree",
		Usage:  "Show every category, actor and daily channel of the hierarchy",
		Flags:  []cli.Flag{rootPasswordFlag()},
		Action: treeShow,
	}
}

func treeShow(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	root, err := rt.Root(ctx, c.String("root-password"))
	if err != nil {
		return err
	}
	return rt.Print(c, treeView{Tree: root.Tree()})
}
