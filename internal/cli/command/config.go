package command

import (
	"github.com/urfave/cli/v2"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration with credentials masked",
				Action: configShow,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	return rt.Print(c, config.Sanitize(rt.Config))
}
