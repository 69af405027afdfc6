package command

import (
	"github.com/urfave/cli/v2"
)

// VaultCommand returns the vault subcommand group.
func VaultCommand() *cli.Command {
	return &cli.Command{
		Name:  "vault",
		Usage: "Inspect exported daily-channel states",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List stored states",
				Action:  vaultList,
			},
			{
				Name:  "delete",
				Usage: "Delete a stored state",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category", Required: true, Usage: "Category"},
					&cli.StringFlag{Name: "actor", Aliases: []string{"a"}, Required: true, Usage: "Actor ID"},
					&cli.StringFlag{Name: "date", Usage: "Date, dd/mm/yyyy (default today, UTC)"},
				},
				Action: vaultDelete,
			},
		},
	}
}

func vaultList(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	store, err := rt.Vault()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	entries, err := store.List(ctx)
	if err != nil {
		return err
	}
	return rt.Print(c, newVaultView(entries))
}

func vaultDelete(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	t, err := parseTarget(c)
	if err != nil {
		return err
	}
	store, err := rt.Vault()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	if err := store.Delete(ctx, t.key()); err != nil {
		return err
	}
	return rt.Print(c, "deleted "+t.key().String())
}
