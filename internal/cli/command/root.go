package command

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/backend"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/config"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/infra/buildinfo"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/telemetry/logger"
)

const runtimeKey = "runtime"

// AppOption customizes the application, mostly for tests.
type AppOption func(*appOptions)

type appOptions struct {
	ledger      storage.Ledger
	backendOpts []backend.Option
}

// WithLedger serves both networks from l instead of the configured ledger.
// The ledger is not closed when the command ends.
func WithLedger(l storage.Ledger) AppOption {
	return func(o *appOptions) { o.ledger = l }
}

// WithBackendOptions appends options to the backend client.
func WithBackendOptions(opts ...backend.Option) AppOption {
	return func(o *appOptions) { o.backendOpts = append(o.backendOpts, opts...) }
}

// App creates the CLI application.
func App(opts ...AppOption) *cli.App {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	app := &cli.App{
		Name:    "channelctl",
		Usage:   "Manage a hierarchy of signed supply-chain channels",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			RootCommand(),
			TreeCommand(),
			DailyCommand(),
			VaultCommand(),
			StatsCommand(),
			ConfigCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"), flagOverrides(c))
			if err != nil {
				return err
			}
			log, err := logger.New(logger.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Output: errWriter(c),
			})
			if err != nil {
				return err
			}
			logger.SetDefault(log)

			if c.App.Metadata == nil {
				c.App.Metadata = make(map[string]any)
			}
			c.App.Metadata[runtimeKey] = newRuntime(cfg, log, c.App.Writer, o)
			return nil
		},
		After: func(c *cli.Context) error {
			if rt, ok := c.App.Metadata[runtimeKey].(*Runtime); ok {
				return rt.Close()
			}
			return nil
		},
	}

	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file (default ~/.channelctl/config.yaml)",
			EnvVars: []string{"CHANNELCTL_CONFIG"},
		},
		&cli.BoolFlag{
			Name:  "mainnet",
			Usage: "Use the mainnet endpoint instead of devnet",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "ledger",
			Usage: "Ledger kind: memory, badger, nats",
		},
		&cli.StringFlag{
			Name:  "ledger-dir",
			Usage: "Badger ledger directory",
		},
		&cli.StringFlag{
			Name:  "vault",
			Usage: "State vault database path",
		},
		&cli.StringFlag{
			Name:  "root",
			Usage: "Root channel address (channel_id:announce_id)",
		},
	}
}

// flagOverrides maps explicitly set global flags to config keys.
func flagOverrides(c *cli.Context) map[string]any {
	m := make(map[string]any)
	if c.IsSet("mainnet") {
		m["network.mainnet"] = c.Bool("mainnet")
	}
	strs := map[string]string{
		"log-level":  "log.level",
		"ledger":     "ledger.kind",
		"ledger-dir": "ledger.dir",
		"vault":      "vault.path",
		"root":       "hierarchy.root",
	}
	for flag, key := range strs {
		if c.IsSet(flag) {
			m[key] = c.String(flag)
		}
	}
	return m
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// GetRuntime retrieves the runtime built by the Before hook.
func GetRuntime(c *cli.Context) (*Runtime, error) {
	if rt, ok := c.App.Metadata[runtimeKey].(*Runtime); ok {
		return rt, nil
	}
	return nil, fmt.Errorf("runtime not initialized")
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
