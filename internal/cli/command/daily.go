package command

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/backend"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/channel"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/vault"
)

// DailyCommand returns the daily subcommand group.
func DailyCommand() *cli.Command {
	return &cli.Command{
		Name:    "daily",
		Aliases: []string{"day"},
		Usage:   "Manage daily channels",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create the daily channel of an actor",
				Flags: append(dailyFlags(true),
					&cli.BoolFlag{
						Name:  "reuse",
						Usage: "Return the existing channel instead of failing",
					},
				),
				Action: dailyCreate,
			},
			{
				Name:   "get",
				Usage:  "Open an existing daily channel",
				Flags:  dailyFlags(true),
				Action: dailyGet,
			},
			{
				Name:  "send",
				Usage: "Publish a signed packet into a daily channel",
				Flags: append(dailyFlags(true),
					&cli.StringFlag{
						Name:    "public",
						Aliases: []string{"p"},
						Usage:   "Public payload",
					},
					&cli.StringFlag{
						Name:  "private",
						Usage: "Private payload, encrypted when --key is given",
					},
					&cli.StringFlag{
						Name:  "key",
						Usage: "Symmetric key, 64 hex characters",
					},
					&cli.StringFlag{
						Name:  "nonce",
						Usage: "Nonce, 48 hex characters",
					},
				),
				Action: dailySend,
			},
			{
				Name:   "read",
				Usage:  "Print the public payloads of a daily channel",
				Flags:  dailyFlags(false),
				Action: dailyRead,
			},
			{
				Name:  "export",
				Usage: "Export the encrypted state of a daily channel",
				Flags: append(dailyFlags(true),
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Store the blob in the vault",
					},
				),
				Action: dailyExport,
			},
			{
				Name:  "resume",
				Usage: "Restore a daily channel from an exported state",
				Flags: []cli.Flag{
					rootPasswordFlag(),
					dailyPasswordFlag(),
					&cli.StringFlag{
						Name:  "state",
						Usage: "Exported state blob, or @file; read from the vault when empty",
					},
					&cli.StringFlag{Name: "category", Usage: "Category for the vault lookup"},
					&cli.StringFlag{Name: "actor", Usage: "Actor ID for the vault lookup"},
					&cli.StringFlag{Name: "date", Usage: "Date for the vault lookup, dd/mm/yyyy"},
				},
				Action: dailyResume,
			},
		},
	}
}

func dailyPasswordFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "password",
		Usage:    "Password of the daily channel",
		EnvVars:  []string{"CHANNELCTL_DAILY_PASSWORD"},
		Required: true,
	}
}

// dailyFlags returns the flags naming one daily channel.
func dailyFlags(withPassword bool) []cli.Flag {
	flags := []cli.Flag{
		rootPasswordFlag(),
		&cli.StringFlag{
			Name:     "category",
			Usage:    "Category: trucks, weighing_scales, biocells",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "actor",
			Aliases:  []string{"a"},
			Usage:    "Actor ID",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "date",
			Usage: "Date, dd/mm/yyyy (default today, UTC)",
		},
	}
	if withPassword {
		flags = append(flags, dailyPasswordFlag())
	}
	return flags
}

// dailyTarget is the parsed (category, actor, date) triple.
type dailyTarget struct {
	category domain.Category
	actorID  string
	date     domain.Date
}

func parseTarget(c *cli.Context) (dailyTarget, error) {
	category, err := domain.ParseCategory(c.String("category"))
	if err != nil {
		return dailyTarget{}, err
	}
	date := domain.Today()
	if s := c.String("date"); s != "" {
		if date, err = domain.ParseDate(s); err != nil {
			return dailyTarget{}, err
		}
	}
	return dailyTarget{category: category, actorID: c.String("actor"), date: date}, nil
}

func (t dailyTarget) key() vault.Key {
	return vault.Key{Category: t.category, ActorID: t.actorID, Date: t.date}
}

func dailyCreate(c *cli.Context) error {
	policy := channel.FailIfExists
	if c.Bool("reuse") {
		policy = channel.CreateOrReuse
	}
	return withDaily(c, func(ctx context.Context, rt *Runtime, root *channel.RootManager, t dailyTarget) error {
		d, err := root.DailyChannel(ctx, t.category, t.actorID, c.String("password"), t.date, policy)
		if err != nil {
			return err
		}
		return rt.Print(c, newDailyView(d))
	})
}

func dailyGet(c *cli.Context) error {
	return withDaily(c, func(ctx context.Context, rt *Runtime, root *channel.RootManager, t dailyTarget) error {
		d, err := root.GetDailyChannel(ctx, t.category, t.actorID, c.String("password"), t.date)
		if err != nil {
			return err
		}
		return rt.Print(c, newDailyView(d))
	})
}

func dailySend(c *cli.Context) error {
	key, err := parseKey(c.String("key"), c.String("nonce"))
	if err != nil {
		return err
	}
	public, private := c.String("public"), c.String("private")
	if public == "" && private == "" {
		return fmt.Errorf("nothing to send: pass --public or --private")
	}

	return withDaily(c, func(ctx context.Context, rt *Runtime, root *channel.RootManager, t dailyTarget) error {
		d, err := root.GetDailyChannel(ctx, t.category, t.actorID, c.String("password"), t.date)
		if err != nil {
			return err
		}
		id, err := d.SendRawPacket(ctx, []byte(public), []byte(private), key)
		if err != nil {
			return err
		}
		return rt.Print(c, sendView{dailyView: newDailyView(d), MessageID: id})
	})
}

// parseKey decodes the optional symmetric key. A nonce without a key is an
// error; a key without a nonce gets a zero nonce.
func parseKey(keyHex, nonceHex string) (*backend.SymmetricKey, error) {
	if keyHex == "" {
		if nonceHex != "" {
			return nil, fmt.Errorf("--nonce requires --key")
		}
		return nil, nil
	}
	var key backend.SymmetricKey
	raw, err := hex.DecodeString(keyHex)
	if err != nil || len(raw) != len(key.Key) {
		return nil, fmt.Errorf("--key must be %d hex characters", 2*len(key.Key))
	}
	copy(key.Key[:], raw)
	if nonceHex != "" {
		raw, err = hex.DecodeString(nonceHex)
		if err != nil || len(raw) != len(key.Nonce) {
			return nil, fmt.Errorf("--nonce must be %d hex characters", 2*len(key.Nonce))
		}
		copy(key.Nonce[:], raw)
	}
	return &key, nil
}

func dailyRead(c *cli.Context) error {
	return withDaily(c, func(ctx context.Context, rt *Runtime, root *channel.RootManager, t dailyTarget) error {
		payloads, err := root.ReadDailyPublic(ctx, t.category, t.actorID, t.date)
		if err != nil {
			return err
		}
		v := packetsView{Packets: make([]string, 0, len(payloads))}
		for _, p := range payloads {
			v.Packets = append(v.Packets, string(p))
		}
		return rt.Print(c, v)
	})
}

func dailyExport(c *cli.Context) error {
	return withDaily(c, func(ctx context.Context, rt *Runtime, root *channel.RootManager, t dailyTarget) error {
		blob, err := root.ExportDailyChannel(ctx, t.category, t.actorID, c.String("password"), t.date)
		if err != nil {
			return err
		}
		v := exportView{Key: t.key().String(), State: blob}
		if c.Bool("save") {
			store, err := rt.Vault()
			if err != nil {
				return err
			}
			if err := store.Put(ctx, t.key(), blob); err != nil {
				return err
			}
			v.Saved = true
		}
		return rt.Print(c, v)
	})
}

func dailyResume(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	blob, err := readStateFile(c.String("state"))
	if err != nil {
		return err
	}
	if blob == "" {
		t, err := parseTarget(c)
		if err != nil {
			return err
		}
		store, err := rt.Vault()
		if err != nil {
			return err
		}
		if blob, err = store.Get(ctx, t.key()); err != nil {
			return fmt.Errorf("%s: %w", t.key(), err)
		}
	}

	root, err := rt.Root(ctx, c.String("root-password"))
	if err != nil {
		return err
	}
	d, err := root.ImportDailyChannel(ctx, blob, c.String("password"))
	if err != nil {
		return err
	}
	return rt.Print(c, newDailyView(d))
}

// withDaily resolves the runtime, the target and the imported root, then
// runs fn.
func withDaily(c *cli.Context, fn func(context.Context, *Runtime, *channel.RootManager, dailyTarget) error) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	t, err := parseTarget(c)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	root, err := rt.Root(ctx, c.String("root-password"))
	if err != nil {
		return err
	}
	return fn(ctx, rt, root, t)
}

// readStateFile expands "@path" to the trimmed content of path.
func readStateFile(s string) (string, error) {
	if len(s) == 0 || s[0] != '@' {
		return s, nil
	}
	b, err := os.ReadFile(s[1:])
	if err != nil {
		return "", fmt.Errorf("read state file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
