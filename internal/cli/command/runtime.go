package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/backend"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/cli/output"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/config"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/channel"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/infra/tlsroots"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage/memory"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/telemetry/logger"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/telemetry/metric"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/vault"
)

// Runtime holds the resources shared by one command invocation. The
// ledger and vault are opened on first use.
type Runtime struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metric.Registry

	out  io.Writer
	opts appOptions

	mu       sync.Mutex
	resolver *backend.StaticResolver
	client   *backend.Client
	vault    *vault.Store
}

func newRuntime(cfg *config.Config, log logger.Logger, out io.Writer, opts appOptions) *Runtime {
	if out == nil {
		out = os.Stdout
	}
	return &Runtime{
		Config:  cfg,
		Logger:  log,
		Metrics: metric.NewRegistry(),
		out:     out,
		opts:    opts,
	}
}

// Backend returns the backend client, opening the ledger on first use.
func (r *Runtime) Backend(ctx context.Context) (*backend.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client, nil
	}

	resolver, err := r.openResolver(ctx)
	if err != nil {
		return nil, err
	}
	net := r.Config.Network
	opts := []backend.Option{
		backend.WithLogger(r.Logger),
		backend.WithRateLimit(net.RequestsPerSecond, net.Burst),
	}
	opts = append(opts, r.opts.backendOpts...)

	r.resolver = resolver
	r.client = backend.New(resolver, opts...)
	return r.client, nil
}

func (r *Runtime) openResolver(ctx context.Context) (*backend.StaticResolver, error) {
	if r.opts.ledger != nil {
		return backend.SingleLedger(r.opts.ledger), nil
	}

	mainnet := r.Config.Network.Mainnet
	l, err := openLedger(ctx, r.Config.Ledger, mainnet, r.Logger, r.Metrics)
	if err != nil {
		return nil, err
	}
	resolver := backend.NewStaticResolver()
	resolver.Register(backend.Endpoint(mainnet), l)
	return resolver, nil
}

// openLedger opens the configured ledger for one network. Each network
// gets its own directory or subject prefix.
func openLedger(ctx context.Context, cfg config.LedgerSection, mainnet bool, log logger.Logger, reg *metric.Registry) (storage.Ledger, error) {
	network := "devnet"
	if mainnet {
		network = "mainnet"
	}

	switch cfg.Kind {
	case config.LedgerMemory:
		return memory.New(), nil

	case config.LedgerBadger:
		bc := storage.DefaultBadgerConfig(filepath.Join(cfg.Dir, network))
		bc.SyncWrites = cfg.SyncWrites
		if cfg.GCInterval != "" {
			bc.GCInterval = cfg.GCInterval
		}
		l, err := storage.NewBadgerLedger(bc, log.Slog())
		if err != nil {
			return nil, fmt.Errorf("open badger ledger: %w", err)
		}
		return l.RegisterMetrics(reg.Registerer()), nil

	case config.LedgerNATS:
		jc := storage.DefaultJetStreamConfig(cfg.NATSURL)
		jc.Prefix = cfg.NATSPrefix + "_" + network
		tlsCfg, err := tlsroots.ClientConfig(tlsroots.ClientFiles{
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
		})
		if err != nil {
			return nil, err
		}
		jc.TLS = tlsCfg
		l, err := storage.NewJetStreamLedger(ctx, jc, log.Slog())
		if err != nil {
			return nil, fmt.Errorf("open nats ledger: %w", err)
		}
		return l, nil

	default:
		return nil, fmt.Errorf("unknown ledger kind %q", cfg.Kind)
	}
}

// Vault returns the state vault, creating its directory on first use.
func (r *Runtime) Vault() (*vault.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vault != nil {
		return r.vault, nil
	}
	path := r.Config.Vault.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create vault directory: %w", err)
		}
	}
	s, err := vault.Open(path)
	if err != nil {
		return nil, err
	}
	r.vault = s
	return s, nil
}

// Observer returns the hierarchy observer: structured logs plus metrics.
func (r *Runtime) Observer() channel.Observer {
	return channel.Observers{
		channel.NewLogObserver(r.Logger),
		metric.NewObserver(r.Metrics),
	}
}

func (r *Runtime) managerOptions() []channel.Option {
	return []channel.Option{
		channel.WithObserver(r.Observer()),
		channel.WithLogger(r.Logger),
	}
}

// NewRoot opens a fresh hierarchy.
func (r *Runtime) NewRoot(ctx context.Context, password string) (*channel.RootManager, domain.ChannelAddress, error) {
	b, err := r.Backend(ctx)
	if err != nil {
		return nil, domain.ChannelAddress{}, err
	}
	root := channel.NewRootManager(b, r.Config.Network.Mainnet, r.managerOptions()...)
	addr, err := root.Open(ctx, password)
	if err != nil {
		return nil, domain.ChannelAddress{}, err
	}
	return root, addr, nil
}

// Root imports the configured hierarchy.
func (r *Runtime) Root(ctx context.Context, password string) (*channel.RootManager, error) {
	if r.Config.Hierarchy.Root == "" {
		return nil, errors.New("no root address: pass --root or set hierarchy.root")
	}
	addr, err := domain.ParseChannelAddress(r.Config.Hierarchy.Root)
	if err != nil {
		return nil, err
	}
	b, err := r.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return channel.ImportRootFromRemote(ctx, b, addr, password, r.Config.Network.Mainnet, r.managerOptions()...)
}

// Print writes data in the selected output format.
func (r *Runtime) Print(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(r.out, data)
}

// Close releases the vault and any ledger the runtime opened.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.vault != nil {
		errs = append(errs, r.vault.Close())
		r.vault = nil
	}
	if r.resolver != nil && r.opts.ledger == nil {
		errs = append(errs, r.resolver.Close())
	}
	r.resolver, r.client = nil, nil
	return errors.Join(errs...)
}
