package channel

import (
	"context"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/backend"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/telemetry/logger"
)

// Option configures a manager tree.
type Option func(*env)

// WithObserver installs an event observer.
func WithObserver(o Observer) Option {
	return func(e *env) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLogger sets the logger of the default LogObserver. It has no effect
// when WithObserver installs an observer.
func WithLogger(l logger.Logger) Option {
	return func(e *env) {
		if l != nil {
			e.logger = l
		}
	}
}

// env is shared by every manager of one hierarchy.
type env struct {
	backend  backend.Backend
	mainnet  bool
	endpoint string
	observer Observer
	logger   logger.Logger
}

func newEnv(b backend.Backend, mainnet bool, opts []Option) *env {
	e := &env{
		backend:  b,
		mainnet:  mainnet,
		endpoint: backend.Endpoint(mainnet),
		logger:   logger.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.observer == nil {
		e.observer = NewLogObserver(e.logger)
	}
	return e
}

func (e *env) observe(ctx context.Context, ev Event) {
	e.observer.Observe(ctx, ev)
}
