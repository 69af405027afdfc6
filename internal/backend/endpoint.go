package backend

import (
	"fmt"
	"sync"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage"
)

const (
	MainnetEndpoint = "https://chrysalis-nodes.iota.cafe/"
	DevnetEndpoint  = "https://api.lb-0.h.chrysalis-devnet.iota.cafe/"
)

// Endpoint returns the node URL for the selected network.
func Endpoint(mainnet bool) string {
	if mainnet {
		return MainnetEndpoint
	}
	return DevnetEndpoint
}

// Resolver maps an endpoint to the ledger serving it.
type Resolver interface {
	Ledger(endpoint string) (storage.Ledger, error)
}

// StaticResolver serves a fixed endpoint table.
type StaticResolver struct {
	mu      sync.RWMutex
	ledgers map[string]storage.Ledger
}

// NewStaticResolver returns an empty resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{ledgers: make(map[string]storage.Ledger)}
}

// SingleLedger serves both networks from one ledger.
func SingleLedger(l storage.Ledger) *StaticResolver {
	r := NewStaticResolver()
	r.Register(MainnetEndpoint, l)
	r.Register(DevnetEndpoint, l)
	return r
}

// Register binds endpoint to l, replacing any previous binding.
func (r *StaticResolver) Register(endpoint string, l storage.Ledger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledgers[endpoint] = l
}

// Ledger returns the ledger bound to endpoint.
func (r *StaticResolver) Ledger(endpoint string) (storage.Ledger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.ledgers[endpoint]
	if !ok {
		return nil, domain.ErrBackend.Detailf("unknown endpoint %q", endpoint)
	}
	return l, nil
}

// Close closes every distinct registered ledger.
func (r *StaticResolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[storage.Ledger]bool)
	var firstErr error
	for _, l := range r.ledgers {
		if seen[l] {
			continue
		}
		seen[l] = true
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close ledger: %w", err)
		}
	}
	return firstErr
}
