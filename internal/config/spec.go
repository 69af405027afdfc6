package config

// Config is the root configuration of channelctl.
type Config struct {
	Network   NetworkSection   `koanf:"network" yaml:"network"`
	Ledger    LedgerSection    `koanf:"ledger" yaml:"ledger"`
	Vault     VaultSection     `koanf:"vault" yaml:"vault"`
	Hierarchy HierarchySection `koanf:"hierarchy" yaml:"hierarchy"`
	Log       LogSection       `koanf:"log" yaml:"log"`
}

// NetworkSection selects the backend network.
type NetworkSection struct {
	Mainnet bool `koanf:"mainnet" yaml:"mainnet"`

	// RequestsPerSecond throttles backend calls per endpoint. Zero disables
	// throttling.
	RequestsPerSecond float64 `koanf:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `koanf:"burst" yaml:"burst"`
}

// LedgerSection configures the store behind the backend.
type LedgerSection struct {
	// Kind is one of memory, badger, nats.
	Kind       string `koanf:"kind" yaml:"kind"`
	Dir        string `koanf:"dir" yaml:"dir"`
	SyncWrites bool   `koanf:"sync_writes" yaml:"sync_writes"`
	GCInterval string `koanf:"gc_interval" yaml:"gc_interval"`
	NATSURL    string `koanf:"nats_url" yaml:"nats_url"`
	NATSPrefix string `koanf:"nats_prefix" yaml:"nats_prefix"`

	// TLS files for the NATS connection. Empty means plain or system-trusted.
	NATSCAFile   string `koanf:"nats_ca_file" yaml:"nats_ca_file"`
	NATSCertFile string `koanf:"nats_cert_file" yaml:"nats_cert_file"`
	NATSKeyFile  string `koanf:"nats_key_file" yaml:"nats_key_file"`
}

// VaultSection configures the exported-state vault.
type VaultSection struct {
	Path string `koanf:"path" yaml:"path"`
}

// HierarchySection names the hierarchy to operate on.
type HierarchySection struct {
	// Root is the root channel address, "channel_id:announce_id".
	Root string `koanf:"root" yaml:"root"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}
