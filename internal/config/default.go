package config

import (
	"os"
	"path/filepath"
)

// Ledger kinds.
const (
	LedgerMemory = "memory"
	LedgerBadger = "badger"
	LedgerNATS   = "nats"
)

// Default configuration values.
const (
	DefaultLedgerKind = LedgerBadger
	DefaultGCInterval = "10m"
	DefaultNATSPrefix = "channelctl"
	DefaultBurst      = 1

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
)

// DefaultHome returns the directory holding channelctl's local state.
func DefaultHome() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".channelctl"
	}
	return filepath.Join(homeDir, ".channelctl")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultHome(), "config.yaml")
}

// Default returns the default configuration.
func Default() *Config {
	home := DefaultHome()
	return &Config{
		Network: NetworkSection{
			Burst: DefaultBurst,
		},
		Ledger: LedgerSection{
			Kind:       DefaultLedgerKind,
			Dir:        filepath.Join(home, "ledger"),
			SyncWrites: true,
			GCInterval: DefaultGCInterval,
			NATSPrefix: DefaultNATSPrefix,
		},
		Vault: VaultSection{
			Path: filepath.Join(home, "vault.db"),
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
