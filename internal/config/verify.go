package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyNetwork(&cfg.Network); err != nil {
		return err
	}
	if err := verifyLedger(&cfg.Ledger); err != nil {
		return err
	}
	if cfg.Hierarchy.Root != "" {
		if _, err := domain.ParseChannelAddress(cfg.Hierarchy.Root); err != nil {
			return fmt.Errorf("hierarchy.root: %w", err)
		}
	}
	return verifyLog(&cfg.Log)
}

func verifyNetwork(cfg *NetworkSection) error {
	if cfg.RequestsPerSecond < 0 {
		return errors.New("network.requests_per_second must not be negative")
	}
	if cfg.RequestsPerSecond > 0 && cfg.Burst < 1 {
		return errors.New("network.burst must be at least 1 when throttling")
	}
	return nil
}

func verifyLedger(cfg *LedgerSection) error {
	switch cfg.Kind {
	case LedgerMemory:
	case LedgerBadger:
		if cfg.Dir == "" {
			return errors.New("ledger.dir is required for the badger ledger")
		}
		if cfg.GCInterval != "" {
			if _, err := time.ParseDuration(cfg.GCInterval); err != nil {
				return fmt.Errorf("ledger.gc_interval: %w", err)
			}
		}
	case LedgerNATS:
		if cfg.NATSURL == "" {
			return errors.New("ledger.nats_url is required for the nats ledger")
		}
		if cfg.NATSPrefix == "" || strings.ContainsAny(cfg.NATSPrefix, ".*> ") {
			return fmt.Errorf("ledger.nats_prefix %q is not a valid subject token", cfg.NATSPrefix)
		}
		if (cfg.NATSCertFile == "") != (cfg.NATSKeyFile == "") {
			return errors.New("ledger.nats_cert_file and ledger.nats_key_file must be set together")
		}
	default:
		return fmt.Errorf("ledger.kind %q: want memory, badger or nats", cfg.Kind)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q: want debug, info, warn or error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q: want json or text", cfg.Format)
	}
	return nil
}
