package storage

import "crypto/tls"

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// Dir is the storage directory.
	Dir string

	// GCInterval is the interval between automatic value-log GC runs.
	// Default: 10m
	GCInterval string

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 16MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 64MB
	ValueLogFileSize int64

	// SyncWrites enables fsync after each write.
	// Default: true (the ledger is the only copy of a channel)
	SyncWrites bool

	// InMemory runs Badger without touching disk. Dir is ignored.
	InMemory bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:              dir,
		GCInterval:       "10m",
		GCThreshold:      0.5,
		CacheSize:        16 << 20,
		ValueLogFileSize: 64 << 20,
		SyncWrites:       true,
	}
}

// JetStreamConfig configures the NATS JetStream ledger.
type JetStreamConfig struct {
	// URL is the NATS server URL.
	URL string

	// Prefix names the KV bucket ("<prefix>_channels"), the stream
	// ("<prefix>_messages") and the subject root ("<prefix>.msg.<id>").
	// Default: "channelctl"
	Prefix string

	// Timeout bounds connection setup and bucket/stream creation.
	// Default: 10s
	Timeout string

	// TLS secures the connection when set.
	TLS *tls.Config
}

// DefaultJetStreamConfig returns the default JetStream configuration.
func DefaultJetStreamConfig(url string) JetStreamConfig {
	return JetStreamConfig{
		URL:     url,
		Prefix:  "channelctl",
		Timeout: "10s",
	}
}
