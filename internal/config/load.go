package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/infra/confloader"
)

// Load builds the configuration from defaults, the YAML file at path, the
// CHANNELCTL_* environment and flags, in increasing priority, then verifies
// it. A missing file at the default path is not an error; a missing file at
// an explicit path is.
func Load(path string, flags map[string]any) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, fmt.Errorf("config file: %w", err)
		}
		path = ""
	}

	cfg := Default()
	l := confloader.NewLoader(confloader.WithConfigFile(path))
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	if len(flags) > 0 {
		if err := l.LoadMap(flags); err != nil {
			return nil, err
		}
		if err := l.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal flags: %w", err)
		}
	}

	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
