// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Player PlayerConfig `toml:"player"`
	Store  StoreConfig  `toml:"store"`
	Game   GameConfig   `toml:"game"`
}

// PlayerConfig maps player identity settings.
type PlayerConfig struct {
	Username *string `toml:"username"`
}

// StoreConfig maps persistence settings.
type StoreConfig struct {
	Server       *string `toml:"server"`
	DB           *string `toml:"db"`
	Timeout      *string `toml:"timeout"`
	MaxFailures  *int    `toml:"max-failures"`
	ResetTimeout *string `toml:"reset-timeout"`
}

// GameConfig maps gameplay settings.
type GameConfig struct {
	Catalog        *string `toml:"catalog"`
	CheatThreshold *int    `toml:"cheat-threshold"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// ParseDuration parses an optional duration value such as "5s".
func ParseDuration(key string, value *string) (*time.Duration, error) {
	if value == nil {
		return nil, nil
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return nil, fmt.Errorf("invalid %s: must be positive", key)
	}
	return &d, nil
}
