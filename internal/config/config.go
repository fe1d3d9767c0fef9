// Package config persists earpeace settings between runs so the bot token
// and guild do not have to be passed on every invocation.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	// DefaultConfigDir is the configuration directory under $HOME.
	DefaultConfigDir = ".config/earpeace"
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "config.json"
)

// Config holds persisted settings. Flags and environment variables override
// any value set here.
type Config struct {
	DiscordToken   string  `json:"discord_token,omitempty"`
	GuildID        string  `json:"guild_id,omitempty"`
	TargetLoudness float64 `json:"target_loudness"`
	PeakCeiling    float64 `json:"peak_ceiling"`
	Concurrency    int     `json:"concurrency"`
	Retries        int     `json:"retries"`
}

// DefaultConfig returns the built-in defaults: -18 LUFS at a -1 dBFS
// ceiling, four workers, two retries.
func DefaultConfig() Config {
	return Config{
		TargetLoudness: -18,
		PeakCeiling:    -1,
		Concurrency:    4,
		Retries:        2,
	}
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfigDir
	}
	return filepath.Join(home, DefaultConfigDir)
}

// Load reads the configuration from disk, returning defaults when no file
// exists yet.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(GetConfigDir(), ConfigFileName))
}

// LoadFrom reads the configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to the default location, creating the
// directory if needed.
func Save(cfg *Config) error {
	return SaveTo(filepath.Join(GetConfigDir(), ConfigFileName), cfg)
}

// SaveTo writes the configuration to an explicit path.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
