package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"credchain/crypto"
)

// Config carries the daemon settings loaded from the TOML configuration
// file.
type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	NetworkName  string `toml:"NetworkName"`
	AdminAddress string `toml:"AdminAddress"`
	RewardToken  string `toml:"RewardToken"`
	LogFile      string `toml:"LogFile"`
	Env          string `toml:"Env"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings a running daemon cannot work without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must be set")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must be set")
	}
	admin := strings.TrimSpace(c.AdminAddress)
	if admin == "" {
		return fmt.Errorf("AdminAddress must be set")
	}
	if _, err := crypto.DecodeAddress(admin); err != nil {
		return fmt.Errorf("AdminAddress: %w", err)
	}
	if strings.TrimSpace(c.RewardToken) == "" {
		return fmt.Errorf("RewardToken must be set")
	}
	return nil
}

// Admin returns the decoded administrator address.
func (c *Config) Admin() ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(c.AdminAddress))
	if err != nil {
		return [20]byte{}, err
	}
	var out [20]byte
	copy(out[:], addr.Bytes())
	return out, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./credchain-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "credchain-local"
	}
	if strings.TrimSpace(cfg.RewardToken) == "" {
		cfg.RewardToken = "ZPTS"
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	// The default file is a template: it still lacks an AdminAddress, so
	// loading stops here and points the operator at the new file.
	return nil, fmt.Errorf("wrote default config to %s; set AdminAddress before starting", path)
}
