// Package config loads the daemon configuration from a YAML file,
// creating one with defaults on first run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/klingon-exchange/bridgesync/internal/backend"
	"github.com/klingon-exchange/bridgesync/internal/storage"
)

// NetworkType represents the network (mainnet or testnet).
type NetworkType string

const (
	NetworkMainnet NetworkType = "mainnet"
	NetworkTestnet NetworkType = "testnet"
)

// Config holds all configuration for the bridge sync daemon.
type Config struct {
	// NetworkType is the network type (mainnet or testnet).
	NetworkType NetworkType `yaml:"network_type"`

	// API settings for the JSON-RPC / WebSocket server.
	API APIConfig `yaml:"api"`

	// Storage
	Storage storage.Config `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Upstream is the swap-status service.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Bitcoin is the chain indexer configuration. If not specified,
	// defaults to the public mempool.space API.
	Bitcoin *backend.Config `yaml:"bitcoin,omitempty"`

	// Chains are the EVM chains carrying lockup registries.
	Chains []ChainConfig `yaml:"chains"`

	// Resync settings for the periodic background pass.
	Resync ResyncConfig `yaml:"resync"`
}

// APIConfig holds RPC server settings.
type APIConfig struct {
	// Addr is the listen address for the JSON-RPC server.
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// File is the log file path (empty for stdout).
	File string `yaml:"file"`
}

// UpstreamConfig holds the upstream swap-status service settings.
type UpstreamConfig struct {
	// URL is the base URL of the upstream REST API.
	URL string `yaml:"url"`

	// Timeout in seconds, default 30.
	Timeout int `yaml:"timeout,omitempty"`
}

// ChainConfig describes one EVM chain with a deployed lockup registry.
type ChainConfig struct {
	// ChainID is the EVM chain id.
	ChainID uint64 `yaml:"chain_id"`

	// Name is a human-readable chain name for logs.
	Name string `yaml:"name"`

	// RPCURL is the JSON-RPC endpoint.
	RPCURL string `yaml:"rpc_url"`

	// RegistryContract is the lockup registry contract address. Chains
	// without one are not scanned.
	RegistryContract string `yaml:"registry_contract"`
}

// ResyncConfig holds background resync settings.
type ResyncConfig struct {
	// Enabled turns on the periodic pass over users with open swaps.
	Enabled bool `yaml:"enabled"`

	// Interval between passes.
	Interval time.Duration `yaml:"interval"`
}

// IsTestnet returns true if running on testnet.
func (c *Config) IsTestnet() bool {
	return c.NetworkType == NetworkTestnet
}

// BitcoinConfig returns the bitcoin backend config, falling back to the
// defaults when not explicitly configured.
func (c *Config) BitcoinConfig() *backend.Config {
	if c.Bitcoin != nil {
		return c.Bitcoin
	}
	return backend.DefaultConfig()
}

// BitcoinURL returns the indexer base URL for the configured network.
func (c *Config) BitcoinURL() string {
	cfg := c.BitcoinConfig()
	if c.IsTestnet() {
		return cfg.TestnetURL
	}
	return cfg.MainnetURL
}

// ChainByID returns the chain config for an EVM chain id.
func (c *Config) ChainByID(chainID uint64) (ChainConfig, bool) {
	for _, chain := range c.Chains {
		if chain.ChainID == chainID {
			return chain, true
		}
	}
	return ChainConfig{}, false
}

// DefaultConfig returns a Config with sensible defaults. Registry
// contract addresses must be configured before EVM chains are scanned.
func DefaultConfig() *Config {
	return &Config{
		NetworkType: NetworkMainnet,
		API: APIConfig{
			Addr: "127.0.0.1:9735",
		},
		Storage: storage.Config{
			DataDir: "~/.bridgesync",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Upstream: UpstreamConfig{
			URL: "https://api.swaps.klingon.exchange/v2",
		},
		Chains: []ChainConfig{
			{
				ChainID: 1,
				Name:    "ethereum",
				RPCURL:  "https://eth.llamarpc.com",
			},
			{
				ChainID: 137,
				Name:    "polygon",
				RPCURL:  "https://polygon-rpc.com",
			},
			{
				ChainID: 42161,
				Name:    "arbitrum",
				RPCURL:  "https://arb1.arbitrum.io/rpc",
			},
			{
				ChainID: 5115,
				Name:    "citrea",
				RPCURL:  "https://rpc.citrea.xyz",
			},
		},
		Resync: ResyncConfig{
			Enabled:  false,
			Interval: 15 * time.Minute,
		},
	}
}

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// LoadConfig loads configuration from a YAML file in the data
// directory. If the file doesn't exist, it creates one with default
// values.
func LoadConfig(dataDir string) (*Config, error) {
	configPath := ConfigPath(dataDir)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir

		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Bridge Sync Daemon Configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigPath returns the full path to the config file for the given
// data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
