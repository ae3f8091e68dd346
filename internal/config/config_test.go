package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.NetworkType != NetworkMainnet {
		t.Errorf("network = %s, want mainnet", cfg.NetworkType)
	}
	if cfg.Storage.DataDir != dir {
		t.Errorf("data dir = %s, want %s", cfg.Storage.DataDir, dir)
	}
	if cfg.Resync.Enabled {
		t.Error("resync should be off by default")
	}

	if _, err := os.Stat(ConfigPath(dir)); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}

func TestLoadConfigExisting(t *testing.T) {
	dir := t.TempDir()

	yaml := `network_type: testnet
api:
  addr: "0.0.0.0:9000"
upstream:
  url: "http://localhost:9001"
chains:
  - chain_id: 5115
    name: citrea
    rpc_url: "http://localhost:8545"
    registry_contract: "0x1234567890123456789012345678901234567890"
resync:
  enabled: true
  interval: 5m
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.IsTestnet() {
		t.Error("expected testnet")
	}
	if cfg.API.Addr != "0.0.0.0:9000" {
		t.Errorf("api addr = %s", cfg.API.Addr)
	}
	if cfg.Upstream.URL != "http://localhost:9001" {
		t.Errorf("upstream url = %s", cfg.Upstream.URL)
	}
	if len(cfg.Chains) != 1 || cfg.Chains[0].ChainID != 5115 {
		t.Errorf("chains = %+v", cfg.Chains)
	}
	if !cfg.Resync.Enabled || cfg.Resync.Interval != 5*time.Minute {
		t.Errorf("resync = %+v", cfg.Resync)
	}
	// Unset fields keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %s, want default", cfg.Logging.Level)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{{notyaml"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBitcoinURL(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.BitcoinURL(); !strings.Contains(got, "mempool.space") || strings.Contains(got, "testnet") {
		t.Errorf("mainnet url = %s", got)
	}

	cfg.NetworkType = NetworkTestnet
	if got := cfg.BitcoinURL(); !strings.Contains(got, "testnet") {
		t.Errorf("testnet url = %s", got)
	}
}

func TestChainByID(t *testing.T) {
	cfg := DefaultConfig()

	chain, ok := cfg.ChainByID(5115)
	if !ok || chain.Name != "citrea" {
		t.Errorf("chain = %+v, ok = %v", chain, ok)
	}

	if _, ok := cfg.ChainByID(999999); ok {
		t.Error("unknown chain id should not resolve")
	}
}
