// Package config provides configuration types and defaults for registrar.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zjrosen/registrar/internal/log"
	"github.com/zjrosen/registrar/internal/tracing"
)

// Config holds all configuration options for registrar.
type Config struct {
	// DBPath is the registry database file.
	DBPath string `mapstructure:"db_path"`

	// Owner is the identity allowed to update and destroy entries.
	Owner string `mapstructure:"owner"`

	// Identity is the deployer identity address derivation is bound to.
	// Defaults to Owner when empty.
	Identity string `mapstructure:"identity"`

	// TemplateInitCode is the hex-encoded instance template. Fixed for the
	// life of the process; every deployment uses it.
	TemplateInitCode string `mapstructure:"template_init_code"`

	API     APIConfig      `mapstructure:"api"`
	Chain   ChainConfig    `mapstructure:"chain"`
	Cache   CacheConfig    `mapstructure:"cache"`
	Log     LogConfig      `mapstructure:"log"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

// APIConfig holds HTTP server options.
type APIConfig struct {
	// Addr is the listen address for the serve command.
	Addr string `mapstructure:"addr"`
}

// ChainConfig selects the on-chain deployment backend. When disabled the
// local factory is used and nothing leaves the process.
type ChainConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// RPCURL is the JSON-RPC endpoint.
	RPCURL string `mapstructure:"rpc_url"`

	// ChainID of the target network.
	ChainID int64 `mapstructure:"chain_id"`

	// PrivateKey is the hex-encoded signing key.
	PrivateKey string `mapstructure:"private_key"`

	// FactoryAddress is the deployment proxy that performs salted creation.
	FactoryAddress string `mapstructure:"factory_address"`

	// GasFeeCapGwei and GasTipCapGwei bound transaction pricing.
	GasFeeCapGwei int64 `mapstructure:"gas_fee_cap_gwei"`
	GasTipCapGwei int64 `mapstructure:"gas_tip_cap_gwei"`
}

// CacheConfig holds metadata cache options.
type CacheConfig struct {
	// Disabled bypasses the read-through cache entirely.
	Disabled bool `mapstructure:"disabled"`

	// TTL is how long a metadata lookup stays cached.
	TTL time.Duration `mapstructure:"ttl"`
}

// LogConfig holds file logging options.
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Level   string `mapstructure:"level"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		DBPath:           DefaultDBPath(),
		TemplateInitCode: "0x6080604052",
		API: APIConfig{
			Addr: "localhost:8480",
		},
		Chain: ChainConfig{
			Enabled:       false,
			GasFeeCapGwei: 30,
			GasTipCapGwei: 1,
		},
		Cache: CacheConfig{
			Disabled: false,
			TTL:      5 * time.Minute,
		},
		Log: LogConfig{
			Enabled: false,
			Path:    "debug.log",
			Level:   "info",
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// DefaultDBPath returns the default database location under the user config
// directory.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "registrar.db"
	}
	return filepath.Join(home, ".config", "registrar", "registrar.db")
}

// InitCode decodes the configured template.
func (c Config) InitCode() ([]byte, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(c.TemplateInitCode, "0x"), "0X")
	code, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding template_init_code: %w", err)
	}
	return code, nil
}

// OwnerAddress returns the configured owner as an address.
func (c Config) OwnerAddress() common.Address {
	return common.HexToAddress(c.Owner)
}

// IdentityAddress returns the deployer identity, falling back to the owner.
func (c Config) IdentityAddress() common.Address {
	if c.Identity != "" {
		return common.HexToAddress(c.Identity)
	}
	return c.OwnerAddress()
}

// Validate checks the configuration for inconsistencies.
func Validate(cfg Config) error {
	if cfg.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if !common.IsHexAddress(cfg.Owner) {
		return fmt.Errorf("owner %q is not a hex address", cfg.Owner)
	}
	if cfg.Identity != "" && !common.IsHexAddress(cfg.Identity) {
		return fmt.Errorf("identity %q is not a hex address", cfg.Identity)
	}

	code, err := cfg.InitCode()
	if err != nil {
		return err
	}
	if len(code) == 0 {
		return fmt.Errorf("template_init_code must not be empty")
	}

	if cfg.Chain.Enabled {
		if cfg.Chain.RPCURL == "" {
			return fmt.Errorf("chain.rpc_url is required when chain is enabled")
		}
		if cfg.Chain.ChainID == 0 {
			return fmt.Errorf("chain.chain_id is required when chain is enabled")
		}
		if cfg.Chain.PrivateKey == "" {
			return fmt.Errorf("chain.private_key is required when chain is enabled")
		}
		if !common.IsHexAddress(cfg.Chain.FactoryAddress) {
			return fmt.Errorf("chain.factory_address %q is not a hex address", cfg.Chain.FactoryAddress)
		}
	}

	return nil
}

// DefaultConfigTemplate returns the commented YAML written on first run.
func DefaultConfigTemplate() string {
	return `# registrar configuration
#
# owner is the only identity allowed to update or destroy entries.
owner: ""

# identity the deployer derives addresses from (defaults to owner).
identity: ""

# db_path: where the registry database lives (defaults to
# ~/.config/registrar/registrar.db).
# db_path: ""

# template_init_code is the hex-encoded instance template.
template_init_code: "0x6080604052"

api:
  addr: "localhost:8480"

# Deploy against a real chain instead of the local factory.
chain:
  enabled: false
  rpc_url: ""
  chain_id: 0
  private_key: ""
  factory_address: ""
  gas_fee_cap_gwei: 30
  gas_tip_cap_gwei: 1

cache:
  disabled: false
  ttl: 5m

log:
  enabled: false
  path: "debug.log"
  level: "info"

tracing:
  enabled: false
  exporter: "stdout"
  otlp_endpoint: "localhost:4317"
  sample_rate: 1.0
  service_name: "registrar"
`
}

// WriteDefaultConfig writes the default config template to the given path.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
