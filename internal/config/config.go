package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = "oracular"
	envPrefix  = "ORACULAR"

	fileMode = 0o600
	dirMode  = 0o700
)

// Config is the dashboard's user configuration.
type Config struct {
	// DefaultNetwork is the chain selected at startup.
	DefaultNetwork string `mapstructure:"default_network" toml:"default_network"`
	// GasPollInterval is how often the gas ticker refreshes.
	GasPollInterval time.Duration `mapstructure:"gas_poll_interval" toml:"gas_poll_interval"`
	// PriceCurrency is the fiat currency for price conversions.
	PriceCurrency string `mapstructure:"price_currency" toml:"price_currency"`
	// PriceAPIToken is an optional pro API key for the price feed.
	PriceAPIToken string `mapstructure:"price_api_token" toml:"price_api_token,omitempty"`
	// RPCOverrides maps chain name to a preferred RPC endpoint.
	RPCOverrides map[string]string `mapstructure:"rpc_overrides" toml:"rpc_overrides,omitempty"`
	// SessionPath overrides where session state is persisted.
	SessionPath string `mapstructure:"session_path" toml:"session_path,omitempty"`
}

// Dir returns the user configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(base, configDir), nil
}

// Load reads the configuration file, applying defaults for anything unset.
// A missing file is not an error. Every key can be overridden through
// ORACULAR_* environment variables.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("default_network", "ethereum")
	v.SetDefault("gas_poll_interval", 15*time.Second)
	v.SetDefault("price_currency", "usd")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.GasPollInterval <= 0 {
		cfg.GasPollInterval = 15 * time.Second
	}
	return &cfg, nil
}

// Save writes the configuration to its file, creating the directory on
// first use.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path := filepath.Join(dir, configName+"."+configType)
	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
