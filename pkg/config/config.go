// Package config provides configuration loading and validation for ocw-bridge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults shared with the runtime and worker packages.
const (
	DefaultEndpoint       = "https://api.coincap.io/v2/assets/polkadot"
	DefaultJSONPath       = "$.data.priceUsd"
	DefaultFetchTimeout   = 3000 * time.Millisecond
	DefaultScale          = 10000
	DefaultPriority       = 100
	DefaultLongevity      = 3
	DefaultWindowCapacity = 10
	DefaultTagPrefix      = "ocw-demo"
	DefaultLockTimeout    = 4000 * time.Millisecond
	DefaultLockBlocks     = 3
	DefaultHDPath         = "m/44'/118'/0'/0/0"
)

// Load loads configuration from YAML file and environment variables.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, expanding environment variables first, and
// applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = ModeBoth
	}

	// Node
	if cfg.Node.BlockTime.ToDuration() == 0 {
		cfg.Node.BlockTime = Duration(6 * time.Second)
	}
	if cfg.Node.MaxPoolSize == 0 {
		cfg.Node.MaxPoolSize = 1024
	}
	if cfg.Node.MaxBlockTxs == 0 {
		cfg.Node.MaxBlockTxs = 64
	}
	rt := &cfg.Node.Runtime
	if rt.Priority == 0 {
		rt.Priority = DefaultPriority
	}
	if rt.Longevity == 0 {
		rt.Longevity = DefaultLongevity
	}
	if rt.WindowCapacity == 0 {
		rt.WindowCapacity = DefaultWindowCapacity
	}
	if rt.TagPrefix == "" {
		rt.TagPrefix = DefaultTagPrefix
	}

	// Worker
	w := &cfg.Worker
	if w.Endpoint == "" {
		w.Endpoint = DefaultEndpoint
	}
	if w.JSONPath == "" {
		w.JSONPath = DefaultJSONPath
	}
	if w.FetchTimeout.ToDuration() == 0 {
		w.FetchTimeout = Duration(DefaultFetchTimeout)
	}
	if w.Scale == 0 {
		w.Scale = DefaultScale
	}
	if w.Keys.Scheme == "" {
		w.Keys.Scheme = SchemeSecp256k1
	}
	if w.Keys.HDPath == "" {
		w.Keys.HDPath = DefaultHDPath
	}
	if w.Keys.Accounts == 0 {
		w.Keys.Accounts = 1
	}
	if w.Lock.Timeout.ToDuration() == 0 {
		w.Lock.Timeout = Duration(DefaultLockTimeout)
	}
	if w.Lock.Blocks == 0 {
		w.Lock.Blocks = DefaultLockBlocks
	}

	// Server
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.SubmitRateLimit == 0 {
		cfg.Server.SubmitRateLimit = 20
	}
	if cfg.Server.SubmitBurst == 0 {
		cfg.Server.SubmitBurst = 40
	}

	// Metrics
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// ResolveMnemonic returns the configured mnemonic, reading it from the
// environment when mnemonic_env is set.
func (k *KeysConfig) ResolveMnemonic() (string, error) {
	if k.MnemonicEnv != "" {
		m := strings.TrimSpace(os.Getenv(k.MnemonicEnv))
		if m == "" {
			return "", fmt.Errorf("%w: %s", ErrMnemonicEnvNotSet, k.MnemonicEnv)
		}
		return m, nil
	}
	if k.Mnemonic == "" {
		return "", ErrNoMnemonicConfigured
	}
	return strings.TrimSpace(k.Mnemonic), nil
}

// NormalizeMode converts mode string to lowercase.
func (c *Config) NormalizeMode() string {
	return strings.ToLower(c.Mode)
}

// IsNodeMode returns true if the dev ledger should run.
func (c *Config) IsNodeMode() bool {
	mode := c.NormalizeMode()
	return mode == ModeBoth || mode == ModeNode
}

// IsWorkerMode returns true if the off-chain worker should run.
func (c *Config) IsWorkerMode() bool {
	mode := c.NormalizeMode()
	return mode == ModeBoth || mode == ModeWorker
}
