package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	mode := cfg.NormalizeMode()
	if mode != ModeBoth && mode != ModeNode && mode != ModeWorker {
		return fmt.Errorf("%w: %s (must be 'both', 'node', or 'worker')", ErrInvalidMode, cfg.Mode)
	}

	if cfg.IsNodeMode() {
		if err := validateNodeConfig(&cfg.Node); err != nil {
			return fmt.Errorf("node config: %w", err)
		}
		if err := validateServerConfig(&cfg.Server); err != nil {
			return fmt.Errorf("server config: %w", err)
		}
	}

	if cfg.IsWorkerMode() {
		if err := validateWorkerConfig(&cfg.Worker, mode == ModeWorker); err != nil {
			return fmt.Errorf("worker config: %w", err)
		}
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateNodeConfig(cfg *NodeConfig) error {
	if cfg.BlockTime.ToDuration() <= 0 {
		return ErrInvalidBlockTime
	}
	if cfg.MaxPoolSize <= 0 || cfg.MaxBlockTxs <= 0 {
		return ErrInvalidPoolSize
	}
	if cfg.Runtime.Longevity == 0 {
		return ErrInvalidLongevity
	}
	if cfg.Runtime.WindowCapacity <= 0 {
		return ErrInvalidWindowCapacity
	}
	return nil
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.SubmitRateLimit <= 0 || cfg.SubmitBurst <= 0 {
		return ErrInvalidRateLimit
	}
	return nil
}

func validateWorkerConfig(cfg *WorkerConfig, remote bool) error {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrEndpointRequired, cfg.Endpoint)
	}
	if !strings.HasPrefix(cfg.JSONPath, "$") {
		return fmt.Errorf("%w: %q", ErrInvalidJSONPath, cfg.JSONPath)
	}
	if cfg.FetchTimeout.ToDuration() <= 0 {
		return ErrInvalidFetchTimeout
	}

	switch strings.ToLower(cfg.Keys.Scheme) {
	case SchemeSecp256k1, SchemeEd25519, SchemeECDSA:
	default:
		return fmt.Errorf("%w: %s (must be 'secp256k1', 'ed25519', or 'ecdsa')", ErrInvalidScheme, cfg.Keys.Scheme)
	}
	if cfg.Keys.Accounts < 1 || cfg.Keys.Accounts > 100 {
		return ErrInvalidAccounts
	}
	if cfg.Keys.Mnemonic == "" && cfg.Keys.MnemonicEnv == "" {
		return ErrMnemonicRequired
	}
	if _, err := cfg.Keys.ResolveMnemonic(); err != nil {
		return err
	}

	if cfg.Lock.Enabled && (cfg.Lock.Timeout.ToDuration() <= 0 || cfg.Lock.Blocks == 0) {
		return ErrInvalidLock
	}

	if remote {
		if len(cfg.NodeURLs) == 0 {
			return ErrNodeURLRequired
		}
		for i, raw := range cfg.NodeURLs {
			if _, err := url.ParseRequestURI(raw); err != nil {
				return fmt.Errorf("node_urls[%d]: %w", i, err)
			}
		}
	}

	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	format := strings.ToLower(cfg.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
