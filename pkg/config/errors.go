// Package config provides configuration loading and validation for ocw-bridge.
package config

import "errors"

var (
	// ErrInvalidMode indicates that the mode is invalid.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidBlockTime indicates that node.block_time is not positive.
	ErrInvalidBlockTime = errors.New("block_time must be positive")
	// ErrInvalidPoolSize indicates that pool or block limits are not positive.
	ErrInvalidPoolSize = errors.New("max_pool_size and max_block_txs must be positive")
	// ErrInvalidLongevity indicates that runtime.longevity is zero.
	ErrInvalidLongevity = errors.New("longevity must be at least one block")
	// ErrInvalidWindowCapacity indicates that runtime.window_capacity is not positive.
	ErrInvalidWindowCapacity = errors.New("window_capacity must be positive")
	// ErrEndpointRequired indicates that worker.endpoint is missing or not an http(s) URL.
	ErrEndpointRequired = errors.New("worker.endpoint must be an http or https URL")
	// ErrInvalidJSONPath indicates that worker.json_path does not start at the document root.
	ErrInvalidJSONPath = errors.New("json_path must start with $")
	// ErrInvalidFetchTimeout indicates that worker.fetch_timeout is not positive.
	ErrInvalidFetchTimeout = errors.New("fetch_timeout must be positive")
	// ErrInvalidScheme indicates that keys.scheme is not a supported signature scheme.
	ErrInvalidScheme = errors.New("invalid signature scheme")
	// ErrInvalidAccounts indicates that keys.accounts is negative or too large.
	ErrInvalidAccounts = errors.New("accounts must be between 1 and 100")
	// ErrMnemonicRequired indicates that either mnemonic or mnemonic_env must be specified.
	ErrMnemonicRequired = errors.New("either mnemonic or mnemonic_env must be specified")
	// ErrMnemonicEnvNotSet indicates that the mnemonic environment variable is not set.
	ErrMnemonicEnvNotSet = errors.New("mnemonic environment variable not set")
	// ErrNoMnemonicConfigured indicates that no mnemonic is configured.
	ErrNoMnemonicConfigured = errors.New("no mnemonic configured")
	// ErrNodeURLRequired indicates that worker mode has no node to submit to.
	ErrNodeURLRequired = errors.New("worker mode requires at least one node_urls entry")
	// ErrInvalidLock indicates that an enabled lock has a zero expiry.
	ErrInvalidLock = errors.New("lock timeout and blocks must be positive")
	// ErrInvalidRateLimit indicates that the submit rate limit is negative.
	ErrInvalidRateLimit = errors.New("submit_rate_limit and submit_burst must be positive")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
