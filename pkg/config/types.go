package config

import "time"

// Run modes.
const (
	// ModeNode runs the dev ledger and its API.
	ModeNode = "node"
	// ModeWorker runs only the off-chain worker against remote nodes.
	ModeWorker = "worker"
	// ModeBoth runs the ledger and a worker in one process.
	ModeBoth = "both"
)

// Signature schemes accepted in keys.scheme.
const (
	SchemeSecp256k1 = "secp256k1"
	SchemeEd25519   = "ed25519"
	SchemeECDSA     = "ecdsa"
)

// Config is the root configuration structure
type Config struct {
	Mode    string        `yaml:"mode"`
	Node    NodeConfig    `yaml:"node"`
	Worker  WorkerConfig  `yaml:"worker"`
	Server  ServerConfig  `yaml:"server"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// NodeConfig configures the dev ledger.
type NodeConfig struct {
	BlockTime   Duration      `yaml:"block_time"`    // Interval between produced blocks
	MaxPoolSize int           `yaml:"max_pool_size"` // Pending transaction limit
	MaxBlockTxs int           `yaml:"max_block_txs"` // Transactions executed per block
	Runtime     RuntimeConfig `yaml:"runtime"`
}

// RuntimeConfig holds the price module parameters every node must agree on.
type RuntimeConfig struct {
	Priority       uint64 `yaml:"priority"`        // Priority of accepted price transactions
	Longevity      uint64 `yaml:"longevity"`       // Blocks an accepted transaction stays valid
	WindowCapacity int    `yaml:"window_capacity"` // Maximum prices kept on-ledger
	TagPrefix      string `yaml:"tag_prefix"`      // Prefix of the de-duplication tag
}

// WorkerConfig configures the off-chain worker.
type WorkerConfig struct {
	Endpoint     string     `yaml:"endpoint"`      // Price endpoint URL
	JSONPath     string     `yaml:"json_path"`     // Path of the price string in the response
	FetchTimeout Duration   `yaml:"fetch_timeout"` // Deadline for one fetch
	Scale        uint64     `yaml:"scale"`         // Fixed-point scale factor
	DryRun       bool       `yaml:"dry_run"`       // Sign but do not submit
	NodeURLs     []string   `yaml:"node_urls"`     // Remote node API base URLs (worker mode)
	Keys         KeysConfig `yaml:"keys"`
	Lock         LockConfig `yaml:"lock"`
}

// KeysConfig configures the signing identities available to the worker.
type KeysConfig struct {
	Scheme      string `yaml:"scheme"`       // secp256k1, ed25519 or ecdsa
	Mnemonic    string `yaml:"mnemonic"`     // BIP39 mnemonic (or use MnemonicEnv)
	MnemonicEnv string `yaml:"mnemonic_env"` // Environment variable holding the mnemonic
	HDPath      string `yaml:"hd_path"`      // Base derivation path; the last index is the account
	Accounts    int    `yaml:"accounts"`     // Number of identities derived from the mnemonic
}

// LockConfig configures the per-node round lock.
type LockConfig struct {
	Enabled bool     `yaml:"enabled"`
	Timeout Duration `yaml:"timeout"` // Wall-clock expiry of a held lock
	Blocks  uint64   `yaml:"blocks"`  // Block expiry of a held lock
}

// ServerConfig configures the node API.
type ServerConfig struct {
	HTTP      HTTPConfig `yaml:"http"`
	WebSocket WSConfig   `yaml:"websocket"`
	// SubmitRateLimit is the sustained rate of accepted POST /v1/transactions per second.
	SubmitRateLimit float64 `yaml:"submit_rate_limit"`
	SubmitBurst     int     `yaml:"submit_burst"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WSConfig configures the websocket event feed
type WSConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
