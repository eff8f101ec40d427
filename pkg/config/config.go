// Package config holds runtime configuration for the clawpad daemon.
package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Network defines the target Solana cluster.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkDevnet  Network = "devnet"
	NetworkCustom  Network = "custom"
)

// DefaultRPCURL returns the standard RPC endpoint for a known network.
func DefaultRPCURL(network Network) string {
	switch network {
	case NetworkMainnet:
		return "https://api.mainnet-beta.solana.com"
	case NetworkTestnet:
		return "https://api.testnet.solana.com"
	case NetworkDevnet:
		return "https://api.devnet.solana.com"
	default:
		return ""
	}
}

// RetryConfig controls RPC retry behavior.
type RetryConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Jitter         bool          `mapstructure:"jitter"`
}

// RateLimitConfig throttles outbound RPC calls.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// RPCConfig aggregates runtime settings for Solana RPC usage.
type RPCConfig struct {
	Network    Network         `mapstructure:"network"`
	RPCURL     string          `mapstructure:"rpc_url"`
	Commitment string          `mapstructure:"commitment"`
	Timeout    time.Duration   `mapstructure:"timeout"`
	Retry      RetryConfig     `mapstructure:"retry"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	JitoURL    string          `mapstructure:"jito_url"`
	Logger     zerolog.Logger  `mapstructure:"-"`
}

// ResolveRPCURL returns RPCURL if set, otherwise falls back to network defaults.
func (c RPCConfig) ResolveRPCURL() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	return DefaultRPCURL(c.Network)
}

// DefaultRPCConfig yields production-safe defaults (mainnet, confirmed commitment).
func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		Network:    NetworkMainnet,
		RPCURL:     DefaultRPCURL(NetworkMainnet),
		Commitment: "confirmed",
		Timeout:    20 * time.Second,
		Retry: RetryConfig{
			Enabled:        true,
			MaxAttempts:    3,
			InitialBackoff: 150 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Jitter:         true,
		},
		RateLimit: RateLimitConfig{
			RPS:   8,
			Burst: 16,
		},
		Logger: zerolog.New(io.Discard),
	}
}

// PoolConfig controls the vanity address pool manager.
type PoolConfig struct {
	TargetSize    int           `mapstructure:"target_size"`
	MinThreshold  int           `mapstructure:"min_threshold"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	StartDelay    time.Duration `mapstructure:"start_delay"`
	Suffix        string        `mapstructure:"suffix"`
	WorkerPath    string        `mapstructure:"worker_path"`
	WorkerTimeout time.Duration `mapstructure:"worker_timeout"`
	WorkerThreads int           `mapstructure:"worker_threads"`
	MaxFailures   int           `mapstructure:"max_failures"`
}

// DefaultPoolConfig mirrors the production pool sizing.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		TargetSize:    100,
		MinThreshold:  10,
		CheckInterval: 60 * time.Second,
		StartDelay:    5 * time.Second,
		Suffix:        "CLAW",
		WorkerPath:    "vanity-worker",
		WorkerTimeout: 10 * time.Minute,
		WorkerThreads: 6,
		MaxFailures:   5,
	}
}

// CycleConfig controls a fee-claim/buyback/burn runner.
type CycleConfig struct {
	BuybackFraction float64       `mapstructure:"buyback_fraction"`
	MinClaimed      float64       `mapstructure:"min_claimed"`
	MinSwap         float64       `mapstructure:"min_swap"`
	MinBalance      float64       `mapstructure:"min_balance"`
	Reserve         float64       `mapstructure:"reserve"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	StartDelay      time.Duration `mapstructure:"start_delay"`
	MinInterval     time.Duration `mapstructure:"min_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxRetries      int           `mapstructure:"max_retries"`
	SlippageBps     uint64        `mapstructure:"slippage_bps"`
}

// DefaultCycleConfig mirrors the production buyback policy: 60% of claimed
// fees are swapped back into the token, the remainder accumulates.
func DefaultCycleConfig() CycleConfig {
	return CycleConfig{
		BuybackFraction: 0.60,
		MinClaimed:      0.01,
		MinSwap:         0.005,
		MinBalance:      0.01,
		Reserve:         0.01,
		SettleDelay:     3 * time.Second,
		StartDelay:      10 * time.Second,
		MinInterval:     2 * time.Minute,
		MaxInterval:     10 * time.Minute,
		MaxRetries:      3,
		SlippageBps:     150,
	}
}

// FourMemeConfig holds the Four.meme tax distribution policy.
type FourMemeConfig struct {
	CreatorShare    float64       `mapstructure:"creator_share"`
	BuybackShare    float64       `mapstructure:"buyback_share"`
	TreasuryShare   float64       `mapstructure:"treasury_share"`
	GasReserveShare float64       `mapstructure:"gas_reserve_share"`
	MinClaim        float64       `mapstructure:"min_claim"`
	MinTransfer     float64       `mapstructure:"min_transfer"`
	TreasuryWallet  string        `mapstructure:"treasury_wallet"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	MinInterval     time.Duration `mapstructure:"min_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// DefaultFourMemeConfig mirrors the 30/50/15/5 production split.
func DefaultFourMemeConfig() FourMemeConfig {
	return FourMemeConfig{
		CreatorShare:    0.30,
		BuybackShare:    0.50,
		TreasuryShare:   0.15,
		GasReserveShare: 0.05,
		MinClaim:        0.0005,
		MinTransfer:     0.0005,
		SettleDelay:     3 * time.Second,
		MinInterval:     2 * time.Minute,
		MaxInterval:     10 * time.Minute,
	}
}

// DeployConfig bounds the vanity-address retry loop around token creation.
type DeployConfig struct {
	MaxRetries     int     `mapstructure:"max_retries"`
	MinDeposit     float64 `mapstructure:"min_deposit"`
	RetryAfterSecs int     `mapstructure:"retry_after_secs"`
	PriorityFee    float64 `mapstructure:"priority_fee"`
	Slippage       uint64  `mapstructure:"slippage"`
}

// DefaultDeployConfig returns deploy-loop defaults.
func DefaultDeployConfig() DeployConfig {
	return DeployConfig{
		MaxRetries:     3,
		MinDeposit:     0.025,
		RetryAfterSecs: 60,
		PriorityFee:    0.0005,
		Slippage:       10,
	}
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "mysql" or "sqlite"
	DSN    string `mapstructure:"dsn"`
}

// Config is the daemon-wide configuration tree.
type Config struct {
	Database  DatabaseConfig `mapstructure:"database"`
	Solana    RPCConfig      `mapstructure:"solana"`
	BNBRPCURL string         `mapstructure:"bnb_rpc_url"`
	SecretKey string         `mapstructure:"secret_key"` // hex, 32 bytes
	Pool      PoolConfig     `mapstructure:"pool"`
	Cycle     CycleConfig    `mapstructure:"cycle"`
	FourMeme  FourMemeConfig `mapstructure:"fourmeme"`
	Deploy    DeployConfig   `mapstructure:"deploy"`
	HTTPPort  int            `mapstructure:"http_port"`
	LogLevel  string         `mapstructure:"log_level"`
}

// Default returns the full default configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "clawpad.db"},
		Solana:   DefaultRPCConfig(),
		Pool:     DefaultPoolConfig(),
		Cycle:    DefaultCycleConfig(),
		FourMeme: DefaultFourMemeConfig(),
		Deploy:   DefaultDeployConfig(),
		HTTPPort: 8080,
		LogLevel: "info",
	}
}

// Load reads config.yaml from the given path (or the working directory when
// empty) over the defaults. Environment variables prefixed CLAWPAD_ override
// file values. A missing config file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix("CLAWPAD")
	v.AutomaticEnv()

	cfg := Default()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
