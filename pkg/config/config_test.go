package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clawpad/clawpad/pkg/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.Default()

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 100, cfg.Pool.TargetSize)
	require.Equal(t, 10, cfg.Pool.MinThreshold)
	require.Equal(t, 60*time.Second, cfg.Pool.CheckInterval)
	require.Equal(t, "CLAW", cfg.Pool.Suffix)

	require.InDelta(t, 0.60, cfg.Cycle.BuybackFraction, 1e-9)
	require.Equal(t, 3*time.Second, cfg.Cycle.SettleDelay)
	require.Equal(t, 2*time.Minute, cfg.Cycle.MinInterval)
	require.Equal(t, 10*time.Minute, cfg.Cycle.MaxInterval)
	require.Equal(t, 3, cfg.Cycle.MaxRetries)

	require.InDelta(t, 0.30, cfg.FourMeme.CreatorShare, 1e-9)
	require.InDelta(t, 0.50, cfg.FourMeme.BuybackShare, 1e-9)
	require.InDelta(t, 0.15, cfg.FourMeme.TreasuryShare, 1e-9)
	require.InDelta(t, 0.05, cfg.FourMeme.GasReserveShare, 1e-9)
	require.InDelta(t, 1.0,
		cfg.FourMeme.CreatorShare+cfg.FourMeme.BuybackShare+cfg.FourMeme.TreasuryShare+cfg.FourMeme.GasReserveShare,
		1e-9)
	require.InDelta(t, 0.0005, cfg.FourMeme.MinClaim, 1e-9)

	require.Equal(t, 3, cfg.Deploy.MaxRetries)
	require.InDelta(t, 0.025, cfg.Deploy.MinDeposit, 1e-9)
	require.Equal(t, 60, cfg.Deploy.RetryAfterSecs)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, config.Default().Pool.TargetSize, cfg.Pool.TargetSize)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
pool:
  target_size: 7
  suffix: MEOW
cycle:
  buyback_fraction: 0.25
http_port: 9090
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Pool.TargetSize)
	require.Equal(t, "MEOW", cfg.Pool.Suffix)
	require.InDelta(t, 0.25, cfg.Cycle.BuybackFraction, 1e-9)
	require.Equal(t, 9090, cfg.HTTPPort)

	// Untouched keys keep their defaults.
	require.Equal(t, 10, cfg.Pool.MinThreshold)
}

func TestResolveRPCURL(t *testing.T) {
	cfg := config.RPCConfig{Network: config.NetworkDevnet}
	require.Equal(t, "https://api.devnet.solana.com", cfg.ResolveRPCURL())

	cfg.RPCURL = "http://localhost:8899"
	require.Equal(t, "http://localhost:8899", cfg.ResolveRPCURL())
}
