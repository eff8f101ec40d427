// Package pool maintains the vanity mint-address pool: it replenishes the
// stock of pre-generated addresses in the background and hands them out to
// deploys through an atomic reservation protocol.
package pool

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/clawpad/clawpad/pkg/config"
	"github.com/clawpad/clawpad/pkg/secret"
	"github.com/clawpad/clawpad/pkg/store"
	"github.com/clawpad/clawpad/pkg/vanity"
)

// GeneratorFunc produces one vanity keypair for the suffix. The production
// generator shells out to the vanity-worker binary.
type GeneratorFunc func(ctx context.Context, suffix string) (*vanity.WorkerResult, error)

// Manager owns the pool lifecycle. At most one replenishment loop runs at a
// time regardless of how many triggers fire.
type Manager struct {
	cfg      config.PoolConfig
	store    *store.Store
	cipher   *secret.Cipher
	generate GeneratorFunc
	log      zerolog.Logger

	isGenerating   atomic.Bool
	generatedCount atomic.Int64
}

// NewManager builds a pool manager using the subprocess runner as generator.
func NewManager(cfg config.PoolConfig, st *store.Store, cipher *secret.Cipher, log zerolog.Logger) *Manager {
	runner := &vanity.Runner{
		Path:    cfg.WorkerPath,
		Threads: cfg.WorkerThreads,
		Timeout: cfg.WorkerTimeout,
		Log:     log,
	}
	return NewManagerWithGenerator(cfg, st, cipher, runner.Run, log)
}

// NewManagerWithGenerator builds a pool manager with a custom generator.
func NewManagerWithGenerator(cfg config.PoolConfig, st *store.Store, cipher *secret.Cipher, gen GeneratorFunc, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    st,
		cipher:   cipher,
		generate: gen,
		log:      log.With().Str("component", "pool").Logger(),
	}
}

// Run blocks until ctx is cancelled, checking pool levels after the start
// delay and then on every check interval. A replenishment that outlasts an
// interval is not doubled up; the guard in Replenish absorbs the extra tick.
func (m *Manager) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.cfg.StartDelay):
	}
	m.check(ctx)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Manager) check(ctx context.Context) {
	available, err := m.store.AvailableVanityCount(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("pool level check failed")
		return
	}
	if available < int64(m.cfg.MinThreshold) {
		m.log.Info().Int64("available", available).Int("threshold", m.cfg.MinThreshold).Msg("pool below threshold")
	}
	if err := m.Replenish(ctx); err != nil && ctx.Err() == nil {
		m.log.Error().Err(err).Msg("replenish failed")
	}
}

// Replenish generates addresses until the pool reaches its target size.
// Generation is strictly sequential: the search saturates the CPU, so
// parallel workers would only fight each other. Returns immediately when
// another replenishment is already running.
func (m *Manager) Replenish(ctx context.Context) error {
	if !m.isGenerating.CompareAndSwap(false, true) {
		m.log.Debug().Msg("replenish already running")
		return nil
	}
	defer m.isGenerating.Store(false)

	failures := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		available, err := m.store.AvailableVanityCount(ctx)
		if err != nil {
			return fmt.Errorf("count available: %w", err)
		}
		if available >= int64(m.cfg.TargetSize) {
			m.log.Debug().Int64("available", available).Msg("pool at target")
			return nil
		}

		result, err := m.generate(ctx, m.cfg.Suffix)
		if err != nil {
			failures++
			m.log.Error().Err(err).Int("consecutive_failures", failures).Msg("generation failed")
			if failures >= m.cfg.MaxFailures {
				return fmt.Errorf("generation failed %d times in a row: %w", failures, err)
			}
			continue
		}
		failures = 0

		encrypted, err := m.cipher.Encrypt(result.SecretKey)
		if err != nil {
			return fmt.Errorf("encrypt secret key: %w", err)
		}
		if _, err := m.store.AddVanityAddress(ctx, result.PublicKey, encrypted, result.Attempts, result.Elapsed); err != nil {
			return fmt.Errorf("store address: %w", err)
		}
		m.generatedCount.Add(1)
		m.log.Info().
			Str("address", result.PublicKey).
			Uint64("attempts", result.Attempts).
			Float64("elapsed", result.Elapsed).
			Msg("vanity address added")
	}
}

// TriggerGeneration kicks off a replenishment in the background. Used when
// a deploy finds the pool empty; redundant triggers are absorbed.
func (m *Manager) TriggerGeneration(ctx context.Context) {
	go func() {
		if err := m.Replenish(ctx); err != nil && ctx.Err() == nil {
			m.log.Error().Err(err).Msg("triggered replenish failed")
		}
	}()
}

// Reserve claims the oldest available address for a session.
func (m *Manager) Reserve(ctx context.Context, sessionID *uint) (*store.VanityAddress, error) {
	return m.store.ReserveVanityAddress(ctx, sessionID)
}

// Release returns a reserved address to the pool.
func (m *Manager) Release(ctx context.Context, id uint) error {
	return m.store.ReleaseVanityAddress(ctx, id)
}

// MarkUsed finalizes a reserved address after a successful deploy.
func (m *Manager) MarkUsed(ctx context.Context, id, tokenID uint) error {
	return m.store.MarkVanityAddressUsed(ctx, id, tokenID)
}

// MarkBurned retires a reserved address whose mint account is unusable.
func (m *Manager) MarkBurned(ctx context.Context, id uint) error {
	return m.store.MarkVanityAddressBurned(ctx, id)
}

// Status is the pool health snapshot served by the HTTP API.
type Status struct {
	store.PoolStats
	TargetSize     int    `json:"targetSize"`
	MinThreshold   int    `json:"minThreshold"`
	Suffix         string `json:"suffix"`
	IsGenerating   bool   `json:"isGenerating"`
	GeneratedCount int64  `json:"generatedCount"`
}

// Status reports pool counts and generation state.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	stats, err := m.store.VanityPoolStats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		PoolStats:      stats,
		TargetSize:     m.cfg.TargetSize,
		MinThreshold:   m.cfg.MinThreshold,
		Suffix:         m.cfg.Suffix,
		IsGenerating:   m.isGenerating.Load(),
		GeneratedCount: m.generatedCount.Load(),
	}, nil
}
