package store_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clawpad/clawpad/pkg/config"
	"github.com/clawpad/clawpad/pkg/store"
	"github.com/clawpad/clawpad/pkg/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	st, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	return st
}

func addAddresses(t *testing.T, st *store.Store, n int) []string {
	t.Helper()
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		pk := fmt.Sprintf("Addr%04dCLAW", i)
		_, err := st.AddVanityAddress(context.Background(), pk, "sealed", uint64(i), 1.5)
		require.NoError(t, err)
		keys = append(keys, pk)
	}
	return keys
}

func TestReserveDrainsPoolWithoutDuplicates(t *testing.T) {
	st := newTestStore(t)
	const total = 25
	addAddresses(t, st, total)

	var (
		mu       sync.Mutex
		reserved []string
		wg       sync.WaitGroup
	)
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				addr, err := st.ReserveVanityAddress(context.Background(), nil)
				if err != nil {
					if errors.Is(err, types.ErrPoolEmpty) {
						return
					}
					t.Errorf("reserve: %v", err)
					return
				}
				mu.Lock()
				reserved = append(reserved, addr.PublicKey)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, reserved, total)
	seen := make(map[string]bool, total)
	for _, pk := range reserved {
		require.False(t, seen[pk], "address %s reserved twice", pk)
		seen[pk] = true
	}

	stats, err := st.VanityPoolStats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 0, stats.Available)
	require.EqualValues(t, total, stats.Reserved)
}

func TestReserveEmptyPool(t *testing.T) {
	st := newTestStore(t)
	_, err := st.ReserveVanityAddress(context.Background(), nil)
	require.ErrorIs(t, err, types.ErrPoolEmpty)
}

func TestReserveOldestFirst(t *testing.T) {
	st := newTestStore(t)
	keys := addAddresses(t, st, 3)

	addr, err := st.ReserveVanityAddress(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, keys[0], addr.PublicKey)
	require.NotNil(t, addr.ReservedAt)
}

func TestTransitionsFromReserved(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	addAddresses(t, st, 3)

	used, err := st.ReserveVanityAddress(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, st.MarkVanityAddressUsed(ctx, used.ID, 42))

	got, err := st.GetVanityAddress(ctx, used.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusUsed, got.Status)
	require.NotNil(t, got.TokenID)
	require.EqualValues(t, 42, *got.TokenID)
	require.NotNil(t, got.UsedAt)

	burned, err := st.ReserveVanityAddress(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, st.MarkVanityAddressBurned(ctx, burned.ID))

	released, err := st.ReserveVanityAddress(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, st.ReleaseVanityAddress(ctx, released.ID))

	got, err = st.GetVanityAddress(ctx, released.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusAvailable, got.Status)
	require.Nil(t, got.SessionID)
	require.Nil(t, got.ReservedAt)

	// A released address goes back into rotation.
	again, err := st.ReserveVanityAddress(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, released.PublicKey, again.PublicKey)
}

func TestIllegalTransitions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	addAddresses(t, st, 3)

	// Available rows cannot jump straight to used or burned.
	avail, err := st.GetVanityAddress(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, store.StatusAvailable, avail.Status)
	require.ErrorIs(t, st.MarkVanityAddressUsed(ctx, avail.ID, 1), types.ErrInvalidTransition)
	require.ErrorIs(t, st.MarkVanityAddressBurned(ctx, avail.ID), types.ErrInvalidTransition)

	addr, err := st.ReserveVanityAddress(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, st.MarkVanityAddressUsed(ctx, addr.ID, 1))

	// Used and burned are terminal.
	require.ErrorIs(t, st.MarkVanityAddressUsed(ctx, addr.ID, 2), types.ErrInvalidTransition)
	require.ErrorIs(t, st.MarkVanityAddressBurned(ctx, addr.ID), types.ErrInvalidTransition)
	require.ErrorIs(t, st.ReleaseVanityAddress(ctx, addr.ID), types.ErrInvalidTransition)

	second, err := st.ReserveVanityAddress(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, st.MarkVanityAddressBurned(ctx, second.ID))
	require.ErrorIs(t, st.ReleaseVanityAddress(ctx, second.ID), types.ErrInvalidTransition)

	require.ErrorIs(t, st.MarkVanityAddressUsed(ctx, 9999, 1), types.ErrAddressNotFound)
}

func TestVanityPoolStats(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	addAddresses(t, st, 4)

	a, err := st.ReserveVanityAddress(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, st.MarkVanityAddressUsed(ctx, a.ID, 1))

	b, err := st.ReserveVanityAddress(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, st.MarkVanityAddressBurned(ctx, b.ID))

	_, err = st.ReserveVanityAddress(ctx, nil)
	require.NoError(t, err)

	stats, err := st.VanityPoolStats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Available)
	require.EqualValues(t, 1, stats.Reserved)
	require.EqualValues(t, 1, stats.Used)
	require.EqualValues(t, 1, stats.Burned)
	require.EqualValues(t, 4, stats.Total)

	available, err := st.AvailableVanityCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, available)
}
