package cycle_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/clawpad/clawpad/pkg/config"
	"github.com/clawpad/clawpad/pkg/cycle"
	"github.com/clawpad/clawpad/pkg/evm"
	"github.com/clawpad/clawpad/pkg/secret"
	"github.com/clawpad/clawpad/pkg/store"
)

// Throwaway secp256k1 key for tests.
const testEVMKey = "4c0883a69102937d6231471b5dbb6204fe512961708279c4b1acb3d3a9c3d866"

func seedEVMToken(t *testing.T, st *store.Store, cipher *secret.Cipher, contract, creator string) *store.Token {
	t.Helper()
	sealed, err := cipher.Encrypt(testEVMKey)
	require.NoError(t, err)
	owner, err := evm.AddressFromKey(testEVMKey)
	require.NoError(t, err)

	token := &store.Token{
		Venue:                     "four.meme",
		MintAddress:               contract,
		Name:                      "Test",
		Symbol:                    "TST",
		WalletPublicKey:           owner,
		WalletPrivateKeyEncrypted: sealed,
		CreatorWallet:             creator,
	}
	require.NoError(t, st.CreateToken(context.Background(), token))
	return token
}

type fakeEVMChain struct {
	balances  []float64
	transfers map[string]float64 // destination -> amount
	failDest  string
}

func (f *fakeEVMChain) Balance(ctx context.Context, address string) (float64, error) {
	b := f.balances[0]
	f.balances = f.balances[1:]
	return b, nil
}

func (f *fakeEVMChain) TransferNative(ctx context.Context, privateKeyHex, to string, amount float64) (string, error) {
	if to == f.failDest {
		return "", context.DeadlineExceeded
	}
	if f.transfers == nil {
		f.transfers = map[string]float64{}
	}
	f.transfers[to] = amount
	return "0xtransfer", nil
}

type fakeTaxClaimer struct {
	claimable float64
	claimed   bool
}

func (f *fakeTaxClaimer) ClaimableTaxFees(ctx context.Context, tokenContract, owner string) (float64, error) {
	return f.claimable, nil
}

func (f *fakeTaxClaimer) ClaimTaxFees(ctx context.Context, privateKeyHex, tokenContract string) (string, error) {
	f.claimed = true
	return "0xclaim", nil
}

func testFourMemeConfig() config.FourMemeConfig {
	cfg := config.DefaultFourMemeConfig()
	cfg.SettleDelay = 0
	cfg.TreasuryWallet = "0x00000000000000000000000000000000000000AA"
	return cfg
}

func TestFourMemeCycleSplitsClaim(t *testing.T) {
	st := newTestStore(t)
	cipher := newTestCipher(t)
	cfg := testFourMemeConfig()
	creator := "0x00000000000000000000000000000000000000BB"
	token := seedEVMToken(t, st, cipher, "0xC0FFEE", creator)

	chain := &fakeEVMChain{balances: []float64{0.50, 1.50}}
	claimer := &fakeTaxClaimer{claimable: 1.0}

	c := cycle.NewFourMemeCycle(cfg, st, cipher, chain, claimer, zerolog.Nop())
	require.NoError(t, c.RunOnce(context.Background()))
	require.True(t, claimer.claimed)

	// 30/50/15/5 split of the 1.0 BNB delta.
	require.InDelta(t, 0.30, chain.transfers[creator], 1e-9)
	require.InDelta(t, 0.15, chain.transfers[cfg.TreasuryWallet], 1e-9)

	var dists []store.FeeDistribution
	require.NoError(t, st.DB().Where("token_id = ?", token.ID).Find(&dists).Error)
	require.Len(t, dists, 1)
	d := dists[0]
	require.Equal(t, "bsc", d.Chain)
	require.NotEmpty(t, d.CycleID)
	require.InDelta(t, 1.0, d.TotalClaimed, 1e-9)
	require.InDelta(t, 0.30, d.CreatorAmount, 1e-9)
	require.InDelta(t, 0.50, d.BuybackAmount, 1e-9)
	require.InDelta(t, 0.15, d.TreasuryAmount, 1e-9)
	require.InDelta(t, 0.05, d.GasReserve, 1e-9)
	require.Equal(t, "0xclaim", d.ClaimTxHash)
	require.Equal(t, "0xtransfer", d.CreatorTxHash)
	require.Equal(t, "0xtransfer", d.TreasuryTxHash)
	require.Equal(t, "completed", d.Status)

	got, err := st.GetToken(context.Background(), token.ID)
	require.NoError(t, err)
	require.InDelta(t, 1.0, got.TotalFeesCollected, 1e-9)
}

func TestFourMemeCycleBelowMinimumSkips(t *testing.T) {
	st := newTestStore(t)
	cipher := newTestCipher(t)
	cfg := testFourMemeConfig()
	seedEVMToken(t, st, cipher, "0xC0FFEE", "0xBB")

	chain := &fakeEVMChain{balances: []float64{0.50}}
	claimer := &fakeTaxClaimer{claimable: cfg.MinClaim / 2}

	c := cycle.NewFourMemeCycle(cfg, st, cipher, chain, claimer, zerolog.Nop())
	require.NoError(t, c.RunOnce(context.Background()))
	require.False(t, claimer.claimed)
	require.Empty(t, chain.transfers)
}

func TestFourMemeCyclePayoutFailureIsPartial(t *testing.T) {
	st := newTestStore(t)
	cipher := newTestCipher(t)
	cfg := testFourMemeConfig()
	creator := "0x00000000000000000000000000000000000000BB"
	token := seedEVMToken(t, st, cipher, "0xC0FFEE", creator)

	chain := &fakeEVMChain{balances: []float64{0.50, 1.50}, failDest: creator}
	claimer := &fakeTaxClaimer{claimable: 1.0}

	c := cycle.NewFourMemeCycle(cfg, st, cipher, chain, claimer, zerolog.Nop())
	require.NoError(t, c.RunOnce(context.Background()))

	// Treasury leg still went through.
	require.InDelta(t, 0.15, chain.transfers[cfg.TreasuryWallet], 1e-9)

	var dists []store.FeeDistribution
	require.NoError(t, st.DB().Where("token_id = ?", token.ID).Find(&dists).Error)
	require.Len(t, dists, 1)
	require.Equal(t, "partial", dists[0].Status)
	require.Empty(t, dists[0].CreatorTxHash)
	require.Equal(t, "0xtransfer", dists[0].TreasuryTxHash)
}
