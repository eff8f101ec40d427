package cycle_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/clawpad/clawpad/pkg/config"
	"github.com/clawpad/clawpad/pkg/cycle"
	"github.com/clawpad/clawpad/pkg/venue/pumpportal"
)

type fakeTrader struct {
	params []pumpportal.TradeParams
}

func (f *fakeTrader) BuyTokenTransaction(ctx context.Context, p pumpportal.TradeParams) ([]byte, error) {
	f.params = append(f.params, p)
	return []byte("unsigned-buy-tx"), nil
}

func TestPumpCycleBuysAndBurns(t *testing.T) {
	st := newTestStore(t)
	cipher := newTestCipher(t)
	cfg := testCycleConfig()
	deployCfg := config.DefaultDeployConfig()
	token, _ := seedToken(t, st, cipher, "pump.fun", "PumpAAACLAW")

	// 1.01 SOL in the wallet, 0.01 reserved: 1.00 spendable, 0.60 bought.
	// No leftovers before the buy, 999 tokens held after it.
	chain := &fakeSolChain{
		balances:  []float64{1.01},
		tokenBals: []float64{0, 999},
		sendSig:   "buy-sig",
	}
	trader := &fakeTrader{}

	c := cycle.NewPumpCycle(cfg, deployCfg, st, cipher, chain, trader, zerolog.Nop())
	require.NoError(t, c.RunOnce(context.Background()))

	require.Len(t, trader.params, 1)
	require.Equal(t, "PumpAAACLAW", trader.params[0].Mint)
	require.InDelta(t, 0.60, trader.params[0].SOLAmount, 1e-9)
	require.Equal(t, deployCfg.Slippage, trader.params[0].Slippage)
	require.Len(t, chain.sentTxs, 1)

	require.Equal(t, []float64{999}, chain.burnedAmts)
	burns, err := st.BurnsByToken(context.Background(), token.ID)
	require.NoError(t, err)
	require.Len(t, burns, 1)
	require.InDelta(t, 0.60, burns[0].NativeSpent, 1e-9)
	require.InDelta(t, 999, burns[0].TokensBurned, 1e-9)

	got, err := st.GetToken(context.Background(), token.ID)
	require.NoError(t, err)
	require.InDelta(t, 1.00, got.TotalFeesCollected, 1e-9)
}

func TestPumpCycleSweepsLeftoverTokens(t *testing.T) {
	st := newTestStore(t)
	cipher := newTestCipher(t)
	token, _ := seedToken(t, st, cipher, "pump.fun", "PumpBBBCLAW")

	// Tokens left over from an interrupted run, balance too low to buy.
	chain := &fakeSolChain{balances: []float64{0.005}, tokenBals: []float64{321}}
	trader := &fakeTrader{}

	c := cycle.NewPumpCycle(testCycleConfig(), config.DefaultDeployConfig(), st, cipher, chain, trader, zerolog.Nop())
	require.NoError(t, c.RunOnce(context.Background()))

	require.Equal(t, []float64{321}, chain.burnedAmts)
	require.Empty(t, trader.params)

	burns, err := st.BurnsByToken(context.Background(), token.ID)
	require.NoError(t, err)
	require.Len(t, burns, 1)
	require.Zero(t, burns[0].NativeSpent)
	require.InDelta(t, 321, burns[0].TokensBurned, 1e-9)
}

func TestPumpCycleBalanceBelowMinimum(t *testing.T) {
	st := newTestStore(t)
	cipher := newTestCipher(t)
	seedToken(t, st, cipher, "pump.fun", "PumpCCCCLAW")

	chain := &fakeSolChain{balances: []float64{0.015}}
	trader := &fakeTrader{}

	c := cycle.NewPumpCycle(testCycleConfig(), config.DefaultDeployConfig(), st, cipher, chain, trader, zerolog.Nop())
	require.NoError(t, c.RunOnce(context.Background()))
	require.Empty(t, trader.params)
	require.Empty(t, chain.burnedMints)
}
