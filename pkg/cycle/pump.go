package cycle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clawpad/clawpad/pkg/config"
	"github.com/clawpad/clawpad/pkg/secret"
	"github.com/clawpad/clawpad/pkg/store"
	"github.com/clawpad/clawpad/pkg/venue/pumpportal"
	"github.com/clawpad/clawpad/pkg/wallet"
)

// TradeBuilder builds an unsigned buy transaction for a pump.fun token.
type TradeBuilder interface {
	BuyTokenTransaction(ctx context.Context, p pumpportal.TradeParams) ([]byte, error)
}

// PumpCycle runs the pump.fun buyback. Creator fees land directly in the
// token wallet, so the spendable base is the wallet balance minus a gas
// reserve rather than a claim delta. Leftover tokens from an interrupted
// earlier pass are burned before buying more.
type PumpCycle struct {
	cfg    config.CycleConfig
	deploy config.DeployConfig
	store  *store.Store
	cipher *secret.Cipher
	chain  SolanaChain
	trader TradeBuilder
	log    zerolog.Logger
}

// NewPumpCycle wires a pump.fun buyback cycle.
func NewPumpCycle(cfg config.CycleConfig, deploy config.DeployConfig, st *store.Store, cipher *secret.Cipher, chain SolanaChain, trader TradeBuilder, log zerolog.Logger) *PumpCycle {
	return &PumpCycle{
		cfg:    cfg,
		deploy: deploy,
		store:  st,
		cipher: cipher,
		chain:  chain,
		trader: trader,
		log:    log,
	}
}

func (c *PumpCycle) Name() string { return "pump" }

// RunOnce processes every live pump.fun token, isolating per-token failures.
func (c *PumpCycle) RunOnce(ctx context.Context) error {
	tokens, err := c.store.TokensForBuyback(ctx, "pump.fun", 0)
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}
	for i := range tokens {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.processToken(ctx, &tokens[i]); err != nil {
			c.log.Error().Err(err).Str("mint", tokens[i].MintAddress).Msg("token cycle failed")
		}
	}
	return nil
}

func (c *PumpCycle) processToken(ctx context.Context, token *store.Token) error {
	keyHex, err := c.cipher.Decrypt(token.WalletPrivateKeyEncrypted)
	if err != nil {
		return fmt.Errorf("decrypt wallet key: %w", err)
	}
	signer, err := wallet.NewLocalFromHex(keyHex)
	if err != nil {
		return fmt.Errorf("load wallet key: %w", err)
	}
	walletAddr := signer.PublicKey().String()

	// A crash between buy and burn leaves bought tokens behind. Sweep them
	// first so the burn is never skipped permanently.
	leftover, err := c.chain.TokenBalance(ctx, walletAddr, token.MintAddress)
	if err != nil {
		return fmt.Errorf("token balance: %w", err)
	}
	if leftover > 0 {
		burnSig, err := c.chain.BurnTokens(ctx, signer, token.MintAddress, leftover)
		if err != nil {
			return fmt.Errorf("burn leftover: %w", err)
		}
		c.log.Info().Str("mint", token.MintAddress).Float64("tokens", leftover).Str("burn_tx", burnSig).Msg("leftover tokens burned")
		if err := c.store.CreateBurn(ctx, &store.Burn{
			TokenID:      token.ID,
			TokensBurned: leftover,
			TxSignature:  burnSig,
		}); err != nil {
			return err
		}
	}

	balance, err := c.chain.Balance(ctx, walletAddr)
	if err != nil {
		return fmt.Errorf("wallet balance: %w", err)
	}
	spendable := balance - c.cfg.Reserve
	if spendable < c.cfg.MinBalance {
		c.log.Debug().Str("mint", token.MintAddress).Float64("balance", balance).Msg("balance below buyback minimum")
		return nil
	}

	if err := c.store.UpdateTokenFees(ctx, token.ID, spendable); err != nil {
		return fmt.Errorf("record collected fees: %w", err)
	}

	buyAmount := spendable * c.cfg.BuybackFraction
	if buyAmount < c.cfg.MinSwap {
		return nil
	}

	var sig string
	err = withRetry(ctx, c.cfg.MaxRetries, func() error {
		txBytes, buildErr := c.trader.BuyTokenTransaction(ctx, pumpportal.TradeParams{
			PublicKey:   walletAddr,
			Mint:        token.MintAddress,
			SOLAmount:   buyAmount,
			Slippage:    c.deploy.Slippage,
			PriorityFee: c.deploy.PriorityFee,
		})
		if buildErr != nil {
			return buildErr
		}
		var sendErr error
		sig, sendErr = c.chain.SignAndSendTransaction(ctx, txBytes, signer)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("buyback: %w", err)
	}
	c.log.Info().Str("mint", token.MintAddress).Float64("sol", buyAmount).Str("buy_tx", sig).Msg("buyback executed")

	if err := settle(ctx, c.cfg.SettleDelay); err != nil {
		return err
	}

	held, err := c.chain.TokenBalance(ctx, walletAddr, token.MintAddress)
	if err != nil {
		return fmt.Errorf("token balance after buy: %w", err)
	}
	if held <= 0 {
		return fmt.Errorf("buy confirmed but no tokens held")
	}

	burnSig, err := c.chain.BurnTokens(ctx, signer, token.MintAddress, held)
	if err != nil {
		return fmt.Errorf("burn: %w", err)
	}
	c.log.Info().Str("mint", token.MintAddress).Float64("tokens", held).Str("burn_tx", burnSig).Msg("tokens burned")

	return c.store.CreateBurn(ctx, &store.Burn{
		TokenID:      token.ID,
		NativeSpent:  buyAmount,
		TokensBurned: held,
		TxSignature:  burnSig,
	})
}
