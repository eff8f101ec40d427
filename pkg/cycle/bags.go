package cycle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clawpad/clawpad/pkg/config"
	"github.com/clawpad/clawpad/pkg/secret"
	"github.com/clawpad/clawpad/pkg/store"
	"github.com/clawpad/clawpad/pkg/venue/jupiter"
	"github.com/clawpad/clawpad/pkg/wallet"
)

// SolanaChain is the slice of the chain client the Solana cycles use.
type SolanaChain interface {
	Balance(ctx context.Context, address string) (float64, error)
	TokenBalance(ctx context.Context, address, mint string) (float64, error)
	BurnTokens(ctx context.Context, signer wallet.Signer, mint string, amount float64) (string, error)
	SignAndSendTransaction(ctx context.Context, txBytes []byte, signers ...wallet.Signer) (string, error)
}

// FeeClaimer claims accrued creator fees for a mint. An empty signature
// with a nil error means nothing was claimable.
type FeeClaimer interface {
	ClaimFees(ctx context.Context, signer wallet.Signer, mint string) (string, error)
}

// Swapper buys a token with native SOL.
type Swapper interface {
	BuyTokenWithSOL(ctx context.Context, signer wallet.Signer, mint string, amountSOL float64, slippageBps uint64) (*jupiter.SwapResult, error)
}

// BagsCycle claims bags.fm creator fees per token, measures what actually
// arrived as a wallet balance delta, swaps the buyback fraction of it into
// the token, and burns the proceeds.
type BagsCycle struct {
	cfg     config.CycleConfig
	store   *store.Store
	cipher  *secret.Cipher
	chain   SolanaChain
	claimer FeeClaimer
	swapper Swapper
	log     zerolog.Logger
}

// NewBagsCycle wires a bags.fm fee cycle.
func NewBagsCycle(cfg config.CycleConfig, st *store.Store, cipher *secret.Cipher, chain SolanaChain, claimer FeeClaimer, swapper Swapper, log zerolog.Logger) *BagsCycle {
	return &BagsCycle{
		cfg:     cfg,
		store:   st,
		cipher:  cipher,
		chain:   chain,
		claimer: claimer,
		swapper: swapper,
		log:     log,
	}
}

func (c *BagsCycle) Name() string { return "bags" }

// RunOnce processes every live bags.fm token. A failure on one token is
// logged and does not stop the others.
func (c *BagsCycle) RunOnce(ctx context.Context) error {
	tokens, err := c.store.TokensForBuyback(ctx, "bags.fm", 0)
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

func (c *BagsCycle) processToken(ctx context.Context, token *store.Token) error {
	keyHex, err := c.cipher.Decrypt(token.WalletPrivateKeyEncrypted)
	if err != nil {
		return fmt.Errorf("decrypt wallet key: %w", err)
	}
	signer, err := wallet.NewLocalFromHex(keyHex)
	if err != nil {
		return fmt.Errorf("load wallet key: %w", err)
	}
	walletAddr := signer.PublicKey().String()

	before, err := c.chain.Balance(ctx, walletAddr)
	if err != nil {
		return fmt.Errorf("balance before claim: %w", err)
	}

	claimSig, err := c.claimer.ClaimFees(ctx, signer, token.MintAddress)
	if err != nil {
		return fmt.Errorf("claim fees: %w", err)
	}
	if claimSig == "" {
		c.log.Debug().Str("mint", token.MintAddress).Msg("no fees to claim")
		return nil
	}
	if err := settle(ctx, c.cfg.SettleDelay); err != nil {
		return err
	}

	after, err := c.chain.Balance(ctx, walletAddr)
	if err != nil {
		return fmt.Errorf("balance after claim: %w", err)
	}

	// What the wallet actually received is authoritative, not what the
	// venue claims was paid out.
	claimed := after - before
	if claimed <= 0 {
		c.log.Debug().Str("mint", token.MintAddress).Str("claim_tx", claimSig).Msg("claim produced no balance change")
		return nil
	}
	c.log.Info().Str("mint", token.MintAddress).Float64("claimed", claimed).Str("claim_tx", claimSig).Msg("fees claimed")

	if err := c.store.UpdateTokenFees(ctx, token.ID, claimed); err != nil {
		return fmt.Errorf("record claimed fees: %w", err)
	}

	if claimed < c.cfg.MinClaimed {
		c.log.Debug().Str("mint", token.MintAddress).Float64("claimed", claimed).Msg("claim below buyback minimum, accumulating")
		return nil
	}

	buyback := claimed * c.cfg.BuybackFraction
	if buyback < c.cfg.MinSwap {
		c.log.Debug().Str("mint", token.MintAddress).Float64("buyback", buyback).Msg("buyback below swap minimum, accumulating")
		return nil
	}
	// The buy must leave enough behind for transaction fees.
	if after < buyback+c.cfg.Reserve {
		c.log.Warn().Str("mint", token.MintAddress).Float64("balance", after).Float64("buyback", buyback).Msg("balance too low for buyback, skipping")
		return nil
	}

	var swap *jupiter.SwapResult
	err = withRetry(ctx, c.cfg.MaxRetries, func() error {
		var swapErr error
		swap, swapErr = c.swapper.BuyTokenWithSOL(ctx, signer, token.MintAddress, buyback, c.cfg.SlippageBps)
		return swapErr
	})
	if err != nil {
		return fmt.Errorf("buyback swap: %w", err)
	}
	c.log.Info().Str("mint", token.MintAddress).Float64("sol", buyback).Str("swap_tx", swap.Signature).Msg("buyback executed")

	if err := settle(ctx, c.cfg.SettleDelay); err != nil {
		return err
	}

	held, err := c.chain.TokenBalance(ctx, walletAddr, token.MintAddress)
	if err != nil {
		return fmt.Errorf("token balance: %w", err)
	}
	if held <= 0 {
		return fmt.Errorf("buyback confirmed but no tokens held")
	}

	burnSig, err := c.chain.BurnTokens(ctx, signer, token.MintAddress, held)
	if err != nil {
		return fmt.Errorf("burn: %w", err)
	}
	c.log.Info().Str("mint", token.MintAddress).Float64("tokens", held).Str("burn_tx", burnSig).Msg("tokens burned")

	return c.store.CreateBurn(ctx, &store.Burn{
		TokenID:      token.ID,
		NativeSpent:  buyback,
		TokensBurned: held,
		TxSignature:  burnSig,
	})
}
