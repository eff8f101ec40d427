package cycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clawpad/clawpad/pkg/config"
	"github.com/clawpad/clawpad/pkg/evm"
	"github.com/clawpad/clawpad/pkg/secret"
	"github.com/clawpad/clawpad/pkg/store"
)

// EVMChain is the slice of the BNB chain client the Four.meme cycle uses.
type EVMChain interface {
	Balance(ctx context.Context, address string) (float64, error)
	TransferNative(ctx context.Context, privateKeyHex, to string, amount float64) (string, error)
}

// TaxClaimer reads and claims accumulated trading tax from a Four.meme
// token contract.
type TaxClaimer interface {
	ClaimableTaxFees(ctx context.Context, tokenContract, owner string) (float64, error)
	ClaimTaxFees(ctx context.Context, privateKeyHex, tokenContract string) (string, error)
}

// FourMemeCycle claims Four.meme trading tax on BNB Chain and splits the
// proceeds: creator payout, buyback treasury, platform treasury, and a gas
// reserve that stays in the wallet.
type FourMemeCycle struct {
	cfg     config.FourMemeConfig
	store   *store.Store
	cipher  *secret.Cipher
	chain   EVMChain
	claimer TaxClaimer
	log     zerolog.Logger
}

// NewFourMemeCycle wires a Four.meme tax cycle.
func NewFourMemeCycle(cfg config.FourMemeConfig, st *store.Store, cipher *secret.Cipher, chain EVMChain, claimer TaxClaimer, log zerolog.Logger) *FourMemeCycle {
	return &FourMemeCycle{
		cfg:     cfg,
		store:   st,
		cipher:  cipher,
		chain:   chain,
		claimer: claimer,
		log:     log,
	}
}

func (c *FourMemeCycle) Name() string { return "fourmeme" }

// RunOnce processes every live Four.meme token, isolating per-token failures.
func (c *FourMemeCycle) RunOnce(ctx context.Context) error {
	tokens, err := c.store.TokensForBuyback(ctx, "four.meme", 0)
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}
	for i := range tokens {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.processToken(ctx, &tokens[i]); err != nil {
			c.log.Error().Err(err).Str("contract", tokens[i].MintAddress).Msg("token cycle failed")
		}
	}
	return nil
}

func (c *FourMemeCycle) processToken(ctx context.Context, token *store.Token) error {
	keyHex, err := c.cipher.Decrypt(token.WalletPrivateKeyEncrypted)
	if err != nil {
		return fmt.Errorf("decrypt wallet key: %w", err)
	}
	owner, err := evm.AddressFromKey(keyHex)
	if err != nil {
		return fmt.Errorf("derive wallet address: %w", err)
	}

	claimable, err := c.claimer.ClaimableTaxFees(ctx, token.MintAddress, owner)
	if err != nil {
		return fmt.Errorf("read claimable: %w", err)
	}
	if claimable < c.cfg.MinClaim {
		c.log.Debug().Str("contract", token.MintAddress).Float64("claimable", claimable).Msg("below claim minimum")
		return nil
	}

	before, err := c.chain.Balance(ctx, owner)
	if err != nil {
		return fmt.Errorf("balance before claim: %w", err)
	}

	claimTx, err := c.claimer.ClaimTaxFees(ctx, keyHex, token.MintAddress)
	if err != nil {
		return fmt.Errorf("claim tax: %w", err)
	}
	if err := settle(ctx, c.cfg.SettleDelay); err != nil {
		return err
	}

	after, err := c.chain.Balance(ctx, owner)
	if err != nil {
		return fmt.Errorf("balance after claim: %w", err)
	}
	claimed := after - before
	if claimed <= 0 {
		c.log.Warn().Str("contract", token.MintAddress).Str("claim_tx", claimTx).Msg("claim produced no balance change")
		return nil
	}
	c.log.Info().Str("contract", token.MintAddress).Float64("claimed", claimed).Str("claim_tx", claimTx).Msg("tax claimed")

	dist := &store.FeeDistribution{
		TokenID:        token.ID,
		CycleID:        uuid.NewString(),
		Chain:          "bsc",
		TotalClaimed:   claimed,
		CreatorAmount:  claimed * c.cfg.CreatorShare,
		BuybackAmount:  claimed * c.cfg.BuybackShare,
		TreasuryAmount: claimed * c.cfg.TreasuryShare,
		GasReserve:     claimed * c.cfg.GasReserveShare,
		ClaimTxHash:    claimTx,
		Status:         "completed",
	}

	// Each payout leg fails independently. The buyback and gas shares stay
	// in the wallet; the buyback treasury is swept by the Solana-side
	// buyback process.
	if dist.CreatorAmount >= c.cfg.MinTransfer && token.CreatorWallet != "" {
		hash, err := c.chain.TransferNative(ctx, keyHex, token.CreatorWallet, dist.CreatorAmount)
		if err != nil {
			c.log.Error().Err(err).Str("contract", token.MintAddress).Msg("creator payout failed")
			dist.Status = "partial"
		} else {
			dist.CreatorTxHash = hash
		}
	}
	if dist.TreasuryAmount >= c.cfg.MinTransfer && c.cfg.TreasuryWallet != "" {
		hash, err := c.chain.TransferNative(ctx, keyHex, c.cfg.TreasuryWallet, dist.TreasuryAmount)
		if err != nil {
			c.log.Error().Err(err).Str("contract", token.MintAddress).Msg("treasury payout failed")
			dist.Status = "partial"
		} else {
			dist.TreasuryTxHash = hash
		}
	}

	if err := c.store.CreateFeeDistribution(ctx, dist); err != nil {
		return fmt.Errorf("record distribution: %w", err)
	}
	return c.store.UpdateTokenFees(ctx, token.ID, claimed)
}
