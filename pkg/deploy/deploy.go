// Package deploy turns a funded session into a live token: it reserves a
// vanity mint from the pool, builds the create transaction, and finalizes
// or retires the reservation depending on the outcome.
package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clawpad/clawpad/pkg/config"
	"github.com/clawpad/clawpad/pkg/secret"
	"github.com/clawpad/clawpad/pkg/store"
	"github.com/clawpad/clawpad/pkg/types"
	"github.com/clawpad/clawpad/pkg/venue/pumpportal"
	"github.com/clawpad/clawpad/pkg/wallet"
)

// Pool is the reservation surface the deploy loop drives.
type Pool interface {
	Reserve(ctx context.Context, sessionID *uint) (*store.VanityAddress, error)
	Release(ctx context.Context, id uint) error
	MarkUsed(ctx context.Context, id, tokenID uint) error
	MarkBurned(ctx context.Context, id uint) error
	TriggerGeneration(ctx context.Context)
}

// CreateBuilder builds an unsigned token-creation transaction.
type CreateBuilder interface {
	CreateTokenTransaction(ctx context.Context, p pumpportal.CreateParams) ([]byte, error)
}

// Chain signs and submits a venue-built transaction.
type Chain interface {
	SignAndSendTransaction(ctx context.Context, txBytes []byte, signers ...wallet.Signer) (string, error)
}

// Blueprint is the token description a session carries as JSON.
type Blueprint struct {
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Description   string  `json:"description"`
	ImageURL      string  `json:"imageUrl"`
	MetadataURI   string  `json:"metadataUri"`
	InitialBuySOL float64 `json:"initialBuySol"`
}

// Orchestrator runs token deployments for funded sessions.
type Orchestrator struct {
	cfg     config.DeployConfig
	store   *store.Store
	cipher  *secret.Cipher
	pool    Pool
	builder CreateBuilder
	chain   Chain
	log     zerolog.Logger
}

// NewOrchestrator wires a deploy orchestrator.
func NewOrchestrator(cfg config.DeployConfig, st *store.Store, cipher *secret.Cipher, pool Pool, builder CreateBuilder, chain Chain, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		store:   st,
		cipher:  cipher,
		pool:    pool,
		builder: builder,
		chain:   chain,
		log:     log.With().Str("component", "deploy").Logger(),
	}
}

// Deploy creates the session's token on pump.fun using a pooled vanity
// mint. An address whose mint account is already initialized on-chain is
// burned and replaced, up to the retry bound; any other failure releases
// the reservation back to the pool.
func (o *Orchestrator) Deploy(ctx context.Context, sessionID uint) (*store.Token, error) {
	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.Status != "funded" {
		return nil, types.NewValidationError("status", fmt.Sprintf("session is %s, expected funded", session.Status))
	}
	if session.DepositAmount < o.cfg.MinDeposit {
		return nil, types.ErrInsufficientDeposit
	}
	if session.WalletPrivateKeyEncrypted == "" {
		return nil, types.ErrMissingWallet
	}

	var blueprint Blueprint
	if err := json.Unmarshal([]byte(session.Blueprint), &blueprint); err != nil {
		return nil, types.NewValidationError("blueprint", err.Error())
	}

	walletKeyHex, err := o.cipher.Decrypt(session.WalletPrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt session wallet: %w", err)
	}
	sessionSigner, err := wallet.NewLocalFromHex(walletKeyHex)
	if err != nil {
		return nil, fmt.Errorf("load session wallet: %w", err)
	}

	if err := o.store.UpdateSessionStatus(ctx, session.ID, "deploying", nil, ""); err != nil {
		return nil, fmt.Errorf("mark deploying: %w", err)
	}

	token, err := o.deployWithRetry(ctx, session, blueprint, sessionSigner)
	if err != nil {
		// An empty pool is transient: the session stays funded so the
		// client can retry once generation catches up.
		if errors.Is(err, types.ErrPoolEmpty) {
			if stErr := o.store.UpdateSessionStatus(ctx, session.ID, "funded", nil, ""); stErr != nil {
				o.log.Error().Err(stErr).Uint("session", session.ID).Msg("restore funded status failed")
			}
		} else {
			if stErr := o.store.UpdateSessionStatus(ctx, session.ID, "failed", nil, err.Error()); stErr != nil {
				o.log.Error().Err(stErr).Uint("session", session.ID).Msg("mark failed status failed")
			}
		}
		return nil, err
	}
	if err := o.store.UpdateSessionStatus(ctx, session.ID, "completed", &token.ID, ""); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	return token, nil
}

func (o *Orchestrator) deployWithRetry(ctx context.Context, session *store.Session, blueprint Blueprint, sessionSigner wallet.Signer) (*store.Token, error) {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		addr, err := o.pool.Reserve(ctx, &session.ID)
		if err != nil {
			if errors.Is(err, types.ErrPoolEmpty) {
				o.pool.TriggerGeneration(context.WithoutCancel(ctx))
			}
			return nil, err
		}

		token, err := o.attempt(ctx, session, blueprint, sessionSigner, addr)
		if err == nil {
			return token, nil
		}

		if types.IsAddressInUse(err) {
			// The mint account was claimed on-chain by an earlier partial
			// deploy. The keypair can never be reused; retire it and try
			// the next one.
			o.log.Warn().Str("address", addr.PublicKey).Int("attempt", attempt).Msg("mint address already in use, burning")
			if burnErr := o.pool.MarkBurned(ctx, addr.ID); burnErr != nil {
				o.log.Error().Err(burnErr).Uint("id", addr.ID).Msg("burn transition failed")
			}
			lastErr = err
			continue
		}

		if relErr := o.pool.Release(ctx, addr.ID); relErr != nil {
			o.log.Error().Err(relErr).Uint("id", addr.ID).Msg("release transition failed")
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", types.ErrRetriesExhausted, lastErr)
}

func (o *Orchestrator) attempt(ctx context.Context, session *store.Session, blueprint Blueprint, sessionSigner wallet.Signer, addr *store.VanityAddress) (*store.Token, error) {
	mintKeyHex, err := o.cipher.Decrypt(addr.SecretKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt mint key: %w", err)
	}
	mintSigner, err := wallet.NewLocalFromHex(mintKeyHex)
	if err != nil {
		return nil, fmt.Errorf("load mint key: %w", err)
	}

	txBytes, err := o.builder.CreateTokenTransaction(ctx, pumpportal.CreateParams{
		PublicKey:     sessionSigner.PublicKey().String(),
		Name:          blueprint.Name,
		Symbol:        blueprint.Symbol,
		MetadataURI:   blueprint.MetadataURI,
		MintPublicKey: addr.PublicKey,
		InitialBuySOL: blueprint.InitialBuySOL,
		Slippage:      o.cfg.Slippage,
		PriorityFee:   o.cfg.PriorityFee,
	})
	if err != nil {
		return nil, fmt.Errorf("build create tx: %w", err)
	}

	sig, err := o.chain.SignAndSendTransaction(ctx, txBytes, sessionSigner, mintSigner)
	if err != nil {
		return nil, err
	}
	o.log.Info().Str("mint", addr.PublicKey).Str("tx", sig).Msg("token created")

	token := &store.Token{
		Venue:                     "pump.fun",
		MintAddress:               addr.PublicKey,
		Name:                      blueprint.Name,
		Symbol:                    blueprint.Symbol,
		Description:               blueprint.Description,
		ImageURL:                  blueprint.ImageURL,
		MetadataURI:               blueprint.MetadataURI,
		WalletPublicKey:           sessionSigner.PublicKey().String(),
		WalletPrivateKeyEncrypted: session.WalletPrivateKeyEncrypted,
		CreatorWallet:             session.FundingWallet,
	}
	if err := o.store.CreateToken(ctx, token); err != nil {
		return nil, fmt.Errorf("record token: %w", err)
	}
	if err := o.pool.MarkUsed(ctx, addr.ID, token.ID); err != nil {
		o.log.Error().Err(err).Uint("id", addr.ID).Msg("used transition failed")
	}
	return token, nil
}
