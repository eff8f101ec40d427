// Package solana is the Solana chain collaborator: balances, transaction
// submission, SPL burns, and native transfers for session and token wallets.
package solana

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/rs/zerolog"

	wraprpc "github.com/clawpad/clawpad/pkg/rpc"
	"github.com/clawpad/clawpad/pkg/txbuilder"
	"github.com/clawpad/clawpad/pkg/wallet"
)

// LamportsPerSOL is the lamport denomination of one SOL.
const LamportsPerSOL = 1_000_000_000

// Client exposes the chain operations the deploy path and the fee cycles
// need. Amounts cross this boundary in SOL, matching the policy constants.
type Client struct {
	rpc     *wraprpc.Client
	builder *txbuilder.Builder
	log     zerolog.Logger
}

// NewClient wraps a configured RPC client and transaction builder.
func NewClient(rpcClient *wraprpc.Client, builder *txbuilder.Builder, log zerolog.Logger) *Client {
	return &Client{rpc: rpcClient, builder: builder, log: log}
}

// Balance returns the SOL balance of an address.
func (c *Client) Balance(ctx context.Context, address string) (float64, error) {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("parse address: %w", err)
	}
	lamports, err := c.rpc.GetBalance(ctx, pub)
	if err != nil {
		return 0, err
	}
	return float64(lamports) / LamportsPerSOL, nil
}

// TokenBalance returns the UI token balance held by a wallet for a mint.
// A missing token account reads as zero.
func (c *Client) TokenBalance(ctx context.Context, address, mint string) (float64, error) {
	_, amount, _, err := c.tokenAccount(ctx, address, mint)
	if err != nil {
		return 0, nil
	}
	return amount, nil
}

func (c *Client) tokenAccount(ctx context.Context, address, mint string) (ata solana.PublicKey, uiAmount float64, rawAmount uint64, err error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return ata, 0, 0, fmt.Errorf("parse owner: %w", err)
	}
	mintPub, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return ata, 0, 0, fmt.Errorf("parse mint: %w", err)
	}
	ata, _, err = solana.FindAssociatedTokenAddress(owner, mintPub)
	if err != nil {
		return ata, 0, 0, fmt.Errorf("derive token account: %w", err)
	}
	balance, err := c.rpc.GetTokenAccountBalance(ctx, ata)
	if err != nil {
		return ata, 0, 0, err
	}
	raw, err := strconv.ParseUint(balance.Amount, 10, 64)
	if err != nil {
		return ata, 0, 0, fmt.Errorf("parse token amount: %w", err)
	}
	if balance.UiAmount != nil {
		uiAmount = *balance.UiAmount
	}
	return ata, uiAmount, raw, nil
}

// DecodeTransaction deserializes a base64 transaction returned by a launch
// venue's transaction builder API.
func DecodeTransaction(b64 string) (*solana.Transaction, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode base64 tx: %w", err)
	}
	return DecodeTransactionBytes(data)
}

// DecodeTransactionBytes deserializes raw transaction bytes.
func DecodeTransactionBytes(data []byte) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}

// SignAndSendTransaction signs a venue-built transaction with the given
// signers, submits it, and waits for confirmation. Submission is retried
// with backoff; confirmation failure is terminal for the attempt.
func (c *Client) SignAndSendTransaction(ctx context.Context, txBytes []byte, signers ...wallet.Signer) (string, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tx, err := DecodeTransactionBytes(txBytes)
		if err != nil {
			return "", err
		}
		if err := txbuilder.SignTransaction(ctx, tx, signers...); err != nil {
			return "", err
		}

		sig, err := c.builder.SendAndConfirm(ctx, tx, txbuilder.ConfirmationConfirmed)
		if err == nil {
			return sig.String(), nil
		}
		lastErr = err
		c.log.Warn().Int("attempt", attempt).Err(err).Msg("transaction attempt failed")

		if attempt < maxAttempts {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", lastErr
}

// BurnTokens destroys the full raw amount of a mint held by the signer's
// token account and returns the burn signature.
func (c *Client) BurnTokens(ctx context.Context, signer wallet.Signer, mint string, _ float64) (string, error) {
	ata, _, raw, err := c.tokenAccount(ctx, signer.PublicKey().String(), mint)
	if err != nil {
		return "", fmt.Errorf("load token account: %w", err)
	}
	if raw == 0 {
		return "", fmt.Errorf("no tokens to burn")
	}
	mintPub, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return "", fmt.Errorf("parse mint: %w", err)
	}

	burnIx := token.NewBurnInstruction(raw, ata, mintPub, signer.PublicKey(), nil).Build()

	sig, err := c.builder.BuildSignSendAndConfirm(ctx, signer, nil, txbuilder.ConfirmationConfirmed, burnIx)
	if err != nil {
		return "", fmt.Errorf("burn: %w", err)
	}
	return sig.String(), nil
}

// TransferSOL moves native SOL from the signer to a destination address.
func (c *Client) TransferSOL(ctx context.Context, signer wallet.Signer, to string, amountSOL float64) (string, error) {
	toPub, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return "", fmt.Errorf("parse destination: %w", err)
	}
	lamports := uint64(amountSOL * LamportsPerSOL)
	if lamports == 0 {
		return "", fmt.Errorf("amount too small")
	}

	ix := system.NewTransferInstruction(lamports, signer.PublicKey(), toPub).Build()

	sig, err := c.builder.BuildSignSendAndConfirm(ctx, signer, nil, txbuilder.ConfirmationConfirmed, ix)
	if err != nil {
		return "", fmt.Errorf("transfer: %w", err)
	}
	return sig.String(), nil
}
