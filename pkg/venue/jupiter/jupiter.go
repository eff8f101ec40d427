// Package jupiter swaps SOL into tokens through the Jupiter aggregator,
// used by the buyback step of the fee cycles.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/clawpad/clawpad/pkg/solana"
	"github.com/clawpad/clawpad/pkg/types"
	"github.com/clawpad/clawpad/pkg/wallet"
)

const (
	defaultQuoteURL = "https://lite-api.jup.ag/swap/v1/quote"
	defaultSwapURL  = "https://lite-api.jup.ag/swap/v1/swap"

	// SOLMint is the wrapped SOL mint address.
	SOLMint = "So11111111111111111111111111111111111111112"
)

// Client requests quotes and swap transactions from Jupiter and submits
// them through the chain client.
type Client struct {
	quoteURL string
	swapURL  string
	http     *http.Client
	chain    *solana.Client
}

// NewClient builds a Jupiter client over the given chain client.
func NewClient(chain *solana.Client) *Client {
	return &Client{
		quoteURL: defaultQuoteURL,
		swapURL:  defaultSwapURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		chain:    chain,
	}
}

// Quote is the subset of a Jupiter quote the buyback path consumes.
type Quote struct {
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct string          `json:"priceImpactPct"`
	Raw            json.RawMessage `json:"-"`
}

// GetQuote fetches a swap quote.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amountLamports, slippageBps uint64) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amountLamports, 10))
	q.Set("slippageBps", strconv.FormatUint(slippageBps, 10))
	q.Set("restrictIntermediateTokens", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quoteURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jupiter quote: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read quote: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.VenueError{Venue: "jupiter", Status: resp.StatusCode, Body: string(data)}
	}

	var quote Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, fmt.Errorf("parse quote: %w", err)
	}
	quote.Raw = data
	return &quote, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	PrioritizationFeeLamports string          `json:"prioritizationFeeLamports"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// SwapResult reports a completed buyback swap.
type SwapResult struct {
	Signature      string
	ExpectedTokens string
	PriceImpactPct string
}

// BuyTokenWithSOL swaps amountSOL of native SOL into the given mint and
// waits for confirmation.
func (c *Client) BuyTokenWithSOL(ctx context.Context, signer wallet.Signer, mint string, amountSOL float64, slippageBps uint64) (*SwapResult, error) {
	lamports := uint64(amountSOL * solana.LamportsPerSOL)
	if lamports == 0 {
		return nil, types.ErrZeroAmount
	}

	quote, err := c.GetQuote(ctx, SOLMint, mint, lamports, slippageBps)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(swapRequest{
		QuoteResponse:             quote.Raw,
		UserPublicKey:             signer.PublicKey().String(),
		WrapAndUnwrapSol:          true,
		PrioritizationFeeLamports: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.swapURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jupiter swap: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.VenueError{Venue: "jupiter", Status: resp.StatusCode, Body: string(data)}
	}

	var swap swapResponse
	if err := json.Unmarshal(data, &swap); err != nil {
		return nil, fmt.Errorf("parse swap response: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(swap.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("decode swap tx: %w", err)
	}

	sig, err := c.chain.SignAndSendTransaction(ctx, raw, signer)
	if err != nil {
		return nil, err
	}
	return &SwapResult{
		Signature:      sig,
		ExpectedTokens: quote.OutAmount,
		PriceImpactPct: quote.PriceImpactPct,
	}, nil
}
