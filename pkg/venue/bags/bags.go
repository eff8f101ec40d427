// Package bags claims accrued creator trading fees from the bags.fm API.
package bags

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/clawpad/clawpad/pkg/solana"
	"github.com/clawpad/clawpad/pkg/types"
	"github.com/clawpad/clawpad/pkg/wallet"
)

const defaultAPIBase = "https://public-api-v2.bags.fm/api"

// Client talks to the bags.fm fee endpoints.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	chain   *solana.Client
}

// NewClient builds a bags.fm client over the given chain client. An empty
// baseURL selects production.
func NewClient(baseURL, apiKey string, chain *solana.Client) *Client {
	if baseURL == "" {
		baseURL = defaultAPIBase
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		chain:   chain,
	}
}

// Position is one claimable fee position for a wallet.
type Position struct {
	TokenMint     string `json:"token_mint"`
	ClaimableSOL  string `json:"claimable_sol"`
	VirtualPoolID string `json:"virtual_pool_id"`
}

// ClaimablePositions lists fee positions for a wallet. A missing wallet
// reads as no positions, not an error.
func (c *Client) ClaimablePositions(ctx context.Context, walletAddress string) ([]Position, error) {
	u := fmt.Sprintf("%s/v1/fees/claimable?wallet=%s", c.baseURL, url.QueryEscape(walletAddress))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bags claimable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read claimable: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.VenueError{Venue: "bags.fm", Status: resp.StatusCode, Body: string(data)}
	}

	var body struct {
		Positions []Position `json:"positions"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("parse claimable: %w", err)
	}
	return body.Positions, nil
}

// ClaimFees requests the claim transaction for a mint, signs it with the
// token wallet, and submits it. Returns an empty signature when the venue
// reports nothing claimable.
func (c *Client) ClaimFees(ctx context.Context, signer wallet.Signer, mint string) (string, error) {
	payload := map[string]string{
		"wallet":     signer.PublicKey().String(),
		"token_mint": mint,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal claim request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/fees/claim-transaction", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("bags claim: %w", err)
	}
	defer resp.Body.Close()

	// Not-found and no-content both mean no accrued fees for this mint.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return "", nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read claim response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", types.VenueError{Venue: "bags.fm", Status: resp.StatusCode, Body: string(data)}
	}

	var claim struct {
		Transaction string `json:"transaction"`
	}
	if err := json.Unmarshal(data, &claim); err != nil {
		return "", fmt.Errorf("parse claim response: %w", err)
	}
	if claim.Transaction == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(claim.Transaction)
	if err != nil {
		return "", fmt.Errorf("decode claim tx: %w", err)
	}
	return c.chain.SignAndSendTransaction(ctx, raw, signer)
}

func (c *Client) auth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}
