// Package pumpportal builds pump.fun create and trade transactions through
// the PumpPortal local-transaction API.
package pumpportal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clawpad/clawpad/pkg/types"
)

const defaultAPIURL = "https://pumpportal.fun/api"

// Client talks to the PumpPortal trade-local endpoint. Responses are
// serialized unsigned transactions the caller signs and submits itself.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a PumpPortal client. An empty baseURL selects production.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateParams describes a token creation request.
type CreateParams struct {
	PublicKey     string // session wallet, pays and signs
	Name          string
	Symbol        string
	MetadataURI   string
	MintPublicKey string // reserved vanity mint
	InitialBuySOL float64
	Slippage      uint64
	PriorityFee   float64
}

// CreateTokenTransaction returns the serialized create transaction for the
// given mint. The mint keypair must co-sign the result.
func (c *Client) CreateTokenTransaction(ctx context.Context, p CreateParams) ([]byte, error) {
	payload := map[string]any{
		"publicKey": p.PublicKey,
		"action":    "create",
		"tokenMetadata": map[string]string{
			"name":   p.Name,
			"symbol": p.Symbol,
			"uri":    p.MetadataURI,
		},
		"mint":             p.MintPublicKey,
		"denominatedInSol": "true",
		"amount":           p.InitialBuySOL,
		"slippage":         p.Slippage,
		"priorityFee":      p.PriorityFee,
		"pool":             "pump",
	}
	return c.tradeLocal(ctx, payload)
}

// TradeParams describes a buy request against an existing token.
type TradeParams struct {
	PublicKey   string
	Mint        string
	SOLAmount   float64
	Slippage    uint64
	PriorityFee float64
}

// BuyTokenTransaction returns the serialized buy transaction.
func (c *Client) BuyTokenTransaction(ctx context.Context, p TradeParams) ([]byte, error) {
	payload := map[string]any{
		"publicKey":        p.PublicKey,
		"action":           "buy",
		"mint":             p.Mint,
		"denominatedInSol": "true",
		"amount":           p.SOLAmount,
		"slippage":         p.Slippage,
		"priorityFee":      p.PriorityFee,
		"pool":             "auto",
	}
	return c.tradeLocal(ctx, payload)
}

func (c *Client) tradeLocal(ctx context.Context, payload map[string]any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/trade-local", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pumpportal request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.VenueError{Venue: "pumpportal", Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}
