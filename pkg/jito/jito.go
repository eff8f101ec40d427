// Package jito submits buyback swap transactions through the Jito Block
// Engine. Market buys from token fee wallets are frontrunnable, so the
// daemon can optionally route them as single-transaction bundles.
package jito

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	jitorpc "github.com/jito-labs/jito-go-rpc"
)

// MainnetBlockEngines lists the public Jito mainnet endpoints. Rotating
// across them avoids per-endpoint rate limits.
var MainnetBlockEngines = []string{
	"https://mainnet.block-engine.jito.wtf/api/v1",
	"https://amsterdam.mainnet.block-engine.jito.wtf/api/v1",
	"https://frankfurt.mainnet.block-engine.jito.wtf/api/v1",
	"https://ny.mainnet.block-engine.jito.wtf/api/v1",
	"https://tokyo.mainnet.block-engine.jito.wtf/api/v1",
}

// Client wraps the Jito RPC client with endpoint rotation and retry on rate
// limiting.
type Client struct {
	endpoints    []string
	currentIndex uint32
	maxRetries   int
	retryDelay   time.Duration
}

// NewClient creates a Jito client. An empty endpoint selects the default
// mainnet endpoint set.
func NewClient(endpoint string) *Client {
	endpoints := MainnetBlockEngines
	if endpoint != "" {
		endpoints = []string{endpoint}
	}
	return &Client{
		endpoints:  endpoints,
		maxRetries: len(endpoints) + 2,
		retryDelay: 200 * time.Millisecond,
	}
}

func (c *Client) next() *jitorpc.JitoJsonRpcClient {
	idx := atomic.AddUint32(&c.currentIndex, 1)
	return jitorpc.NewJitoJsonRpcClient(c.endpoints[int(idx)%len(c.endpoints)], "")
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "Rate limit") ||
		strings.Contains(msg, "429")
}

// SendTransaction submits one fully signed transaction as a
// single-transaction bundle and returns its signature.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("marshal transaction: %w", err)
	}
	txBase64 := base64.StdEncoding.EncodeToString(txBytes)

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		select {
		case <-ctx.Done():
			return solana.Signature{}, ctx.Err()
		default:
		}

		rawResp, err := c.next().SendBundle([][]string{{txBase64}})
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				time.Sleep(c.retryDelay)
				continue
			}
			return solana.Signature{}, fmt.Errorf("jito send transaction: %w", err)
		}

		var bundleID string
		if err := json.Unmarshal(rawResp, &bundleID); err != nil {
			return solana.Signature{}, fmt.Errorf("unmarshal bundle response: %w", err)
		}

		if len(tx.Signatures) == 0 {
			return solana.Signature{}, fmt.Errorf("transaction has no signatures")
		}
		return tx.Signatures[0], nil
	}
	return solana.Signature{}, fmt.Errorf("jito send transaction failed after %d retries: %w", c.maxRetries, lastErr)
}
