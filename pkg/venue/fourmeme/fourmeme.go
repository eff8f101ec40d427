// Package fourmeme claims accumulated trading tax from Four.meme token
// contracts on BNB Chain.
package fourmeme

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/clawpad/clawpad/pkg/evm"
)

// taxABI covers the two fee-manager entry points the cycle uses.
const taxABI = `[
	{"name":"claimableFee","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"claimFee","type":"function","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

// Client reads and claims tax fees from a token's fee-manager contract.
type Client struct {
	chain *evm.Client
	abi   abi.ABI
	log   zerolog.Logger
}

// NewClient builds a Four.meme tax client over an EVM chain client.
func NewClient(chain *evm.Client, log zerolog.Logger) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(taxABI))
	if err != nil {
		return nil, fmt.Errorf("parse tax abi: %w", err)
	}
	return &Client{chain: chain, abi: parsed, log: log}, nil
}

// ClaimableTaxFees returns the BNB amount claimable by owner from the token
// contract, in whole-coin units.
func (c *Client) ClaimableTaxFees(ctx context.Context, tokenContract, owner string) (float64, error) {
	data, err := c.abi.Pack("claimableFee", common.HexToAddress(owner))
	if err != nil {
		return 0, fmt.Errorf("pack claimableFee: %w", err)
	}
	out, err := c.chain.CallView(ctx, common.HexToAddress(tokenContract), data)
	if err != nil {
		return 0, fmt.Errorf("call claimableFee: %w", err)
	}
	results, err := c.abi.Unpack("claimableFee", out)
	if err != nil {
		return 0, fmt.Errorf("unpack claimableFee: %w", err)
	}
	wei, ok := results[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected claimableFee result type %T", results[0])
	}
	return evm.WeiToFloat(wei), nil
}

// ClaimTaxFees submits a claimFee transaction signed with the token wallet
// and waits for it to be mined. Returns the transaction hash.
func (c *Client) ClaimTaxFees(ctx context.Context, privateKeyHex, tokenContract string) (string, error) {
	data, err := c.abi.Pack("claimFee")
	if err != nil {
		return "", fmt.Errorf("pack claimFee: %w", err)
	}
	hash, err := c.chain.SendContractTx(ctx, privateKeyHex, common.HexToAddress(tokenContract), data, nil)
	if err != nil {
		return "", fmt.Errorf("claimFee: %w", err)
	}
	c.log.Info().Str("contract", tokenContract).Str("tx", hash).Msg("claimed tax fees")
	return hash, nil
}
