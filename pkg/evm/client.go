// Package evm is the BNB Chain collaborator: balances, native transfers,
// and raw contract calls used by the Four.meme tax claimer.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// weiPerEther as a float for display-denominated amounts.
var weiPerEther = new(big.Float).SetFloat64(1e18)

// Client wraps an ethclient connection with the chain id cached.
type Client struct {
	ec      *ethclient.Client
	chainID *big.Int
	log     zerolog.Logger
}

// Dial connects to an EVM RPC endpoint and caches the chain id.
func Dial(ctx context.Context, url string, log zerolog.Logger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	chainID, err := ec.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	return &Client{ec: ec, chainID: chainID, log: log}, nil
}

// Raw exposes the underlying ethclient.
func (c *Client) Raw() *ethclient.Client {
	return c.ec
}

// Balance returns the native balance of an address in whole-coin units.
func (c *Client) Balance(ctx context.Context, address string) (float64, error) {
	wei, err := c.ec.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, fmt.Errorf("balance at: %w", err)
	}
	return WeiToFloat(wei), nil
}

// WeiToFloat converts wei to whole-coin units.
func WeiToFloat(wei *big.Int) float64 {
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return out
}

// FloatToWei converts whole-coin units to wei.
func FloatToWei(amount float64) *big.Int {
	wei, _ := new(big.Float).Mul(new(big.Float).SetFloat64(amount), weiPerEther).Int(nil)
	return wei
}

// TransferNative sends native coin from the key's address and waits for the
// transaction to be mined. Returns the transaction hash.
func (c *Client) TransferNative(ctx context.Context, privateKeyHex, to string, amount float64) (string, error) {
	toAddr := common.HexToAddress(to)
	return c.sendTx(ctx, privateKeyHex, &toAddr, FloatToWei(amount), nil, 21000)
}

// CallView executes a read-only contract call.
func (c *Client) CallView(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	return c.ec.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
}

// SendContractTx signs and submits a contract call, waits for it to be
// mined, and returns the transaction hash.
func (c *Client) SendContractTx(ctx context.Context, privateKeyHex string, contract common.Address, data []byte, value *big.Int) (string, error) {
	return c.sendTx(ctx, privateKeyHex, &contract, value, data, 0)
}

func (c *Client) sendTx(ctx context.Context, privateKeyHex string, to *common.Address, value *big.Int, data []byte, gasLimit uint64) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := c.ec.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := c.ec.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}
	if gasLimit == 0 {
		gasLimit, err = c.ec.EstimateGas(ctx, ethereum.CallMsg{From: from, To: to, Value: value, Data: data})
		if err != nil {
			return "", fmt.Errorf("estimate gas: %w", err)
		}
		// headroom for state drift between estimate and inclusion
		gasLimit = gasLimit * 120 / 100
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), key)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}
	if err := c.ec.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}

	hash := signed.Hash()
	if err := c.waitMined(ctx, hash); err != nil {
		return hash.Hex(), err
	}
	return hash.Hex(), nil
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := c.ec.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted", hash.Hex())
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// AddressFromKey derives the EVM address for a hex private key.
func AddressFromKey(privateKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
