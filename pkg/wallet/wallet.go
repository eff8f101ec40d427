// Package wallet provides Solana signing primitives for session and mint
// keypairs.
package wallet

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Signer performs detached signatures for transaction messages.
type Signer interface {
	PublicKey() solana.PublicKey
	SignMessage(ctx context.Context, message []byte) (solana.Signature, error)
}

// Local wraps a local private key.
type Local struct {
	key solana.PrivateKey
}

// Generate creates a fresh random keypair.
func Generate() (Local, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return Local{}, fmt.Errorf("generate keypair: %w", err)
	}
	return Local{key: key}, nil
}

// NewLocalFromBase58 constructs a local signer from a base58-encoded key.
func NewLocalFromBase58(privateKey string) (Local, error) {
	key, err := solana.PrivateKeyFromBase58(privateKey)
	if err != nil {
		return Local{}, fmt.Errorf("decode base58 key: %w", err)
	}
	return Local{key: key}, nil
}

// NewLocalFromHex constructs a local signer from a hex-encoded 64-byte
// keypair, the format the vanity worker emits.
func NewLocalFromHex(privateKeyHex string) (Local, error) {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return Local{}, fmt.Errorf("decode hex key: %w", err)
	}
	if len(raw) != 64 {
		return Local{}, fmt.Errorf("invalid keypair length: got %d", len(raw))
	}
	return Local{key: solana.PrivateKey(raw)}, nil
}

// NewLocalFromKeygen loads a solana-keygen JSON file.
func NewLocalFromKeygen(path string) (Local, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return Local{}, fmt.Errorf("load keypair: %w", err)
	}
	return Local{key: key}, nil
}

// NewLocalFromPrivateKey constructs a local signer from an existing private key.
func NewLocalFromPrivateKey(key solana.PrivateKey) Local {
	return Local{key: key}
}

// PublicKey returns the associated public key.
func (l Local) PublicKey() solana.PublicKey {
	return l.key.PublicKey()
}

// PrivateKey exposes the raw key for encryption at rest.
func (l Local) PrivateKey() solana.PrivateKey {
	return l.key
}

// Base58 returns the base58-encoded private key.
func (l Local) Base58() string {
	return l.key.String()
}

// Hex returns the hex-encoded 64-byte keypair.
func (l Local) Hex() string {
	return hex.EncodeToString(l.key)
}

// SignMessage signs the provided message bytes.
func (l Local) SignMessage(ctx context.Context, message []byte) (solana.Signature, error) {
	select {
	case <-ctx.Done():
		return solana.Signature{}, ctx.Err()
	default:
		sig, err := l.key.Sign(message)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("sign message: %w", err)
		}
		return sig, nil
	}
}
