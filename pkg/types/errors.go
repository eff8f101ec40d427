// Package types defines shared error values and classification helpers.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// Parameter validation errors
	ErrNilRPC           = errors.New("rpc client is nil")
	ErrNilSigner        = errors.New("signer is nil")
	ErrZeroAmount       = errors.New("amount must be greater than 0")
	ErrInvalidSlippage  = errors.New("slippage bps must be <= 10000")
	ErrInvalidPublicKey = errors.New("invalid public key")

	// Pool errors
	ErrPoolEmpty         = errors.New("no vanity addresses available")
	ErrInvalidTransition = errors.New("invalid vanity address state transition")
	ErrAddressNotFound   = errors.New("vanity address not found")

	// Deploy errors
	ErrAddressInUse        = errors.New("mint address already in use on-chain")
	ErrRetriesExhausted    = errors.New("deploy retries exhausted")
	ErrInsufficientDeposit = errors.New("insufficient deposit")
	ErrMissingWallet       = errors.New("session wallet not found")

	// Cycle errors
	ErrNothingToClaim      = errors.New("nothing to claim")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// RPCError wraps RPC failures with operation context.
type RPCError struct {
	Op  string
	Err error
}

func (e RPCError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e RPCError) Unwrap() error {
	return e.Err
}

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// VenueError represents a failure reported by an external launch venue API.
type VenueError struct {
	Venue  string
	Status int
	Body   string
}

func (e VenueError) Error() string {
	return fmt.Sprintf("%s error (%d): %s", e.Venue, e.Status, e.Body)
}

// addressInUseMarkers are substrings observed in RPC/program errors when a
// mint account has already been initialized by a previous partial deploy.
var addressInUseMarkers = []string{
	"already in use",
	"already been processed",
	"account already initialized",
	"custom program error: 0x0",
}

// IsAddressInUse reports whether err indicates the reserved mint address was
// claimed on-chain by an earlier attempt. Such addresses can never be reused.
func IsAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAddressInUse) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range addressInUseMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether an error is worth retrying with backoff.
// Validation failures and address conflicts are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var vErr ValidationError
	if errors.As(err, &vErr) {
		return false
	}
	if IsAddressInUse(err) {
		return false
	}
	if errors.Is(err, ErrInsufficientDeposit) || errors.Is(err, ErrMissingWallet) {
		return false
	}
	return true
}
