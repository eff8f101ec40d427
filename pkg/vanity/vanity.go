// Package vanity provides vanity mint-address generation: an in-process
// parallel brute-force search plus the subprocess worker protocol the pool
// manager uses to keep searches off the serving path.
package vanity

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Result represents a vanity address search result.
type Result struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
	Attempts   uint64
	Duration   time.Duration
}

// Options configures vanity address generation.
type Options struct {
	Suffix          string        // Required suffix
	Workers         int           // Number of parallel workers (default: NumCPU)
	Timeout         time.Duration // Max search time (0 = no timeout)
	CaseInsensitive bool          // Case-insensitive matching (default: case-sensitive)
}

// Generate searches the key space for a keypair whose public address ends
// with the configured suffix.
func Generate(ctx context.Context, opts Options) (*Result, error) {
	if opts.Suffix == "" {
		return nil, fmt.Errorf("suffix is required")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	suffix := opts.Suffix
	if opts.CaseInsensitive {
		suffix = strings.ToLower(suffix)
	}

	searchCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var (
		found    atomic.Bool
		attempts atomic.Uint64
		result   *Result
		resultMu sync.Mutex
		wg       sync.WaitGroup
	)

	startTime := time.Now()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for !found.Load() {
				select {
				case <-searchCtx.Done():
					return
				default:
				}

				key, err := solana.NewRandomPrivateKey()
				if err != nil {
					continue
				}

				attempts.Add(1)
				addr := key.PublicKey().String()
				if opts.CaseInsensitive {
					addr = strings.ToLower(addr)
				}

				if strings.HasSuffix(addr, suffix) {
					if found.CompareAndSwap(false, true) {
						resultMu.Lock()
						result = &Result{
							PrivateKey: key,
							PublicKey:  key.PublicKey(),
							Attempts:   attempts.Load(),
							Duration:   time.Since(startTime),
						}
						resultMu.Unlock()
					}
					return
				}
			}
		}()
	}

	wg.Wait()

	if result != nil {
		return result, nil
	}

	if searchCtx.Err() != nil {
		return nil, fmt.Errorf("search cancelled after %d attempts: %w", attempts.Load(), searchCtx.Err())
	}

	return nil, fmt.Errorf("search failed after %d attempts", attempts.Load())
}

// EstimateDifficulty estimates the average attempts needed for a suffix of
// the given length. Base58 has 58 possible characters per position.
func EstimateDifficulty(suffixLen int) uint64 {
	if suffixLen <= 0 {
		return 1
	}
	result := uint64(1)
	for i := 0; i < suffixLen; i++ {
		result *= 58
	}
	return result
}
