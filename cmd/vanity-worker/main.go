// vanity-worker searches for a keypair whose address ends with the given
// suffix. It is spawned by the pool manager as a low-priority subprocess.
//
// Protocol: the result is a single JSON object on stdout; progress and
// diagnostics go to stderr. Exit code 0 means a keypair was found.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clawpad/clawpad/pkg/vanity"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		threads         int
		timeout         time.Duration
		caseInsensitive bool
	)

	root := &cobra.Command{
		Use:   "vanity-worker <suffix>",
		Short: "Search for a vanity mint address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suffix := args[0]

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(os.Stderr, "searching suffix=%s threads=%d estimated_attempts=%d\n",
				suffix, threads, vanity.EstimateDifficulty(len(suffix)))

			start := time.Now()
			done := make(chan struct{})
			go reportProgress(ctx, done, start)

			result, err := vanity.Generate(ctx, vanity.Options{
				Suffix:          suffix,
				Workers:         threads,
				Timeout:         timeout,
				CaseInsensitive: caseInsensitive,
			})
			close(done)
			if err != nil {
				return err
			}

			out := vanity.WorkerResult{
				PublicKey: result.PublicKey.String(),
				SecretKey: hex.EncodeToString(result.PrivateKey),
				Attempts:  result.Attempts,
				Elapsed:   result.Duration.Seconds(),
			}
			return json.NewEncoder(os.Stdout).Encode(out)
		},
	}
	root.Flags().IntVar(&threads, "threads", 0, "search threads (default: all CPUs)")
	root.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 = no limit)")
	root.Flags().BoolVar(&caseInsensitive, "case-insensitive", false, "match suffix ignoring case")
	return root
}

func reportProgress(ctx context.Context, done <-chan struct{}, start time.Time) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			fmt.Fprintf(os.Stderr, "still searching, elapsed=%s\n", time.Since(start).Round(time.Second))
		}
	}
}
