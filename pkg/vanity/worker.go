package vanity

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// WorkerResult is the single JSON object a worker process emits on stdout
// when a search succeeds. The secret key is the hex-encoded 64-byte keypair.
type WorkerResult struct {
	PublicKey string  `json:"publicKey"`
	SecretKey string  `json:"secretKey"`
	Attempts  uint64  `json:"attempts"`
	Elapsed   float64 `json:"elapsed"`
}

// ParseWorkerOutput decodes a worker's stdout. Exactly one JSON object is
// expected; anything else is a protocol violation.
func ParseWorkerOutput(stdout []byte) (*WorkerResult, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("worker produced no output")
	}
	var result WorkerResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, fmt.Errorf("parse worker output: %w", err)
	}
	if result.PublicKey == "" || result.SecretKey == "" {
		return nil, fmt.Errorf("worker output missing keypair")
	}
	return &result, nil
}

// Runner spawns vanity-worker subprocesses. The search is CPU-bound and
// unbounded, so it runs as a separate low-priority OS process the parent can
// kill on shutdown or timeout without touching pool state.
type Runner struct {
	Path    string        // worker binary path
	Threads int           // search threads inside the worker
	Timeout time.Duration // hard wall-clock limit per search
	Log     zerolog.Logger
}

// Run executes one search for the given suffix and returns the parsed
// result. The worker is terminated when the timeout elapses or ctx is
// cancelled; nothing is persisted unless it exits cleanly with output.
func (r *Runner) Run(ctx context.Context, suffix string) (*WorkerResult, error) {
	if r.Path == "" {
		return nil, fmt.Errorf("worker path not configured")
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := []string{"-n", "19", r.Path, suffix}
	if r.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(r.Threads))
	}
	if r.Timeout > 0 {
		args = append(args, "--timeout", r.Timeout.String())
	}
	cmd := exec.CommandContext(ctx, "nice", args...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn worker: %w", err)
	}

	// Progress lines arrive on stderr; relay them without buffering the run.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				r.Log.Debug().Str("worker", suffix).Msg(line)
			}
		}
	}()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("worker timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("worker exited: %w", err)
	}

	return ParseWorkerOutput(stdout.Bytes())
}
