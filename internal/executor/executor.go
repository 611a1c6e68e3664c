// Package executor signs transactions and lands them on chain, either through
// the RPC node or as a tipped bundle through a block engine.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-pool-sniper/internal/solana"
)

// Strategy names a submission path.
type Strategy string

const (
	// StrategyDirect sends through sendTransaction and pays priority fees
	// with compute-budget instructions.
	StrategyDirect Strategy = "default"
	// StrategyBundle sends a Jito bundle and pays a tip transfer instead.
	StrategyBundle Strategy = "jito"
)

// Confirmation defaults.
const (
	DefaultConfirmTimeout = 30 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

// ErrNotConfirmed is returned when a transaction does not confirm in time.
var ErrNotConfirmed = errors.New("transaction not confirmed")

// Result is the outcome of one submission.
type Result struct {
	Signature string
	Confirmed bool
	Err       string // on-chain error, when the transaction landed and failed
}

// Submitter signs and lands transactions.
type Submitter interface {
	SignAndSubmit(ctx context.Context, instructions []solana.Instruction, blockhash *solana.Blockhash) (Result, error)
	Strategy() Strategy
}

// StatusReader polls signature confirmation.
type StatusReader interface {
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*solana.SignatureStatus, error)
}

// confirm polls the signature until it is confirmed, fails on chain, or the
// timeout elapses.
func confirm(ctx context.Context, rpc StatusReader, signature string, timeout, interval time.Duration) (Result, error) {
	res := Result{Signature: signature}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		statuses, err := rpc.GetSignatureStatuses(ctx, []string{signature})
		if err == nil && len(statuses) > 0 && statuses[0] != nil {
			st := statuses[0]
			if st.Err != nil {
				res.Err = fmt.Sprint(st.Err)
				return res, nil
			}
			if st.Confirmed() {
				res.Confirmed = true
				return res, nil
			}
		}

		select {
		case <-ctx.Done():
			return res, fmt.Errorf("%w: %s", ErrNotConfirmed, signature)
		case <-ticker.C:
		}
	}
}
