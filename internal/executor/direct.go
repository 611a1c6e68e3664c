package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/solana"
)

// Sender submits signed transactions to an RPC node.
type Sender interface {
	StatusReader
	SendTransaction(ctx context.Context, encoded string) (string, error)
}

// DirectOptions configures a Direct submitter.
type DirectOptions struct {
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Logger         *log.Logger
}

// Direct lands transactions through sendTransaction.
type Direct struct {
	rpc      Sender
	payer    *solana.Keypair
	timeout  time.Duration
	interval time.Duration
	logger   *log.Logger
}

// NewDirect creates a direct submitter signing with payer.
func NewDirect(rpc Sender, payer *solana.Keypair, opts DirectOptions) *Direct {
	if opts.ConfirmTimeout == 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Direct{
		rpc:      rpc,
		payer:    payer,
		timeout:  opts.ConfirmTimeout,
		interval: opts.PollInterval,
		logger:   opts.Logger,
	}
}

// Strategy implements Submitter.
func (d *Direct) Strategy() Strategy { return StrategyDirect }

// SignAndSubmit implements Submitter.
func (d *Direct) SignAndSubmit(ctx context.Context, instructions []solana.Instruction, blockhash *solana.Blockhash) (Result, error) {
	if blockhash == nil {
		return Result{}, fmt.Errorf("blockhash is required")
	}
	tx, err := solana.SignTransaction(instructions, blockhash.Blockhash, d.payer)
	if err != nil {
		return Result{}, fmt.Errorf("sign transaction: %w", err)
	}

	start := time.Now()
	sig, err := d.rpc.SendTransaction(ctx, tx.Base64())
	if err != nil {
		return Result{Signature: tx.Signature()}, fmt.Errorf("send transaction: %w", err)
	}
	if sig == "" {
		sig = tx.Signature()
	}

	res, err := confirm(ctx, d.rpc, sig, d.timeout, d.interval)
	observability.RecordRPCLatency("confirmTransaction", time.Since(start).Seconds())
	if err != nil {
		d.logger.Printf("[executor] %s: %v", sig, err)
	}
	return res, err
}

var _ Submitter = (*Direct)(nil)
