package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/solana"
)

// DefaultBlockEngineURL is the mainnet Jito block engine.
const DefaultBlockEngineURL = "https://mainnet.block-engine.jito.wtf"

// TipAccounts are the Jito tip payment accounts. One is picked per bundle.
var TipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

// BundleOptions configures a Bundle submitter.
type BundleOptions struct {
	// URL is the block engine base URL.
	URL string
	// Tip is the lamports transferred to a tip account with every bundle.
	Tip uint64
	// TipAccount pins the tip recipient. Empty picks one at random.
	TipAccount     string
	HTTPClient     *http.Client
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Logger         *log.Logger
}

// Bundle lands transactions as single-transaction Jito bundles. Confirmation
// is polled through the RPC node.
type Bundle struct {
	url        string
	tip        uint64
	tipAccount string
	payer      *solana.Keypair
	statuses   StatusReader
	client     *http.Client
	timeout    time.Duration
	interval   time.Duration
	logger     *log.Logger
}

// NewBundle creates a bundle submitter signing with payer.
func NewBundle(statuses StatusReader, payer *solana.Keypair, opts BundleOptions) *Bundle {
	if opts.URL == "" {
		opts.URL = DefaultBlockEngineURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.ConfirmTimeout == 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Bundle{
		url:        opts.URL,
		tip:        opts.Tip,
		tipAccount: opts.TipAccount,
		payer:      payer,
		statuses:   statuses,
		client:     opts.HTTPClient,
		timeout:    opts.ConfirmTimeout,
		interval:   opts.PollInterval,
		logger:     opts.Logger,
	}
}

// Strategy implements Submitter.
func (b *Bundle) Strategy() Strategy { return StrategyBundle }

// SignAndSubmit appends the tip transfer, signs, and sends the bundle.
func (b *Bundle) SignAndSubmit(ctx context.Context, instructions []solana.Instruction, blockhash *solana.Blockhash) (Result, error) {
	if blockhash == nil {
		return Result{}, fmt.Errorf("blockhash is required")
	}
	tipAccount, err := solana.ParsePublicKey(b.pickTipAccount())
	if err != nil {
		return Result{}, fmt.Errorf("tip account: %w", err)
	}

	ixs := make([]solana.Instruction, 0, len(instructions)+1)
	ixs = append(ixs, instructions...)
	ixs = append(ixs, solana.Transfer(b.payer.PublicKey(), tipAccount, b.tip))

	tx, err := solana.SignTransaction(ixs, blockhash.Blockhash, b.payer)
	if err != nil {
		return Result{}, fmt.Errorf("sign transaction: %w", err)
	}

	start := time.Now()
	bundleID, err := b.send(ctx, []string{tx.Base58()})
	if err != nil {
		return Result{Signature: tx.Signature()}, err
	}
	b.logger.Printf("[executor] bundle %s sent for %s", bundleID, tx.Signature())

	res, err := confirm(ctx, b.statuses, tx.Signature(), b.timeout, b.interval)
	observability.RecordRPCLatency("confirmBundle", time.Since(start).Seconds())
	return res, err
}

func (b *Bundle) pickTipAccount() string {
	if b.tipAccount != "" {
		return b.tipAccount
	}
	return TipAccounts[rand.Intn(len(TipAccounts))]
}

type bundleRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type bundleResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (b *Bundle) send(ctx context.Context, encoded []string) (string, error) {
	body, err := json.Marshal(bundleRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  []interface{}{encoded},
	})
	if err != nil {
		return "", fmt.Errorf("marshal bundle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url+"/api/v1/bundles", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send bundle: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("send bundle: status %d: %s", resp.StatusCode, string(respBody))
	}

	var out bundleResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("send bundle: error %d: %s", out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}

var _ Submitter = (*Bundle)(nil)
