package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"solana-pool-sniper/internal/observability"
)

// Client defaults. Sniping reads confirmed state; processed is too eager for
// pool reserves and finalized is too slow.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 8 * time.Second
	DefaultCommitment = "confirmed"
)

// ErrRateLimited is returned when the node kept answering 429 until retries ran out.
var ErrRateLimited = errors.New("rpc rate limited")

// RPCError is a JSON-RPC error object returned by the node. It is never retried.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HTTPClient implements RPCClient over HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint   string
	http       *http.Client
	commitment string
	retries    int
	backoff    time.Duration
	maxBackoff time.Duration
	ids        atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithMaxRetries sets how many times a failed attempt is repeated.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) { c.retries = n }
}

// WithRetryDelay sets the first backoff delay. It doubles up to max.
func WithRetryDelay(first, max time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.backoff = first
		if max > 0 {
			c.maxBackoff = max
		}
	}
}

// WithCommitment overrides the commitment sent with reads.
func WithCommitment(level string) ClientOption {
	return func(c *HTTPClient) { c.commitment = level }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) { c.http = client }
}

// NewHTTPClient creates a client for the RPC node at endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		http:       &http.Client{Timeout: DefaultTimeout},
		commitment: DefaultCommitment,
		retries:    DefaultMaxRetries,
		backoff:    DefaultRetryDelay,
		maxBackoff: DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest is a JSON-RPC 2.0 request. The WebSocket client sends the same shape.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// attemptError marks a failed attempt worth repeating.
type attemptError struct {
	err        error
	retryAfter time.Duration
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

// readConfig is the trailing config object of read methods.
func (c *HTTPClient) readConfig(extra map[string]interface{}) map[string]interface{} {
	cfg := map[string]interface{}{"commitment": c.commitment}
	for k, v := range extra {
		cfg[k] = v
	}
	return cfg
}

// call sends method and decodes the result into out. Transport failures, 429
// and non-200 answers are retried with doubling backoff; node errors are not.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.ids.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	wait := c.backoff
	for attempt := 0; ; attempt++ {
		result, err := c.post(ctx, body)
		if err == nil {
			if out == nil || len(result) == 0 {
				return nil
			}
			if err := json.Unmarshal(result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
			return nil
		}

		var retry *attemptError
		if !errors.As(err, &retry) {
			return err
		}
		if attempt >= c.retries {
			return fmt.Errorf("%s failed after %d attempts: %w", method, attempt+1, err)
		}

		pause := wait
		if retry.retryAfter > pause {
			pause = retry.retryAfter
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
		wait = min(wait*2, c.maxBackoff)
	}
}

// post performs a single attempt.
func (c *HTTPClient) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &attemptError{err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &attemptError{err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &attemptError{err: ErrRateLimited, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode != http.StatusOK:
		return nil, &attemptError{err: fmt.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(payload))}
	}

	var rr rpcResponse
	if err := json.Unmarshal(payload, &rr); err != nil {
		return nil, &attemptError{err: fmt.Errorf("decode response: %w", err)}
	}
	if rr.Error != nil {
		return nil, rr.Error
	}
	return rr.Result, nil
}

// parseRetryAfter reads a delay in whole seconds. Dates are ignored.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// GetTransaction fetches a transaction with its meta. A nil result means the
// node does not know the signature yet.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{signature, c.readConfig(map[string]interface{}{
		"encoding":                       "json",
		"maxSupportedTransactionVersion": 0,
	})}

	var raw *txEnvelope
	if err := c.call(ctx, "getTransaction", params, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return raw.decode(signature), nil
}

type txEnvelope struct {
	Slot      int64  `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		Err               interface{} `json:"err"`
		LogMessages       []string    `json:"logMessages"`
		InnerInstructions []struct {
			Index        int            `json:"index"`
			Instructions []txInstruction `json:"instructions"`
		} `json:"innerInstructions"`
		LoadedAddresses *struct {
			Writable []string `json:"writable"`
			Readonly []string `json:"readonly"`
		} `json:"loadedAddresses"`
	} `json:"meta"`
	Transaction *struct {
		Message *struct {
			AccountKeys  []string        `json:"accountKeys"`
			Instructions []txInstruction `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
}

type txInstruction struct {
	ProgramIDIndex int     `json:"programIdIndex"`
	Accounts       []int   `json:"accounts"`
	Data           *string `json:"data"`
}

func (e *txEnvelope) decode(signature string) *Transaction {
	tx := &Transaction{Slot: e.Slot, Signature: signature}
	if e.BlockTime != nil {
		tx.BlockTime = *e.BlockTime
	}
	if m := e.Meta; m != nil {
		tx.Meta = &TransactionMeta{Err: m.Err, LogMessages: m.LogMessages}
		for _, g := range m.InnerInstructions {
			tx.Meta.InnerInstructions = append(tx.Meta.InnerInstructions, InnerInstructionGroup{
				Index:        g.Index,
				Instructions: compile(g.Instructions),
			})
		}
		if la := m.LoadedAddresses; la != nil {
			tx.Meta.LoadedWritable = la.Writable
			tx.Meta.LoadedReadonly = la.Readonly
		}
	}
	if e.Transaction != nil && e.Transaction.Message != nil {
		tx.Message = &TransactionMessage{
			AccountKeys:  e.Transaction.Message.AccountKeys,
			Instructions: compile(e.Transaction.Message.Instructions),
		}
	}
	return tx
}

func compile(raw []txInstruction) []CompiledInstruction {
	out := make([]CompiledInstruction, len(raw))
	for i, ix := range raw {
		out[i] = CompiledInstruction{ProgramIDIndex: ix.ProgramIDIndex, Accounts: ix.Accounts}
		if ix.Data != nil {
			out[i].Data, out[i].HasData = *ix.Data, true
		}
	}
	return out
}

// GetSignaturesForAddress pages backwards through an address's signatures.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	extra := map[string]interface{}{}
	if opts != nil {
		if opts.Before != "" {
			extra["before"] = opts.Before
		}
		if opts.Until != "" {
			extra["until"] = opts.Until
		}
		if opts.Limit > 0 {
			extra["limit"] = opts.Limit
		}
	}

	var sigs []SignatureInfo
	if err := c.call(ctx, "getSignaturesForAddress", []interface{}{address, c.readConfig(extra)}, &sigs); err != nil {
		return nil, err
	}
	return sigs, nil
}

// GetAccountInfo returns nil when the account does not exist.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	return c.accountInfo(ctx, pubkey, nil)
}

// GetAccountInfoSlice fetches length bytes of data starting at offset.
func (c *HTTPClient) GetAccountInfoSlice(ctx context.Context, pubkey string, offset, length uint64) (*AccountInfo, error) {
	return c.accountInfo(ctx, pubkey, map[string]uint64{"offset": offset, "length": length})
}

func (c *HTTPClient) accountInfo(ctx context.Context, pubkey string, slice map[string]uint64) (*AccountInfo, error) {
	extra := map[string]interface{}{"encoding": "base64"}
	if slice != nil {
		extra["dataSlice"] = slice
	}

	var result struct {
		Value *wireAccount `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", []interface{}{pubkey, c.readConfig(extra)}, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, nil
	}
	info := result.Value.info()
	return &info, nil
}

// wireAccount is an account as the node encodes it, data being [payload, encoding].
type wireAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

func (a *wireAccount) info() AccountInfo {
	info := AccountInfo{Lamports: a.Lamports, Owner: a.Owner, Executable: a.Executable, RentEpoch: a.RentEpoch}
	if len(a.Data) > 0 {
		info.Data = a.Data[0]
	}
	return info
}

// keyedAccount pairs an account with its address, as in program account
// listings and programNotification payloads.
type keyedAccount struct {
	Pubkey  string      `json:"pubkey"`
	Account wireAccount `json:"account"`
}

// GetProgramAccounts lists accounts owned by programID matching filter.
func (c *HTTPClient) GetProgramAccounts(ctx context.Context, programID string, filter ProgramAccountsFilter) ([]ProgramAccount, error) {
	extra := map[string]interface{}{"encoding": "base64"}
	var filters []interface{}
	if filter.DataSize > 0 {
		filters = append(filters, map[string]uint64{"dataSize": filter.DataSize})
	}
	if filter.MemcmpBytes != "" {
		filters = append(filters, map[string]interface{}{
			"memcmp": map[string]interface{}{"offset": filter.MemcmpOffset, "bytes": filter.MemcmpBytes},
		})
	}
	if len(filters) > 0 {
		extra["filters"] = filters
	}

	var listed []keyedAccount
	if err := c.call(ctx, "getProgramAccounts", []interface{}{programID, c.readConfig(extra)}, &listed); err != nil {
		return nil, err
	}
	out := make([]ProgramAccount, len(listed))
	for i, ka := range listed {
		out[i] = ProgramAccount{Pubkey: ka.Pubkey, Account: ka.Account.info()}
	}
	return out, nil
}

// uiTokenAmount is the token balance shape shared by the spl-token methods.
// Amount is a decimal string because it can exceed 2^53.
type uiTokenAmount struct {
	Address  string   `json:"address,omitempty"`
	Amount   string   `json:"amount"`
	Decimals uint8    `json:"decimals"`
	UIAmount *float64 `json:"uiAmount"`
}

func (u uiTokenAmount) parse() (TokenAmount, error) {
	n, err := strconv.ParseUint(u.Amount, 10, 64)
	if err != nil {
		return TokenAmount{}, fmt.Errorf("token amount %q: %w", u.Amount, err)
	}
	ta := TokenAmount{Amount: n, Decimals: u.Decimals}
	if u.UIAmount != nil {
		ta.UIAmount = *u.UIAmount
	}
	return ta, nil
}

// tokenAmount runs a method whose result value is a single uiTokenAmount.
func (c *HTTPClient) tokenAmount(ctx context.Context, method, key string) (*TokenAmount, error) {
	var result struct {
		Value *uiTokenAmount `json:"value"`
	}
	if err := c.call(ctx, method, []interface{}{key, c.readConfig(nil)}, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, nil
	}
	ta, err := result.Value.parse()
	if err != nil {
		return nil, err
	}
	return &ta, nil
}

// GetTokenSupply returns the total supply of a mint.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error) {
	ta, err := c.tokenAmount(ctx, "getTokenSupply", mint)
	if err == nil && ta == nil {
		return nil, fmt.Errorf("no supply for mint %s", mint)
	}
	return ta, err
}

// GetTokenAccountBalance returns nil when the account does not exist.
func (c *HTTPClient) GetTokenAccountBalance(ctx context.Context, account string) (*TokenAmount, error) {
	return c.tokenAmount(ctx, "getTokenAccountBalance", account)
}

// GetTokenLargestAccounts returns up to 20 of the largest holders of a mint.
func (c *HTTPClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error) {
	var result struct {
		Value []uiTokenAmount `json:"value"`
	}
	if err := c.call(ctx, "getTokenLargestAccounts", []interface{}{mint, c.readConfig(nil)}, &result); err != nil {
		return nil, err
	}

	holders := make([]TokenAccountBalance, len(result.Value))
	for i, v := range result.Value {
		ta, err := v.parse()
		if err != nil {
			return nil, err
		}
		holders[i] = TokenAccountBalance{Address: v.Address, TokenAmount: ta}
	}
	return holders, nil
}

// GetSlot returns the slot the node has reached at the client's commitment.
func (c *HTTPClient) GetSlot(ctx context.Context) (int64, error) {
	var slot int64
	err := c.call(ctx, "getSlot", []interface{}{c.readConfig(nil)}, &slot)
	return slot, err
}

// GetLatestBlockhash returns a blockhash to sign with and the height after
// which transactions using it expire.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (*Blockhash, error) {
	var result struct {
		Value Blockhash `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", []interface{}{c.readConfig(nil)}, &result); err != nil {
		return nil, err
	}
	return &result.Value, nil
}

// SendTransaction submits a signed base64 transaction without preflight and
// returns its signature. Rebroadcast is left to the caller.
func (c *HTTPClient) SendTransaction(ctx context.Context, encoded string) (string, error) {
	params := []interface{}{encoded, map[string]interface{}{
		"encoding":            "base64",
		"skipPreflight":       true,
		"preflightCommitment": c.commitment,
		"maxRetries":          0,
	}}
	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// GetSignatureStatuses returns one entry per signature, nil for unknown ones.
func (c *HTTPClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	var result struct {
		Value []*SignatureStatus `json:"value"`
	}
	params := []interface{}{signatures, map[string]bool{"searchTransactionHistory": false}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

var _ RPCClient = (*HTTPClient)(nil)
