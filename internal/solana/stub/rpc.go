package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solana-pool-sniper/internal/solana"
)

// ErrNotFound is returned when a transaction is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing. Maps may be filled
// directly before use; the Add helpers are safe once the client is shared.
type RPCClient struct {
	mu sync.Mutex

	Transactions    map[string]*solana.Transaction
	Signatures      map[string][]solana.SignatureInfo
	Accounts        map[string]*solana.AccountInfo
	ProgramAccounts map[string][]solana.ProgramAccount
	Supplies        map[string]*solana.TokenAmount
	LargestAccounts map[string][]solana.TokenAccountBalance
	Balances        map[string]*solana.TokenAmount
	Statuses        map[string]*solana.SignatureStatus

	Slot      int64
	Blockhash string

	// SendErr fails the next len(SendErr) SendTransaction calls in order.
	SendErr []error
	// Sent records every encoded transaction passed to SendTransaction.
	Sent []string
	// Calls counts invocations per RPC method name.
	Calls map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions:    make(map[string]*solana.Transaction),
		Signatures:      make(map[string][]solana.SignatureInfo),
		Accounts:        make(map[string]*solana.AccountInfo),
		ProgramAccounts: make(map[string][]solana.ProgramAccount),
		Supplies:        make(map[string]*solana.TokenAmount),
		LargestAccounts: make(map[string][]solana.TokenAccountBalance),
		Balances:        make(map[string]*solana.TokenAmount),
		Statuses:        make(map[string]*solana.SignatureStatus),
		Blockhash:       "11111111111111111111111111111111",
		Calls:           make(map[string]int),
	}
}

func (c *RPCClient) count(method string) {
	c.Calls[method]++
}

// CallCount returns how many times method was invoked.
func (c *RPCClient) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[method]
}

// GetTransaction retrieves a transaction by signature from the stub store.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getTransaction")

	tx, ok := c.Transactions[signature]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

// GetSignaturesForAddress retrieves signatures for an address from the stub store.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getSignaturesForAddress")

	sigs, ok := c.Signatures[address]
	if !ok {
		return nil, nil
	}

	// Apply limit if specified
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}

	return sigs, nil
}

// GetAccountInfo returns the stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getAccountInfo")
	return c.Accounts[pubkey], nil
}

// GetAccountInfoSlice returns the stored account. The stub does not slice data,
// so tests store the already-sliced bytes.
func (c *RPCClient) GetAccountInfoSlice(_ context.Context, pubkey string, _, _ uint64) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getAccountInfo")
	return c.Accounts[pubkey], nil
}

// GetProgramAccounts returns accounts stored under the program ID.
func (c *RPCClient) GetProgramAccounts(_ context.Context, programID string, _ solana.ProgramAccountsFilter) ([]solana.ProgramAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getProgramAccounts")
	return c.ProgramAccounts[programID], nil
}

// GetTokenSupply returns the stored supply.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint string) (*solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getTokenSupply")

	supply, ok := c.Supplies[mint]
	if !ok {
		return nil, fmt.Errorf("supply for %s: %w", mint, ErrNotFound)
	}
	return supply, nil
}

// GetTokenLargestAccounts returns the stored holders.
func (c *RPCClient) GetTokenLargestAccounts(_ context.Context, mint string) ([]solana.TokenAccountBalance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getTokenLargestAccounts")
	return c.LargestAccounts[mint], nil
}

// GetTokenAccountBalance returns the stored balance.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, account string) (*solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getTokenAccountBalance")

	bal, ok := c.Balances[account]
	if !ok {
		return nil, fmt.Errorf("balance for %s: %w", account, ErrNotFound)
	}
	return bal, nil
}

// GetSlot returns Slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getSlot")
	return c.Slot, nil
}

// GetLatestBlockhash returns Blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getLatestBlockhash")
	return &solana.Blockhash{Blockhash: c.Blockhash, LastValidBlockHeight: uint64(c.Slot) + 150}, nil
}

// SendTransaction records the transaction and returns a synthetic signature.
func (c *RPCClient) SendTransaction(_ context.Context, encoded string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("sendTransaction")

	if len(c.SendErr) > 0 {
		err := c.SendErr[0]
		c.SendErr = c.SendErr[1:]
		if err != nil {
			return "", err
		}
	}
	c.Sent = append(c.Sent, encoded)
	return fmt.Sprintf("sig-%d", len(c.Sent)), nil
}

// GetSignatureStatuses returns stored statuses. Unknown signatures are
// reported confirmed unless Statuses holds an explicit entry.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("getSignatureStatuses")

	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		if st, ok := c.Statuses[sig]; ok {
			out[i] = st
			continue
		}
		out[i] = &solana.SignatureStatus{Slot: c.Slot, ConfirmationStatus: "confirmed"}
	}
	return out, nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = sigs
}

// SetAccount stores an account.
func (c *RPCClient) SetAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = info
}

var _ solana.RPCClient = (*RPCClient)(nil)
