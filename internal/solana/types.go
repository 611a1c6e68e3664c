package solana

import "encoding/base64"

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// Transaction represents a confirmed Solana transaction fetched with json encoding.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	LogMessages       []string
	InnerInstructions []InnerInstructionGroup
	LoadedWritable    []string // address lookup table writable keys
	LoadedReadonly    []string // address lookup table readonly keys
}

// TransactionMessage contains the compiled transaction message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []CompiledInstruction
}

// CompiledInstruction references accounts by index into the flat key table.
// Data is base58 encoded. HasData is false for instructions that were only
// returned in parsed form.
type CompiledInstruction struct {
	ProgramIDIndex int
	Accounts       []int
	Data           string
	HasData        bool
}

// InnerInstructionGroup holds CPI instructions emitted by one top-level instruction.
type InnerInstructionGroup struct {
	Index        int
	Instructions []CompiledInstruction
}

// AccountKeys returns the flat key table: message keys, then loaded writable
// keys, then loaded readonly keys.
func (t *Transaction) AccountKeys() []string {
	if t == nil || t.Message == nil {
		return nil
	}
	keys := make([]string, 0, len(t.Message.AccountKeys))
	keys = append(keys, t.Message.AccountKeys...)
	if t.Meta != nil {
		keys = append(keys, t.Meta.LoadedWritable...)
		keys = append(keys, t.Meta.LoadedReadonly...)
	}
	return keys
}

// Mentions reports whether programID appears in the flat key table.
func (t *Transaction) Mentions(programID string) bool {
	for _, k := range t.AccountKeys() {
		if k == programID {
			return true
		}
	}
	return false
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// ProgramAccount is one result of getProgramAccounts.
type ProgramAccount struct {
	Pubkey  string
	Account AccountInfo
}

// ProgramAccountsFilter narrows getProgramAccounts results.
type ProgramAccountsFilter struct {
	DataSize     uint64 // 0 disables the size filter
	MemcmpOffset uint64
	MemcmpBytes  string // base58, empty disables memcmp
}

// TokenAmount is an SPL token balance or supply.
type TokenAmount struct {
	Amount   uint64 // raw units
	Decimals uint8
	UIAmount float64
}

// TokenAccountBalance is one entry of getTokenLargestAccounts.
type TokenAccountBalance struct {
	Address string
	TokenAmount
}

// Blockhash is the result of getLatestBlockhash.
type Blockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SignatureStatus is one entry of getSignatureStatuses. A nil entry means unknown.
type SignatureStatus struct {
	Slot               int64       `json:"slot"`
	ConfirmationStatus string      `json:"confirmationStatus"` // processed | confirmed | finalized
	Err                interface{} `json:"err"`
}

// Confirmed reports whether the transaction reached confirmed commitment without error.
func (s *SignatureStatus) Confirmed() bool {
	if s == nil || s.Err != nil {
		return false
	}
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// Bytes decodes the base64 account data.
func (a *AccountInfo) Bytes() ([]byte, error) {
	if a == nil || a.Data == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(a.Data)
}
