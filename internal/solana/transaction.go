package solana

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// MaxTransactionSize is the packet limit for a serialized transaction.
const MaxTransactionSize = 1232

// AccountMeta describes one account used by an instruction.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

// Meta builds an AccountMeta.
func Meta(pk PublicKey, signer, writable bool) AccountMeta {
	return AccountMeta{PublicKey: pk, IsSigner: signer, IsWritable: writable}
}

// Instruction is an uncompiled program invocation.
type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// SignedTransaction is a signed legacy transaction.
type SignedTransaction struct {
	Signatures [][]byte
	Message    []byte
}

// Signature returns the base58 first signature, which identifies the transaction.
func (t *SignedTransaction) Signature() string {
	if len(t.Signatures) == 0 {
		return ""
	}
	return base58.Encode(t.Signatures[0])
}

// Serialize returns the wire encoding.
func (t *SignedTransaction) Serialize() []byte {
	out := appendCompactU16(nil, len(t.Signatures))
	for _, sig := range t.Signatures {
		out = append(out, sig...)
	}
	return append(out, t.Message...)
}

// Base64 returns the wire encoding for sendTransaction.
func (t *SignedTransaction) Base64() string {
	return base64.StdEncoding.EncodeToString(t.Serialize())
}

// Base58 returns the wire encoding in the form bundle endpoints expect.
func (t *SignedTransaction) Base58() string {
	return base58.Encode(t.Serialize())
}

type compiledKey struct {
	key      PublicKey
	signer   bool
	writable bool
}

// CompileMessage builds a legacy message with payer as the fee payer.
func CompileMessage(payer PublicKey, instructions []Instruction, recentBlockhash string) ([]byte, []PublicKey, error) {
	if len(instructions) == 0 {
		return nil, nil, errors.New("no instructions")
	}
	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil || len(blockhash) != 32 {
		return nil, nil, fmt.Errorf("invalid blockhash %q", recentBlockhash)
	}

	keys := []compiledKey{{key: payer, signer: true, writable: true}}
	index := map[PublicKey]int{payer: 0}
	add := func(pk PublicKey, signer, writable bool) {
		if i, ok := index[pk]; ok {
			keys[i].signer = keys[i].signer || signer
			keys[i].writable = keys[i].writable || writable
			return
		}
		index[pk] = len(keys)
		keys = append(keys, compiledKey{key: pk, signer: signer, writable: writable})
	}
	for _, ix := range instructions {
		for _, acc := range ix.Accounts {
			add(acc.PublicKey, acc.IsSigner, acc.IsWritable)
		}
		add(ix.ProgramID, false, false)
	}

	// payer stays first; the rest are grouped by signer then writable
	ordered := make([]compiledKey, 0, len(keys))
	ordered = append(ordered, keys[0])
	for _, group := range [][2]bool{{true, true}, {true, false}, {false, true}, {false, false}} {
		for _, k := range keys[1:] {
			if k.signer == group[0] && k.writable == group[1] {
				ordered = append(ordered, k)
			}
		}
	}

	var numReadonlySigned, numReadonlyUnsigned int
	var signerKeys []PublicKey
	position := make(map[PublicKey]int, len(ordered))
	for i, k := range ordered {
		position[k.key] = i
		if k.signer {
			signerKeys = append(signerKeys, k.key)
		}
		switch {
		case k.signer && !k.writable:
			numReadonlySigned++
		case !k.signer && !k.writable:
			numReadonlyUnsigned++
		}
	}

	msg := []byte{byte(len(signerKeys)), byte(numReadonlySigned), byte(numReadonlyUnsigned)}
	msg = appendCompactU16(msg, len(ordered))
	for _, k := range ordered {
		msg = append(msg, k.key[:]...)
	}
	msg = append(msg, blockhash...)
	msg = appendCompactU16(msg, len(instructions))
	for _, ix := range instructions {
		msg = append(msg, byte(position[ix.ProgramID]))
		msg = appendCompactU16(msg, len(ix.Accounts))
		for _, acc := range ix.Accounts {
			msg = append(msg, byte(position[acc.PublicKey]))
		}
		msg = appendCompactU16(msg, len(ix.Data))
		msg = append(msg, ix.Data...)
	}
	return msg, signerKeys, nil
}

// SignTransaction compiles and signs a transaction. The first signer pays fees.
func SignTransaction(instructions []Instruction, recentBlockhash string, signers ...*Keypair) (*SignedTransaction, error) {
	if len(signers) == 0 {
		return nil, errors.New("no signers")
	}
	msg, signerKeys, err := CompileMessage(signers[0].PublicKey(), instructions, recentBlockhash)
	if err != nil {
		return nil, err
	}

	byKey := make(map[PublicKey]*Keypair, len(signers))
	for _, s := range signers {
		byKey[s.PublicKey()] = s
	}
	tx := &SignedTransaction{Message: msg}
	for _, pk := range signerKeys {
		s, ok := byKey[pk]
		if !ok {
			return nil, fmt.Errorf("missing signer %s", pk)
		}
		tx.Signatures = append(tx.Signatures, s.Sign(msg))
	}
	if size := len(tx.Serialize()); size > MaxTransactionSize {
		return nil, fmt.Errorf("transaction too large: %d bytes", size)
	}
	return tx, nil
}

// appendCompactU16 writes n in Solana's shortvec encoding.
func appendCompactU16(out []byte, n int) []byte {
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
