package solana

import (
	"encoding/binary"

	"solana-pool-sniper/internal/domain"
)

// SetComputeUnitLimit builds a ComputeBudget SetComputeUnitLimit instruction.
func SetComputeUnitLimit(units uint32) Instruction {
	data := make([]byte, 5)
	data[0] = 2
	binary.LittleEndian.PutUint32(data[1:], units)
	return Instruction{ProgramID: MustPublicKey(domain.ComputeBudgetID), Data: data}
}

// SetComputeUnitPrice builds a ComputeBudget SetComputeUnitPrice instruction.
func SetComputeUnitPrice(microLamports uint64) Instruction {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return Instruction{ProgramID: MustPublicKey(domain.ComputeBudgetID), Data: data}
}

// CreateAssociatedTokenAccountIdempotent creates ata for owner and mint unless it exists.
func CreateAssociatedTokenAccountIdempotent(payer, ata, owner, mint PublicKey) Instruction {
	return Instruction{
		ProgramID: MustPublicKey(domain.AssociatedTokenID),
		Accounts: []AccountMeta{
			Meta(payer, true, true),
			Meta(ata, false, true),
			Meta(owner, false, false),
			Meta(mint, false, false),
			Meta(MustPublicKey(domain.SystemProgramID), false, false),
			Meta(MustPublicKey(domain.TokenProgramID), false, false),
		},
		Data: []byte{1},
	}
}

// CloseTokenAccount closes account and sends its rent to destination.
func CloseTokenAccount(account, destination, owner PublicKey) Instruction {
	return Instruction{
		ProgramID: MustPublicKey(domain.TokenProgramID),
		Accounts: []AccountMeta{
			Meta(account, false, true),
			Meta(destination, false, true),
			Meta(owner, true, false),
		},
		Data: []byte{9},
	}
}

// Transfer builds a System program lamport transfer.
func Transfer(from, to PublicKey, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data, 2)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	return Instruction{
		ProgramID: MustPublicKey(domain.SystemProgramID),
		Accounts: []AccountMeta{
			Meta(from, true, true),
			Meta(to, false, true),
		},
		Data: data,
	}
}
