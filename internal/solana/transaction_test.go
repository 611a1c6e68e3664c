package solana

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-pool-sniper/internal/domain"
)

const testBlockhash = "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"

func encodeSecret(kp *Keypair) string {
	return base58.Encode(kp.private)
}

func TestAppendCompactU16(t *testing.T) {
	cases := map[int][]byte{
		0:      {0x00},
		0x7f:   {0x7f},
		0x80:   {0x80, 0x01},
		0x3fff: {0xff, 0x7f},
		0x4000: {0x80, 0x80, 0x01},
	}
	for n, want := range cases {
		assert.Equal(t, want, appendCompactU16(nil, n), "n=%d", n)
	}
}

func TestCompileMessage_AccountOrdering(t *testing.T) {
	payer, err := NewKeypair()
	require.NoError(t, err)

	writable := MustPublicKey(domain.WSOLMint)
	readonly := MustPublicKey(domain.SysvarRentID)
	program := MustPublicKey(domain.TokenProgramID)

	ix := Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			Meta(readonly, false, false),
			Meta(writable, false, true),
			Meta(payer.PublicKey(), true, true),
		},
		Data: []byte{1, 2, 3},
	}

	msg, signers, err := CompileMessage(payer.PublicKey(), []Instruction{ix}, testBlockhash)
	require.NoError(t, err)
	require.Len(t, signers, 1)
	assert.Equal(t, payer.PublicKey(), signers[0])

	// header: 1 signer, 0 readonly signed, 2 readonly unsigned (sysvar + program)
	assert.Equal(t, []byte{1, 0, 2}, msg[:3])
	assert.Equal(t, byte(4), msg[3])

	key := func(i int) PublicKey {
		pk, _ := PublicKeyFromBytes(msg, 4+i*32)
		return pk
	}
	assert.Equal(t, payer.PublicKey(), key(0))
	assert.Equal(t, writable, key(1))

	// the instruction trails the blockhash
	ixStart := 4 + 4*32 + 32
	assert.Equal(t, byte(1), msg[ixStart], "one instruction")
	programIndex := msg[ixStart+1]
	assert.Equal(t, program, key(int(programIndex)))
	assert.Equal(t, byte(3), msg[ixStart+2], "three account indexes")
	assert.Equal(t, []byte{1, 2, 3}, msg[len(msg)-3:])
}

func TestCompileMessage_InvalidBlockhash(t *testing.T) {
	payer, err := NewKeypair()
	require.NoError(t, err)

	_, _, err = CompileMessage(payer.PublicKey(), []Instruction{{ProgramID: MustPublicKey(domain.SystemProgramID)}}, "bad")
	assert.Error(t, err)

	_, _, err = CompileMessage(payer.PublicKey(), nil, testBlockhash)
	assert.Error(t, err)
}

func TestSignTransaction(t *testing.T) {
	payer, err := NewKeypair()
	require.NoError(t, err)

	ix := Instruction{
		ProgramID: MustPublicKey(domain.SystemProgramID),
		Accounts:  []AccountMeta{Meta(payer.PublicKey(), true, true)},
		Data:      []byte{2, 0, 0, 0},
	}

	tx, err := SignTransaction([]Instruction{ix}, testBlockhash, payer)
	require.NoError(t, err)
	require.Len(t, tx.Signatures, 1)

	pub := payer.PublicKey()
	assert.True(t, ed25519.Verify(ed25519.PublicKey(pub[:]), tx.Message, tx.Signatures[0]))
	assert.Equal(t, base58.Encode(tx.Signatures[0]), tx.Signature())

	wire := tx.Serialize()
	assert.Equal(t, byte(1), wire[0])
	assert.Equal(t, tx.Message, wire[65:])
	assert.NotEmpty(t, tx.Base64())
}

func TestSignTransaction_MissingSigner(t *testing.T) {
	payer, err := NewKeypair()
	require.NoError(t, err)
	other, err := NewKeypair()
	require.NoError(t, err)

	ix := Instruction{
		ProgramID: MustPublicKey(domain.SystemProgramID),
		Accounts:  []AccountMeta{Meta(other.PublicKey(), true, true)},
	}

	_, err = SignTransaction([]Instruction{ix}, testBlockhash, payer)
	assert.Error(t, err)
}

func TestProgramInstructions(t *testing.T) {
	limit := SetComputeUnitLimit(200000)
	assert.Equal(t, []byte{2, 0x40, 0x0d, 0x03, 0x00}, limit.Data)

	price := SetComputeUnitPrice(1)
	assert.Equal(t, byte(3), price.Data[0])
	assert.Len(t, price.Data, 9)

	from := MustPublicKey(domain.WSOLMint)
	to := MustPublicKey(domain.RaydiumAMMV4)
	transfer := Transfer(from, to, 1000)
	assert.Equal(t, []byte{2, 0, 0, 0, 0xe8, 0x03, 0, 0, 0, 0, 0, 0}, transfer.Data)
	assert.True(t, transfer.Accounts[0].IsSigner)

	closeIx := CloseTokenAccount(from, to, to)
	assert.Equal(t, []byte{9}, closeIx.Data)
	assert.True(t, closeIx.Accounts[2].IsSigner)

	ata := CreateAssociatedTokenAccountIdempotent(to, from, to, from)
	assert.Equal(t, []byte{1}, ata.Data)
	assert.Len(t, ata.Accounts, 6)
}
