package decoder

import (
	"math/rand"
	"testing"

	"github.com/mr-tron/base58"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

const (
	testPool = "PooL1111111111111111111111111111111111111111"
	testBase = "BaSe1111111111111111111111111111111111111111"
	testLP   = "LPmint11111111111111111111111111111111111111"
	testUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func raydiumTx(quote string, accounts []int, data string) *solana.Transaction {
	return &solana.Transaction{
		Signature: "sig1",
		Slot:      42,
		Message: &solana.TransactionMessage{
			AccountKeys: []string{testPool, testBase, quote, testLP, domain.RaydiumAMMV4},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 4, Accounts: accounts, Data: data, HasData: true},
			},
		},
	}
}

func TestDecoder_Raydium(t *testing.T) {
	d := New(RaydiumConfig())

	pools := d.Decode(raydiumTx(domain.WSOLMint, []int{0, 1, 2, 3}, "3Bxs"))
	if len(pools) != 1 {
		t.Fatalf("expected 1 pool, got %d", len(pools))
	}

	p := pools[0]
	if p.PoolID != testPool || p.BaseMint != testBase || p.LPMint != testLP {
		t.Errorf("unexpected pool: %+v", p)
	}
	if !p.HasWSOLQuote() {
		t.Errorf("expected WSOL quote, got %s", p.QuoteMint)
	}
	if p.Signature != "sig1" || p.Slot != 42 {
		t.Errorf("expected provenance sig1/42, got %s/%d", p.Signature, p.Slot)
	}
	if p.Variant != domain.VariantRaydium {
		t.Errorf("expected raydium, got %s", p.Variant)
	}
}

func TestDecoder_RejectsNonWSOLQuote(t *testing.T) {
	d := New(RaydiumConfig())

	if pools := d.Decode(raydiumTx(testUSDC, []int{0, 1, 2, 3}, "3Bxs")); len(pools) != 0 {
		t.Errorf("expected no pools for USDC quote, got %d", len(pools))
	}
}

func TestDecoder_RejectsSystemPoolID(t *testing.T) {
	d := New(RaydiumConfig())
	tx := raydiumTx(domain.WSOLMint, []int{0, 1, 2, 3}, "3Bxs")
	tx.Message.AccountKeys[0] = domain.TokenProgramID

	if pools := d.Decode(tx); len(pools) != 0 {
		t.Errorf("expected token program pool id to be rejected, got %d", len(pools))
	}
}

func TestDecoder_SkipsMalformed(t *testing.T) {
	d := New(RaydiumConfig())

	tests := []struct {
		name     string
		accounts []int
		hasData  bool
	}{
		{"too few accounts", []int{0, 1, 2}, true},
		{"index out of range", []int{0, 1, 2, 99}, true},
		{"negative index", []int{-1, 1, 2, 3}, true},
		{"parsed instruction", []int{0, 1, 2, 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := raydiumTx(domain.WSOLMint, tt.accounts, "3Bxs")
			tx.Message.Instructions[0].HasData = tt.hasData
			if pools := d.Decode(tx); len(pools) != 0 {
				t.Errorf("expected no pools, got %d", len(pools))
			}
		})
	}
}

func TestDecoder_MalformedDoesNotAbortScan(t *testing.T) {
	d := New(RaydiumConfig())
	tx := raydiumTx(domain.WSOLMint, []int{0, 1, 2, 99}, "3Bxs")
	tx.Meta = &solana.TransactionMeta{
		InnerInstructions: []solana.InnerInstructionGroup{{
			Index: 0,
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 4, Accounts: []int{0, 1, 2, 3}, Data: "3Bxs", HasData: true},
			},
		}},
	}

	pools := d.Decode(tx)
	if len(pools) != 1 {
		t.Fatalf("expected inner instruction to decode, got %d pools", len(pools))
	}
}

func TestDecoder_OtherProgramIgnored(t *testing.T) {
	d := New(RaydiumConfig())
	tx := raydiumTx(domain.WSOLMint, []int{0, 1, 2, 3}, "3Bxs")
	tx.Message.AccountKeys[4] = domain.PumpSwapProgramID

	if pools := d.Decode(tx); len(pools) != 0 {
		t.Errorf("expected instruction of another program to be ignored, got %d", len(pools))
	}
}

func TestDecoder_Discriminator(t *testing.T) {
	cfg := PumpSwapConfig()
	cfg.Discriminator = []byte{0xe9, 0x92, 0xd1, 0x8e}
	d := New(cfg)

	tx := &solana.Transaction{
		Message: &solana.TransactionMessage{
			AccountKeys: []string{testPool, testBase, domain.WSOLMint, domain.PumpSwapProgramID},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 3, Accounts: []int{0, 1, 2}, Data: base58.Encode([]byte{0xe9, 0x92, 0xd1, 0x8e, 1}), HasData: true},
				{ProgramIDIndex: 3, Accounts: []int{0, 1, 2}, Data: base58.Encode([]byte{1, 2, 3, 4, 5}), HasData: true},
				{ProgramIDIndex: 3, Accounts: []int{0, 1, 2}, Data: base58.Encode([]byte{0xe9}), HasData: true},
			},
		},
	}

	pools := d.Decode(tx)
	if len(pools) != 1 {
		t.Fatalf("expected only the matching discriminator, got %d pools", len(pools))
	}
	if pools[0].LPMint != "" {
		t.Errorf("expected no LP mint when index is absent, got %s", pools[0].LPMint)
	}
}

func TestDecoder_LoadedAddresses(t *testing.T) {
	d := New(MeteoraConfig())
	tx := &solana.Transaction{
		Message: &solana.TransactionMessage{
			AccountKeys: []string{testPool, domain.MeteoraProgramID},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 1, Accounts: []int{0, 2, 3, 4, 0, 0}, Data: "1", HasData: true},
			},
		},
		Meta: &solana.TransactionMeta{
			LoadedWritable: []string{testBase},
			LoadedReadonly: []string{domain.WSOLMint, testLP},
		},
	}

	pools := d.Decode(tx)
	if len(pools) != 1 {
		t.Fatalf("expected pool from lookup table keys, got %d", len(pools))
	}
	if pools[0].BaseMint != testBase || pools[0].LPMint != testLP {
		t.Errorf("unexpected resolution: %+v", pools[0])
	}
}

func TestDecoder_NeverPanics(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	keys := []string{testPool, testBase, domain.WSOLMint, testLP, domain.RaydiumAMMV4, ""}

	for _, cfg := range []VariantConfig{RaydiumConfig(), MeteoraConfig(), PumpSwapConfig()} {
		d := New(cfg)
		for i := 0; i < 500; i++ {
			accounts := make([]int, rng.Intn(10))
			for j := range accounts {
				accounts[j] = rng.Intn(12) - 2
			}
			data := make([]byte, rng.Intn(12))
			rng.Read(data)

			tx := &solana.Transaction{
				Message: &solana.TransactionMessage{
					AccountKeys: keys[:rng.Intn(len(keys)+1)],
					Instructions: []solana.CompiledInstruction{
						{ProgramIDIndex: rng.Intn(8) - 1, Accounts: accounts, Data: base58.Encode(data), HasData: rng.Intn(2) == 0},
						{ProgramIDIndex: 4, Accounts: accounts, Data: "0OIl", HasData: true},
					},
				},
			}

			for _, p := range d.Decode(tx) {
				if !p.HasWSOLQuote() {
					t.Fatalf("decoded non-WSOL pool %+v", p)
				}
			}
		}
	}

	if pools := New(RaydiumConfig()).Decode(nil); pools != nil {
		t.Errorf("expected nil for nil transaction")
	}
}

func TestRegistry_Decode(t *testing.T) {
	r := NewRegistry()

	if len(r.Decoders()) != 3 {
		t.Fatalf("expected 3 default decoders, got %d", len(r.Decoders()))
	}

	pools := r.Decode(raydiumTx(domain.WSOLMint, []int{0, 1, 2, 3}, "3Bxs"))
	if len(pools) != 1 || pools[0].Variant != domain.VariantRaydium {
		t.Fatalf("expected one raydium pool, got %+v", pools)
	}

	if _, ok := r.ForVariant(domain.VariantPumpSwap); !ok {
		t.Error("pumpswap decoder not registered")
	}
}

func TestRegistry_EnabledSubset(t *testing.T) {
	r := NewRegistry(domain.VariantMeteora)

	if len(r.Decoders()) != 1 {
		t.Fatalf("expected 1 decoder, got %d", len(r.Decoders()))
	}

	if pools := r.Decode(raydiumTx(domain.WSOLMint, []int{0, 1, 2, 3}, "3Bxs")); len(pools) != 0 {
		t.Errorf("expected raydium tx to be ignored, got %d", len(pools))
	}
}
