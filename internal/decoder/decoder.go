package decoder

import (
	"bytes"
	"time"

	"github.com/mr-tron/base58"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

// Decoder extracts pool-creation records for one DEX variant.
type Decoder struct {
	config VariantConfig
	now    func() time.Time
}

// New creates a decoder for config.
func New(config VariantConfig) *Decoder {
	return &Decoder{config: config, now: time.Now}
}

// Config returns the variant layout.
func (d *Decoder) Config() VariantConfig {
	return d.config
}

// Variant returns the decoded DEX variant.
func (d *Decoder) Variant() domain.DexVariant {
	return d.config.Variant
}

// Decode scans top-level then inner instructions and returns every WSOL-quoted
// pool found. Malformed instructions are skipped.
func (d *Decoder) Decode(tx *solana.Transaction) []domain.DetectedPool {
	if tx == nil || tx.Message == nil {
		return nil
	}

	keys := tx.AccountKeys()
	detectedAt := d.now()

	var pools []domain.DetectedPool
	scan := func(instructions []solana.CompiledInstruction) {
		for _, ix := range instructions {
			if pool, ok := d.decodeInstruction(ix, keys); ok {
				pool.Signature = tx.Signature
				pool.Slot = tx.Slot
				pool.DetectedAt = detectedAt
				pools = append(pools, pool)
			}
		}
	}

	scan(tx.Message.Instructions)
	if tx.Meta != nil {
		for _, group := range tx.Meta.InnerInstructions {
			scan(group.Instructions)
		}
	}

	return pools
}

func (d *Decoder) decodeInstruction(ix solana.CompiledInstruction, keys []string) (domain.DetectedPool, bool) {
	var pool domain.DetectedPool

	programID, ok := resolve(keys, ix.ProgramIDIndex)
	if !ok || programID != d.config.ProgramID {
		return pool, false
	}

	// jsonParsed instructions carry no raw data to inspect
	if !ix.HasData {
		return pool, false
	}

	if len(ix.Accounts) < d.config.MinAccounts {
		return pool, false
	}

	if len(d.config.Discriminator) > 0 {
		data, err := base58.Decode(ix.Data)
		if err != nil || len(data) < len(d.config.Discriminator) {
			return pool, false
		}
		if !bytes.Equal(data[:len(d.config.Discriminator)], d.config.Discriminator) {
			return pool, false
		}
	}

	account := func(slot int) (string, bool) {
		if slot < 0 || slot >= len(ix.Accounts) {
			return "", false
		}
		return resolve(keys, ix.Accounts[slot])
	}

	poolID, ok := account(d.config.PoolIndex)
	if !ok {
		return pool, false
	}
	baseMint, ok := account(d.config.BaseMintIndex)
	if !ok {
		return pool, false
	}
	quoteMint, ok := account(d.config.QuoteMintIndex)
	if !ok {
		return pool, false
	}

	lpMint := ""
	if d.config.LPMintIndex != NoIndex {
		lpMint, _ = account(d.config.LPMintIndex)
	}
	if d.config.RequireLPMint && lpMint == "" {
		return pool, false
	}

	if domain.IsSystemAccount(poolID) || quoteMint != domain.WSOLMint {
		return pool, false
	}

	pool = domain.DetectedPool{
		Variant:   d.config.Variant,
		PoolID:    poolID,
		BaseMint:  baseMint,
		QuoteMint: quoteMint,
		LPMint:    lpMint,
	}
	return pool, true
}

func resolve(keys []string, index int) (string, bool) {
	if index < 0 || index >= len(keys) || keys[index] == "" {
		return "", false
	}
	return keys[index], true
}
