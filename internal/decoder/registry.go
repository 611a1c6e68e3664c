package decoder

import (
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

// Registry routes transactions to the decoders of the programs they mention.
type Registry struct {
	decoders map[string]*Decoder // programID -> decoder
	order    []string
}

// NewRegistry creates a registry with decoders for the given variants.
// With no variants every built-in config is registered.
func NewRegistry(variants ...domain.DexVariant) *Registry {
	r := &Registry{decoders: make(map[string]*Decoder)}

	if len(variants) == 0 {
		variants = []domain.DexVariant{domain.VariantRaydium, domain.VariantMeteora, domain.VariantPumpSwap}
	}
	for _, v := range variants {
		if cfg, ok := ConfigFor(v); ok {
			r.Register(New(cfg))
		}
	}
	return r
}

// Register adds or replaces the decoder for its program ID.
func (r *Registry) Register(d *Decoder) {
	programID := d.Config().ProgramID
	if _, exists := r.decoders[programID]; !exists {
		r.order = append(r.order, programID)
	}
	r.decoders[programID] = d
}

// ForVariant returns the decoder registered for a variant.
func (r *Registry) ForVariant(v domain.DexVariant) (*Decoder, bool) {
	for _, programID := range r.order {
		if d := r.decoders[programID]; d.Variant() == v {
			return d, true
		}
	}
	return nil, false
}

// Decoders returns registered decoders in registration order.
func (r *Registry) Decoders() []*Decoder {
	out := make([]*Decoder, 0, len(r.order))
	for _, programID := range r.order {
		out = append(out, r.decoders[programID])
	}
	return out
}

// Decode runs every decoder whose program the transaction mentions.
func (r *Registry) Decode(tx *solana.Transaction) []domain.DetectedPool {
	var pools []domain.DetectedPool
	for _, programID := range r.order {
		if !tx.Mentions(programID) {
			continue
		}
		pools = append(pools, r.decoders[programID].Decode(tx)...)
	}
	return pools
}
