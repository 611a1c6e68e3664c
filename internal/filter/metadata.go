package filter

import (
	"context"
	"fmt"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/events"
	"solana-pool-sniper/internal/services"
)

// Mutable rejects tokens whose metadata can still be changed. Tokens without
// a metadata account pass.
type Mutable struct {
	Metadata services.MetadataService
}

// Name implements Filter.
func (f *Mutable) Name() string { return NameMutable }

// Check implements Filter.
func (f *Mutable) Check(ctx context.Context, pool domain.DetectedPool) domain.FilterResult {
	md, err := f.Metadata.Metadata(ctx, pool.BaseMint)
	if err != nil {
		return fail(f.Name(), events.SkipMutable, fmt.Sprintf("Metadata lookup failed: %v", err))
	}
	if md == nil {
		return pass(f.Name(), "No metadata - skipping mutable check")
	}
	if md.IsMutable {
		return fail(f.Name(), events.SkipMutable, "Metadata is mutable")
	}
	return pass(f.Name(), "Metadata is immutable")
}

// Socials requires at least MinLinks social links in the off-chain document.
// Tokens without a metadata account pass.
type Socials struct {
	Metadata services.MetadataService
	MinLinks int
}

// Name implements Filter.
func (f *Socials) Name() string { return NameSocials }

// Check implements Filter.
func (f *Socials) Check(ctx context.Context, pool domain.DetectedPool) domain.FilterResult {
	md, err := f.Metadata.Metadata(ctx, pool.BaseMint)
	if err != nil {
		return fail(f.Name(), events.SkipNoSocials, fmt.Sprintf("Metadata lookup failed: %v", err))
	}
	if md == nil {
		return pass(f.Name(), "No metadata - skipping socials check")
	}
	if md.URI == "" {
		return fail(f.Name(), events.SkipNoSocials, "Metadata has no URI")
	}

	doc, err := f.Metadata.Document(ctx, md.URI)
	if err != nil {
		return fail(f.Name(), events.SkipNoSocials, fmt.Sprintf("Off-chain metadata unavailable: %v", err))
	}
	n := doc.SocialLinks()
	if n < f.MinLinks {
		return fail(f.Name(), events.SkipNoSocials, fmt.Sprintf("Found %d social links, need %d", n, f.MinLinks))
	}
	return pass(f.Name(), fmt.Sprintf("Found %d social links", n))
}

// Image requires the off-chain document to reference a reachable image.
// Tokens without a metadata account pass.
type Image struct {
	Metadata services.MetadataService
}

// Name implements Filter.
func (f *Image) Name() string { return NameImage }

// Check implements Filter.
func (f *Image) Check(ctx context.Context, pool domain.DetectedPool) domain.FilterResult {
	md, err := f.Metadata.Metadata(ctx, pool.BaseMint)
	if err != nil {
		return fail(f.Name(), events.SkipNoImage, fmt.Sprintf("Metadata lookup failed: %v", err))
	}
	if md == nil {
		return pass(f.Name(), "No metadata - skipping image check")
	}
	if md.URI == "" {
		return fail(f.Name(), events.SkipNoImage, "Metadata has no URI")
	}

	doc, err := f.Metadata.Document(ctx, md.URI)
	if err != nil {
		return fail(f.Name(), events.SkipNoImage, fmt.Sprintf("Off-chain metadata unavailable: %v", err))
	}
	if !services.IsImageURL(doc.Image) {
		return fail(f.Name(), events.SkipNoImage, "No valid image found")
	}

	ok, err := f.Metadata.ImageReachable(ctx, doc.Image)
	if err != nil {
		return fail(f.Name(), events.SkipNoImage, fmt.Sprintf("Image unreachable: %v", err))
	}
	if !ok {
		return fail(f.Name(), events.SkipNoImage, "Image is not served as an image")
	}
	return pass(f.Name(), "Valid image found")
}
