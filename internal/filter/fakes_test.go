package filter

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/services"
	"solana-pool-sniper/internal/solana"
)

var errBoom = errors.New("boom")

type fakeQuotes struct {
	quote *services.Quote
	err   error
	calls int
}

func (f *fakeQuotes) Quote(_ context.Context, _ services.QuoteRequest) (*services.Quote, error) {
	f.calls++
	return f.quote, f.err
}

type fakeMetadata struct {
	meta      *domain.TokenMetadata
	metaErr   error
	doc       *services.OffChainMetadata
	docErr    error
	reachable bool
	imageErr  error
}

func (f *fakeMetadata) Metadata(_ context.Context, _ string) (*domain.TokenMetadata, error) {
	return f.meta, f.metaErr
}

func (f *fakeMetadata) Document(_ context.Context, _ string) (*services.OffChainMetadata, error) {
	return f.doc, f.docErr
}

func (f *fakeMetadata) ImageReachable(_ context.Context, _ string) (bool, error) {
	return f.reachable, f.imageErr
}

type fakeHolders struct {
	c   *services.Concentration
	err error
}

func (f *fakeHolders) GetHolderConcentration(_ context.Context, _ string, _ int) (*services.Concentration, error) {
	return f.c, f.err
}

func testPool() domain.DetectedPool {
	return domain.DetectedPool{
		Variant:    domain.VariantRaydium,
		PoolID:     "pool1",
		BaseMint:   "mint1",
		QuoteMint:  domain.WSOLMint,
		Signature:  "sig1",
		DetectedAt: time.Unix(1_700_000_000, 0),
	}
}

func key(b byte) solana.PublicKey {
	var pk solana.PublicKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func account(owner string, data []byte) *solana.AccountInfo {
	return &solana.AccountInfo{Owner: owner, Data: base64.StdEncoding.EncodeToString(data)}
}

func mintBytes(mintAuth, freezeAuth bool) []byte {
	data := make([]byte, services.MintSize)
	if mintAuth {
		binary.LittleEndian.PutUint32(data[0:], 1)
		data[4] = 1
	}
	data[44] = 6
	data[45] = 1
	if freezeAuth {
		binary.LittleEndian.PutUint32(data[46:], 1)
		data[50] = 1
	}
	return data
}

func token2022Bytes(exts ...services.ExtensionType) []byte {
	data := make([]byte, 166)
	copy(data, mintBytes(false, false))
	data[165] = 1
	for _, e := range exts {
		data = binary.LittleEndian.AppendUint16(data, uint16(e))
		data = binary.LittleEndian.AppendUint16(data, 4)
		data = append(data, 0, 0, 0, 0)
	}
	return data
}

// raydiumPool returns a pool account with the given quote vault and LP mint.
func raydiumPool(quoteVault, lpMint solana.PublicKey) []byte {
	data := make([]byte, 752)
	copy(data[368:], quoteVault[:])
	copy(data[464:], lpMint[:])
	return data
}

func lockerAccount(lpMint solana.PublicKey, endTime int64) []byte {
	data := make([]byte, LockerAccountSize)
	copy(data[8:], lpMint[:])
	binary.LittleEndian.PutUint64(data[48:], uint64(endTime))
	return data
}
