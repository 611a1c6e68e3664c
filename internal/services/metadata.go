package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

// DefaultIPFSGateway resolves ipfs:// image links.
const DefaultIPFSGateway = "https://ipfs.io/ipfs/"

// maxDocumentSize bounds off-chain JSON reads.
const maxDocumentSize = 1 << 20

// ErrMalformedMetadata is returned for metadata accounts that do not decode.
var ErrMalformedMetadata = errors.New("malformed metadata account")

// socialKeys are the top-level off-chain fields counted as social links.
var socialKeys = []string{"twitter", "telegram", "discord", "github", "medium", "website"}

// AccountReader reads raw account data.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
}

// OffChainMetadata is the JSON document referenced by the metadata URI.
type OffChainMetadata struct {
	Image      string
	Socials    map[string]string
	Extensions map[string]string
}

// SocialLinks counts non-empty social fields, extension values included.
func (m *OffChainMetadata) SocialLinks() int {
	if m == nil {
		return 0
	}
	n := 0
	for _, v := range m.Socials {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	for _, v := range m.Extensions {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// MetadataService resolves token metadata.
type MetadataService interface {
	// Metadata returns the on-chain record, or nil when the mint has none.
	Metadata(ctx context.Context, mint string) (*domain.TokenMetadata, error)
	// Document fetches the off-chain JSON at uri.
	Document(ctx context.Context, uri string) (*OffChainMetadata, error)
	// ImageReachable reports whether url answers with an image content type.
	ImageReachable(ctx context.Context, url string) (bool, error)
}

// MetaplexService implements MetadataService with the Metaplex metadata PDA
// and plain HTTP for off-chain documents.
type MetaplexService struct {
	accounts AccountReader
	client   *http.Client
	gateway  string
	logger   *log.Logger
}

// MetaplexOptions configures MetaplexService.
type MetaplexOptions struct {
	HTTPClient  *http.Client
	IPFSGateway string
	Logger      *log.Logger
}

// NewMetaplexService creates a metadata service.
func NewMetaplexService(accounts AccountReader, opts MetaplexOptions) *MetaplexService {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if opts.IPFSGateway == "" {
		opts.IPFSGateway = DefaultIPFSGateway
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &MetaplexService{
		accounts: accounts,
		client:   opts.HTTPClient,
		gateway:  opts.IPFSGateway,
		logger:   opts.Logger,
	}
}

// Metadata reads and decodes the metadata PDA of mint.
func (s *MetaplexService) Metadata(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	mintKey, err := solana.ParsePublicKey(mint)
	if err != nil {
		return nil, fmt.Errorf("parse mint: %w", err)
	}
	pda, err := solana.MetadataPDA(mintKey)
	if err != nil {
		return nil, fmt.Errorf("metadata pda: %w", err)
	}

	info, err := s.accounts.GetAccountInfo(ctx, pda.String())
	if err != nil {
		return nil, fmt.Errorf("get metadata account: %w", err)
	}
	data, err := info.Bytes()
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	md, err := DecodeMetadata(data)
	if err != nil {
		return nil, err
	}
	md.Mint = mint
	return md, nil
}

// Document fetches and parses the off-chain JSON document.
func (s *MetaplexService) Document(ctx context.Context, uri string) (*OffChainMetadata, error) {
	if uri == "" {
		return nil, errors.New("empty metadata uri")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.resolve(uri), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	return ParseDocument(body)
}

// ImageReachable issues a HEAD request against url.
func (s *MetaplexService) ImageReachable(ctx context.Context, url string) (bool, error) {
	if !IsImageURL(url) {
		return false, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.resolve(url), nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("head %s: %w", url, err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Printf("[metadata] image %s: status %d", url, resp.StatusCode)
		return false, nil
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	return strings.HasPrefix(ct, "image/") || strings.Contains(ct, "gif"), nil
}

func (s *MetaplexService) resolve(uri string) string {
	if rest, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return s.gateway + strings.TrimPrefix(rest, "ipfs/")
	}
	return uri
}

// IsImageURL accepts http, https and ipfs links.
func IsImageURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "ipfs://")
}

// ParseDocument extracts the image and social links from an off-chain document.
// Non-string values are ignored.
func ParseDocument(body []byte) (*OffChainMetadata, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}

	doc := &OffChainMetadata{
		Socials:    make(map[string]string),
		Extensions: make(map[string]string),
	}
	str := func(msg json.RawMessage) (string, bool) {
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return "", false
		}
		return s, true
	}

	if v, ok := raw["image"]; ok {
		doc.Image, _ = str(v)
	}
	for _, k := range socialKeys {
		if v, ok := raw[k]; ok {
			if s, ok := str(v); ok {
				doc.Socials[k] = s
			}
		}
	}
	if ext, ok := raw["extensions"]; ok {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(ext, &fields); err == nil {
			for k, v := range fields {
				if s, ok := str(v); ok {
					doc.Extensions[k] = s
				}
			}
		}
	}
	return doc, nil
}

// DecodeMetadata decodes the head of a Metaplex metadata account:
// key, update authority, mint, name, symbol, uri, seller fee, creators,
// primary sale flag and mutability flag.
func DecodeMetadata(data []byte) (*domain.TokenMetadata, error) {
	r := &borshReader{data: data, off: 1 + 32 + 32}

	name, err := r.string()
	if err != nil {
		return nil, err
	}
	symbol, err := r.string()
	if err != nil {
		return nil, err
	}
	uri, err := r.string()
	if err != nil {
		return nil, err
	}
	if err := r.skip(2); err != nil { // seller fee bps
		return nil, err
	}

	hasCreators, err := r.u8()
	if err != nil {
		return nil, err
	}
	if hasCreators == 1 {
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		if err := r.skip(int(n) * 34); err != nil {
			return nil, err
		}
	}
	if err := r.skip(1); err != nil { // primary sale happened
		return nil, err
	}
	mutable, err := r.u8()
	if err != nil {
		return nil, err
	}

	return &domain.TokenMetadata{
		Name:      cleanString(name),
		Symbol:    cleanString(symbol),
		URI:       cleanString(uri),
		IsMutable: mutable != 0,
	}, nil
}

// cleanString strips the NUL padding Metaplex stores in fixed-width fields.
func cleanString(s string) string {
	return strings.TrimSpace(string(bytes.TrimRight([]byte(s), "\x00")))
}

type borshReader struct {
	data []byte
	off  int
}

func (r *borshReader) need(n int) error {
	if n < 0 || r.off+n > len(r.data) {
		return fmt.Errorf("%w: need %d bytes at %d, have %d", ErrMalformedMetadata, n, r.off, len(r.data))
	}
	return nil
}

func (r *borshReader) skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.off += n
	return nil
}

func (r *borshReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *borshReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *borshReader) string() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.data[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

var _ MetadataService = (*MetaplexService)(nil)
