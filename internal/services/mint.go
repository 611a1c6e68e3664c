package services

import (
	"encoding/binary"
	"errors"
	"fmt"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/solana"
)

// SPL mint layout.
const (
	MintSize              = 82
	tokenAccountSize      = 165
	accountTypeMint       = 1
	offMintAuthorityOpt   = 0
	offMintAuthority      = 4
	offMintSupply         = 36
	offMintDecimals       = 44
	offMintInitialized    = 45
	offFreezeAuthorityOpt = 46
	offFreezeAuthority    = 50
)

// ErrNotMint is returned for account data that is not an SPL mint.
var ErrNotMint = errors.New("not a mint account")

// ExtensionType is a Token-2022 extension discriminant.
type ExtensionType uint16

// Token-2022 extension types.
const (
	ExtUninitialized                 ExtensionType = 0
	ExtTransferFeeConfig             ExtensionType = 1
	ExtTransferFeeAmount             ExtensionType = 2
	ExtMintCloseAuthority            ExtensionType = 3
	ExtConfidentialTransferMint      ExtensionType = 4
	ExtConfidentialTransferAccount   ExtensionType = 5
	ExtDefaultAccountState           ExtensionType = 6
	ExtImmutableOwner                ExtensionType = 7
	ExtMemoTransfer                  ExtensionType = 8
	ExtNonTransferable               ExtensionType = 9
	ExtInterestBearingConfig         ExtensionType = 10
	ExtCPIGuard                      ExtensionType = 11
	ExtPermanentDelegate             ExtensionType = 12
	ExtNonTransferableAccount        ExtensionType = 13
	ExtTransferHook                  ExtensionType = 14
	ExtTransferHookAccount           ExtensionType = 15
	ExtConfidentialTransferFeeConfig ExtensionType = 16
	ExtConfidentialTransferFeeAmount ExtensionType = 17
	ExtMetadataPointer               ExtensionType = 18
	ExtTokenMetadata                 ExtensionType = 19
	ExtGroupPointer                  ExtensionType = 20
	ExtTokenGroup                    ExtensionType = 21
	ExtGroupMemberPointer            ExtensionType = 22
	ExtTokenGroupMember              ExtensionType = 23
	ExtConfidentialMintBurn          ExtensionType = 24
	ExtScaledUIAmount                ExtensionType = 25
	ExtPausable                      ExtensionType = 26
)

var extensionNames = map[ExtensionType]string{
	ExtTransferFeeConfig:             "transfer_fee",
	ExtTransferFeeAmount:             "transfer_fee_amount",
	ExtMintCloseAuthority:            "mint_close_authority",
	ExtConfidentialTransferMint:      "confidential_transfer",
	ExtConfidentialTransferAccount:   "confidential_transfer_account",
	ExtDefaultAccountState:           "default_account_state",
	ExtImmutableOwner:                "immutable_owner",
	ExtMemoTransfer:                  "memo_transfer",
	ExtNonTransferable:               "non_transferable",
	ExtInterestBearingConfig:         "interest_bearing",
	ExtCPIGuard:                      "cpi_guard",
	ExtPermanentDelegate:             "permanent_delegate",
	ExtNonTransferableAccount:        "non_transferable_account",
	ExtTransferHook:                  "transfer_hook",
	ExtTransferHookAccount:           "transfer_hook_account",
	ExtConfidentialTransferFeeConfig: "confidential_transfer_fee",
	ExtConfidentialTransferFeeAmount: "confidential_transfer_fee_amount",
	ExtMetadataPointer:               "metadata_pointer",
	ExtTokenMetadata:                 "token_metadata",
	ExtGroupPointer:                  "group_pointer",
	ExtTokenGroup:                    "token_group",
	ExtGroupMemberPointer:            "group_member_pointer",
	ExtTokenGroupMember:              "token_group_member",
	ExtConfidentialMintBurn:          "confidential_mint_burn",
	ExtScaledUIAmount:                "scaled_ui_amount",
	ExtPausable:                      "pausable",
}

// String returns the snake_case extension name.
func (e ExtensionType) String() string {
	if n, ok := extensionNames[e]; ok {
		return n
	}
	return fmt.Sprintf("extension_%d", uint16(e))
}

// Mint is a decoded SPL or Token-2022 mint.
type Mint struct {
	MintAuthority   *solana.PublicKey
	FreezeAuthority *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	Initialized     bool
	Token2022       bool
	Extensions      []ExtensionType
}

// Renounced reports whether both authorities are unset.
func (m *Mint) Renounced() bool {
	return m.MintAuthority == nil && m.FreezeAuthority == nil
}

// HasExtension reports whether ext is present.
func (m *Mint) HasExtension(ext ExtensionType) bool {
	for _, e := range m.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// DecodeMint decodes a mint account owned by owner. Extensions are parsed only
// for Token-2022 mints.
func DecodeMint(owner string, data []byte) (*Mint, error) {
	if len(data) < MintSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotMint, len(data))
	}

	m := &Mint{
		Supply:      binary.LittleEndian.Uint64(data[offMintSupply:]),
		Decimals:    data[offMintDecimals],
		Initialized: data[offMintInitialized] != 0,
		Token2022:   owner == domain.Token2022ProgramID,
	}
	m.MintAuthority = optionalKey(data, offMintAuthorityOpt, offMintAuthority)
	m.FreezeAuthority = optionalKey(data, offFreezeAuthorityOpt, offFreezeAuthority)

	if m.Token2022 && len(data) > tokenAccountSize {
		exts, err := parseExtensions(data)
		if err != nil {
			return nil, err
		}
		m.Extensions = exts
	}
	return m, nil
}

func optionalKey(data []byte, tagOff, keyOff int) *solana.PublicKey {
	if binary.LittleEndian.Uint32(data[tagOff:]) == 0 {
		return nil
	}
	pk, ok := solana.PublicKeyFromBytes(data, keyOff)
	if !ok {
		return nil
	}
	return &pk
}

// parseExtensions walks the TLV area after the padded base mint and the
// account type byte.
func parseExtensions(data []byte) ([]ExtensionType, error) {
	if data[tokenAccountSize] != accountTypeMint {
		return nil, fmt.Errorf("%w: account type %d", ErrNotMint, data[tokenAccountSize])
	}

	var exts []ExtensionType
	off := tokenAccountSize + 1
	for off+4 <= len(data) {
		typ := ExtensionType(binary.LittleEndian.Uint16(data[off:]))
		length := int(binary.LittleEndian.Uint16(data[off+2:]))
		if typ == ExtUninitialized {
			break
		}
		off += 4
		if off+length > len(data) {
			return nil, fmt.Errorf("extension %s: truncated (%d of %d bytes)", typ, len(data)-off, length)
		}
		exts = append(exts, typ)
		off += length
	}
	return exts, nil
}
