package solana

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-pool-sniper/internal/domain"
)

// PublicKeySize is the length of a Solana address in bytes.
const PublicKeySize = 32

// MaxSeedLength is the longest seed accepted by program address derivation.
const MaxSeedLength = 32

var pdaMarker = []byte("ProgramDerivedAddress")

// ErrOnCurve is returned when seeds hash to a valid ed25519 point.
var ErrOnCurve = errors.New("invalid seeds, address must fall off the curve")

// PublicKey is a 32 byte Solana address.
type PublicKey [PublicKeySize]byte

// String returns the base58 form.
func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// IsZero reports whether every byte is zero.
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

// Equals compares two keys.
func (p PublicKey) Equals(o PublicKey) bool {
	return bytes.Equal(p[:], o[:])
}

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("decode pubkey %q: %w", s, err)
	}
	if len(raw) != PublicKeySize {
		return pk, fmt.Errorf("decode pubkey %q: got %d bytes", s, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustPublicKey is ParsePublicKey for compile-time constants.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes reads a key at offset, returning false when data is too short.
func PublicKeyFromBytes(data []byte, offset int) (PublicKey, bool) {
	var pk PublicKey
	if offset < 0 || offset+PublicKeySize > len(data) {
		return pk, false
	}
	copy(pk[:], data[offset:offset+PublicKeySize])
	return pk, true
}

// CreateProgramAddress derives an address from seeds that already include the bump.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	var data []byte
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return PublicKey{}, fmt.Errorf("seed length %d exceeds %d", len(seed), MaxSeedLength)
		}
		data = append(data, seed...)
	}
	data = append(data, programID[:]...)
	data = append(data, pdaMarker...)

	hash := sha256.Sum256(data)
	if isOnCurve(hash[:]) {
		return PublicKey{}, ErrOnCurve
	}
	return PublicKey(hash), nil
}

// FindProgramAddress searches bumps from 255 down for the first off-curve address.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return PublicKey{}, 0, err
		}
	}
	return PublicKey{}, 0, fmt.Errorf("no viable bump for program %s", programID)
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// MetadataPDA returns the Metaplex metadata account of a mint.
func MetadataPDA(mint PublicKey) (PublicKey, error) {
	program := MustPublicKey(domain.MetaplexProgramID)
	addr, _, err := FindProgramAddress([][]byte{[]byte("metadata"), program[:], mint[:]}, program)
	return addr, err
}

// AssociatedTokenAddress returns the ATA of owner for mint under the classic token program.
func AssociatedTokenAddress(owner, mint PublicKey) (PublicKey, error) {
	tokenProgram := MustPublicKey(domain.TokenProgramID)
	ataProgram := MustPublicKey(domain.AssociatedTokenID)
	addr, _, err := FindProgramAddress([][]byte{owner[:], tokenProgram[:], mint[:]}, ataProgram)
	return addr, err
}
