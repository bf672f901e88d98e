// Package solana holds the small slice of Solana account addressing the gate
// needs: base58 public keys and associated token account derivation.
package solana

import (
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKeyLength is the size of an ed25519 public key / account address.
const PublicKeyLength = 32

var (
	ErrInvalidAddress = errors.New("INVALID_ADDRESS")
	ErrOwnerOffCurve  = errors.New("OWNER_OFF_CURVE")
)

// PublicKey is a 32-byte Solana account address.
type PublicKey [PublicKeyLength]byte

// ParsePublicKey decodes a base58 address. Surrounding whitespace is ignored.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey

	s = strings.TrimSpace(s)
	if s == "" {
		return pk, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != PublicKeyLength {
		return pk, fmt.Errorf("%w: decoded to %d bytes, want %d", ErrInvalidAddress, len(raw), PublicKeyLength)
	}

	copy(pk[:], raw)
	return pk, nil
}

// MustParsePublicKey panics on malformed input. Only for package-level
// constants.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

func (pk PublicKey) Bytes() []byte {
	return pk[:]
}

func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// IsOnCurve reports whether the key decompresses to a valid ed25519 point.
// Program derived addresses are, by construction, never on the curve.
func (pk PublicKey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}

// MarshalText lets a PublicKey be used directly in JSON payloads.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}
