package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// Well-known program ids.
var (
	TokenProgramID                  = MustParsePublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	Token2022ProgramID              = MustParsePublicKey("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	AssociatedTokenAccountProgramID = MustParsePublicKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

const (
	maxSeeds      = 16
	maxSeedLength = 32
	pdaMarker     = "ProgramDerivedAddress"
)

var errNoViableBump = errors.New("unable to find a viable program address bump seed")

// CreateProgramAddress hashes seeds under programID. The result is rejected
// when it lands on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	if len(seeds) > maxSeeds {
		return PublicKey{}, fmt.Errorf("too many seeds: %d", len(seeds))
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return PublicKey{}, fmt.Errorf("seed exceeds %d bytes", maxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var pk PublicKey
	copy(pk[:], h.Sum(nil))
	if pk.IsOnCurve() {
		return PublicKey{}, errors.New("derived address is on the ed25519 curve")
	}
	return pk, nil
}

// FindProgramAddress searches bump seeds from 255 downwards and returns the
// first off-curve address along with its bump.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		pk, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return pk, uint8(bump), nil
		}
	}
	return PublicKey{}, 0, errNoViableBump
}

// FindAssociatedTokenAddress derives the canonical token account holding mint
// for wallet. Off-curve owners (PDAs) are refused.
func FindAssociatedTokenAddress(wallet, mint, tokenProgram PublicKey) (PublicKey, error) {
	if !wallet.IsOnCurve() {
		return PublicKey{}, fmt.Errorf("%w: %s", ErrOwnerOffCurve, wallet)
	}
	if tokenProgram.IsZero() {
		tokenProgram = TokenProgramID
	}

	ata, _, err := FindProgramAddress(
		[][]byte{wallet[:], tokenProgram[:], mint[:]},
		AssociatedTokenAccountProgramID,
	)
	if err != nil {
		return PublicKey{}, err
	}
	return ata, nil
}
