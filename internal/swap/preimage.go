package swap

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/tyler-smith/go-bip39"

	"github.com/klingon-exchange/bridgesync/pkg/helpers"
)

var (
	// ErrPreimageUnavailable means neither a stored preimage nor a
	// derivable seed matches the preimage hash.
	ErrPreimageUnavailable = errors.New("preimage unavailable")

	// ErrPreimageMismatch means a candidate preimage does not hash to
	// the recorded preimage hash.
	ErrPreimageMismatch = errors.New("preimage does not match hash")
)

// VerifyPreimage checks that SHA256(preimage) equals preimageHash.
// Both arguments are hex.
func VerifyPreimage(preimage, preimageHash string) error {
	p, err := helpers.HexToBytes(preimage)
	if err != nil {
		return fmt.Errorf("decode preimage: %w", err)
	}
	h, err := helpers.HexToBytes(preimageHash)
	if err != nil {
		return fmt.Errorf("decode preimage hash: %w", err)
	}
	sum := sha256.Sum256(p)
	if !helpers.ConstantTimeCompare(sum[:], h) {
		return ErrPreimageMismatch
	}
	return nil
}

// DerivePreimageFromSeed recovers a preimage from a BIP-39 mnemonic by
// taking the mnemonic's entropy as the preimage bytes, checked against
// the expected hash.
func DerivePreimageFromSeed(seed, preimageHash string) (string, error) {
	entropy, err := bip39.EntropyFromMnemonic(seed)
	if err != nil {
		return "", fmt.Errorf("decode preimage seed: %w", err)
	}
	preimage := hex.EncodeToString(entropy)
	if err := VerifyPreimage(preimage, preimageHash); err != nil {
		return "", err
	}
	return preimage, nil
}

// ResolvePreimage returns the swap's preimage from whatever local
// material is available: the stored preimage, the claim details, or the
// preimage seed. Candidates that fail the hash check are skipped.
func (s *BridgeSwap) ResolvePreimage() (string, error) {
	if s.Preimage != "" {
		if err := VerifyPreimage(s.Preimage, s.PreimageHash); err == nil {
			return s.Preimage, nil
		}
	}
	if s.ClaimDetails != nil && s.ClaimDetails.Preimage != "" {
		if err := VerifyPreimage(s.ClaimDetails.Preimage, s.PreimageHash); err == nil {
			return s.ClaimDetails.Preimage, nil
		}
	}
	if s.PreimageSeed != "" {
		if preimage, err := DerivePreimageFromSeed(s.PreimageSeed, s.PreimageHash); err == nil {
			return preimage, nil
		}
	}
	return "", ErrPreimageUnavailable
}
