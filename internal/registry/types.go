// Package registry provides read-only clients for the EVM lockup
// registry contracts. A lockup is the on-chain HTLC record keyed by
// preimage hash; reconciliation reads them, it never writes.
package registry

import (
	"errors"
	"math/big"
)

var (
	// ErrLockupNotFound means no lockup exists for the preimage hash on
	// the queried chain. Callers treat this as signal, not failure.
	ErrLockupNotFound = errors.New("lockup not found")

	// ErrChainNotConfigured means no registry client exists for the
	// requested chain id.
	ErrChainNotConfigured = errors.New("chain not configured")
)

// Lockup is one HTLC record in a lockup registry.
type Lockup struct {
	PreimageHash  string   `json:"preimageHash"`
	ChainID       uint64   `json:"chainId"`
	ClaimAddress  string   `json:"claimAddress"`
	RefundAddress string   `json:"refundAddress"`
	Amount        *big.Int `json:"amount"`

	// Timelock is the block height after which the refund path opens.
	Timelock uint64 `json:"timelock"`

	Claimed  bool `json:"claimed"`
	Refunded bool `json:"refunded"`

	// Transaction hashes recovered from registry events, empty when the
	// corresponding event was not found.
	ClaimTxHash  string `json:"claimTxHash,omitempty"`
	RefundTxHash string `json:"refundTxHash,omitempty"`

	// KnownPreimage is the preimage revealed by a claim, hex, empty
	// until someone claims.
	KnownPreimage string `json:"knownPreimage,omitempty"`
}

// Settled returns true once either terminal path was taken.
func (l *Lockup) Settled() bool {
	return l.Claimed || l.Refunded
}
