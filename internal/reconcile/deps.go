// Package reconcile resolves the true outcome of bridge swaps whose
// upstream status went stale or ambiguous, by checking on-chain truth:
// BTC address history and EVM lockup registries.
package reconcile

import (
	"context"

	"github.com/klingon-exchange/bridgesync/internal/backend"
	"github.com/klingon-exchange/bridgesync/internal/registry"
	"github.com/klingon-exchange/bridgesync/internal/storage"
	"github.com/klingon-exchange/bridgesync/internal/swap"
	"github.com/klingon-exchange/bridgesync/internal/upstream"
)

// BitcoinIndexer is the slice of backend.Backend reconciliation uses.
type BitcoinIndexer interface {
	GetAddressTxs(ctx context.Context, address string, lastSeenTxID string) ([]backend.Transaction, error)
}

// LockupIndexer is the slice of registry.Service reconciliation uses.
type LockupIndexer interface {
	GetLockup(ctx context.Context, preimageHash string, chainID uint64) (*registry.Lockup, error)
	GetLockupPair(ctx context.Context, preimageHash string, originChainID, destChainID uint64) (*registry.Lockup, *registry.Lockup, error)
	ClaimableAndRefundableLockups(ctx context.Context, address string) (claimable, refundable []*registry.Lockup)
}

// HeightSource supplies current block heights per chain id.
type HeightSource interface {
	BlockHeight(ctx context.Context, chainID uint64) (uint64, error)
}

// SwapLedger is the read side of the local swap store.
type SwapLedger interface {
	SwapsByUser(userID string) ([]*swap.BridgeSwap, error)
	SwapByPreimageHash(userID, preimageHash string) (*swap.BridgeSwap, error)
}

// Store is the write side: update-by-id of status and the relevant
// transaction-hash field.
type Store interface {
	UpdateSwapOutcome(id string, status swap.Status, txField storage.TxField, txID string) error
}

// StatusSource is the upstream swap-status feed.
type StatusSource interface {
	GetSwapStatuses(ctx context.Context, ids []string) (map[string]upstream.SwapStatus, error)
}

// EventSink receives swap-updated notifications for every persisted
// delta. The RPC WebSocket hub satisfies it.
type EventSink interface {
	BroadcastSwapUpdate(sw *swap.BridgeSwap)
}
