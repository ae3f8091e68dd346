package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/klingon-exchange/bridgesync/internal/asset"
	"github.com/klingon-exchange/bridgesync/internal/registry"
	"github.com/klingon-exchange/bridgesync/internal/swap"
	"github.com/klingon-exchange/bridgesync/pkg/logging"
)

// Deps are the collaborators the default fixers query.
type Deps struct {
	Bitcoin BitcoinIndexer
	Lockups LockupIndexer
	Network *chaincfg.Params
	Log     *logging.Logger
}

// NewDefaultChain builds the production fixer chain. Order is the
// resolution priority; the first fixer that changes a swap wins.
func NewDefaultChain(deps Deps) *Chain {
	fixers := []Fixer{
		claimPendingFixer(deps),
		bridgeOutExpiredFixer(deps),
		lockupFailedFixer(deps),
		bridgeInExpiredFixer(deps),
		erc20ExpiredFixer(deps),
		submarineClaimPendingFixer(),
	}
	return NewChain(fixers, deps.Log)
}

// claimPendingFixer resolves cBTC->BTC swaps stuck in
// transaction.claim.pending by inspecting the BTC lockup address
// history for a claim-leaf spend.
func claimPendingFixer(deps Deps) Fixer {
	return Fixer{
		Name: "claim-pending",
		Applies: func(s *swap.BridgeSwap) bool {
			return s.Type != swap.TypeSubmarine &&
				s.AssetSend == string(asset.CBTC) &&
				s.AssetReceive == string(asset.BTC) &&
				s.Status == swap.StatusClaimPending &&
				hasClaimShape(s.ClaimDetails, deps.Network)
		},
		Resolve: func(ctx context.Context, s *swap.BridgeSwap) (*swap.BridgeSwap, error) {
			return resolveByClaimLeaf(ctx, deps, s)
		},
	}
}

// bridgeOutExpiredFixer resolves expired cBTC->BTC chain swaps through
// the settlement-chain lockup registry, falling back to the BTC claim
// search when the lockup is still open.
func bridgeOutExpiredFixer(deps Deps) Fixer {
	return Fixer{
		Name: "bridge-out-expired",
		Applies: func(s *swap.BridgeSwap) bool {
			return s.Type == swap.TypeChain &&
				s.AssetSend == string(asset.CBTC) &&
				s.AssetReceive == string(asset.BTC) &&
				s.Status == swap.StatusExpired &&
				s.PreimageHash != ""
		},
		Resolve: func(ctx context.Context, s *swap.BridgeSwap) (*swap.BridgeSwap, error) {
			chainID, ok := asset.SettlementChain(asset.CBTC)
			if !ok {
				return s, fmt.Errorf("no settlement chain for %s", asset.CBTC)
			}

			lockup, err := deps.Lockups.GetLockup(ctx, s.PreimageHash, chainID)
			if errors.Is(err, registry.ErrLockupNotFound) {
				// Funds were never locked on the settlement chain.
				s.Status = swap.StatusUserAbandoned
				return s, nil
			}
			if err != nil {
				return s, err
			}

			if lockup.Refunded {
				s.Status = swap.StatusUserRefunded
				s.RefundTx = lockup.RefundTxHash
				return s, nil
			}

			if hasClaimShape(s.ClaimDetails, deps.Network) {
				return resolveByClaimLeaf(ctx, deps, s)
			}
			return s, nil
		},
	}
}

// lockupFailedFixer resolves BTC->cBTC swaps the upstream marked
// transaction.lockupFailed: the BTC-side HTLC may in fact have been
// funded and later refunded or claimed.
func lockupFailedFixer(deps Deps) Fixer {
	return Fixer{
		Name: "lockup-failed",
		Applies: func(s *swap.BridgeSwap) bool {
			return s.AssetSend == string(asset.BTC) &&
				s.AssetReceive == string(asset.CBTC) &&
				s.Status == swap.StatusLockupFailed &&
				hasRefundShape(s.LockupDetails, deps.Network)
		},
		Resolve: func(ctx context.Context, s *swap.BridgeSwap) (*swap.BridgeSwap, error) {
			return resolveByRefundLeaf(ctx, deps, s)
		},
	}
}

// bridgeInExpiredFixer resolves expired BTC->cBTC chain swaps the same
// way as the lockup-failed fixer.
func bridgeInExpiredFixer(deps Deps) Fixer {
	return Fixer{
		Name: "bridge-in-expired",
		Applies: func(s *swap.BridgeSwap) bool {
			return s.Type == swap.TypeChain &&
				s.AssetSend == string(asset.BTC) &&
				s.AssetReceive == string(asset.CBTC) &&
				s.Status == swap.StatusExpired &&
				hasRefundShape(s.LockupDetails, deps.Network)
		},
		Resolve: func(ctx context.Context, s *swap.BridgeSwap) (*swap.BridgeSwap, error) {
			return resolveByRefundLeaf(ctx, deps, s)
		},
	}
}

// erc20ExpiredFixer resolves expired ERC20<->ERC20 chain swaps from the
// origin and destination lockup registries.
func erc20ExpiredFixer(deps Deps) Fixer {
	return Fixer{
		Name: "erc20-expired",
		Applies: func(s *swap.BridgeSwap) bool {
			return s.Type == swap.TypeChain &&
				s.Status == swap.StatusExpired &&
				asset.IsBridgedERC20(asset.Tag(s.AssetSend)) &&
				asset.IsBridgedERC20(asset.Tag(s.AssetReceive)) &&
				s.ClaimDetails != nil && s.LockupDetails != nil &&
				s.PreimageHash != ""
		},
		Resolve: func(ctx context.Context, s *swap.BridgeSwap) (*swap.BridgeSwap, error) {
			originChain, ok := asset.SettlementChain(asset.Tag(s.AssetSend))
			if !ok {
				return s, fmt.Errorf("no settlement chain for %s", s.AssetSend)
			}
			destChain, ok := asset.SettlementChain(asset.Tag(s.AssetReceive))
			if !ok {
				return s, fmt.Errorf("no settlement chain for %s", s.AssetReceive)
			}

			origin, dest, err := deps.Lockups.GetLockupPair(ctx, s.PreimageHash, originChain, destChain)
			if err != nil {
				return s, err
			}

			switch {
			case origin == nil:
				s.Status = swap.StatusUserAbandoned
			case origin.Refunded:
				s.Status = swap.StatusUserRefunded
				s.RefundTx = origin.RefundTxHash
			case dest != nil && dest.Claimed:
				s.Status = swap.StatusUserClaimed
				s.ClaimTx = dest.ClaimTxHash
			case !origin.Claimed && (dest == nil || dest.Refunded):
				// Origin funds are stuck; the user can take them back.
				s.Status = swap.StatusUserRefundable
			}
			return s, nil
		},
	}
}

// submarineClaimPendingFixer resolves submarine cBTC->BTC swaps stuck
// in transaction.claim.pending unconditionally: settlement of this leg
// is guaranteed by the upstream Lightning service's own success signal.
func submarineClaimPendingFixer() Fixer {
	return Fixer{
		Name: "submarine-claim-pending",
		Applies: func(s *swap.BridgeSwap) bool {
			return s.Type == swap.TypeSubmarine &&
				s.AssetSend == string(asset.CBTC) &&
				s.AssetReceive == string(asset.BTC) &&
				s.Status == swap.StatusClaimPending
		},
		Resolve: func(ctx context.Context, s *swap.BridgeSwap) (*swap.BridgeSwap, error) {
			s.Status = swap.StatusUserClaimed
			return s, nil
		},
	}
}

// hasClaimShape checks the detail blob for a usable lockup address and
// claim leaf. A missing or malformed shape means the fixer does not
// apply.
func hasClaimShape(d *swap.ClaimDetails, params *chaincfg.Params) bool {
	return d != nil &&
		validLockupAddress(d.LockupAddress, params) &&
		validLeafScript(d.ClaimLeaf)
}

// hasRefundShape checks the detail blob for a usable lockup address and
// refund leaf.
func hasRefundShape(d *swap.LockupDetails, params *chaincfg.Params) bool {
	return d != nil &&
		validLockupAddress(d.LockupAddress, params) &&
		validLeafScript(d.RefundLeaf)
}

// resolveByClaimLeaf searches the BTC lockup address history for a
// claim-leaf spend. No history at all means nobody ever funded the
// lockup.
func resolveByClaimLeaf(ctx context.Context, deps Deps, s *swap.BridgeSwap) (*swap.BridgeSwap, error) {
	txs, err := deps.Bitcoin.GetAddressTxs(ctx, s.ClaimDetails.LockupAddress, "")
	if err != nil {
		return s, err
	}

	if len(txs) == 0 {
		s.Status = swap.StatusUserAbandoned
		return s, nil
	}

	if txID, ok := findLeafSpend(txs, s.ClaimDetails.ClaimLeaf); ok {
		s.Status = swap.StatusUserClaimed
		s.ClaimTx = txID
	}
	return s, nil
}

// resolveByRefundLeaf searches the BTC lockup address history for a
// refund-leaf spend, then falls back to the EVM registry: a claimed
// lockup on the destination chain means the swap in fact completed.
func resolveByRefundLeaf(ctx context.Context, deps Deps, s *swap.BridgeSwap) (*swap.BridgeSwap, error) {
	txs, err := deps.Bitcoin.GetAddressTxs(ctx, s.LockupDetails.LockupAddress, "")
	if err != nil {
		return s, err
	}

	if len(txs) == 0 {
		s.Status = swap.StatusUserAbandoned
		return s, nil
	}

	if txID, ok := findLeafSpend(txs, s.LockupDetails.RefundLeaf); ok {
		s.Status = swap.StatusUserRefunded
		s.RefundTx = txID
		return s, nil
	}

	if s.PreimageHash != "" {
		chainID, ok := asset.SettlementChain(asset.CBTC)
		if !ok {
			return s, nil
		}
		lockup, err := deps.Lockups.GetLockup(ctx, s.PreimageHash, chainID)
		if errors.Is(err, registry.ErrLockupNotFound) {
			return s, nil
		}
		if err != nil {
			return s, err
		}
		if lockup.Claimed {
			s.Status = swap.StatusUserClaimed
			s.ClaimTx = lockup.ClaimTxHash
		}
	}
	return s, nil
}
