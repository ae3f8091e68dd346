package reconcile

import (
	"context"
	"errors"
	"sync"

	"github.com/klingon-exchange/bridgesync/internal/registry"
	"github.com/klingon-exchange/bridgesync/internal/storage"
	"github.com/klingon-exchange/bridgesync/pkg/logging"
)

// ClaimableLockup is a lockup together with the preimage that unlocks
// it.
type ClaimableLockup struct {
	*registry.Lockup
	Preimage string `json:"preimage"`
}

// ActionableLockups is the calculator's result: what the user can act
// on right now, and what is still timelocked.
type ActionableLockups struct {
	ReadyToClaim  []ClaimableLockup  `json:"readyToClaim"`
	ReadyToRefund []*registry.Lockup `json:"readyToRefund"`
	WaitUnlock    []*registry.Lockup `json:"waitUnlock"`
}

// Calculator computes claimable and refundable lockups per user.
// Read-only; it never mutates swaps or lockups.
type Calculator struct {
	lockups LockupIndexer
	ledger  SwapLedger
	heights HeightSource
	log     *logging.Logger
}

// NewCalculator creates a claim/refund calculator.
func NewCalculator(lockups LockupIndexer, ledger SwapLedger, heights HeightSource, log *logging.Logger) *Calculator {
	if log == nil {
		log = logging.GetDefault()
	}
	return &Calculator{
		lockups: lockups,
		ledger:  ledger,
		heights: heights,
		log:     log.Component("calculator"),
	}
}

// Compute returns the user's actionable lockups. Claim candidates
// without a resolvable preimage are dropped; refund candidates on a
// chain whose height lookup failed are excluded from both buckets.
func (c *Calculator) Compute(ctx context.Context, userID string) *ActionableLockups {
	claimable, refundable := c.lockups.ClaimableAndRefundableLockups(ctx, userID)

	result := &ActionableLockups{}

	for _, lockup := range claimable {
		if lockup.Refunded {
			continue
		}
		preimage, ok := c.resolvePreimage(userID, lockup)
		if !ok {
			c.log.Debug("dropping claim candidate without preimage",
				"user", userID, "preimageHash", lockup.PreimageHash)
			continue
		}
		result.ReadyToClaim = append(result.ReadyToClaim, ClaimableLockup{
			Lockup:   lockup,
			Preimage: preimage,
		})
	}

	heights := c.fetchHeights(ctx, refundable)
	for _, lockup := range refundable {
		if lockup.Claimed || lockup.Refunded {
			continue
		}
		height, ok := heights[lockup.ChainID]
		if !ok {
			// Height lookup failed for this chain; neither bucket.
			continue
		}
		if lockup.Timelock < height {
			result.ReadyToRefund = append(result.ReadyToRefund, lockup)
		} else {
			// Equality still waits: refund opens strictly after the
			// timelock height.
			result.WaitUnlock = append(result.WaitUnlock, lockup)
		}
	}

	return result
}

// resolvePreimage finds the secret for a claim candidate: the registry
// may already know it from a claim on the other leg, otherwise the
// local swap row with the same preimage hash can hold or derive it.
func (c *Calculator) resolvePreimage(userID string, lockup *registry.Lockup) (string, bool) {
	if lockup.KnownPreimage != "" {
		return lockup.KnownPreimage, true
	}

	sw, err := c.ledger.SwapByPreimageHash(userID, lockup.PreimageHash)
	if err != nil {
		if !errors.Is(err, storage.ErrSwapNotFound) {
			c.log.Warn("swap lookup failed", "user", userID,
				"preimageHash", lockup.PreimageHash, "error", err)
		}
		return "", false
	}

	preimage, err := sw.ResolvePreimage()
	if err != nil {
		return "", false
	}
	return preimage, true
}

// fetchHeights resolves current block height once per distinct chain,
// concurrently. A failed chain is absent from the result.
func (c *Calculator) fetchHeights(ctx context.Context, lockups []*registry.Lockup) map[uint64]uint64 {
	chains := make(map[uint64]struct{})
	for _, l := range lockups {
		chains[l.ChainID] = struct{}{}
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	heights := make(map[uint64]uint64, len(chains))

	for chainID := range chains {
		wg.Add(1)
		go func(chainID uint64) {
			defer wg.Done()

			height, err := c.heights.BlockHeight(ctx, chainID)
			if err != nil {
				c.log.Warn("height lookup failed", "chain", chainID, "error", err)
				return
			}

			mu.Lock()
			heights[chainID] = height
			mu.Unlock()
		}(chainID)
	}
	wg.Wait()

	return heights
}
