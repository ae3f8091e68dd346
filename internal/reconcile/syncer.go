package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/klingon-exchange/bridgesync/internal/storage"
	"github.com/klingon-exchange/bridgesync/internal/swap"
	"github.com/klingon-exchange/bridgesync/internal/upstream"
	"github.com/klingon-exchange/bridgesync/pkg/logging"
)

// Syncer resynchronizes local swap statuses against the upstream feed
// and runs the fixer chain over records that stay suspicious, before
// swap data is served.
type Syncer struct {
	ledger SwapLedger
	store  Store
	source StatusSource
	chain  *Chain
	events EventSink
	log    *logging.Logger
}

// NewSyncer creates a status syncer. events may be nil.
func NewSyncer(ledger SwapLedger, store Store, source StatusSource, chain *Chain, events EventSink, log *logging.Logger) *Syncer {
	if log == nil {
		log = logging.GetDefault()
	}
	return &Syncer{
		ledger: ledger,
		store:  store,
		source: source,
		chain:  chain,
		events: events,
		log:    log.Component("syncer"),
	}
}

// Sync reconciles all of a user's swaps and returns them with resolved
// statuses. Only swaps whose status actually changed are persisted and
// broadcast. An unreachable upstream degrades to local reconciliation;
// only ledger and persistence failures surface as errors.
func (s *Syncer) Sync(ctx context.Context, userID string) ([]*swap.BridgeSwap, error) {
	passID := uuid.New().String()

	swaps, err := s.ledger.SwapsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("load swaps: %w", err)
	}
	if len(swaps) == 0 {
		return nil, nil
	}

	stored := make(map[string]swap.Status, len(swaps))
	for _, sw := range swaps {
		stored[sw.ID] = sw.Status
	}

	swaps = s.applyUpstream(ctx, passID, swaps)

	// Feed records that are still in flight, or whose shape matches a
	// fixer trigger (stale terminal statuses like swap.expired), back
	// through the chain.
	var candidates []*swap.BridgeSwap
	idx := make([]int, 0, len(swaps))
	for i, sw := range swaps {
		if sw.Status.IsTerminal() && !s.chain.Triggers(sw) {
			continue
		}
		candidates = append(candidates, sw)
		idx = append(idx, i)
	}

	if len(candidates) > 0 {
		fixed := s.chain.Reconcile(ctx, candidates)
		for j, i := range idx {
			swaps[i] = fixed[j]
		}
	}

	for _, sw := range swaps {
		if sw.Status == stored[sw.ID] {
			continue
		}

		txField, txID := outcomeTx(sw)
		if err := s.store.UpdateSwapOutcome(sw.ID, sw.Status, txField, txID); err != nil {
			return nil, fmt.Errorf("persist swap %s: %w", sw.ID, err)
		}

		s.log.Info("swap status updated", "pass", passID, "swap", sw.ID,
			"from", stored[sw.ID], "to", sw.Status)

		if s.events != nil {
			s.events.BroadcastSwapUpdate(sw)
		}
	}

	return swaps, nil
}

// applyUpstream pulls the upstream status for every swap that is not
// locally terminal and applies transitions the state machine allows.
func (s *Syncer) applyUpstream(ctx context.Context, passID string, swaps []*swap.BridgeSwap) []*swap.BridgeSwap {
	var ids []string
	for _, sw := range swaps {
		if !sw.Status.IsLocalTerminal() {
			ids = append(ids, sw.ID)
		}
	}
	if len(ids) == 0 {
		return swaps
	}

	statuses, err := s.source.GetSwapStatuses(ctx, ids)
	if err != nil {
		// Stale local data self-heals on the next pass.
		s.log.Warn("upstream unavailable, reconciling with local data",
			"pass", passID, "error", err)
		return swaps
	}

	out := make([]*swap.BridgeSwap, len(swaps))
	for i, sw := range swaps {
		st, ok := statuses[sw.ID]
		if !ok || st.Status == sw.Status || !swap.CanTransition(sw.Status, st.Status) {
			out[i] = sw
			continue
		}

		updated := sw.Clone()
		updated.Status = st.Status
		if st.Transaction != nil && st.Transaction.ID != "" {
			setStatusTx(updated, st.Status, st.Transaction.ID)
		}
		out[i] = updated
	}
	return out
}

// setStatusTx records the transaction the upstream associates with a
// status in the field that status speaks about.
func setStatusTx(sw *swap.BridgeSwap, status swap.Status, txID string) {
	switch status {
	case swap.StatusTxClaimed, swap.StatusClaimPending, swap.StatusInvoiceSettled:
		sw.ClaimTx = txID
	case swap.StatusTxRefunded:
		sw.RefundTx = txID
	default:
		sw.LockupTx = txID
	}
}

// outcomeTx picks the tx-hash column a resolved status should persist
// alongside itself.
func outcomeTx(sw *swap.BridgeSwap) (storage.TxField, string) {
	switch sw.Status {
	case swap.StatusUserClaimed, swap.StatusTxClaimed, swap.StatusInvoiceSettled:
		if sw.ClaimTx != "" {
			return storage.TxFieldClaim, sw.ClaimTx
		}
	case swap.StatusUserRefunded, swap.StatusTxRefunded:
		if sw.RefundTx != "" {
			return storage.TxFieldRefund, sw.RefundTx
		}
	case swap.StatusLockupFailed, swap.StatusMempool, swap.StatusConfirmed:
		if sw.LockupTx != "" {
			return storage.TxFieldLockup, sw.LockupTx
		}
	}
	return storage.TxFieldNone, ""
}

var _ StatusSource = (*upstream.Client)(nil)
