// Package swap defines the bridge-swap domain model: the swap record,
// its status state machine, and the HTLC detail blobs reconciliation
// inspects. Nothing here talks to the network.
package swap

// Status is the lifecycle status of a bridge swap. Upstream statuses use
// the upstream service's dotted naming; statuses in the user.* namespace
// are produced only by local reconciliation.
type Status string

// Upstream statuses, grouped by bucket.
const (
	// Pending bucket (in-flight).
	StatusCreated         Status = "swap.created"
	StatusMempool         Status = "transaction.mempool"
	StatusConfirmed       Status = "transaction.confirmed"
	StatusInvoiceSet      Status = "invoice.set"
	StatusInvoicePending  Status = "invoice.pending"
	StatusServerMempool   Status = "transaction.server.mempool"
	StatusServerConfirmed Status = "transaction.server.confirmed"
	StatusClaimPending    Status = "transaction.claim.pending"

	// Failed bucket.
	StatusExpired         Status = "swap.expired"
	StatusInvoiceFailed   Status = "invoice.failedToPay"
	StatusTxFailed        Status = "transaction.failed"
	StatusLockupFailed    Status = "transaction.lockupFailed"
	StatusTxRefunded      Status = "transaction.refunded"

	// Success bucket.
	StatusInvoiceSettled Status = "invoice.settled"
	StatusTxClaimed      Status = "transaction.claimed"
)

// Local statuses assigned by reconciliation when on-chain evidence
// contradicts or completes a stale upstream status.
const (
	StatusUserClaimed    Status = "user.claimed"
	StatusUserRefunded   Status = "user.refunded"
	StatusUserAbandoned  Status = "user.abandoned"
	StatusUserClaimable  Status = "user.claimable"
	StatusUserRefundable Status = "user.refundable"
)

// Bucket groups statuses by terminal meaning.
type Bucket string

const (
	BucketPending Bucket = "pending"
	BucketFailed  Bucket = "failed"
	BucketSuccess Bucket = "success"
	BucketLocal   Bucket = "local"
)

var buckets = map[Status]Bucket{
	StatusCreated:         BucketPending,
	StatusMempool:         BucketPending,
	StatusConfirmed:       BucketPending,
	StatusInvoiceSet:      BucketPending,
	StatusInvoicePending:  BucketPending,
	StatusServerMempool:   BucketPending,
	StatusServerConfirmed: BucketPending,
	StatusClaimPending:    BucketPending,

	StatusExpired:       BucketFailed,
	StatusInvoiceFailed: BucketFailed,
	StatusTxFailed:      BucketFailed,
	StatusLockupFailed:  BucketFailed,
	StatusTxRefunded:    BucketFailed,

	StatusInvoiceSettled: BucketSuccess,
	StatusTxClaimed:      BucketSuccess,

	StatusUserClaimed:    BucketLocal,
	StatusUserRefunded:   BucketLocal,
	StatusUserAbandoned:  BucketLocal,
	StatusUserClaimable:  BucketLocal,
	StatusUserRefundable: BucketLocal,
}

// Bucket returns the bucket for a status. Unknown statuses are treated
// as pending so that a new upstream status never strands a swap.
func (s Status) Bucket() Bucket {
	if b, ok := buckets[s]; ok {
		return b
	}
	return BucketPending
}

// IsKnown returns true if the status is one of the enumerated values.
func (s Status) IsKnown() bool {
	_, ok := buckets[s]
	return ok
}

// IsLocal returns true for statuses produced by reconciliation.
func (s Status) IsLocal() bool {
	return s.Bucket() == BucketLocal
}

// IsLocalTerminal returns true for local statuses that end the swap's
// lifecycle. user.claimable and user.refundable are actionable, not
// terminal: they advance once the user acts and a later pass observes
// the resulting transaction.
func (s Status) IsLocalTerminal() bool {
	switch s {
	case StatusUserClaimed, StatusUserRefunded, StatusUserAbandoned:
		return true
	}
	return false
}

// IsTerminal returns true when no further transition is expected.
func (s Status) IsTerminal() bool {
	switch s.Bucket() {
	case BucketFailed, BucketSuccess:
		return true
	case BucketLocal:
		return s.IsLocalTerminal()
	}
	return false
}

// TerminalStatuses returns every status for which IsTerminal holds.
func TerminalStatuses() []Status {
	var out []Status
	for s := range buckets {
		if s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// IsActionable returns true for local statuses that wait on the user.
func (s Status) IsActionable() bool {
	return s == StatusUserClaimable || s == StatusUserRefundable
}

// CanTransition reports whether moving from one status to another is a
// legal state-machine transition. Transitions only flow
// pending -> {failed, success, local}; once a swap is terminal or
// local-terminal it never moves back into the pending bucket, and
// local-terminal statuses are never overwritten by upstream data.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if from.IsLocalTerminal() {
		return false
	}
	if from.IsTerminal() || from.IsActionable() {
		// Only stronger local evidence may finish the swap.
		return to.Bucket() != BucketPending
	}
	return true
}
