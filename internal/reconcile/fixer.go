package reconcile

import (
	"context"
	"sync"

	"github.com/klingon-exchange/bridgesync/internal/swap"
	"github.com/klingon-exchange/bridgesync/pkg/logging"
)

// Fixer is one reconciliation rule: a trigger predicate over the swap
// shape plus a resolver that queries indexers for ground truth. A
// resolver returns a corrected copy, or its input when the on-chain
// evidence is inconclusive.
type Fixer struct {
	Name    string
	Applies func(s *swap.BridgeSwap) bool
	Resolve func(ctx context.Context, s *swap.BridgeSwap) (*swap.BridgeSwap, error)
}

// Chain is an ordered list of fixers. For each swap the first fixer
// whose result differs from the input wins; if none applies or none
// changes anything, the swap passes through unchanged.
type Chain struct {
	fixers []Fixer
	log    *logging.Logger
}

// NewChain builds a fixer chain. Order is significant.
func NewChain(fixers []Fixer, log *logging.Logger) *Chain {
	if log == nil {
		log = logging.GetDefault()
	}
	return &Chain{
		fixers: fixers,
		log:    log.Component("fixer"),
	}
}

// Triggers reports whether any fixer's predicate matches the swap.
func (c *Chain) Triggers(s *swap.BridgeSwap) bool {
	for _, f := range c.fixers {
		if f.Applies(s) {
			return true
		}
	}
	return false
}

// Reconcile runs the chain over a batch of swaps concurrently and
// returns corrected copies in the same order. It never mutates the
// caller's swaps and never fails: a swap whose fixers error keeps its
// last-known status.
func (c *Chain) Reconcile(ctx context.Context, swaps []*swap.BridgeSwap) []*swap.BridgeSwap {
	out := make([]*swap.BridgeSwap, len(swaps))

	var wg sync.WaitGroup
	for i, s := range swaps {
		wg.Add(1)
		go func(i int, s *swap.BridgeSwap) {
			defer wg.Done()
			out[i] = c.reconcileOne(ctx, s)
		}(i, s)
	}
	wg.Wait()

	return out
}

// reconcileOne tries the fixers in order against one swap. Fixer steps
// for a single swap are sequential; later checks depend on earlier
// ones.
func (c *Chain) reconcileOne(ctx context.Context, s *swap.BridgeSwap) *swap.BridgeSwap {
	current := s.Clone()

	for _, f := range c.fixers {
		if !f.Applies(current) {
			continue
		}

		resolved, err := f.Resolve(ctx, current.Clone())
		if err != nil {
			// Transient indexer failure: leave unchanged, let the
			// next fixer (or the next pass) have a go.
			c.log.Debug("fixer failed, leaving swap unchanged",
				"fixer", f.Name, "swap", s.ID, "error", err)
			continue
		}

		if resolved.Status != current.Status {
			c.log.Info("fixer resolved swap",
				"fixer", f.Name, "swap", s.ID,
				"from", current.Status, "to", resolved.Status)
			return resolved
		}
	}

	return current
}
