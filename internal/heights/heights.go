// Package heights serves current block heights per chain with a short
// TTL cache, so a reconciliation pass fetches each chain's tip at most
// once per interval no matter how many lockups reference it.
package heights

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/klingon-exchange/bridgesync/pkg/logging"
)

// BitcoinChainID is the pseudo chain id used for the bitcoin chain.
const BitcoinChainID uint64 = 0

// DefaultTTL is how long a fetched height stays fresh.
const DefaultTTL = 10 * time.Second

// BitcoinSource provides the bitcoin tip height. backend.Backend
// satisfies it.
type BitcoinSource interface {
	GetBlockHeight(ctx context.Context) (int64, error)
}

// EVMSource provides EVM chain heads by chain id. registry.Service
// satisfies it.
type EVMSource interface {
	BlockHeight(ctx context.Context, chainID uint64) (uint64, error)
}

// Service caches block heights per chain.
type Service struct {
	btc BitcoinSource
	evm EVMSource
	ttl time.Duration
	log *logging.Logger

	now func() time.Time

	mu    sync.Mutex
	cache map[uint64]cacheEntry
}

type cacheEntry struct {
	height    uint64
	fetchedAt time.Time
}

// NewService creates a height service. Either source may be nil when
// the deployment has no chains of that family; ttl <= 0 uses DefaultTTL.
func NewService(btc BitcoinSource, evm EVMSource, ttl time.Duration, log *logging.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logging.GetDefault()
	}
	return &Service{
		btc:   btc,
		evm:   evm,
		ttl:   ttl,
		log:   log.Component("heights"),
		now:   time.Now,
		cache: make(map[uint64]cacheEntry),
	}
}

// BlockHeight returns the current height of a chain, served from cache
// when fresh.
func (s *Service) BlockHeight(ctx context.Context, chainID uint64) (uint64, error) {
	s.mu.Lock()
	if entry, ok := s.cache[chainID]; ok && s.now().Sub(entry.fetchedAt) < s.ttl {
		s.mu.Unlock()
		return entry.height, nil
	}
	s.mu.Unlock()

	height, err := s.fetch(ctx, chainID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.cache[chainID] = cacheEntry{height: height, fetchedAt: s.now()}
	s.mu.Unlock()

	s.log.Debug("fetched chain height", "chain", chainID, "height", height)
	return height, nil
}

func (s *Service) fetch(ctx context.Context, chainID uint64) (uint64, error) {
	if chainID == BitcoinChainID {
		if s.btc == nil {
			return 0, fmt.Errorf("no bitcoin height source configured")
		}
		height, err := s.btc.GetBlockHeight(ctx)
		if err != nil {
			return 0, fmt.Errorf("bitcoin tip height: %w", err)
		}
		if height < 0 {
			return 0, fmt.Errorf("bitcoin tip height negative: %d", height)
		}
		return uint64(height), nil
	}

	if s.evm == nil {
		return 0, fmt.Errorf("no EVM height source configured")
	}
	height, err := s.evm.BlockHeight(ctx, chainID)
	if err != nil {
		return 0, fmt.Errorf("chain %d height: %w", chainID, err)
	}
	return height, nil
}

// Invalidate drops all cached heights.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[uint64]cacheEntry)
}
