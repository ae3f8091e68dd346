package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/klingon-exchange/bridgesync/pkg/logging"
)

// ChainClient is one chain's view of its lockup registry. *Client
// satisfies it; tests substitute fakes.
type ChainClient interface {
	GetLockup(ctx context.Context, preimageHash [32]byte) (*Lockup, error)
	LockupsByParticipant(ctx context.Context, addr common.Address) ([]*Lockup, error)
	BlockHeight(ctx context.Context) (uint64, error)
	Close()
}

// Service multiplexes lockup registry clients by chain id.
type Service struct {
	clients map[uint64]ChainClient
	log     *logging.Logger
}

// NewService creates a registry service over the given chain clients.
func NewService(clients map[uint64]ChainClient, log *logging.Logger) *Service {
	if log == nil {
		log = logging.GetDefault()
	}
	return &Service{
		clients: clients,
		log:     log.Component("registry"),
	}
}

// Close closes all chain clients.
func (s *Service) Close() {
	for _, c := range s.clients {
		c.Close()
	}
}

// ChainIDs returns the configured chain ids, sorted.
func (s *Service) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BlockHeight returns the current head of one chain.
func (s *Service) BlockHeight(ctx context.Context, chainID uint64) (uint64, error) {
	client, ok := s.clients[chainID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrChainNotConfigured, chainID)
	}
	return client.BlockHeight(ctx)
}

// GetLockup returns the lockup for a preimage hash on one chain.
func (s *Service) GetLockup(ctx context.Context, preimageHash string, chainID uint64) (*Lockup, error) {
	client, ok := s.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrChainNotConfigured, chainID)
	}

	hash, err := ParsePreimageHash(preimageHash)
	if err != nil {
		return nil, err
	}

	return client.GetLockup(ctx, hash)
}

// GetLockupPair returns the origin and destination lockups of a
// cross-chain swap. Either side may be nil when its lockup does not
// exist; only transport errors are returned.
func (s *Service) GetLockupPair(ctx context.Context, preimageHash string, originChainID, destChainID uint64) (origin, dest *Lockup, err error) {
	origin, err = s.GetLockup(ctx, preimageHash, originChainID)
	if err != nil {
		if !errors.Is(err, ErrLockupNotFound) {
			return nil, nil, fmt.Errorf("origin chain %d: %w", originChainID, err)
		}
		origin = nil
	}

	dest, err = s.GetLockup(ctx, preimageHash, destChainID)
	if err != nil {
		if !errors.Is(err, ErrLockupNotFound) {
			return nil, nil, fmt.Errorf("destination chain %d: %w", destChainID, err)
		}
		dest = nil
	}

	return origin, dest, nil
}

// ClaimableAndRefundableLockups scans every configured chain for
// unsettled lockups involving the address and splits them by role:
// claimable where the address is the claim party, refundable where it
// is the refund party. Chains fail independently; a chain that errors
// contributes nothing.
func (s *Service) ClaimableAndRefundableLockups(ctx context.Context, address string) (claimable, refundable []*Lockup) {
	if !common.IsHexAddress(address) {
		s.log.Debug("skipping lockup scan for non-EVM address", "address", address)
		return nil, nil
	}
	addr := common.HexToAddress(address)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for chainID, client := range s.clients {
		wg.Add(1)
		go func(chainID uint64, client ChainClient) {
			defer wg.Done()

			found, err := client.LockupsByParticipant(ctx, addr)
			if err != nil {
				s.log.Warn("lockup scan failed", "chain", chainID, "error", err)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			for _, l := range found {
				if l.Settled() {
					continue
				}
				if common.HexToAddress(l.ClaimAddress) == addr {
					claimable = append(claimable, l)
				}
				if common.HexToAddress(l.RefundAddress) == addr {
					refundable = append(refundable, l)
				}
			}
		}(chainID, client)
	}
	wg.Wait()

	sortLockups(claimable)
	sortLockups(refundable)
	return claimable, refundable
}

func sortLockups(lockups []*Lockup) {
	sort.Slice(lockups, func(i, j int) bool {
		if lockups[i].ChainID != lockups[j].ChainID {
			return lockups[i].ChainID < lockups[j].ChainID
		}
		return lockups[i].PreimageHash < lockups[j].PreimageHash
	})
}
