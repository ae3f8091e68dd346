package registry

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/klingon-exchange/bridgesync/pkg/helpers"
)

// lockupRegistryABI is the read surface of the lockup registry contract.
const lockupRegistryABI = `[
	{"type":"function","name":"lockups","stateMutability":"view","inputs":[{"name":"preimageHash","type":"bytes32"}],"outputs":[{"name":"claimAddress","type":"address"},{"name":"refundAddress","type":"address"},{"name":"amount","type":"uint256"},{"name":"timelock","type":"uint256"},{"name":"claimed","type":"bool"},{"name":"refunded","type":"bool"}]},
	{"type":"event","name":"Lockup","inputs":[{"name":"preimageHash","type":"bytes32","indexed":true},{"name":"claimAddress","type":"address","indexed":true},{"name":"refundAddress","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"timelock","type":"uint256","indexed":false}]},
	{"type":"event","name":"Claim","inputs":[{"name":"preimageHash","type":"bytes32","indexed":true},{"name":"preimage","type":"bytes32","indexed":false}]},
	{"type":"event","name":"Refund","inputs":[{"name":"preimageHash","type":"bytes32","indexed":true}]}
]`

var registryABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(lockupRegistryABI))
	if err != nil {
		panic(fmt.Sprintf("parse lockup registry ABI: %v", err))
	}
	registryABI = parsed
}

// ethBackend is the slice of the ethclient surface the registry client
// needs. ethclient.Client satisfies it.
type ethBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Client reads one chain's lockup registry contract.
type Client struct {
	backend  ethBackend
	contract common.Address
	chainID  uint64
}

// NewClient dials an EVM RPC endpoint and binds the registry contract.
func NewClient(rpcURL string, contract common.Address, chainID uint64) (*Client, error) {
	backend, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	return newClient(backend, contract, chainID), nil
}

func newClient(backend ethBackend, contract common.Address, chainID uint64) *Client {
	return &Client{
		backend:  backend,
		contract: contract,
		chainID:  chainID,
	}
}

// ChainID returns the chain id this client is bound to.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// Close closes the underlying RPC connection.
func (c *Client) Close() {
	c.backend.Close()
}

// BlockHeight returns the current chain head number.
func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	return c.backend.BlockNumber(ctx)
}

// GetLockup reads the lockup record for a preimage hash. Returns
// ErrLockupNotFound when no record exists. Claim and refund transaction
// hashes (and the revealed preimage) are recovered from registry events
// on a best-effort basis.
func (c *Client) GetLockup(ctx context.Context, preimageHash [32]byte) (*Lockup, error) {
	data, err := registryABI.Pack("lockups", preimageHash)
	if err != nil {
		return nil, fmt.Errorf("pack lockups call: %w", err)
	}

	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("call lockups: %w", err)
	}

	vals, err := registryABI.Unpack("lockups", out)
	if err != nil {
		return nil, fmt.Errorf("unpack lockups result: %w", err)
	}

	claimAddr := vals[0].(common.Address)
	refundAddr := vals[1].(common.Address)
	if claimAddr == (common.Address{}) && refundAddr == (common.Address{}) {
		return nil, ErrLockupNotFound
	}

	lockup := &Lockup{
		PreimageHash:  hex.EncodeToString(preimageHash[:]),
		ChainID:       c.chainID,
		ClaimAddress:  claimAddr.Hex(),
		RefundAddress: refundAddr.Hex(),
		Amount:        vals[2].(*big.Int),
		Timelock:      vals[3].(*big.Int).Uint64(),
		Claimed:       vals[4].(bool),
		Refunded:      vals[5].(bool),
	}

	if lockup.Claimed {
		c.fillClaimEvent(ctx, preimageHash, lockup)
	}
	if lockup.Refunded {
		c.fillRefundEvent(ctx, preimageHash, lockup)
	}

	return lockup, nil
}

// fillClaimEvent recovers the claim tx hash and the revealed preimage.
// A failed event lookup leaves the fields empty.
func (c *Client) fillClaimEvent(ctx context.Context, preimageHash [32]byte, lockup *Lockup) {
	logs, err := c.filterEvent(ctx, "Claim", preimageHash)
	if err != nil || len(logs) == 0 {
		return
	}

	log := logs[len(logs)-1]
	lockup.ClaimTxHash = log.TxHash.Hex()

	vals, err := registryABI.Unpack("Claim", log.Data)
	if err != nil || len(vals) == 0 {
		return
	}
	if preimage, ok := vals[0].([32]byte); ok {
		lockup.KnownPreimage = hex.EncodeToString(preimage[:])
	}
}

// fillRefundEvent recovers the refund tx hash.
func (c *Client) fillRefundEvent(ctx context.Context, preimageHash [32]byte, lockup *Lockup) {
	logs, err := c.filterEvent(ctx, "Refund", preimageHash)
	if err != nil || len(logs) == 0 {
		return
	}
	lockup.RefundTxHash = logs[len(logs)-1].TxHash.Hex()
}

func (c *Client) filterEvent(ctx context.Context, name string, preimageHash [32]byte) ([]types.Log, error) {
	return c.backend.FilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics: [][]common.Hash{
			{registryABI.Events[name].ID},
			{common.Hash(preimageHash)},
		},
	})
}

// LockupsByParticipant returns all lockups where the address is the
// claim or refund party, found through Lockup event topics.
func (c *Client) LockupsByParticipant(ctx context.Context, addr common.Address) ([]*Lockup, error) {
	addrTopic := common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
	lockupID := registryABI.Events["Lockup"].ID

	queries := []ethereum.FilterQuery{
		{
			Addresses: []common.Address{c.contract},
			Topics:    [][]common.Hash{{lockupID}, nil, {addrTopic}},
		},
		{
			Addresses: []common.Address{c.contract},
			Topics:    [][]common.Hash{{lockupID}, nil, nil, {addrTopic}},
		},
	}

	seen := make(map[common.Hash]bool)
	var lockups []*Lockup
	for _, q := range queries {
		logs, err := c.backend.FilterLogs(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("filter lockup events: %w", err)
		}

		for _, log := range logs {
			if len(log.Topics) < 2 || seen[log.Topics[1]] {
				continue
			}
			seen[log.Topics[1]] = true

			lockup, err := c.GetLockup(ctx, log.Topics[1])
			if err != nil {
				// Event without a record means the registry pruned it.
				continue
			}
			lockups = append(lockups, lockup)
		}
	}

	return lockups, nil
}

// ParsePreimageHash decodes a hex preimage hash into the fixed-size
// form the contract expects.
func ParsePreimageHash(s string) ([32]byte, error) {
	var hash [32]byte
	b, err := helpers.HexToBytes(s)
	if err != nil {
		return hash, fmt.Errorf("decode preimage hash: %w", err)
	}
	if len(b) != 32 {
		return hash, fmt.Errorf("preimage hash must be 32 bytes, got %d", len(b))
	}
	copy(hash[:], b)
	return hash, nil
}
