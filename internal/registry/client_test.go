package registry

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeEthBackend struct {
	lockupOut map[common.Hash][]byte
	logs      map[common.Hash][]types.Log
	callErr   error
	height    uint64
	closed    bool
}

func (f *fakeEthBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	// The call data is selector + padded preimage hash.
	var hash common.Hash
	copy(hash[:], msg.Data[4:36])
	out, ok := f.lockupOut[hash]
	if !ok {
		// Contract returns the zero struct for unknown keys.
		return packLockup(common.Address{}, common.Address{}, big.NewInt(0), 0, false, false), nil
	}
	return out, nil
}

func (f *fakeEthBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if len(q.Topics) == 0 || len(q.Topics[0]) == 0 {
		return nil, nil
	}
	return f.logs[q.Topics[0][0]], nil
}

func (f *fakeEthBackend) BlockNumber(ctx context.Context) (uint64, error) {
	return f.height, nil
}

func (f *fakeEthBackend) Close() { f.closed = true }

func packLockup(claim, refund common.Address, amount *big.Int, timelock uint64, claimed, refunded bool) []byte {
	out, err := registryABI.Methods["lockups"].Outputs.Pack(
		claim, refund, amount, new(big.Int).SetUint64(timelock), claimed, refunded,
	)
	if err != nil {
		panic(err)
	}
	return out
}

var (
	testContract = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testClaimer  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testRefunder = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

const testHashHex = "1111111111111111111111111111111111111111111111111111111111111111"

func testHash(t *testing.T) [32]byte {
	t.Helper()
	hash, err := ParsePreimageHash(testHashHex)
	if err != nil {
		t.Fatal(err)
	}
	return hash
}

func TestGetLockupActive(t *testing.T) {
	hash := testHash(t)
	backend := &fakeEthBackend{
		lockupOut: map[common.Hash][]byte{
			hash: packLockup(testClaimer, testRefunder, big.NewInt(50000), 900, false, false),
		},
	}
	c := newClient(backend, testContract, 5115)

	lockup, err := c.GetLockup(context.Background(), hash)
	if err != nil {
		t.Fatalf("GetLockup: %v", err)
	}
	if lockup.ChainID != 5115 || lockup.Timelock != 900 {
		t.Errorf("lockup = %+v", lockup)
	}
	if lockup.Settled() {
		t.Error("active lockup should not be settled")
	}
	if lockup.ClaimTxHash != "" || lockup.KnownPreimage != "" {
		t.Error("active lockup should have no event data")
	}
}

func TestGetLockupNotFound(t *testing.T) {
	c := newClient(&fakeEthBackend{}, testContract, 1)

	_, err := c.GetLockup(context.Background(), testHash(t))
	if !errors.Is(err, ErrLockupNotFound) {
		t.Errorf("expected ErrLockupNotFound, got %v", err)
	}
}

func TestGetLockupClaimed(t *testing.T) {
	hash := testHash(t)
	preimage := [32]byte{0xab, 0xcd}
	claimData, err := registryABI.Events["Claim"].Inputs.NonIndexed().Pack(preimage)
	if err != nil {
		t.Fatal(err)
	}
	claimTx := common.HexToHash("0xdddd")

	backend := &fakeEthBackend{
		lockupOut: map[common.Hash][]byte{
			hash: packLockup(testClaimer, testRefunder, big.NewInt(50000), 900, true, false),
		},
		logs: map[common.Hash][]types.Log{
			registryABI.Events["Claim"].ID: {
				{TxHash: claimTx, Data: claimData},
			},
		},
	}
	c := newClient(backend, testContract, 5115)

	lockup, err := c.GetLockup(context.Background(), hash)
	if err != nil {
		t.Fatalf("GetLockup: %v", err)
	}
	if !lockup.Claimed || lockup.ClaimTxHash != claimTx.Hex() {
		t.Errorf("lockup = %+v", lockup)
	}
	want := common.Hash(preimage).Hex()[2:]
	if lockup.KnownPreimage != want {
		t.Errorf("preimage = %s, want %s", lockup.KnownPreimage, want)
	}
}

func TestGetLockupRefunded(t *testing.T) {
	hash := testHash(t)
	refundTx := common.HexToHash("0xeeee")
	backend := &fakeEthBackend{
		lockupOut: map[common.Hash][]byte{
			hash: packLockup(testClaimer, testRefunder, big.NewInt(50000), 900, false, true),
		},
		logs: map[common.Hash][]types.Log{
			registryABI.Events["Refund"].ID: {
				{TxHash: refundTx},
			},
		},
	}
	c := newClient(backend, testContract, 1)

	lockup, err := c.GetLockup(context.Background(), hash)
	if err != nil {
		t.Fatalf("GetLockup: %v", err)
	}
	if !lockup.Refunded || lockup.RefundTxHash != refundTx.Hex() {
		t.Errorf("lockup = %+v", lockup)
	}
}

func TestLockupsByParticipant(t *testing.T) {
	hash := testHash(t)
	backend := &fakeEthBackend{
		lockupOut: map[common.Hash][]byte{
			hash: packLockup(testClaimer, testRefunder, big.NewInt(50000), 900, false, false),
		},
		logs: map[common.Hash][]types.Log{
			registryABI.Events["Lockup"].ID: {
				// Same lockup visible through both topic queries.
				{Topics: []common.Hash{registryABI.Events["Lockup"].ID, hash}},
			},
		},
	}
	c := newClient(backend, testContract, 5115)

	lockups, err := c.LockupsByParticipant(context.Background(), testClaimer)
	if err != nil {
		t.Fatalf("LockupsByParticipant: %v", err)
	}
	if len(lockups) != 1 {
		t.Fatalf("got %d lockups, want 1 (deduplicated)", len(lockups))
	}
	if lockups[0].PreimageHash != testHashHex {
		t.Errorf("preimageHash = %s", lockups[0].PreimageHash)
	}
}

func TestParsePreimageHash(t *testing.T) {
	if _, err := ParsePreimageHash(testHashHex); err != nil {
		t.Errorf("valid hash rejected: %v", err)
	}
	if _, err := ParsePreimageHash("0x" + testHashHex); err != nil {
		t.Errorf("0x-prefixed hash rejected: %v", err)
	}
	if _, err := ParsePreimageHash("abcd"); err == nil {
		t.Error("short hash accepted")
	}
	if _, err := ParsePreimageHash("zz"); err == nil {
		t.Error("non-hex hash accepted")
	}
}
