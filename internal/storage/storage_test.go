package storage

import (
	"errors"
	"math/big"
	"testing"

	"github.com/klingon-exchange/bridgesync/internal/swap"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(&Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSwap(id, userID string, status swap.Status) *swap.BridgeSwap {
	return &swap.BridgeSwap{
		ID:                 id,
		UserID:             userID,
		Type:               swap.TypeChain,
		Status:             status,
		AssetSend:          "BTC",
		AssetReceive:       "cBTC",
		SendAmount:         big.NewInt(100000),
		ReceiveAmount:      big.NewInt(99500),
		PreimageHash:       "374708fff7719dd5979ec875d56cd2286f6d3cf7ec317a3b25632aab28ec37bb",
		TimeoutBlockHeight: 850500,
		ChainID:            5115,
	}
}

func TestSwapRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	in := testSwap("swap-1", "user-a", swap.StatusMempool)
	in.LockupAddress = "bc1ptest"
	in.ClaimDetails = &swap.ClaimDetails{
		LockupAddress: "bc1ptest",
		ClaimLeaf:     "82012088a914",
		RefundLeaf:    "029000b275",
	}
	in.ExpectedAmount = new(big.Int)
	in.ExpectedAmount.SetString("123456789012345678901", 10)

	if err := s.UpsertSwap(in); err != nil {
		t.Fatalf("UpsertSwap: %v", err)
	}

	out, err := s.GetSwap("swap-1")
	if err != nil {
		t.Fatalf("GetSwap: %v", err)
	}
	if out.UserID != "user-a" || out.Status != swap.StatusMempool {
		t.Errorf("swap = %+v", out)
	}
	if out.SendAmount.Cmp(big.NewInt(100000)) != 0 {
		t.Errorf("sendAmount = %s", out.SendAmount)
	}
	if out.ExpectedAmount.Cmp(in.ExpectedAmount) != 0 {
		t.Errorf("expectedAmount = %s, want %s", out.ExpectedAmount, in.ExpectedAmount)
	}
	if out.ClaimDetails == nil || out.ClaimDetails.RefundLeaf != "029000b275" {
		t.Errorf("claimDetails = %+v", out.ClaimDetails)
	}
	if out.LockupDetails != nil {
		t.Errorf("lockupDetails should be nil, got %+v", out.LockupDetails)
	}
	if out.ChainID != 5115 || out.TimeoutBlockHeight != 850500 {
		t.Errorf("swap = %+v", out)
	}
}

func TestGetSwapNotFound(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.GetSwap("nope"); !errors.Is(err, ErrSwapNotFound) {
		t.Errorf("expected ErrSwapNotFound, got %v", err)
	}
}

func TestUpsertUpdates(t *testing.T) {
	s := newTestStorage(t)

	sw := testSwap("swap-1", "user-a", swap.StatusCreated)
	if err := s.UpsertSwap(sw); err != nil {
		t.Fatal(err)
	}

	sw.Status = swap.StatusTxClaimed
	sw.ClaimTx = "deadbeef"
	if err := s.UpsertSwap(sw); err != nil {
		t.Fatal(err)
	}

	out, err := s.GetSwap("swap-1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != swap.StatusTxClaimed || out.ClaimTx != "deadbeef" {
		t.Errorf("swap = %+v", out)
	}
}

func TestSwapsByUser(t *testing.T) {
	s := newTestStorage(t)

	a1 := testSwap("swap-1", "user-a", swap.StatusCreated)
	a1.CreatedAt = 100
	a2 := testSwap("swap-2", "user-a", swap.StatusMempool)
	a2.CreatedAt = 200
	b1 := testSwap("swap-3", "user-b", swap.StatusCreated)

	for _, sw := range []*swap.BridgeSwap{a2, b1, a1} {
		if err := s.UpsertSwap(sw); err != nil {
			t.Fatal(err)
		}
	}

	swaps, err := s.SwapsByUser("user-a")
	if err != nil {
		t.Fatalf("SwapsByUser: %v", err)
	}
	if len(swaps) != 2 {
		t.Fatalf("got %d swaps, want 2", len(swaps))
	}
	if swaps[0].ID != "swap-1" || swaps[1].ID != "swap-2" {
		t.Errorf("order: %s, %s", swaps[0].ID, swaps[1].ID)
	}
}

func TestSwapByPreimageHash(t *testing.T) {
	s := newTestStorage(t)

	sw := testSwap("swap-1", "user-a", swap.StatusCreated)
	sw.Preimage = "00000000000000000000000000000000"
	if err := s.UpsertSwap(sw); err != nil {
		t.Fatal(err)
	}

	out, err := s.SwapByPreimageHash("user-a", sw.PreimageHash)
	if err != nil {
		t.Fatalf("SwapByPreimageHash: %v", err)
	}
	if out.Preimage != sw.Preimage {
		t.Errorf("preimage = %s", out.Preimage)
	}

	// Another user's hash must not match.
	if _, err := s.SwapByPreimageHash("user-b", sw.PreimageHash); !errors.Is(err, ErrSwapNotFound) {
		t.Errorf("expected ErrSwapNotFound, got %v", err)
	}
}

func TestUpdateSwapOutcome(t *testing.T) {
	s := newTestStorage(t)

	sw := testSwap("swap-1", "user-a", swap.StatusExpired)
	if err := s.UpsertSwap(sw); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateSwapOutcome("swap-1", swap.StatusUserRefunded, TxFieldRefund, "refundtx"); err != nil {
		t.Fatalf("UpdateSwapOutcome: %v", err)
	}

	out, err := s.GetSwap("swap-1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != swap.StatusUserRefunded || out.RefundTx != "refundtx" {
		t.Errorf("swap = %+v", out)
	}
	if out.ClaimTx != "" || out.LockupTx != "" {
		t.Error("other tx fields must stay untouched")
	}

	// Status-only update.
	if err := s.UpdateSwapOutcome("swap-1", swap.StatusUserAbandoned, TxFieldNone, ""); err != nil {
		t.Fatalf("status-only update: %v", err)
	}
	out, _ = s.GetSwap("swap-1")
	if out.Status != swap.StatusUserAbandoned || out.RefundTx != "refundtx" {
		t.Errorf("swap = %+v", out)
	}

	if err := s.UpdateSwapOutcome("missing", swap.StatusUserClaimed, TxFieldNone, ""); !errors.Is(err, ErrSwapNotFound) {
		t.Errorf("expected ErrSwapNotFound, got %v", err)
	}
	if err := s.UpdateSwapOutcome("swap-1", swap.StatusUserClaimed, TxField("status; DROP TABLE"), "x"); !errors.Is(err, ErrInvalidField) {
		t.Errorf("expected ErrInvalidField, got %v", err)
	}
}

func TestUsersWithOpenSwaps(t *testing.T) {
	s := newTestStorage(t)

	open := testSwap("swap-1", "user-a", swap.StatusMempool)
	done := testSwap("swap-2", "user-b", swap.StatusTxClaimed)
	actionable := testSwap("swap-3", "user-c", swap.StatusUserRefundable)

	for _, sw := range []*swap.BridgeSwap{open, done, actionable} {
		if err := s.UpsertSwap(sw); err != nil {
			t.Fatal(err)
		}
	}

	users, err := s.UsersWithOpenSwaps()
	if err != nil {
		t.Fatalf("UsersWithOpenSwaps: %v", err)
	}
	if len(users) != 2 || users[0] != "user-a" || users[1] != "user-c" {
		t.Errorf("users = %v", users)
	}

	openCount, terminalCount, err := s.SwapCount()
	if err != nil {
		t.Fatalf("SwapCount: %v", err)
	}
	if openCount != 2 || terminalCount != 1 {
		t.Errorf("counts = %d open, %d terminal", openCount, terminalCount)
	}
}
