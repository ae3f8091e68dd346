package swap

import (
	"errors"
	"testing"
)

func TestBuckets(t *testing.T) {
	tests := []struct {
		status Status
		bucket Bucket
	}{
		{StatusCreated, BucketPending},
		{StatusClaimPending, BucketPending},
		{StatusExpired, BucketFailed},
		{StatusLockupFailed, BucketFailed},
		{StatusTxClaimed, BucketSuccess},
		{StatusInvoiceSettled, BucketSuccess},
		{StatusUserClaimed, BucketLocal},
		{StatusUserRefundable, BucketLocal},
		{Status("something.new"), BucketPending},
	}

	for _, tt := range tests {
		if got := tt.status.Bucket(); got != tt.bucket {
			t.Errorf("%s bucket = %s, want %s", tt.status, got, tt.bucket)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []Status{
		StatusExpired, StatusInvoiceFailed, StatusTxFailed,
		StatusLockupFailed, StatusTxRefunded, StatusInvoiceSettled,
		StatusTxClaimed, StatusUserClaimed, StatusUserRefunded,
		StatusUserAbandoned,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	open := []Status{
		StatusCreated, StatusMempool, StatusClaimPending,
		StatusUserClaimable, StatusUserRefundable,
	}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending forward", StatusMempool, StatusConfirmed, true},
		{"pending to success", StatusClaimPending, StatusTxClaimed, true},
		{"pending to failed", StatusCreated, StatusExpired, true},
		{"pending to local", StatusExpired, StatusUserRefundable, true},
		{"same status", StatusMempool, StatusMempool, false},
		{"failed back to pending", StatusExpired, StatusMempool, false},
		{"success back to pending", StatusTxClaimed, StatusCreated, false},
		{"failed to local", StatusLockupFailed, StatusUserRefunded, true},
		{"actionable to terminal local", StatusUserClaimable, StatusUserClaimed, true},
		{"actionable to success", StatusUserRefundable, StatusTxRefunded, true},
		{"actionable back to pending", StatusUserClaimable, StatusMempool, false},
		{"local terminal frozen", StatusUserClaimed, StatusTxClaimed, false},
		{"abandoned frozen", StatusUserAbandoned, StatusUserRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestParseDetails(t *testing.T) {
	d := ParseClaimDetails(`{"lockupAddress":"bc1q","claimLeaf":"a914","refundLeaf":"76a9"}`)
	if d == nil {
		t.Fatal("expected details")
	}
	if d.LockupAddress != "bc1q" || d.ClaimLeaf != "a914" || d.RefundLeaf != "76a9" {
		t.Errorf("unexpected details: %+v", d)
	}

	if ParseClaimDetails("") != nil {
		t.Error("empty blob should decode to nil")
	}
	if ParseClaimDetails("{not json") != nil {
		t.Error("malformed blob should decode to nil")
	}
	if ParseLockupDetails("") != nil {
		t.Error("empty lockup blob should decode to nil")
	}

	ld := ParseLockupDetails(d.Encode())
	if ld == nil || ld.LockupAddress != "bc1q" {
		t.Errorf("round trip failed: %+v", ld)
	}

	var nilClaim *ClaimDetails
	if nilClaim.Encode() != "" {
		t.Error("nil details should encode to empty string")
	}
}

const (
	zeroPreimage = "00000000000000000000000000000000"
	zeroHash     = "374708fff7719dd5979ec875d56cd2286f6d3cf7ec317a3b25632aab28ec37bb"
	zeroMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
)

func TestVerifyPreimage(t *testing.T) {
	if err := VerifyPreimage(zeroPreimage, zeroHash); err != nil {
		t.Errorf("valid preimage rejected: %v", err)
	}
	if err := VerifyPreimage("deadbeef", zeroHash); !errors.Is(err, ErrPreimageMismatch) {
		t.Errorf("expected ErrPreimageMismatch, got %v", err)
	}
	if err := VerifyPreimage("not hex", zeroHash); err == nil {
		t.Error("expected decode error")
	}
}

func TestDerivePreimageFromSeed(t *testing.T) {
	preimage, err := DerivePreimageFromSeed(zeroMnemonic, zeroHash)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if preimage != zeroPreimage {
		t.Errorf("preimage = %s, want %s", preimage, zeroPreimage)
	}

	if _, err := DerivePreimageFromSeed("abandon ability", zeroHash); err == nil {
		t.Error("expected error for invalid mnemonic")
	}
	wrongHash := "e0e77a507412b120f6ede61f62295b1a7b2ff19d3dcc8f7253e51663470c888e"
	if _, err := DerivePreimageFromSeed(zeroMnemonic, wrongHash); !errors.Is(err, ErrPreimageMismatch) {
		t.Errorf("expected ErrPreimageMismatch, got %v", err)
	}
}

func TestResolvePreimage(t *testing.T) {
	t.Run("stored preimage", func(t *testing.T) {
		s := &BridgeSwap{Preimage: zeroPreimage, PreimageHash: zeroHash}
		got, err := s.ResolvePreimage()
		if err != nil || got != zeroPreimage {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("claim details preimage", func(t *testing.T) {
		s := &BridgeSwap{
			PreimageHash: zeroHash,
			ClaimDetails: &ClaimDetails{Preimage: zeroPreimage},
		}
		got, err := s.ResolvePreimage()
		if err != nil || got != zeroPreimage {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("seed fallback", func(t *testing.T) {
		s := &BridgeSwap{PreimageHash: zeroHash, PreimageSeed: zeroMnemonic}
		got, err := s.ResolvePreimage()
		if err != nil || got != zeroPreimage {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("mismatching preimage skipped, seed wins", func(t *testing.T) {
		s := &BridgeSwap{
			Preimage:     "deadbeef",
			PreimageHash: zeroHash,
			PreimageSeed: zeroMnemonic,
		}
		got, err := s.ResolvePreimage()
		if err != nil || got != zeroPreimage {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("nothing resolvable", func(t *testing.T) {
		s := &BridgeSwap{PreimageHash: zeroHash}
		if _, err := s.ResolvePreimage(); !errors.Is(err, ErrPreimageUnavailable) {
			t.Errorf("expected ErrPreimageUnavailable, got %v", err)
		}
	})
}

func TestClone(t *testing.T) {
	s := &BridgeSwap{
		ID:           "swap-1",
		Status:       StatusMempool,
		ClaimDetails: &ClaimDetails{LockupAddress: "bc1q"},
	}
	c := s.Clone()
	c.Status = StatusTxClaimed
	c.ClaimDetails.LockupAddress = "bc1other"

	if s.Status != StatusMempool {
		t.Error("clone mutated original status")
	}
	if s.ClaimDetails.LockupAddress != "bc1q" {
		t.Error("clone mutated original details")
	}
}
