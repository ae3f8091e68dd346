package heights

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeBTC struct {
	height int64
	err    error
	calls  int
}

func (f *fakeBTC) GetBlockHeight(ctx context.Context) (int64, error) {
	f.calls++
	return f.height, f.err
}

type fakeEVM struct {
	heights map[uint64]uint64
	err     error
	calls   int
}

func (f *fakeEVM) BlockHeight(ctx context.Context, chainID uint64) (uint64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.heights[chainID], nil
}

func TestBlockHeight(t *testing.T) {
	btc := &fakeBTC{height: 850000}
	evm := &fakeEVM{heights: map[uint64]uint64{5115: 123456}}
	s := NewService(btc, evm, time.Minute, nil)

	h, err := s.BlockHeight(context.Background(), BitcoinChainID)
	if err != nil || h != 850000 {
		t.Errorf("btc height = %d, %v", h, err)
	}

	h, err = s.BlockHeight(context.Background(), 5115)
	if err != nil || h != 123456 {
		t.Errorf("evm height = %d, %v", h, err)
	}
}

func TestBlockHeightCached(t *testing.T) {
	btc := &fakeBTC{height: 850000}
	s := NewService(btc, nil, time.Minute, nil)

	for i := 0; i < 3; i++ {
		if _, err := s.BlockHeight(context.Background(), BitcoinChainID); err != nil {
			t.Fatal(err)
		}
	}
	if btc.calls != 1 {
		t.Errorf("source called %d times, want 1", btc.calls)
	}
}

func TestBlockHeightTTLExpiry(t *testing.T) {
	btc := &fakeBTC{height: 850000}
	s := NewService(btc, nil, time.Minute, nil)

	clock := time.Now()
	s.now = func() time.Time { return clock }

	s.BlockHeight(context.Background(), BitcoinChainID)
	clock = clock.Add(2 * time.Minute)
	s.BlockHeight(context.Background(), BitcoinChainID)

	if btc.calls != 2 {
		t.Errorf("source called %d times, want 2 after TTL expiry", btc.calls)
	}
}

func TestBlockHeightErrors(t *testing.T) {
	s := NewService(nil, nil, 0, nil)
	if _, err := s.BlockHeight(context.Background(), BitcoinChainID); err == nil {
		t.Error("expected error with no bitcoin source")
	}
	if _, err := s.BlockHeight(context.Background(), 1); err == nil {
		t.Error("expected error with no EVM source")
	}

	rpcErr := errors.New("rpc down")
	s = NewService(&fakeBTC{err: rpcErr}, &fakeEVM{err: rpcErr}, 0, nil)
	if _, err := s.BlockHeight(context.Background(), BitcoinChainID); !errors.Is(err, rpcErr) {
		t.Errorf("expected wrapped rpc error, got %v", err)
	}
	if _, err := s.BlockHeight(context.Background(), 5115); !errors.Is(err, rpcErr) {
		t.Errorf("expected wrapped rpc error, got %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	btc := &fakeBTC{height: 850000}
	s := NewService(btc, nil, time.Minute, nil)

	s.BlockHeight(context.Background(), BitcoinChainID)
	s.Invalidate()
	s.BlockHeight(context.Background(), BitcoinChainID)

	if btc.calls != 2 {
		t.Errorf("source called %d times, want 2 after Invalidate", btc.calls)
	}
}
