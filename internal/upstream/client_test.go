package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klingon-exchange/bridgesync/internal/swap"
)

func TestGetSwapStatuses(t *testing.T) {
	var gotIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap/status" || r.Method != "POST" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string][]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		gotIDs = req["ids"]

		json.NewEncoder(w).Encode(map[string]SwapStatus{
			"swap-1": {Status: swap.StatusTxClaimed, Transaction: &Transaction{ID: "claimtx"}},
			"swap-2": {Status: swap.StatusLockupFailed, FailureReason: "amount too low"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	statuses, err := c.GetSwapStatuses(context.Background(), []string{"swap-1", "swap-2", "swap-3"})
	if err != nil {
		t.Fatalf("GetSwapStatuses: %v", err)
	}
	if len(gotIDs) != 3 {
		t.Errorf("sent ids = %v", gotIDs)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses", len(statuses))
	}
	if s := statuses["swap-1"]; s.Status != swap.StatusTxClaimed || s.Transaction.ID != "claimtx" {
		t.Errorf("swap-1 = %+v", s)
	}
	if s := statuses["swap-2"]; s.FailureReason != "amount too low" || s.Transaction != nil {
		t.Errorf("swap-2 = %+v", s)
	}
	if _, ok := statuses["swap-3"]; ok {
		t.Error("unknown swap should be absent")
	}
}

func TestGetSwapStatusesEmpty(t *testing.T) {
	c := NewClient("http://127.0.0.1:1") // must not be contacted
	statuses, err := c.GetSwapStatuses(context.Background(), nil)
	if err != nil || len(statuses) != 0 {
		t.Errorf("got %v, %v", statuses, err)
	}
}

func TestGetSwapStatusesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.GetSwapStatuses(context.Background(), []string{"x"}); !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv2.Close()

	c = NewClient(srv2.URL)
	if _, err := c.GetSwapStatuses(context.Background(), []string{"x"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
