package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klingon-exchange/bridgesync/internal/storage"
	"github.com/klingon-exchange/bridgesync/internal/swap"
)

// Version of the daemon.
const Version = "0.1.0-dev"

// NodeStatusResult is the response for node_status.
type NodeStatusResult struct {
	Running       bool   `json:"running"`
	Version       string `json:"version"`
	Network       string `json:"network"`
	Uptime        string `json:"uptime"`
	OpenSwaps     int    `json:"open_swaps"`
	ResolvedSwaps int    `json:"resolved_swaps"`
	WSClients     int    `json:"ws_clients"`
}

func (s *Server) nodeStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	open, terminal := 0, 0
	if s.store != nil {
		o, t, err := s.store.SwapCount()
		if err == nil {
			open, terminal = o, t
		}
	}

	return &NodeStatusResult{
		Running:       true,
		Version:       Version,
		Network:       s.network,
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		OpenSwaps:     open,
		ResolvedSwaps: terminal,
		WSClients:     s.wsHub.ClientCount(),
	}, nil
}

// SwapsListParams is the parameters for swaps_list.
type SwapsListParams struct {
	UserID string `json:"user_id"`
}

// SwapsListResult is the response for swaps_list.
type SwapsListResult struct {
	Swaps []*swap.BridgeSwap `json:"swaps"`
	Count int                `json:"count"`
}

// swapsList reconciles and returns all swaps of a user. Statuses in the
// response are already corrected against upstream and on-chain data.
func (s *Server) swapsList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p SwapsListParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	swaps, err := s.syncer.Sync(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to sync swaps: %w", err)
	}
	if swaps == nil {
		swaps = []*swap.BridgeSwap{}
	}

	return &SwapsListResult{
		Swaps: swaps,
		Count: len(swaps),
	}, nil
}

// SwapsGetParams is the parameters for swaps_get.
type SwapsGetParams struct {
	ID string `json:"id"`
}

// swapsGet returns a single swap by id, reconciled together with the
// rest of its user's swaps.
func (s *Server) swapsGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p SwapsGetParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("id is required")
	}

	stored, err := s.store.GetSwap(p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load swap: %w", err)
	}

	swaps, err := s.syncer.Sync(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to sync swaps: %w", err)
	}
	for _, sw := range swaps {
		if sw.ID == p.ID {
			return sw, nil
		}
	}

	return stored, nil
}

// SwapsActionableParams is the parameters for swaps_actionable.
type SwapsActionableParams struct {
	UserID string `json:"user_id"`
}

// swapsActionable returns lockups the user can claim or refund now, and
// those still waiting on their timelock.
func (s *Server) swapsActionable(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p SwapsActionableParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	return s.calculator.Compute(ctx, p.UserID), nil
}

var _ SwapStore = (*storage.Storage)(nil)
