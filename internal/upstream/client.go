// Package upstream provides the client for the upstream swap-status
// service, the authoritative (but sometimes stale) status feed.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klingon-exchange/bridgesync/internal/swap"
)

var (
	ErrUnavailable = errors.New("upstream unavailable")
	ErrRateLimited = errors.New("rate limited")
)

// SwapStatus is one swap's upstream status entry.
type SwapStatus struct {
	Status        swap.Status  `json:"status"`
	Transaction   *Transaction `json:"transaction,omitempty"`
	FailureReason string       `json:"failureReason,omitempty"`
}

// Transaction carries the transaction the upstream associates with the
// current status, when it knows one.
type Transaction struct {
	ID  string `json:"id"`
	Hex string `json:"hex,omitempty"`
}

// Client talks to the upstream swap-status service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an upstream client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetSwapStatuses fetches the current statuses for a batch of swap ids.
// Ids unknown to the upstream are absent from the result.
func (c *Client) GetSwapStatuses(ctx context.Context, ids []string) (map[string]SwapStatus, error) {
	if len(ids) == 0 {
		return map[string]SwapStatus{}, nil
	}

	payload, err := json.Marshal(map[string][]string{"ids": ids})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/swap/status", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var result map[string]SwapStatus
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}
	return result, nil
}
