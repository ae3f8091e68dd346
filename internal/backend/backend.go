// Package backend provides read-only bitcoin chain indexer clients.
// Reconciliation only inspects address history and transactions; nothing
// here signs or broadcasts.
package backend

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Common errors
var (
	ErrNotConnected    = errors.New("backend not connected")
	ErrTxNotFound      = errors.New("transaction not found")
	ErrAddressNotFound = errors.New("address not found")
	ErrInvalidTxID     = errors.New("invalid transaction id")
	ErrRateLimited     = errors.New("rate limited")
)

// Type represents the backend type.
type Type string

const (
	TypeMempool Type = "mempool" // mempool.space API
	TypeEsplora Type = "esplora" // blockstream.info API
)

// Transaction represents an indexed transaction.
type Transaction struct {
	TxID        string     `json:"txid"`
	Version     int32      `json:"version"`
	LockTime    uint32     `json:"locktime"`
	Fee         uint64     `json:"fee"`
	Confirmed   bool       `json:"confirmed"`
	BlockHash   string     `json:"block_hash,omitempty"`
	BlockHeight int64      `json:"block_height,omitempty"`
	BlockTime   int64      `json:"block_time,omitempty"`
	Inputs      []TxInput  `json:"vin"`
	Outputs     []TxOutput `json:"vout"`
}

// TxInput represents a transaction input. Witness items are hex strings
// in stack order, which is what leaf matching works on.
type TxInput struct {
	TxID      string    `json:"txid"`
	Vout      uint32    `json:"vout"`
	ScriptSig string    `json:"scriptsig,omitempty"`
	Witness   []string  `json:"witness,omitempty"`
	Sequence  uint32    `json:"sequence"`
	PrevOut   *TxOutput `json:"prevout,omitempty"`
}

// TxOutput represents a transaction output.
type TxOutput struct {
	ScriptPubKey     string `json:"scriptpubkey"`
	ScriptPubKeyAddr string `json:"scriptpubkey_address,omitempty"`
	Value            uint64 `json:"value"`
}

// Backend defines the interface for bitcoin chain data providers.
type Backend interface {
	// Type returns the backend type (mempool, esplora).
	Type() Type

	// Connect establishes connection to the backend.
	Connect(ctx context.Context) error

	// Close closes the connection.
	Close() error

	// IsConnected returns true if connected.
	IsConnected() bool

	// GetAddressTxs returns transactions touching an address, newest
	// first, including unconfirmed ones. lastSeenTxID pages through
	// confirmed history.
	GetAddressTxs(ctx context.Context, address string, lastSeenTxID string) ([]Transaction, error)

	// GetTransaction returns a transaction by ID.
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)

	// GetBlockHeight returns the current tip height.
	GetBlockHeight(ctx context.Context) (int64, error)
}

// Config contains backend configuration.
type Config struct {
	Type       Type   `yaml:"type"`
	MainnetURL string `yaml:"mainnet"`
	TestnetURL string `yaml:"testnet"`

	// Timeout in seconds, default 30.
	Timeout int `yaml:"timeout,omitempty"`
}

// DefaultConfig returns the default bitcoin backend configuration.
func DefaultConfig() *Config {
	return &Config{
		Type:       TypeMempool,
		MainnetURL: "https://mempool.space/api",
		TestnetURL: "https://mempool.space/testnet4/api",
	}
}

// New creates a backend from a config and base URL.
func New(cfg *Config, url string) (Backend, error) {
	switch cfg.Type {
	case TypeMempool:
		return NewMempoolBackend(url), nil
	case TypeEsplora:
		return NewEsploraBackend(url), nil
	}
	return nil, errors.New("unsupported backend type: " + string(cfg.Type))
}

// validateTxID rejects ids that are not 32-byte hashes before they hit
// the wire.
func validateTxID(txID string) error {
	if _, err := chainhash.NewHashFromStr(txID); err != nil {
		return ErrInvalidTxID
	}
	return nil
}
