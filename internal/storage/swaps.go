// Package storage - bridge swap ledger persistence.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/klingon-exchange/bridgesync/internal/swap"
)

// Swap persistence errors
var (
	ErrSwapNotFound = errors.New("swap not found")
	ErrInvalidField = errors.New("invalid transaction field")
)

// TxField names the transaction-hash column an outcome update writes.
type TxField string

const (
	TxFieldNone   TxField = ""
	TxFieldClaim  TxField = "claim_tx"
	TxFieldRefund TxField = "refund_tx"
	TxFieldLockup TxField = "lockup_tx"
)

const swapColumns = `id, user_id, type, status, asset_send, asset_receive,
	send_amount, receive_amount, preimage, preimage_hash, preimage_seed,
	key_index, refund_key_index, claim_address, refund_address, lockup_address,
	claim_tx, refund_tx, lockup_tx, invoice, expected_amount, onchain_amount,
	timeout_block_height, claim_details, lockup_details, chain_id,
	created_at, updated_at`

// UpsertSwap saves or updates a swap record.
func (s *Storage) UpsertSwap(sw *swap.BridgeSwap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	if sw.CreatedAt == 0 {
		sw.CreatedAt = now
	}

	query := `
		INSERT INTO bridge_swaps (` + swapColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			preimage = excluded.preimage,
			claim_address = excluded.claim_address,
			refund_address = excluded.refund_address,
			lockup_address = excluded.lockup_address,
			claim_tx = excluded.claim_tx,
			refund_tx = excluded.refund_tx,
			lockup_tx = excluded.lockup_tx,
			invoice = excluded.invoice,
			expected_amount = excluded.expected_amount,
			onchain_amount = excluded.onchain_amount,
			timeout_block_height = excluded.timeout_block_height,
			claim_details = excluded.claim_details,
			lockup_details = excluded.lockup_details,
			updated_at = excluded.updated_at
	`

	_, err := s.db.Exec(query,
		sw.ID,
		sw.UserID,
		string(sw.Type),
		string(sw.Status),
		sw.AssetSend,
		sw.AssetReceive,
		bigToString(sw.SendAmount),
		bigToString(sw.ReceiveAmount),
		sw.Preimage,
		sw.PreimageHash,
		sw.PreimageSeed,
		sw.KeyIndex,
		sw.RefundKeyIndex,
		sw.ClaimAddress,
		sw.RefundAddress,
		sw.LockupAddress,
		sw.ClaimTx,
		sw.RefundTx,
		sw.LockupTx,
		sw.Invoice,
		bigToString(sw.ExpectedAmount),
		bigToString(sw.OnchainAmount),
		sw.TimeoutBlockHeight,
		sw.ClaimDetails.Encode(),
		sw.LockupDetails.Encode(),
		sw.ChainID,
		sw.CreatedAt,
		now,
	)
	return err
}

// GetSwap retrieves a swap by id.
func (s *Storage) GetSwap(id string) (*swap.BridgeSwap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+swapColumns+` FROM bridge_swaps WHERE id = ?`, id)
	sw, err := scanSwap(row)
	if err == sql.ErrNoRows {
		return nil, ErrSwapNotFound
	}
	return sw, err
}

// SwapsByUser returns all of a user's swaps, oldest first.
func (s *Storage) SwapsByUser(userID string) ([]*swap.BridgeSwap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT `+swapColumns+` FROM bridge_swaps WHERE user_id = ? ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSwaps(rows)
}

// SwapByPreimageHash returns the user's swap with the given preimage
// hash, if any.
func (s *Storage) SwapByPreimageHash(userID, preimageHash string) (*swap.BridgeSwap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT `+swapColumns+` FROM bridge_swaps WHERE user_id = ? AND preimage_hash = ? ORDER BY created_at DESC LIMIT 1`,
		userID, preimageHash,
	)
	sw, err := scanSwap(row)
	if err == sql.ErrNoRows {
		return nil, ErrSwapNotFound
	}
	return sw, err
}

// UpdateSwapOutcome writes a swap's resolved status and, when txField
// names one, the corresponding transaction hash. Nothing else changes.
func (s *Storage) UpdateSwapOutcome(id string, status swap.Status, txField TxField, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch txField {
	case TxFieldNone, TxFieldClaim, TxFieldRefund, TxFieldLockup:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidField, txField)
	}

	now := time.Now().Unix()

	var (
		result sql.Result
		err    error
	)
	if txField == TxFieldNone || txID == "" {
		result, err = s.db.Exec(
			`UPDATE bridge_swaps SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), now, id,
		)
	} else {
		// Column name comes from the validated allowlist above.
		query := fmt.Sprintf(
			`UPDATE bridge_swaps SET status = ?, %s = ?, updated_at = ? WHERE id = ?`,
			txField,
		)
		result, err = s.db.Exec(query, string(status), txID, now, id)
	}
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSwapNotFound
	}
	return nil
}

// UsersWithOpenSwaps returns the ids of users who have at least one
// swap that is not terminal.
func (s *Storage) UsersWithOpenSwaps() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terminal := swap.TerminalStatuses()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(terminal)), ", ")
	args := make([]interface{}, len(terminal))
	for i, st := range terminal {
		args[i] = string(st)
	}

	rows, err := s.db.Query(
		`SELECT DISTINCT user_id FROM bridge_swaps WHERE status NOT IN (`+placeholders+`) ORDER BY user_id`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SwapCount returns counts of open and terminal swaps.
func (s *Storage) SwapCount() (open, terminal int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := swap.TerminalStatuses()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]interface{}, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}

	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM bridge_swaps WHERE status NOT IN (`+placeholders+`)`, args...,
	).Scan(&open)
	if err != nil {
		return
	}

	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM bridge_swaps WHERE status IN (`+placeholders+`)`, args...,
	).Scan(&terminal)
	return
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSwap(row rowScanner) (*swap.BridgeSwap, error) {
	var sw swap.BridgeSwap
	var swapType, status string
	var sendAmount, receiveAmount, expectedAmount, onchainAmount sql.NullString
	var preimage, preimageSeed sql.NullString
	var claimAddr, refundAddr, lockupAddr sql.NullString
	var claimTx, refundTx, lockupTx, invoice sql.NullString
	var claimDetails, lockupDetails sql.NullString
	var updatedAt int64

	err := row.Scan(
		&sw.ID,
		&sw.UserID,
		&swapType,
		&status,
		&sw.AssetSend,
		&sw.AssetReceive,
		&sendAmount,
		&receiveAmount,
		&preimage,
		&sw.PreimageHash,
		&preimageSeed,
		&sw.KeyIndex,
		&sw.RefundKeyIndex,
		&claimAddr,
		&refundAddr,
		&lockupAddr,
		&claimTx,
		&refundTx,
		&lockupTx,
		&invoice,
		&expectedAmount,
		&onchainAmount,
		&sw.TimeoutBlockHeight,
		&claimDetails,
		&lockupDetails,
		&sw.ChainID,
		&sw.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	sw.Type = swap.Type(swapType)
	sw.Status = swap.Status(status)
	sw.SendAmount = stringToBig(sendAmount)
	sw.ReceiveAmount = stringToBig(receiveAmount)
	sw.ExpectedAmount = stringToBig(expectedAmount)
	sw.OnchainAmount = stringToBig(onchainAmount)
	sw.Preimage = preimage.String
	sw.PreimageSeed = preimageSeed.String
	sw.ClaimAddress = claimAddr.String
	sw.RefundAddress = refundAddr.String
	sw.LockupAddress = lockupAddr.String
	sw.ClaimTx = claimTx.String
	sw.RefundTx = refundTx.String
	sw.LockupTx = lockupTx.String
	sw.Invoice = invoice.String
	sw.ClaimDetails = swap.ParseClaimDetails(claimDetails.String)
	sw.LockupDetails = swap.ParseLockupDetails(lockupDetails.String)

	return &sw, nil
}

func collectSwaps(rows *sql.Rows) ([]*swap.BridgeSwap, error) {
	var swaps []*swap.BridgeSwap
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, sw)
	}
	return swaps, rows.Err()
}

func bigToString(n *big.Int) string {
	if n == nil {
		return ""
	}
	return n.String()
}

func stringToBig(s sql.NullString) *big.Int {
	if !s.Valid || s.String == "" {
		return nil
	}
	n, ok := new(big.Int).SetString(s.String, 10)
	if !ok {
		return nil
	}
	return n
}
