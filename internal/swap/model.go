package swap

import "math/big"

// Type is the swap protocol variant.
type Type string

const (
	// TypeSubmarine swaps on-chain funds into a Lightning payment.
	TypeSubmarine Type = "submarine"

	// TypeReverse swaps a Lightning payment into on-chain funds.
	TypeReverse Type = "reverse"

	// TypeChain swaps between two chains (BTC<->EVM or EVM<->EVM).
	TypeChain Type = "chain"
)

// BridgeSwap is one cross-chain swap as recorded in the local ledger.
// Rows are only ever status-mutated, never deleted.
type BridgeSwap struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Type   Type   `json:"type"`
	Status Status `json:"status"`

	AssetSend     string   `json:"assetSend"`
	AssetReceive  string   `json:"assetReceive"`
	SendAmount    *big.Int `json:"sendAmount"`
	ReceiveAmount *big.Int `json:"receiveAmount"`

	CreatedAt int64 `json:"createdAt"`

	// Preimage is hex, empty until known locally. PreimageHash is the
	// SHA256 of the preimage, hex, trusted as given. PreimageSeed is a
	// BIP-39 mnemonic the preimage entropy can be rederived from.
	Preimage     string `json:"preimage,omitempty"`
	PreimageHash string `json:"preimageHash"`
	PreimageSeed string `json:"preimageSeed,omitempty"`

	KeyIndex       uint32 `json:"keyIndex"`
	RefundKeyIndex uint32 `json:"refundKeyIndex"`

	ClaimAddress  string `json:"claimAddress,omitempty"`
	RefundAddress string `json:"refundAddress,omitempty"`
	LockupAddress string `json:"lockupAddress,omitempty"`

	// Transaction ids, empty until observed.
	ClaimTx  string `json:"claimTx,omitempty"`
	RefundTx string `json:"refundTx,omitempty"`
	LockupTx string `json:"lockupTx,omitempty"`

	Invoice        string   `json:"invoice,omitempty"`
	ExpectedAmount *big.Int `json:"expectedAmount,omitempty"`
	OnchainAmount  *big.Int `json:"onchainAmount,omitempty"`

	TimeoutBlockHeight uint64 `json:"timeoutBlockHeight"`

	ClaimDetails  *ClaimDetails  `json:"claimDetails,omitempty"`
	LockupDetails *LockupDetails `json:"lockupDetails,omitempty"`

	// ChainID of the EVM leg, 0 for pure bitcoin swaps.
	ChainID uint64 `json:"chainId,omitempty"`
}

// Clone returns a copy safe to mutate without affecting the original.
// Amounts are shared; reconciliation never mutates them.
func (s *BridgeSwap) Clone() *BridgeSwap {
	c := *s
	if s.ClaimDetails != nil {
		cd := *s.ClaimDetails
		c.ClaimDetails = &cd
	}
	if s.LockupDetails != nil {
		ld := *s.LockupDetails
		c.LockupDetails = &ld
	}
	return &c
}
