package swap

import "encoding/json"

// ClaimDetails carries the HTLC data a reverse or chain swap needs on
// the receiving side. Leaves are hex-encoded tapscript leaf scripts.
type ClaimDetails struct {
	LockupAddress string `json:"lockupAddress,omitempty"`
	ClaimLeaf     string `json:"claimLeaf,omitempty"`
	RefundLeaf    string `json:"refundLeaf,omitempty"`
	Preimage      string `json:"preimage,omitempty"`
}

// LockupDetails carries the HTLC data for the sending-side lockup of a
// chain swap.
type LockupDetails struct {
	LockupAddress string `json:"lockupAddress,omitempty"`
	ClaimLeaf     string `json:"claimLeaf,omitempty"`
	RefundLeaf    string `json:"refundLeaf,omitempty"`
}

// ParseClaimDetails decodes a stored JSON claim-details blob. An empty
// blob yields nil without error; a malformed one yields nil too, since
// a fixer whose required fields are absent simply does not apply.
func ParseClaimDetails(raw string) *ClaimDetails {
	if raw == "" {
		return nil
	}
	var d ClaimDetails
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil
	}
	return &d
}

// ParseLockupDetails decodes a stored JSON lockup-details blob with the
// same leniency as ParseClaimDetails.
func ParseLockupDetails(raw string) *LockupDetails {
	if raw == "" {
		return nil
	}
	var d LockupDetails
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil
	}
	return &d
}

// Encode serializes the details for storage. Nil-safe.
func (d *ClaimDetails) Encode() string {
	if d == nil {
		return ""
	}
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}

// Encode serializes the details for storage. Nil-safe.
func (d *LockupDetails) Encode() string {
	if d == nil {
		return ""
	}
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}
