package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/totegamma/ethsign"
)

// Attestation is one instantiation of a schema. The revocation fields are
// always present and stay inert until the attestation is revoked.
type Attestation struct {
	ID              uint64           `json:"id"`
	SchemaID        uint64           `json:"schemaId"`
	Creator         common.Address   `json:"creator"`
	Recipient       common.Address   `json:"recipient"`
	Signatories     []common.Address `json:"signatories"`
	Payload         []FieldValue     `json:"payload"`
	CreatedAt       time.Time        `json:"createdAt"`
	Signature       hexutil.Bytes    `json:"signature"`
	IsRevoked       bool             `json:"isRevoked"`
	RevokedAt       *time.Time       `json:"revokedAt,omitempty"`
	RevokeSignature hexutil.Bytes    `json:"revokeSignature,omitempty"`
}

func (a Attestation) HasRecipient() bool {
	return !ethsign.IsZeroAddress(a.Recipient)
}

// Participants returns the distinct identities indexed for this attestation:
// the recipient when set, followed by the signatories in declared order.
func (a Attestation) Participants() []common.Address {
	seen := make(map[common.Address]bool)
	result := make([]common.Address, 0, len(a.Signatories)+1)
	if a.HasRecipient() {
		seen[a.Recipient] = true
		result = append(result, a.Recipient)
	}
	for _, s := range a.Signatories {
		if seen[s] {
			continue
		}
		seen[s] = true
		result = append(result, s)
	}
	return result
}

func (a Attestation) IsSignatory(addr common.Address) bool {
	for _, s := range a.Signatories {
		if s == addr {
			return true
		}
	}
	return false
}

// MintedToRecipient reports whether a tokenized schema issues this
// attestation's token straight to the recipient at creation time.
func (a Attestation) MintedToRecipient() bool {
	return len(a.Signatories) == 0 && a.HasRecipient()
}

// Revocation is the write applied by the revocation engine.
type Revocation struct {
	AttestationID uint64
	RevokedAt     time.Time
	Signature     []byte
}
