// Package codec builds the canonical byte messages that creators and
// signatories sign. Records are RLP encoded so the same content always yields
// the same bytes; timestamps are encoded as unix seconds.
package codec

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/totegamma/ethsign/internal/domain"
)

type fieldDefinition struct {
	Type uint8
	Name string
}

type policyClause struct {
	Logic       string
	Description string
	SchemaIDs   []uint64
}

type schemaContent struct {
	Name             string
	Description      string
	Category         string
	Creator          common.Address
	IsPublic         bool
	IsRevokable      bool
	IsTokenized      bool
	CollectionName   string
	CollectionSymbol string
	ExpireIn         uint64
	Fields           []fieldDefinition
	Policies         []policyClause
}

type attestationContent struct {
	ID        uint64
	SchemaID  uint64
	Creator   common.Address
	Recipient common.Address
	CreatedAt uint64
}

type signatureContent struct {
	AttestationID uint64
}

type revocationContent struct {
	AttestationID uint64
	Revoked       bool
	RevokedAt     uint64
}

func unixSeconds(t time.Time) uint64 {
	if t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}

// SchemaMessage encodes the metadata, field definitions and policy of a
// schema. Id, creation time and signature are not part of the message.
func SchemaMessage(s domain.Schema) ([]byte, error) {
	fields := make([]fieldDefinition, 0, len(s.Fields))
	for _, f := range s.Fields {
		fields = append(fields, fieldDefinition{Type: uint8(f.Type), Name: f.Name})
	}

	policies := make([]policyClause, 0, len(s.Policies))
	for _, p := range s.Policies {
		ids := p.SchemaIDs
		if ids == nil {
			ids = []uint64{}
		}
		policies = append(policies, policyClause{
			Logic:       string(p.Logic),
			Description: p.Description,
			SchemaIDs:   ids,
		})
	}

	return rlp.EncodeToBytes(schemaContent{
		Name:             s.Name,
		Description:      s.Description,
		Category:         s.Category,
		Creator:          s.Creator,
		IsPublic:         s.IsPublic,
		IsRevokable:      s.IsRevokable,
		IsTokenized:      s.IsTokenized,
		CollectionName:   s.CollectionName,
		CollectionSymbol: s.CollectionSymbol,
		ExpireIn:         s.ExpireIn,
		Fields:           fields,
		Policies:         policies,
	})
}

// AttestationMessage encodes the attestation header. The id is always the
// zero placeholder because it is assigned after the creator signs.
func AttestationMessage(schemaID uint64, creator, recipient common.Address, createdAt time.Time) ([]byte, error) {
	return rlp.EncodeToBytes(attestationContent{
		ID:        0,
		SchemaID:  schemaID,
		Creator:   creator,
		Recipient: recipient,
		CreatedAt: unixSeconds(createdAt),
	})
}

func SignatureMessage(attestationID uint64) ([]byte, error) {
	return rlp.EncodeToBytes(signatureContent{AttestationID: attestationID})
}

func RevocationMessage(attestationID uint64, revokedAt time.Time) ([]byte, error) {
	return rlp.EncodeToBytes(revocationContent{
		AttestationID: attestationID,
		Revoked:       true,
		RevokedAt:     unixSeconds(revokedAt),
	})
}
