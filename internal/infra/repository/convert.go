package repository

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/internal/infra/database/models"
	"github.com/totegamma/ethsign/policy"
)

func encodeHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return hexutil.Encode(b)
}

func decodeHex(s string) (hexutil.Bytes, error) {
	if s == "" {
		return nil, nil
	}
	return hexutil.Decode(s)
}

func addressesToArray(addrs []common.Address) pq.StringArray {
	arr := make(pq.StringArray, 0, len(addrs))
	for _, a := range addrs {
		arr = append(arr, a.Hex())
	}
	return arr
}

func arrayToAddresses(arr pq.StringArray) []common.Address {
	addrs := make([]common.Address, 0, len(arr))
	for _, s := range arr {
		addrs = append(addrs, common.HexToAddress(s))
	}
	return addrs
}

func schemaToModel(s domain.Schema) (models.Schema, error) {
	fields, err := json.Marshal(s.Fields)
	if err != nil {
		return models.Schema{}, errors.Wrap(err, "marshal fields")
	}
	policies := s.Policies
	if policies == nil {
		policies = []policy.Clause{}
	}
	policyJSON, err := json.Marshal(policies)
	if err != nil {
		return models.Schema{}, errors.Wrap(err, "marshal policies")
	}
	return models.Schema{
		ID:               int64(s.ID),
		Name:             s.Name,
		Description:      s.Description,
		Category:         s.Category,
		Creator:          s.Creator.Hex(),
		IsPublic:         s.IsPublic,
		IsRevokable:      s.IsRevokable,
		IsTokenized:      s.IsTokenized,
		CollectionName:   s.CollectionName,
		CollectionSymbol: s.CollectionSymbol,
		ExpireIn:         int64(s.ExpireIn),
		Fields:           string(fields),
		Policies:         string(policyJSON),
		Signature:        encodeHex(s.Signature),
		CDate:            s.CreatedAt,
	}, nil
}

func schemaFromModel(m models.Schema) (domain.Schema, error) {
	var fields []domain.FieldDefinition
	if err := json.Unmarshal([]byte(m.Fields), &fields); err != nil {
		return domain.Schema{}, errors.Wrap(err, "unmarshal fields")
	}
	var policies []policy.Clause
	if err := json.Unmarshal([]byte(m.Policies), &policies); err != nil {
		return domain.Schema{}, errors.Wrap(err, "unmarshal policies")
	}
	signature, err := decodeHex(m.Signature)
	if err != nil {
		return domain.Schema{}, errors.Wrap(err, "decode signature")
	}
	return domain.Schema{
		ID:               uint64(m.ID),
		Name:             m.Name,
		Description:      m.Description,
		Category:         m.Category,
		Creator:          common.HexToAddress(m.Creator),
		CreatedAt:        m.CDate.UTC(),
		IsPublic:         m.IsPublic,
		IsRevokable:      m.IsRevokable,
		IsTokenized:      m.IsTokenized,
		CollectionName:   m.CollectionName,
		CollectionSymbol: m.CollectionSymbol,
		ExpireIn:         uint64(m.ExpireIn),
		Fields:           fields,
		Policies:         policies,
		Signature:        signature,
	}, nil
}

func attestationToModel(a domain.Attestation) (models.Attestation, error) {
	payload := a.Payload
	if payload == nil {
		payload = []domain.FieldValue{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return models.Attestation{}, errors.Wrap(err, "marshal payload")
	}
	return models.Attestation{
		ID:              int64(a.ID),
		SchemaID:        int64(a.SchemaID),
		Creator:         a.Creator.Hex(),
		Recipient:       a.Recipient.Hex(),
		Signatories:     addressesToArray(a.Signatories),
		Payload:         string(payloadJSON),
		Signature:       encodeHex(a.Signature),
		IsRevoked:       a.IsRevoked,
		RevokedAt:       a.RevokedAt,
		RevokeSignature: encodeHex(a.RevokeSignature),
		CDate:           a.CreatedAt,
	}, nil
}

func attestationFromModel(m models.Attestation) (domain.Attestation, error) {
	var payload []domain.FieldValue
	if err := json.Unmarshal([]byte(m.Payload), &payload); err != nil {
		return domain.Attestation{}, errors.Wrap(err, "unmarshal payload")
	}
	signature, err := decodeHex(m.Signature)
	if err != nil {
		return domain.Attestation{}, errors.Wrap(err, "decode signature")
	}
	revokeSignature, err := decodeHex(m.RevokeSignature)
	if err != nil {
		return domain.Attestation{}, errors.Wrap(err, "decode revoke signature")
	}
	var revokedAt = m.RevokedAt
	if revokedAt != nil {
		t := revokedAt.UTC()
		revokedAt = &t
	}
	return domain.Attestation{
		ID:              uint64(m.ID),
		SchemaID:        uint64(m.SchemaID),
		Creator:         common.HexToAddress(m.Creator),
		Recipient:       common.HexToAddress(m.Recipient),
		Signatories:     arrayToAddresses(m.Signatories),
		Payload:         payload,
		CreatedAt:       m.CDate.UTC(),
		Signature:       signature,
		IsRevoked:       m.IsRevoked,
		RevokedAt:       revokedAt,
		RevokeSignature: revokeSignature,
	}, nil
}

func proofFromModel(m models.ProofOfSignature) (domain.ProofOfSignature, error) {
	signature, err := decodeHex(m.Signature)
	if err != nil {
		return domain.ProofOfSignature{}, errors.Wrap(err, "decode signature")
	}
	return domain.ProofOfSignature{
		AttestationID: uint64(m.AttestationID),
		Signer:        common.HexToAddress(m.Signer),
		SignedAt:      m.CDate.UTC(),
		Signature:     signature,
	}, nil
}

func agreementFromModel(m models.ProofOfAgreement) (domain.ProofOfAgreement, error) {
	signatures := make([]hexutil.Bytes, 0, len(m.Signatures))
	for _, s := range m.Signatures {
		b, err := decodeHex(s)
		if err != nil {
			return domain.ProofOfAgreement{}, errors.Wrap(err, "decode signature")
		}
		signatures = append(signatures, b)
	}
	return domain.ProofOfAgreement{
		AttestationID: uint64(m.AttestationID),
		Signatures:    signatures,
		CreatedAt:     m.CDate.UTC(),
	}, nil
}
