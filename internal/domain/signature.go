package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type ProofOfSignature struct {
	AttestationID uint64         `json:"attestationId"`
	Signer        common.Address `json:"signer"`
	SignedAt      time.Time      `json:"signedAt"`
	Signature     hexutil.Bytes  `json:"signature"`
}

// ProofOfAgreement holds every required signature in the attestation's
// declared signatory order.
type ProofOfAgreement struct {
	AttestationID uint64          `json:"attestationId"`
	Signatures    []hexutil.Bytes `json:"signatures"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewProofOfAgreement orders proofs by declared signatories. It returns false
// when a declared signatory has no proof yet.
func NewProofOfAgreement(att Attestation, proofs []ProofOfSignature, now time.Time) (ProofOfAgreement, bool) {
	bySigner := make(map[common.Address]ProofOfSignature, len(proofs))
	for _, p := range proofs {
		bySigner[p.Signer] = p
	}

	signatures := make([]hexutil.Bytes, 0, len(att.Signatories))
	for _, signer := range att.Signatories {
		p, ok := bySigner[signer]
		if !ok {
			return ProofOfAgreement{}, false
		}
		signatures = append(signatures, p.Signature)
	}

	return ProofOfAgreement{
		AttestationID: att.ID,
		Signatures:    signatures,
		CreatedAt:     now,
	}, true
}

type AgreementState string

const (
	AgreementPending AgreementState = "pending"
	AgreementAgreed  AgreementState = "agreed"
)

// AttestationStatus is the externally observable progress of an attestation.
type AttestationStatus struct {
	AttestationID uint64         `json:"attestationId"`
	State         AgreementState `json:"state"`
	Required      int            `json:"required"`
	Signed        int            `json:"signed"`
	IsRevoked     bool           `json:"isRevoked"`
}
