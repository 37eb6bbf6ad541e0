// Package memory keeps engine state in process. It backs development mode
// and the usecase tests; every write holds the store lock until its hook
// returns, so a failing hook leaves no trace.
package memory

import (
	"slices"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/totegamma/ethsign/internal/domain"
)

type participantKey struct {
	SchemaID    uint64
	Participant common.Address
}

// Store is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	schemaSeq      uint64
	attestationSeq uint64

	schemas      map[uint64]domain.Schema
	collections  map[uint64]domain.TokenCollection
	attestations map[uint64]domain.Attestation
	participants map[participantKey]map[uint64]bool
	proofs       map[uint64][]domain.ProofOfSignature
	agreements   map[uint64]domain.ProofOfAgreement
}

func NewStore() *Store {
	return &Store{
		schemas:      make(map[uint64]domain.Schema),
		collections:  make(map[uint64]domain.TokenCollection),
		attestations: make(map[uint64]domain.Attestation),
		participants: make(map[participantKey]map[uint64]bool),
		proofs:       make(map[uint64][]domain.ProofOfSignature),
		agreements:   make(map[uint64]domain.ProofOfAgreement),
	}
}

func cloneSchema(s domain.Schema) domain.Schema {
	s.Fields = slices.Clone(s.Fields)
	s.Policies = slices.Clone(s.Policies)
	for i := range s.Policies {
		s.Policies[i].SchemaIDs = slices.Clone(s.Policies[i].SchemaIDs)
	}
	s.Signature = slices.Clone(s.Signature)
	return s
}

func cloneValue(v domain.FieldValue) domain.FieldValue {
	if v.Uint != nil {
		v.Uint = new(uint256.Int).Set(v.Uint)
	}
	v.Bytes = slices.Clone(v.Bytes)
	return v
}

func cloneAttestation(a domain.Attestation) domain.Attestation {
	a.Signatories = slices.Clone(a.Signatories)
	payload := make([]domain.FieldValue, len(a.Payload))
	for i, v := range a.Payload {
		payload[i] = cloneValue(v)
	}
	a.Payload = payload
	a.Signature = slices.Clone(a.Signature)
	a.RevokeSignature = slices.Clone(a.RevokeSignature)
	if a.RevokedAt != nil {
		t := *a.RevokedAt
		a.RevokedAt = &t
	}
	return a
}

func cloneProofs(proofs []domain.ProofOfSignature) []domain.ProofOfSignature {
	result := make([]domain.ProofOfSignature, len(proofs))
	for i, p := range proofs {
		p.Signature = slices.Clone(p.Signature)
		result[i] = p
	}
	return result
}

func cloneAgreement(a domain.ProofOfAgreement) domain.ProofOfAgreement {
	signatures := make([]hexutil.Bytes, len(a.Signatures))
	for i, sig := range a.Signatures {
		signatures[i] = slices.Clone(sig)
	}
	a.Signatures = signatures
	return a
}

func sortedIDs(set map[uint64]bool) []uint64 {
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
