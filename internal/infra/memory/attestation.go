package memory

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/internal/usecase"
)

type AttestationRepository struct {
	store *Store
}

func NewAttestationRepository(store *Store) *AttestationRepository {
	return &AttestationRepository{store: store}
}

func (r *AttestationRepository) Create(ctx context.Context, attestation domain.Attestation, hook usecase.AttestationHook) (domain.Attestation, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	attestation = cloneAttestation(attestation)
	attestation.ID = s.attestationSeq + 1

	if hook != nil {
		if err := hook(ctx, cloneAttestation(attestation)); err != nil {
			return domain.Attestation{}, err
		}
	}

	s.attestationSeq = attestation.ID
	s.attestations[attestation.ID] = attestation
	for _, p := range attestation.Participants() {
		key := participantKey{SchemaID: attestation.SchemaID, Participant: p}
		if s.participants[key] == nil {
			s.participants[key] = make(map[uint64]bool)
		}
		s.participants[key][attestation.ID] = true
	}

	return cloneAttestation(attestation), nil
}

func (r *AttestationRepository) Get(ctx context.Context, id uint64) (domain.Attestation, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	attestation, ok := s.attestations[id]
	if !ok {
		return domain.Attestation{}, domain.ErrAttestationNotFound
	}
	return cloneAttestation(attestation), nil
}

func (r *AttestationRepository) GetByParticipant(ctx context.Context, schemaID uint64, participant common.Address) ([]domain.Attestation, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := sortedIDs(s.participants[participantKey{SchemaID: schemaID, Participant: participant}])
	result := make([]domain.Attestation, 0, len(ids))
	for _, id := range ids {
		result = append(result, cloneAttestation(s.attestations[id]))
	}
	return result, nil
}

func (r *AttestationRepository) HeldSchemas(ctx context.Context, participant common.Address, schemaIDs []uint64) (map[uint64]bool, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	held := make(map[uint64]bool, len(schemaIDs))
	for _, id := range schemaIDs {
		held[id] = len(s.participants[participantKey{SchemaID: id, Participant: participant}]) > 0
	}
	return held, nil
}

func (r *AttestationRepository) Revoke(ctx context.Context, revocation domain.Revocation, hook usecase.AttestationHook) (domain.Attestation, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	attestation, ok := s.attestations[revocation.AttestationID]
	if !ok {
		return domain.Attestation{}, domain.ErrAttestationNotFound
	}
	if attestation.IsRevoked {
		return domain.Attestation{}, domain.ErrAlreadyRevoked
	}

	attestation = cloneAttestation(attestation)
	revokedAt := revocation.RevokedAt
	attestation.IsRevoked = true
	attestation.RevokedAt = &revokedAt
	attestation.RevokeSignature = append([]byte(nil), revocation.Signature...)

	if hook != nil {
		if err := hook(ctx, cloneAttestation(attestation)); err != nil {
			return domain.Attestation{}, err
		}
	}

	s.attestations[attestation.ID] = attestation
	for _, p := range attestation.Participants() {
		key := participantKey{SchemaID: attestation.SchemaID, Participant: p}
		delete(s.participants[key], attestation.ID)
		if len(s.participants[key]) == 0 {
			delete(s.participants, key)
		}
	}

	return cloneAttestation(attestation), nil
}

