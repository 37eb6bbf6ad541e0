package memory

import (
	"context"

	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/internal/usecase"
)

type SignatureRepository struct {
	store *Store
}

func NewSignatureRepository(store *Store) *SignatureRepository {
	return &SignatureRepository{store: store}
}

func (r *SignatureRepository) ListProofs(ctx context.Context, attestationID uint64) ([]domain.ProofOfSignature, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneProofs(s.proofs[attestationID]), nil
}

func (r *SignatureRepository) AddProof(ctx context.Context, proof domain.ProofOfSignature, hook usecase.AgreementHook) (*domain.ProofOfAgreement, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.proofs[proof.AttestationID]
	for _, p := range existing {
		if p.Signer == proof.Signer {
			return nil, domain.ErrAlreadySigned
		}
	}

	stored := cloneProofs(append(cloneProofs(existing), proof))

	var agreement *domain.ProofOfAgreement
	if _, exists := s.agreements[proof.AttestationID]; !exists && hook != nil {
		var err error
		agreement, err = hook(ctx, cloneProofs(stored))
		if err != nil {
			return nil, err
		}
	}

	s.proofs[proof.AttestationID] = stored
	if agreement != nil {
		s.agreements[proof.AttestationID] = cloneAgreement(*agreement)
	}

	if agreement == nil {
		return nil, nil
	}
	c := cloneAgreement(*agreement)
	return &c, nil
}

func (r *SignatureRepository) GetProofOfAgreement(ctx context.Context, attestationID uint64) (domain.ProofOfAgreement, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	agreement, ok := s.agreements[attestationID]
	if !ok {
		return domain.ProofOfAgreement{}, domain.ErrAgreementNotFound
	}
	return agreement, nil
}
