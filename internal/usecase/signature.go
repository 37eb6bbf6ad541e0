package usecase

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/codec"
	"github.com/totegamma/ethsign/internal/domain"
)

type SignatureUsecase struct {
	repo         SignatureRepository
	attestations AttestationRepository
	schemas      SchemaRepository
	policy       *PolicyUsecase
	verifier     Verifier
	issuer       TokenIssuer
	clock        Clock
	sink         EventSink
	locker       Locker
	config       domain.Config
}

func NewSignatureUsecase(
	repo SignatureRepository,
	attestations AttestationRepository,
	schemas SchemaRepository,
	policy *PolicyUsecase,
	verifier Verifier,
	issuer TokenIssuer,
	clock Clock,
	sink EventSink,
	locker Locker,
	config domain.Config,
) *SignatureUsecase {
	return &SignatureUsecase{
		repo:         repo,
		attestations: attestations,
		schemas:      schemas,
		policy:       policy,
		verifier:     verifier,
		issuer:       issuer,
		clock:        clock,
		sink:         sink,
		locker:       locker,
		config:       config,
	}
}

func attestationLockKey(id uint64) string {
	return domain.LockKeyAttestationPrefix + strconv.FormatUint(id, 10)
}

func hasProof(proofs []domain.ProofOfSignature, signer common.Address) bool {
	for _, p := range proofs {
		if p.Signer == signer {
			return true
		}
	}
	return false
}

// Sign records signer's endorsement of an attestation. The signature that
// completes the declared signatory list also forms the proof of agreement
// and, for tokenized schemas, mints the token to the holding identity.
func (uc *SignatureUsecase) Sign(ctx context.Context, attestationID uint64, signer common.Address, signature []byte) (domain.ProofOfSignature, error) {
	ctx, span := tracer.Start(ctx, "Signature.Usecase.Sign")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("AttestationID", int64(attestationID)),
		attribute.String("Signer", signer.Hex()),
	)

	unlock, err := uc.locker.Lock(ctx, attestationLockKey(attestationID))
	if err != nil {
		span.RecordError(err)
		return domain.ProofOfSignature{}, errors.Wrap(err, "Signature.Usecase.Sign: lock failed")
	}
	defer unlock()

	proofs, err := uc.repo.ListProofs(ctx, attestationID)
	if err != nil {
		span.RecordError(err)
		return domain.ProofOfSignature{}, err
	}
	if hasProof(proofs, signer) {
		return domain.ProofOfSignature{}, domain.ErrAlreadySigned
	}

	attestation, err := uc.attestations.Get(ctx, attestationID)
	if err != nil {
		span.RecordError(err)
		return domain.ProofOfSignature{}, err
	}
	if attestation.IsRevoked {
		return domain.ProofOfSignature{}, domain.ErrAlreadyRevoked
	}

	message, err := codec.SignatureMessage(attestationID)
	if err != nil {
		span.RecordError(err)
		return domain.ProofOfSignature{}, errors.Wrap(err, "Signature.Usecase.Sign: codec.SignatureMessage failed")
	}
	if err := verify(uc.verifier, message, signature, signer, "signature"); err != nil {
		span.RecordError(err)
		return domain.ProofOfSignature{}, err
	}

	if !attestation.IsSignatory(signer) {
		return domain.ProofOfSignature{}, domain.ErrNotASignatory
	}

	schema, err := uc.schemas.Get(ctx, attestation.SchemaID)
	if err != nil {
		span.RecordError(err)
		return domain.ProofOfSignature{}, err
	}

	if err := uc.policy.IsEligible(ctx, schema, signer); err != nil {
		span.RecordError(err)
		return domain.ProofOfSignature{}, err
	}

	var collection domain.TokenCollection
	if schema.IsTokenized {
		collection, err = uc.schemas.GetCollection(ctx, schema.ID)
		if err != nil {
			span.RecordError(err)
			return domain.ProofOfSignature{}, err
		}
	}

	now := uc.clock.Now()
	proof := domain.ProofOfSignature{
		AttestationID: attestationID,
		Signer:        signer,
		SignedAt:      now,
		Signature:     signature,
	}

	agreement, err := uc.repo.AddProof(ctx, proof, func(ctx context.Context, stored []domain.ProofOfSignature) (*domain.ProofOfAgreement, error) {
		if len(stored) != len(attestation.Signatories) {
			return nil, nil
		}
		poa, ok := domain.NewProofOfAgreement(attestation, stored, now)
		if !ok {
			return nil, nil
		}
		if schema.IsTokenized {
			if err := uc.issuer.Mint(ctx, collection.Handle, uc.config.HoldingAddress, attestationID); err != nil {
				return nil, collaborator("token issuer", err)
			}
		}
		return &poa, nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.ProofOfSignature{}, err
	}

	if agreement != nil {
		emit(ctx, uc.sink, uc.clock, ethsign.EventProofOfAgreementCreated, attestationID)
	}
	emit(ctx, uc.sink, uc.clock, ethsign.EventProofOfSignatureCreated, attestationID)

	return proof, nil
}

// ListProofs returns the proofs of signature of an attestation in arrival order.
func (uc *SignatureUsecase) ListProofs(ctx context.Context, attestationID uint64) ([]domain.ProofOfSignature, error) {
	ctx, span := tracer.Start(ctx, "Signature.Usecase.ListProofs")
	defer span.End()

	if _, err := uc.attestations.Get(ctx, attestationID); err != nil {
		return nil, err
	}

	return uc.repo.ListProofs(ctx, attestationID)
}

func (uc *SignatureUsecase) GetProofOfAgreement(ctx context.Context, attestationID uint64) (domain.ProofOfAgreement, error) {
	ctx, span := tracer.Start(ctx, "Signature.Usecase.GetProofOfAgreement")
	defer span.End()

	return uc.repo.GetProofOfAgreement(ctx, attestationID)
}

// GetStatus summarizes the agreement progress of an attestation.
func (uc *SignatureUsecase) GetStatus(ctx context.Context, attestationID uint64) (domain.AttestationStatus, error) {
	ctx, span := tracer.Start(ctx, "Signature.Usecase.GetStatus")
	defer span.End()

	attestation, err := uc.attestations.Get(ctx, attestationID)
	if err != nil {
		return domain.AttestationStatus{}, err
	}

	proofs, err := uc.repo.ListProofs(ctx, attestationID)
	if err != nil {
		span.RecordError(err)
		return domain.AttestationStatus{}, err
	}

	status := domain.AttestationStatus{
		AttestationID: attestationID,
		State:         domain.AgreementPending,
		Required:      len(attestation.Signatories),
		Signed:        len(proofs),
		IsRevoked:     attestation.IsRevoked,
	}

	_, err = uc.repo.GetProofOfAgreement(ctx, attestationID)
	switch {
	case err == nil:
		status.State = domain.AgreementAgreed
	case errors.Is(err, domain.ErrAgreementNotFound):
	default:
		span.RecordError(err)
		return domain.AttestationStatus{}, err
	}

	return status, nil
}
