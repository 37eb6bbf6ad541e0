package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/internal/infra/database/models"
	"github.com/totegamma/ethsign/internal/usecase"
)

type SignatureRepository struct {
	db *gorm.DB
}

func NewSignatureRepository(db *gorm.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

func listProofs(ctx context.Context, db *gorm.DB, attestationID uint64) ([]domain.ProofOfSignature, error) {
	var rows []models.ProofOfSignature
	err := db.WithContext(ctx).
		Where("attestation_id = ?", int64(attestationID)).
		Order("c_date ASC, signer ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "Signature.Repository.ListProofs: select failed")
	}

	proofs := make([]domain.ProofOfSignature, 0, len(rows))
	for _, row := range rows {
		p, err := proofFromModel(row)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
	}
	return proofs, nil
}

func (r *SignatureRepository) ListProofs(ctx context.Context, attestationID uint64) ([]domain.ProofOfSignature, error) {
	return listProofs(ctx, r.db, attestationID)
}

// AddProof stores a proof and, while no agreement exists, lets hook decide on
// one. The attestation row is locked for the duration so concurrent writers
// from other processes queue behind each other.
func (r *SignatureRepository) AddProof(ctx context.Context, proof domain.ProofOfSignature, hook usecase.AgreementHook) (*domain.ProofOfAgreement, error) {
	var agreement *domain.ProofOfAgreement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var att models.Attestation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", int64(proof.AttestationID)).
			Take(&att).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAttestationNotFound
			}
			return errors.Wrap(err, "Signature.Repository.AddProof: lock failed")
		}

		err = tx.Create(&models.ProofOfSignature{
			AttestationID: int64(proof.AttestationID),
			Signer:        proof.Signer.Hex(),
			Signature:     encodeHex(proof.Signature),
			CDate:         proof.SignedAt,
		}).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAlreadySigned
			}
			return errors.Wrap(err, "Signature.Repository.AddProof: insert failed")
		}

		if hook == nil {
			return nil
		}

		var existing int64
		err = tx.Model(&models.ProofOfAgreement{}).
			Where("attestation_id = ?", int64(proof.AttestationID)).
			Count(&existing).Error
		if err != nil {
			return errors.Wrap(err, "Signature.Repository.AddProof: count failed")
		}
		if existing > 0 {
			return nil
		}

		proofs, err := listProofs(ctx, tx, proof.AttestationID)
		if err != nil {
			return err
		}

		agreement, err = hook(ctx, proofs)
		if err != nil {
			return err
		}
		if agreement == nil {
			return nil
		}

		signatures := make([]string, 0, len(agreement.Signatures))
		for _, s := range agreement.Signatures {
			signatures = append(signatures, encodeHex(s))
		}
		return tx.Create(&models.ProofOfAgreement{
			AttestationID: int64(agreement.AttestationID),
			Signatures:    signatures,
			CDate:         agreement.CreatedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return agreement, nil
}

func (r *SignatureRepository) GetProofOfAgreement(ctx context.Context, attestationID uint64) (domain.ProofOfAgreement, error) {
	var model models.ProofOfAgreement
	err := r.db.WithContext(ctx).Where("attestation_id = ?", int64(attestationID)).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ProofOfAgreement{}, domain.ErrAgreementNotFound
		}
		return domain.ProofOfAgreement{}, errors.Wrap(err, "Signature.Repository.GetProofOfAgreement: select failed")
	}
	return agreementFromModel(model)
}
