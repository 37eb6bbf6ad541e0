package repository

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/internal/infra/database/models"
	"github.com/totegamma/ethsign/internal/usecase"
)

type AttestationRepository struct {
	db *gorm.DB
}

func NewAttestationRepository(db *gorm.DB) *AttestationRepository {
	return &AttestationRepository{db: db}
}

func (r *AttestationRepository) Create(ctx context.Context, attestation domain.Attestation, hook usecase.AttestationHook) (domain.Attestation, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := nextID(tx, sequenceAttestation)
		if err != nil {
			return errors.Wrap(err, "Attestation.Repository.Create: nextID failed")
		}
		attestation.ID = id

		model, err := attestationToModel(attestation)
		if err != nil {
			return err
		}
		if err := tx.Create(&model).Error; err != nil {
			return errors.Wrap(err, "Attestation.Repository.Create: insert failed")
		}

		for _, p := range attestation.Participants() {
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.AttestationParticipant{
				SchemaID:      int64(attestation.SchemaID),
				Participant:   p.Hex(),
				AttestationID: int64(attestation.ID),
			}).Error
			if err != nil {
				return errors.Wrap(err, "Attestation.Repository.Create: index failed")
			}
		}

		if hook != nil {
			return hook(ctx, attestation)
		}
		return nil
	})
	if err != nil {
		return domain.Attestation{}, err
	}

	return attestation, nil
}

func (r *AttestationRepository) get(ctx context.Context, db *gorm.DB, id uint64) (domain.Attestation, error) {
	var model models.Attestation
	err := db.WithContext(ctx).Where("id = ?", int64(id)).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Attestation{}, domain.ErrAttestationNotFound
		}
		return domain.Attestation{}, errors.Wrap(err, "Attestation.Repository.Get: select failed")
	}
	return attestationFromModel(model)
}

func (r *AttestationRepository) Get(ctx context.Context, id uint64) (domain.Attestation, error) {
	return r.get(ctx, r.db, id)
}

func (r *AttestationRepository) GetByParticipant(ctx context.Context, schemaID uint64, participant common.Address) ([]domain.Attestation, error) {
	var rows []models.Attestation
	err := r.db.WithContext(ctx).
		Joins("JOIN attestation_participants ap ON ap.attestation_id = attestations.id").
		Where("ap.schema_id = ? AND ap.participant = ?", int64(schemaID), participant.Hex()).
		Order("attestations.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "Attestation.Repository.GetByParticipant: select failed")
	}

	result := make([]domain.Attestation, 0, len(rows))
	for _, row := range rows {
		att, err := attestationFromModel(row)
		if err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, nil
}

func (r *AttestationRepository) HeldSchemas(ctx context.Context, participant common.Address, schemaIDs []uint64) (map[uint64]bool, error) {
	held := make(map[uint64]bool, len(schemaIDs))
	if len(schemaIDs) == 0 {
		return held, nil
	}

	ids := make([]int64, 0, len(schemaIDs))
	for _, id := range schemaIDs {
		ids = append(ids, int64(id))
		held[id] = false
	}

	var found []int64
	err := r.db.WithContext(ctx).
		Model(&models.AttestationParticipant{}).
		Distinct("schema_id").
		Where("participant = ? AND schema_id IN ?", participant.Hex(), ids).
		Pluck("schema_id", &found).Error
	if err != nil {
		return nil, errors.Wrap(err, "Attestation.Repository.HeldSchemas: select failed")
	}

	for _, id := range found {
		held[uint64(id)] = true
	}
	return held, nil
}

// Revoke flips is_revoked with a conditional update, so only one caller can
// win even without the per-attestation lock.
func (r *AttestationRepository) Revoke(ctx context.Context, revocation domain.Revocation, hook usecase.AttestationHook) (domain.Attestation, error) {
	var revoked domain.Attestation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		revokedAt := revocation.RevokedAt
		result := tx.Model(&models.Attestation{}).
			Where("id = ? AND is_revoked = ?", int64(revocation.AttestationID), false).
			Updates(map[string]any{
				"is_revoked":       true,
				"revoked_at":       &revokedAt,
				"revoke_signature": encodeHex(revocation.Signature),
			})
		if result.Error != nil {
			return errors.Wrap(result.Error, "Attestation.Repository.Revoke: update failed")
		}
		if result.RowsAffected == 0 {
			if _, err := r.get(ctx, tx, revocation.AttestationID); err != nil {
				return err
			}
			return domain.ErrAlreadyRevoked
		}

		err := tx.Where("attestation_id = ?", int64(revocation.AttestationID)).
			Delete(&models.AttestationParticipant{}).Error
		if err != nil {
			return errors.Wrap(err, "Attestation.Repository.Revoke: unindex failed")
		}

		revoked, err = r.get(ctx, tx, revocation.AttestationID)
		if err != nil {
			return err
		}

		if hook != nil {
			return hook(ctx, revoked)
		}
		return nil
	})
	if err != nil {
		return domain.Attestation{}, err
	}

	return revoked, nil
}

