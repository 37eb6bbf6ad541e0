package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/ethsign/internal/infra/database/models"
)

const (
	sequenceSchema      = "schema"
	sequenceAttestation = "attestation"
)

// nextID takes the next value of a named counter inside tx. The row stays
// locked until tx ends, so a rolled back write gives the value back.
func nextID(tx *gorm.DB, name string) (uint64, error) {
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Sequence{Name: name}).Error
	if err != nil {
		return 0, err
	}

	var seq models.Sequence
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", name).
		Take(&seq).Error
	if err != nil {
		return 0, err
	}

	seq.Value++
	err = tx.Model(&models.Sequence{}).
		Where("name = ?", name).
		Update("value", seq.Value).Error
	if err != nil {
		return 0, err
	}

	return uint64(seq.Value), nil
}
