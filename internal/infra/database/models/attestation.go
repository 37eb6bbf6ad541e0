package models

import (
	"time"

	"github.com/lib/pq"
)

type Attestation struct {
	ID              int64          `json:"id" gorm:"primaryKey;autoIncrement:false"`
	SchemaID        int64          `json:"schemaID" gorm:"index;not null"`
	Schema          Schema         `json:"-" gorm:"foreignKey:SchemaID;references:ID;constraint:OnDelete:RESTRICT;"`
	Creator         string         `json:"creator" gorm:"type:text;index"`
	Recipient       string         `json:"recipient" gorm:"type:text"`
	Signatories     pq.StringArray `json:"signatories" gorm:"type:text[]"`
	Payload         string         `json:"payload" gorm:"type:jsonb;not null"`
	Signature       string         `json:"signature" gorm:"type:text"`
	IsRevoked       bool           `json:"isRevoked" gorm:"type:boolean;not null;default:false"`
	RevokedAt       *time.Time     `json:"revokedAt" gorm:"type:timestamp with time zone"`
	RevokeSignature string         `json:"revokeSignature" gorm:"type:text"`
	CDate           time.Time      `json:"cdate" gorm:"type:timestamp with time zone;not null"`
}

// AttestationParticipant indexes non-revoked attestations by (schema, participant).
type AttestationParticipant struct {
	SchemaID      int64       `json:"schemaID" gorm:"primaryKey;autoIncrement:false"`
	Participant   string      `json:"participant" gorm:"primaryKey;type:text"`
	AttestationID int64       `json:"attestationID" gorm:"primaryKey;autoIncrement:false"`
	Attestation   Attestation `json:"-" gorm:"foreignKey:AttestationID;references:ID;constraint:OnDelete:CASCADE;"`
}

type ProofOfSignature struct {
	AttestationID int64       `json:"attestationID" gorm:"primaryKey;autoIncrement:false"`
	Attestation   Attestation `json:"-" gorm:"foreignKey:AttestationID;references:ID;constraint:OnDelete:CASCADE;"`
	Signer        string      `json:"signer" gorm:"primaryKey;type:text"`
	Signature     string      `json:"signature" gorm:"type:text;not null"`
	CDate         time.Time   `json:"cdate" gorm:"type:timestamp with time zone;not null"`
}

type ProofOfAgreement struct {
	AttestationID int64          `json:"attestationID" gorm:"primaryKey;autoIncrement:false"`
	Attestation   Attestation    `json:"-" gorm:"foreignKey:AttestationID;references:ID;constraint:OnDelete:CASCADE;"`
	Signatures    pq.StringArray `json:"signatures" gorm:"type:text[]"`
	CDate         time.Time      `json:"cdate" gorm:"type:timestamp with time zone;not null"`
}
