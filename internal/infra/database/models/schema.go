package models

import (
	"time"
)

// Sequence is a named id counter, locked for update while an id is taken.
type Sequence struct {
	Name  string `json:"name" gorm:"primaryKey;type:text"`
	Value int64  `json:"value" gorm:"type:bigint;not null;default:0"`
}

type Schema struct {
	ID               int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name             string    `json:"name" gorm:"type:text"`
	Description      string    `json:"description" gorm:"type:text"`
	Category         string    `json:"category" gorm:"type:text;index"`
	Creator          string    `json:"creator" gorm:"type:text;index"`
	IsPublic         bool      `json:"isPublic" gorm:"type:boolean;not null"`
	IsRevokable      bool      `json:"isRevokable" gorm:"type:boolean;not null"`
	IsTokenized      bool      `json:"isTokenized" gorm:"type:boolean;not null"`
	CollectionName   string    `json:"collectionName" gorm:"type:text"`
	CollectionSymbol string    `json:"collectionSymbol" gorm:"type:text"`
	ExpireIn         int64     `json:"expireIn" gorm:"type:bigint;not null"`
	Fields           string    `json:"fields" gorm:"type:jsonb;not null"`
	Policies         string    `json:"policies" gorm:"type:jsonb;not null"`
	Signature        string    `json:"signature" gorm:"type:text"`
	CDate            time.Time `json:"cdate" gorm:"type:timestamp with time zone;not null"`
}

type TokenCollection struct {
	SchemaID int64  `json:"schemaID" gorm:"primaryKey;autoIncrement:false"`
	Schema   Schema `json:"-" gorm:"foreignKey:SchemaID;references:ID;constraint:OnDelete:CASCADE;"`
	Handle   string `json:"handle" gorm:"type:text;not null"`
}
