package domain

import (
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/totegamma/ethsign/policy"
)

// Schema is an immutable document template.
type Schema struct {
	ID               uint64            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Category         string            `json:"category"`
	Creator          common.Address    `json:"creator"`
	CreatedAt        time.Time         `json:"createdAt"`
	IsPublic         bool              `json:"isPublic"`
	IsRevokable      bool              `json:"isRevokable"`
	IsTokenized      bool              `json:"isTokenized"`
	CollectionName   string            `json:"collectionName,omitempty"`
	CollectionSymbol string            `json:"collectionSymbol,omitempty"`
	ExpireIn         uint64            `json:"expireIn"`
	Fields           []FieldDefinition `json:"fields"`
	Policies         []policy.Clause   `json:"policies"`
	Signature        hexutil.Bytes     `json:"signature"`
}

// IsExpired evaluates expiry lazily. ExpireIn is in seconds; zero never expires.
func (s Schema) IsExpired(now time.Time) bool {
	if s.ExpireIn == 0 {
		return false
	}
	created := s.CreatedAt.Unix()
	if s.ExpireIn > math.MaxInt64 || created > math.MaxInt64-int64(s.ExpireIn) {
		return false
	}
	deadline := time.Unix(created+int64(s.ExpireIn), int64(s.CreatedAt.Nanosecond()))
	return now.After(deadline)
}

// TokenCollection is the handle returned by the token issuer for a tokenized schema.
type TokenCollection struct {
	SchemaID uint64 `json:"schemaId"`
	Handle   string `json:"handle"`
}
