package ethsign

import (
	"time"
)

const (
	EventSchemaCreated           string = "SchemaCreated"
	EventAttestationCreated      string = "AttestationCreated"
	EventProofOfSignatureCreated string = "ProofOfSignatureCreated"
	EventProofOfAgreementCreated string = "ProofOfAgreementCreated"
	EventRevoked                 string = "Revoked"
)

// Event is the notification emitted after a write has been committed.
// ID is the schema id for SchemaCreated and the attestation id otherwise.
type Event struct {
	Type      string    `json:"type"`
	ID        uint64    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

type Endpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}

type WellKnownEthsign struct {
	Version        string              `json:"version"`
	Domain         string              `json:"domain"`
	HoldingAddress string              `json:"holdingAddress"`
	Endpoints      map[string]Endpoint `json:"endpoints"`
}
