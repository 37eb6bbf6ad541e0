package usecase

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/internal/domain"
)

// Hooks run while the repository holds its write open, so they must not call
// back into a repository.

// SchemaHook runs inside the schema write after the id is assigned and before
// commit. A non-nil collection is stored in the same write.
type SchemaHook func(ctx context.Context, schema domain.Schema) (*domain.TokenCollection, error)

// AttestationHook runs inside an attestation write after the id is assigned
// (or the revocation applied) and before commit. An error aborts the write.
type AttestationHook func(ctx context.Context, attestation domain.Attestation) error

// AgreementHook runs inside the proof write with every proof now stored for
// the attestation. It is only called while no agreement exists; a non-nil
// result is stored in the same write.
type AgreementHook func(ctx context.Context, proofs []domain.ProofOfSignature) (*domain.ProofOfAgreement, error)

// SchemaRepository defines persistence for immutable schemas and their token collections.
type SchemaRepository interface {
	Create(ctx context.Context, schema domain.Schema, hook SchemaHook) (domain.Schema, error)
	Get(ctx context.Context, id uint64) (domain.Schema, error)
	GetCollection(ctx context.Context, schemaID uint64) (domain.TokenCollection, error)
}

// AttestationRepository defines persistence for attestations and the participant index.
type AttestationRepository interface {
	Create(ctx context.Context, attestation domain.Attestation, hook AttestationHook) (domain.Attestation, error)
	Get(ctx context.Context, id uint64) (domain.Attestation, error)
	GetByParticipant(ctx context.Context, schemaID uint64, participant common.Address) ([]domain.Attestation, error)
	HeldSchemas(ctx context.Context, participant common.Address, schemaIDs []uint64) (map[uint64]bool, error)
	Revoke(ctx context.Context, revocation domain.Revocation, hook AttestationHook) (domain.Attestation, error)
}

// SignatureRepository defines persistence for proofs of signature and agreement.
type SignatureRepository interface {
	ListProofs(ctx context.Context, attestationID uint64) ([]domain.ProofOfSignature, error)
	AddProof(ctx context.Context, proof domain.ProofOfSignature, hook AgreementHook) (*domain.ProofOfAgreement, error)
	GetProofOfAgreement(ctx context.Context, attestationID uint64) (domain.ProofOfAgreement, error)
}

// Verifier checks a signature over message against the claimed identity.
type Verifier interface {
	Verify(message, signature []byte, claimed common.Address) (bool, error)
}

// TokenIssuer is the non-fungible token collaborator. Mint and Burn are
// keyed by (collection, tokenID) and expected to be idempotent.
type TokenIssuer interface {
	CreateCollection(ctx context.Context, owner common.Address, name, symbol string) (string, error)
	Mint(ctx context.Context, collection string, to common.Address, tokenID uint64) error
	Burn(ctx context.Context, collection string, tokenID uint64) error
}

type Clock interface {
	Now() time.Time
}

// EventSink receives events after the triggering write is committed.
type EventSink interface {
	Emit(ctx context.Context, event ethsign.Event) error
}

// Locker serializes writes per key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
