package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/codec"
	"github.com/totegamma/ethsign/internal/domain"
)

type CreateAttestationInput struct {
	SchemaID    uint64
	Creator     common.Address
	Recipient   common.Address
	Signatories []common.Address
	Payload     []domain.FieldValue
	CreatedAt   time.Time
	Signature   []byte
}

type AttestationUsecase struct {
	repo     AttestationRepository
	schemas  SchemaRepository
	verifier Verifier
	issuer   TokenIssuer
	clock    Clock
	sink     EventSink
	config   domain.Config
}

func NewAttestationUsecase(
	repo AttestationRepository,
	schemas SchemaRepository,
	verifier Verifier,
	issuer TokenIssuer,
	clock Clock,
	sink EventSink,
	config domain.Config,
) *AttestationUsecase {
	return &AttestationUsecase{
		repo:     repo,
		schemas:  schemas,
		verifier: verifier,
		issuer:   issuer,
		clock:    clock,
		sink:     sink,
		config:   config,
	}
}

// checkPayload requires the payload to match the field definitions position by position.
func checkPayload(fields []domain.FieldDefinition, payload []domain.FieldValue) error {
	if len(fields) != len(payload) {
		return domain.ValidationError{
			Code:   domain.AttestationLengthMismatch,
			Detail: fmt.Sprintf("expected %d values, got %d", len(fields), len(payload)),
		}
	}
	for i, f := range fields {
		v := payload[i]
		if v.Name != f.Name {
			return domain.ValidationError{
				Code:   domain.AttestationNameMismatch,
				Detail: fmt.Sprintf("position %d: expected %q, got %q", i, f.Name, v.Name),
			}
		}
		if v.Type != f.Type {
			return domain.ValidationError{
				Code:   domain.AttestationTypeMismatch,
				Detail: fmt.Sprintf("%s: expected %s, got %s", f.Name, f.Type, v.Type),
			}
		}
	}
	return nil
}

func checkSignatories(signatories []common.Address) error {
	seen := make(map[common.Address]bool, len(signatories))
	for _, s := range signatories {
		if ethsign.IsZeroAddress(s) {
			return domain.ValidationError{Code: domain.InvalidSignatory, Detail: "zero address cannot sign"}
		}
		if seen[s] {
			return domain.ValidationError{Code: domain.DuplicateSignatory, Detail: s.Hex()}
		}
		seen[s] = true
	}
	return nil
}

// Create stores a new attestation. When the schema is tokenized and no
// signatures are required, the recipient's token is minted in the same write.
func (uc *AttestationUsecase) Create(ctx context.Context, caller common.Address, input CreateAttestationInput) (domain.Attestation, error) {
	ctx, span := tracer.Start(ctx, "Attestation.Usecase.Create")
	defer span.End()

	if input.Creator != caller {
		return domain.Attestation{}, domain.UnauthorizedError{Reason: "creator does not match caller"}
	}

	schema, err := uc.schemas.Get(ctx, input.SchemaID)
	if err != nil {
		span.RecordError(err)
		return domain.Attestation{}, err
	}

	now := uc.clock.Now()
	if schema.IsExpired(now) {
		return domain.Attestation{}, domain.ErrSchemaExpired
	}

	if err := checkPayload(schema.Fields, input.Payload); err != nil {
		return domain.Attestation{}, err
	}

	if !schema.IsPublic && caller != schema.Creator {
		return domain.Attestation{}, domain.UnauthorizedError{Reason: "schema is private"}
	}

	if err := checkSignatories(input.Signatories); err != nil {
		return domain.Attestation{}, err
	}

	if !withinSkew(now, input.CreatedAt, uc.config.MaxClockSkew) {
		return domain.Attestation{}, domain.InvalidSignatureError{Subject: "attestation createdAt out of range"}
	}

	message, err := codec.AttestationMessage(input.SchemaID, input.Creator, input.Recipient, input.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return domain.Attestation{}, errors.Wrap(err, "Attestation.Usecase.Create: codec.AttestationMessage failed")
	}
	if err := verify(uc.verifier, message, input.Signature, input.Creator, "attestation"); err != nil {
		span.RecordError(err)
		return domain.Attestation{}, err
	}

	attestation := domain.Attestation{
		SchemaID:    input.SchemaID,
		Creator:     input.Creator,
		Recipient:   input.Recipient,
		Signatories: input.Signatories,
		Payload:     input.Payload,
		CreatedAt:   seconds(input.CreatedAt),
		Signature:   input.Signature,
	}
	if attestation.Signatories == nil {
		attestation.Signatories = []common.Address{}
	}

	var collection domain.TokenCollection
	mint := schema.IsTokenized && attestation.MintedToRecipient()
	if mint {
		collection, err = uc.schemas.GetCollection(ctx, schema.ID)
		if err != nil {
			span.RecordError(err)
			return domain.Attestation{}, err
		}
	}

	created, err := uc.repo.Create(ctx, attestation, func(ctx context.Context, att domain.Attestation) error {
		if !mint {
			return nil
		}
		if err := uc.issuer.Mint(ctx, collection.Handle, att.Recipient, att.ID); err != nil {
			return collaborator("token issuer", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Attestation{}, err
	}

	span.SetAttributes(attribute.Int64("AttestationID", int64(created.ID)))
	emit(ctx, uc.sink, uc.clock, ethsign.EventAttestationCreated, created.ID)

	return created, nil
}

func (uc *AttestationUsecase) Get(ctx context.Context, id uint64) (domain.Attestation, error) {
	ctx, span := tracer.Start(ctx, "Attestation.Usecase.Get")
	defer span.End()

	return uc.repo.Get(ctx, id)
}

// GetByParticipant lists the non-revoked attestations under schemaID that
// name participant as recipient or signatory.
func (uc *AttestationUsecase) GetByParticipant(ctx context.Context, schemaID uint64, participant common.Address) ([]domain.Attestation, error) {
	ctx, span := tracer.Start(ctx, "Attestation.Usecase.GetByParticipant")
	defer span.End()

	if _, err := uc.schemas.Get(ctx, schemaID); err != nil {
		return nil, err
	}

	return uc.repo.GetByParticipant(ctx, schemaID, participant)
}
