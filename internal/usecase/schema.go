package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/codec"
	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/policy"
)

type SchemaUsecase struct {
	repo     SchemaRepository
	verifier Verifier
	issuer   TokenIssuer
	clock    Clock
	sink     EventSink
}

func NewSchemaUsecase(
	repo SchemaRepository,
	verifier Verifier,
	issuer TokenIssuer,
	clock Clock,
	sink EventSink,
) *SchemaUsecase {
	return &SchemaUsecase{
		repo:     repo,
		verifier: verifier,
		issuer:   issuer,
		clock:    clock,
		sink:     sink,
	}
}

func validateDefinition(input domain.Schema) error {
	if len(input.Fields) == 0 {
		return domain.ErrEmptyDefinition
	}

	names := make(map[string]bool, len(input.Fields))
	for _, f := range input.Fields {
		if f.Type == domain.FieldTypeUnknown || f.Type > domain.FieldTypeAddress {
			return domain.ValidationError{Code: domain.InvalidFieldType, Detail: f.Name}
		}
		if names[f.Name] {
			return domain.ValidationError{Code: domain.DuplicateFieldName, Detail: f.Name}
		}
		names[f.Name] = true
	}

	for _, clause := range input.Policies {
		if _, ok := policy.ParseLogic(string(clause.Logic)); !ok {
			return domain.ValidationError{Code: domain.InvalidPolicy, Detail: string(clause.Logic)}
		}
	}

	return nil
}

// Create registers a new schema signed by its creator. Tokenized schemas get
// their token collection created within the same write.
func (uc *SchemaUsecase) Create(ctx context.Context, caller common.Address, input domain.Schema) (domain.Schema, error) {
	ctx, span := tracer.Start(ctx, "Schema.Usecase.Create")
	defer span.End()

	if input.Creator != caller {
		return domain.Schema{}, domain.UnauthorizedError{Reason: "creator does not match caller"}
	}

	if err := validateDefinition(input); err != nil {
		span.RecordError(err)
		return domain.Schema{}, err
	}

	message, err := codec.SchemaMessage(input)
	if err != nil {
		span.RecordError(err)
		return domain.Schema{}, errors.Wrap(err, "Schema.Usecase.Create: codec.SchemaMessage failed")
	}

	if err := verify(uc.verifier, message, input.Signature, input.Creator, "schema"); err != nil {
		span.RecordError(err)
		return domain.Schema{}, err
	}

	input.ID = 0
	input.CreatedAt = seconds(uc.clock.Now())
	if !input.IsTokenized {
		input.CollectionName = ""
		input.CollectionSymbol = ""
	}

	created, err := uc.repo.Create(ctx, input, func(ctx context.Context, schema domain.Schema) (*domain.TokenCollection, error) {
		if !schema.IsTokenized {
			return nil, nil
		}
		handle, err := uc.issuer.CreateCollection(ctx, schema.Creator, schema.CollectionName, schema.CollectionSymbol)
		if err != nil {
			return nil, collaborator("token issuer", err)
		}
		return &domain.TokenCollection{SchemaID: schema.ID, Handle: handle}, nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Schema{}, err
	}

	span.SetAttributes(attribute.Int64("SchemaID", int64(created.ID)))
	emit(ctx, uc.sink, uc.clock, ethsign.EventSchemaCreated, created.ID)

	return created, nil
}

func (uc *SchemaUsecase) Get(ctx context.Context, id uint64) (domain.Schema, error) {
	ctx, span := tracer.Start(ctx, "Schema.Usecase.Get")
	defer span.End()

	return uc.repo.Get(ctx, id)
}

// GetCollection returns the token collection handle of a tokenized schema.
func (uc *SchemaUsecase) GetCollection(ctx context.Context, schemaID uint64) (domain.TokenCollection, error) {
	ctx, span := tracer.Start(ctx, "Schema.Usecase.GetCollection")
	defer span.End()

	return uc.repo.GetCollection(ctx, schemaID)
}
