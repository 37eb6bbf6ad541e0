package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/policy"
)

// PolicyUsecase decides signatory eligibility from the candidate's
// non-revoked attestation holdings.
type PolicyUsecase struct {
	attestations AttestationRepository
}

func NewPolicyUsecase(attestations AttestationRepository) *PolicyUsecase {
	return &PolicyUsecase{attestations: attestations}
}

// Evaluate returns the per-clause results without failing on rejection.
func (uc *PolicyUsecase) Evaluate(ctx context.Context, schema domain.Schema, candidate common.Address) ([]policy.ClauseResult, error) {
	ctx, span := tracer.Start(ctx, "Policy.Usecase.Evaluate")
	defer span.End()

	rctx, err := uc.requestContext(ctx, schema, candidate)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	results := make([]policy.ClauseResult, 0, len(schema.Policies))
	for _, clause := range schema.Policies {
		result, err := policy.EvaluateClause(rctx, clause)
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrap(err, "Policy.Usecase.Evaluate: policy.EvaluateClause failed")
		}
		results = append(results, result)
	}

	return results, nil
}

// IsEligible fails with PolicyNotSatisfied carrying the first failing clause.
func (uc *PolicyUsecase) IsEligible(ctx context.Context, schema domain.Schema, candidate common.Address) error {
	ctx, span := tracer.Start(ctx, "Policy.Usecase.IsEligible")
	defer span.End()

	if len(schema.Policies) == 0 {
		return nil
	}

	rctx, err := uc.requestContext(ctx, schema, candidate)
	if err != nil {
		span.RecordError(err)
		return err
	}

	failed, err := policy.Evaluate(rctx, schema.Policies)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "Policy.Usecase.IsEligible: policy.Evaluate failed")
	}
	if failed != nil {
		return domain.PolicyNotSatisfiedError{Clause: failed.Description}
	}

	return nil
}

func (uc *PolicyUsecase) requestContext(ctx context.Context, schema domain.Schema, candidate common.Address) (policy.RequestContext, error) {
	ids := policy.SchemaIDs(schema.Policies)
	held := make(map[uint64]bool, len(ids))
	if len(ids) > 0 {
		found, err := uc.attestations.HeldSchemas(ctx, candidate, ids)
		if err != nil {
			return policy.RequestContext{}, errors.Wrap(err, "Policy.Usecase: HeldSchemas failed")
		}
		for _, id := range ids {
			held[id] = found[id]
		}
	}

	return policy.RequestContext{
		Candidate: candidate.Hex(),
		Held:      held,
	}, nil
}
