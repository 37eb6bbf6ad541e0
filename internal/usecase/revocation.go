package usecase

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/codec"
	"github.com/totegamma/ethsign/internal/domain"
)

type RevocationUsecase struct {
	attestations AttestationRepository
	schemas      SchemaRepository
	verifier     Verifier
	issuer       TokenIssuer
	clock        Clock
	sink         EventSink
	locker       Locker
	config       domain.Config
}

func NewRevocationUsecase(
	attestations AttestationRepository,
	schemas SchemaRepository,
	verifier Verifier,
	issuer TokenIssuer,
	clock Clock,
	sink EventSink,
	locker Locker,
	config domain.Config,
) *RevocationUsecase {
	return &RevocationUsecase{
		attestations: attestations,
		schemas:      schemas,
		verifier:     verifier,
		issuer:       issuer,
		clock:        clock,
		sink:         sink,
		locker:       locker,
		config:       config,
	}
}

// Revoke invalidates an attestation on behalf of its creator. The signature
// covers (attestation id, true, revokedAt).
func (uc *RevocationUsecase) Revoke(ctx context.Context, caller common.Address, attestationID uint64, revokedAt time.Time, signature []byte) (domain.Attestation, error) {
	ctx, span := tracer.Start(ctx, "Revocation.Usecase.Revoke")
	defer span.End()
	span.SetAttributes(attribute.Int64("AttestationID", int64(attestationID)))

	unlock, err := uc.locker.Lock(ctx, attestationLockKey(attestationID))
	if err != nil {
		span.RecordError(err)
		return domain.Attestation{}, errors.Wrap(err, "Revocation.Usecase.Revoke: lock failed")
	}
	defer unlock()

	attestation, err := uc.attestations.Get(ctx, attestationID)
	if err != nil {
		span.RecordError(err)
		return domain.Attestation{}, err
	}
	if attestation.IsRevoked {
		return domain.Attestation{}, domain.ErrAlreadyRevoked
	}

	schema, err := uc.schemas.Get(ctx, attestation.SchemaID)
	if err != nil {
		span.RecordError(err)
		return domain.Attestation{}, err
	}
	if !schema.IsRevokable {
		return domain.Attestation{}, domain.ErrNotRevokable
	}

	if caller != attestation.Creator {
		return domain.Attestation{}, domain.UnauthorizedError{Reason: "only the creator can revoke"}
	}

	if !withinSkew(uc.clock.Now(), revokedAt, uc.config.MaxClockSkew) {
		return domain.Attestation{}, domain.InvalidSignatureError{Subject: "revokedAt out of range"}
	}

	message, err := codec.RevocationMessage(attestationID, revokedAt)
	if err != nil {
		span.RecordError(err)
		return domain.Attestation{}, errors.Wrap(err, "Revocation.Usecase.Revoke: codec.RevocationMessage failed")
	}
	if err := verify(uc.verifier, message, signature, attestation.Creator, "revocation"); err != nil {
		span.RecordError(err)
		return domain.Attestation{}, err
	}

	var collection domain.TokenCollection
	burn := schema.IsTokenized && attestation.MintedToRecipient()
	if burn {
		collection, err = uc.schemas.GetCollection(ctx, schema.ID)
		if err != nil {
			span.RecordError(err)
			return domain.Attestation{}, err
		}
	}

	revocation := domain.Revocation{
		AttestationID: attestationID,
		RevokedAt:     seconds(revokedAt),
		Signature:     signature,
	}

	revoked, err := uc.attestations.Revoke(ctx, revocation, func(ctx context.Context, att domain.Attestation) error {
		if !burn {
			return nil
		}
		if err := uc.issuer.Burn(ctx, collection.Handle, att.ID); err != nil {
			return collaborator("token issuer", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Attestation{}, err
	}

	emit(ctx, uc.sink, uc.clock, ethsign.EventRevoked, attestationID)

	return revoked, nil
}
