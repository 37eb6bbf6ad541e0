package service

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/ethsign/internal/domain"
	"github.com/totegamma/ethsign/jwt"
)

var tracer = otel.Tracer("service")

const jwtSubject = "ethsign"

type AuthService struct {
	config domain.Config
}

func NewAuthService(config domain.Config) *AuthService {
	return &AuthService{
		config: config,
	}
}

type AuthResult struct {
	Address common.Address
}

// AuthJwt validates a bearer token and returns the address that signed it.
func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	header, claims, err := jwt.Validate(token)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	if claims.ExpirationTime == "" {
		err := fmt.Errorf("jwt has no expiration")
		span.RecordError(err)
		return nil, err
	}

	audience := s.config.JWTAudience
	if audience == "" {
		audience = s.config.FQDN
	}
	if audience != "" && claims.Audience != audience {
		err := fmt.Errorf("jwt audience mismatch: expected %s, got %s", audience, claims.Audience)
		span.RecordError(err)
		return nil, err
	}

	if claims.Subject != jwtSubject {
		err := fmt.Errorf("invalid subject")
		span.RecordError(err)
		return nil, err
	}

	keyID := header.KeyID
	if keyID == "" {
		keyID = claims.Issuer
	}

	return &AuthResult{Address: common.HexToAddress(keyID)}, nil
}
