package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the engine configuration shared by the usecases and transport.
type Config struct {
	FQDN           string         `yaml:"fqdn"`
	PrivateKey     string         `yaml:"privatekey"`
	HoldingAddress common.Address `yaml:"-"`
	MaxClockSkew   time.Duration  `yaml:"maxClockSkew"`
	JWTAudience    string         `yaml:"jwtAudience"`
}
