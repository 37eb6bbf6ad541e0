package config

import (
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/internal/domain"
)

const (
	EnvConfigPath     = "ETHSIGN_CONFIG"
	DefaultConfigPath = "/etc/ethsign/config.yaml"
)

type Config struct {
	Engine      Engine      `yaml:"engine"`
	Server      Server      `yaml:"server"`
	TokenIssuer TokenIssuer `yaml:"tokenIssuer"`
}

type Engine struct {
	FQDN           string        `yaml:"fqdn"`
	PrivateKey     string        `yaml:"privatekey"`
	HoldingAddress string        `yaml:"holdingAddress"`
	MaxClockSkew   Duration      `yaml:"maxClockSkew"`
	LockTTL        Duration      `yaml:"lockTTL"`
	LockBackend    string        `yaml:"lockBackend"` // local, redis
	JWTAudience    string        `yaml:"jwtAudience"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	LogLevel      string `yaml:"logLevel"`
	LogFormat     string `yaml:"logFormat"` // json, text
	EventChannel  string `yaml:"eventChannel"`
}

type TokenIssuer struct {
	// empty endpoint selects the in-process issuer
	Endpoint string        `yaml:"endpoint"`
	Timeout  Duration `yaml:"timeout"`
}

// Duration reads "90s" style strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Path returns the config file location from the environment.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultConfigPath
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrap(err, "config.Load: decode")
	}

	config.applyDefaults()

	if _, err := config.Holding(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "json"
	}
	if c.Engine.MaxClockSkew == 0 {
		c.Engine.MaxClockSkew = Duration(5 * time.Minute)
	}
	if c.Engine.LockTTL == 0 {
		c.Engine.LockTTL = Duration(10 * time.Second)
	}
	if c.Engine.LockBackend == "" {
		c.Engine.LockBackend = "local"
	}
	if c.TokenIssuer.Timeout == 0 {
		c.TokenIssuer.Timeout = Duration(10 * time.Second)
	}
}

// Holding resolves the identity that receives agreement tokens. An explicit
// holdingAddress wins over the one derived from the private key.
func (c Config) Holding() (common.Address, error) {
	if c.Engine.HoldingAddress != "" {
		if !common.IsHexAddress(c.Engine.HoldingAddress) {
			return common.Address{}, errors.Errorf("config: invalid holdingAddress %q", c.Engine.HoldingAddress)
		}
		return common.HexToAddress(c.Engine.HoldingAddress), nil
	}
	if c.Engine.PrivateKey == "" {
		return common.Address{}, errors.New("config: engine.privatekey or engine.holdingAddress is required")
	}
	addr, err := ethsign.PrivKeyToAddr(c.Engine.PrivateKey)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "config: invalid privatekey")
	}
	return addr, nil
}

// Domain builds the engine configuration handed to usecases and transport.
func (c Config) Domain() domain.Config {
	holding, _ := c.Holding()
	return domain.Config{
		FQDN:           c.Engine.FQDN,
		PrivateKey:     c.Engine.PrivateKey,
		HoldingAddress: holding,
		MaxClockSkew:   time.Duration(c.Engine.MaxClockSkew),
		JWTAudience:    c.Engine.JWTAudience,
	}
}
