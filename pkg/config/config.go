// Package config loads process configuration from the environment, the
// way the teacher's components/*/internal/bootstrap/config.go structs do.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the top-level configuration for the ledger daemon.
type Config struct {
	EnvName  string `env:"ENV_NAME" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Version  string `env:"VERSION" envDefault:"dev"`

	ServerAddress string `env:"SERVER_ADDRESS" envDefault:":3011"`
	GRPCAddress   string `env:"GRPC_ADDRESS" envDefault:":3012"`

	PostgresDSN      string `env:"POSTGRES_DSN,required"`
	PostgresMaxConns int    `env:"POSTGRES_MAX_CONNS" envDefault:"20"`

	// LedgerGRPCAddress selects the production grpcledger.Client transport
	// when set; chronicled falls back to an in-process inmemledger.Ledger
	// (single-node only, no cross-process replication) when empty.
	LedgerGRPCAddress   string        `env:"LEDGER_GRPC_ADDRESS"`
	LedgerSubmitTimeout time.Duration `env:"LEDGER_SUBMIT_TIMEOUT" envDefault:"10s"`

	SignerKeyDir string `env:"SIGNER_KEY_DIR" envDefault:"./keys"`

	JWTRequiredClaims []string `env:"JWT_REQUIRED_CLAIMS" envSeparator:","`
	JWTSigningKey     string   `env:"JWT_SIGNING_KEY"`

	DepthChargeInterval time.Duration `env:"DEPTH_CHARGE_INTERVAL" envDefault:"5m"`

	OtelServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"chronicle-ledger"`
	EnableTelemetry bool   `env:"ENABLE_TELEMETRY" envDefault:"false"`
}

// Load reads an optional .env file (ignored if absent, matching local-dev
// convenience in the teacher's bootstrap) then parses the environment into
// a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
