// Package config builds process configuration from environment variables so
// main stays lean. The issuer secret is parsed once at startup and never
// logged; a bad secret is fatal before the server accepts traffic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
)

// RegistryCacheTTL enforces retention for cached account statuses. Kept short:
// a revoked account must stop clearing compliance quickly.
var RegistryCacheTTL = 5 * time.Minute

// Config captures everything the gateway needs at startup.
type Config struct {
	Addr string

	// Issuer is the credential that co-signs revised transactions and
	// sources the allow-trust bracketing operations.
	Issuer *keypair.Full

	// NetworkPassphrase pins transactions to one deployment network.
	NetworkPassphrase string

	// AmountLimit is the maximum aggregated payment total per transaction,
	// in the ledger's 7-decimal fixed-point representation.
	AmountLimit xdr.Int64

	// TxTimeout bounds how long a revised transaction stays submittable.
	TxTimeout time.Duration

	HorizonURL string

	PostgresDSN string
	RedisAddr   string

	KafkaBrokers []string
	AuditTopic   string

	RulesEngineURL     string
	RulesEngineTimeout time.Duration

	// JWTSigningKey guards the approve endpoint when set; empty disables
	// bearer auth (local development, tests).
	JWTSigningKey string
}

// FromEnv reads configuration from the environment. It returns an error
// rather than calling log.Fatal so main owns process exit.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:               envOr("REGBRIDGE_ADDR", ":8080"),
		NetworkPassphrase:  network.TestNetworkPassphrase,
		TxTimeout:          300 * time.Second,
		HorizonURL:         envOr("HORIZON_URL", "https://horizon-testnet.stellar.org"),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		AuditTopic:         envOr("AUDIT_TOPIC", "regbridge.decisions"),
		RulesEngineURL:     os.Getenv("RULES_ENGINE_URL"),
		RulesEngineTimeout: 5 * time.Second,
		JWTSigningKey:      os.Getenv("JWT_SIGNING_KEY"),
	}

	secret := os.Getenv("ISSUER_SECRET")
	if secret == "" {
		return Config{}, fmt.Errorf("ISSUER_SECRET is required")
	}
	issuer, err := keypair.ParseFull(secret)
	if err != nil {
		return Config{}, fmt.Errorf("parse ISSUER_SECRET: %w", err)
	}
	cfg.Issuer = issuer

	if os.Getenv("NETWORK") == "public" {
		cfg.NetworkPassphrase = network.PublicNetworkPassphrase
	}

	limit, err := amount.Parse(envOr("AMOUNT_LIMIT", "50"))
	if err != nil {
		return Config{}, fmt.Errorf("parse AMOUNT_LIMIT: %w", err)
	}
	cfg.AmountLimit = limit

	if v := os.Getenv("TX_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("parse TX_TIMEOUT_SECONDS %q", v)
		}
		cfg.TxTimeout = time.Duration(secs) * time.Second
	}

	if v := os.Getenv("RULES_ENGINE_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("parse RULES_ENGINE_TIMEOUT_SECONDS %q", v)
		}
		cfg.RulesEngineTimeout = time.Duration(secs) * time.Second
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitCSV(brokers)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
