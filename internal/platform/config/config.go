// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a development default; production deploys
// override through the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "attesto/pkg/platform/strings"
)

// Config is the full runtime configuration.
type Config struct {
	Server    Server
	Auth      Auth
	Postgres  Postgres
	Redis     Redis
	Kafka     Kafka
	Quorum    Quorum
	Gateway   Gateway
	Verifiers Verifiers
	Router    Router
	LogLevel  string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Auth configures caller authentication and the initial role holders.
type Auth struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	Owner         string
	Submitter     string
}

// Postgres configures the SQL store. Empty DSN selects in-memory stores.
type Postgres struct {
	DSN string
}

// Redis configures the verification record cache. Empty URL disables it.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the audit event sink. Empty seeds disable it.
type Kafka struct {
	Seeds              []string
	AuditTopic         string
	OutboxPollInterval time.Duration
}

// Quorum configures the oracle operator set and the stake fraction an
// aggregate attestation must reach, expressed as Num/Den of total registered
// stake. Operators are "pubkeyhex:stake" pairs; an empty list leaves the
// attestation endpoint rejecting everything, which is the safe default for
// a node that only serves policy checks.
type Quorum struct {
	Num       uint64
	Den       uint64
	Operators []string
}

// Gateway names the manager identity attestation writes run under and the
// verification sources the node hosts.
type Gateway struct {
	Identity string
	Sources  []string
}

// Verifiers lists the Groth16 verifying keys to load at startup, as
// "ref=path" pairs.
type Verifiers struct {
	Keys []string
}

// Router selects the policy verification strategy.
type Router struct {
	Strategy string
}

// Strategy values for Router.
const (
	StrategyCached = "cached"
	StrategyFresh  = "fresh"
)

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envOr("ATTESTO_ADDR", ":8080"),
			RequestTimeout:  envDuration("ATTESTO_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: envDuration("ATTESTO_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: Auth{
			// Development default; override in production.
			JWTSigningKey: envOr("ATTESTO_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        envOr("ATTESTO_JWT_ISSUER", "attesto"),
			Audience:      envOr("ATTESTO_JWT_AUDIENCE", "attesto-clients"),
			Owner:         envOr("ATTESTO_OWNER", "ops-owner"),
			Submitter:     envOr("ATTESTO_SUBMITTER", "oracle-submitter"),
		},
		Postgres: Postgres{
			DSN: os.Getenv("ATTESTO_POSTGRES_DSN"),
		},
		Redis: Redis{
			URL:          os.Getenv("ATTESTO_REDIS_URL"),
			PoolSize:     envInt("ATTESTO_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("ATTESTO_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("ATTESTO_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("ATTESTO_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("ATTESTO_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Seeds:              splitList(os.Getenv("ATTESTO_KAFKA_SEEDS")),
			AuditTopic:         envOr("ATTESTO_AUDIT_TOPIC", "attesto.audit.events"),
			OutboxPollInterval: envDuration("ATTESTO_OUTBOX_POLL_INTERVAL", time.Second),
		},
		Quorum: Quorum{
			Num:       envUint("ATTESTO_QUORUM_NUM", 2),
			Den:       envUint("ATTESTO_QUORUM_DEN", 3),
			Operators: splitList(os.Getenv("ATTESTO_QUORUM_OPERATORS")),
		},
		Gateway: Gateway{
			Identity: envOr("ATTESTO_GATEWAY_IDENTITY", "attestation-gateway"),
			Sources:  splitList(envOr("ATTESTO_SOURCES", "primary-kyc")),
		},
		Verifiers: Verifiers{
			Keys: splitList(os.Getenv("ATTESTO_VERIFIER_KEYS")),
		},
		Router: Router{
			Strategy: envOr("ATTESTO_ROUTER_STRATEGY", StrategyCached),
		},
		LogLevel: envOr("ATTESTO_LOG_LEVEL", "info"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envUint(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// splitList parses a comma-separated env value. Duplicates are dropped so a
// repeated operator entry cannot double-count stake in the quorum set.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(v, ","))
}
