package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	devTokenSecret = "dev-request-token-secret-change-me"
	devHMACKey     = "dev-credential-hmac-key-change-me"
)

// Config is the full service configuration, grouped per collaborator.
type Config struct {
	Server     Server
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Token      TokenConfig
	Identity   IdentityConfig
	Messaging  MessagingConfig
	Reasoning  ReasoningConfig
	Ledger     LedgerConfig
	Credential CredentialConfig
	Sweep      SweepConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	LogLevel       string
	PublicBaseURL  string
	RequestTimeout time.Duration
}

// DatabaseConfig selects Postgres stores; an empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers    []string
	Topic      string
	Partitions int32
}

type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

type IdentityConfig struct {
	AppID   string
	Action  string
	BaseURL string
	Timeout time.Duration
}

type MessagingConfig struct {
	SESRegion     string
	FromAddress   string
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

type ReasoningConfig struct {
	APIURL  string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type LedgerConfig struct {
	URL              string
	APIKey           string
	DefaultRecipient string
	Timeout          time.Duration
}

type CredentialConfig struct {
	HMACKey string
}

type SweepConfig struct {
	Schedule string
}

// Load reads an optional .env file and then the environment. Malformed values
// keep their defaults and are reported in the returned error so main can log
// them; the Config is always usable.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	r := &reader{}
	cfg := Config{
		Server: Server{
			Addr:           r.str("VERIHIRE_ADDR", ":8080"),
			LogLevel:       r.str("LOG_LEVEL", "info"),
			PublicBaseURL:  strings.TrimRight(r.str("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
			RequestTimeout: r.duration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:          r.str("DATABASE_URL", ""),
			MaxOpenConns: r.int("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: r.int("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    r.list("KAFKA_BROKERS"),
			Topic:      r.str("KAFKA_TOPIC", "verihire.audit"),
			Partitions: int32(r.int("KAFKA_TOPIC_PARTITIONS", 3)),
		},
		Token: TokenConfig{
			Secret: r.str("REQUEST_TOKEN_SECRET", devTokenSecret),
			TTL:    r.duration("REQUEST_TOKEN_TTL", 15*24*time.Hour),
			Issuer: r.str("REQUEST_TOKEN_ISSUER", "verihire"),
		},
		Identity: IdentityConfig{
			AppID:   r.str("WORLD_ID_APP_ID", ""),
			Action:  r.str("WORLD_ID_ACTION", "verify-employment"),
			BaseURL: r.str("WORLD_ID_BASE_URL", "https://developer.worldcoin.org"),
			Timeout: r.duration("IDENTITY_TIMEOUT", 10*time.Second),
		},
		Messaging: MessagingConfig{
			SESRegion:     r.str("SES_REGION", "us-east-1"),
			FromAddress:   r.str("SES_FROM_ADDRESS", ""),
			RatePerSecond: r.float("MESSAGING_RATE_PER_SECOND", 5),
			Burst:         r.int("MESSAGING_BURST", 5),
			Timeout:       r.duration("MESSAGING_TIMEOUT", 10*time.Second),
		},
		Reasoning: ReasoningConfig{
			APIURL:  r.str("REASONING_API_URL", ""),
			APIKey:  r.str("REASONING_API_KEY", ""),
			Model:   r.str("REASONING_MODEL", "asi1-mini"),
			Timeout: r.duration("REASONING_TIMEOUT", 20*time.Second),
		},
		Ledger: LedgerConfig{
			URL:              r.str("LEDGER_URL", ""),
			APIKey:           r.str("LEDGER_API_KEY", ""),
			DefaultRecipient: r.str("LEDGER_DEFAULT_RECIPIENT", ""),
			Timeout:          r.duration("LEDGER_TIMEOUT", 30*time.Second),
		},
		Credential: CredentialConfig{
			HMACKey: r.str("CREDENTIAL_HMAC_KEY", devHMACKey),
		},
		Sweep: SweepConfig{
			Schedule: r.str("EXPIRY_SWEEP_SCHEDULE", "@every 1h"),
		},
	}
	return cfg, errors.Join(r.errs...)
}

// UsesDevSecrets reports whether signing keys are still the development defaults.
func (c Config) UsesDevSecrets() bool {
	return c.Token.Secret == devTokenSecret || c.Credential.HMACKey == devHMACKey
}

type reader struct {
	errs []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) list(key string) []string {
	raw := r.str(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return def
	}
	return d
}

func (r *reader) int(key string, def int) int {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	raw := r.str(key, "")
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid number %q", key, raw))
		return def
	}
	return f
}
