// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Login identifier kinds accepted by LOGIN_IDENTIFIER.
const (
	LoginIdentifierEmail = "email"
	LoginIdentifierPhone = "phone"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the public HTTP API listens on (e.g. :3001).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// OpsGRPCAddr is the address of the ops gRPC server (health). "off" disables it;
	// an empty environment value falls back to the default.
	OpsGRPCAddr string `mapstructure:"OPS_GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN (postgres://...).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is the Redis URL used for presence markers and expiry events.
	RedisURL string `mapstructure:"REDIS_URL"`

	// JWTAccessSecret is the HMAC secret for access tokens, inline or a path to a file.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret is the HMAC secret for refresh tokens, inline or a path to a file. Must differ from JWTAccessSecret.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTAccessAlg is HS256, HS384 or HS512.
	JWTAccessAlg string `mapstructure:"JWT_ACCESS_ALG"`
	// JWTRefreshAlg is HS256, HS384 or HS512.
	JWTRefreshAlg string `mapstructure:"JWT_REFRESH_ALG"`
	// JWTIssuer is the iss claim set on and required from every token.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL is the access token and session access lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token and session refresh lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// LoginIdentifier selects the natural key for password login: "email" or "phone".
	LoginIdentifier string `mapstructure:"LOGIN_IDENTIFIER"`
	// AutoProvisionOnLogin creates an incomplete identity when password login misses.
	AutoProvisionOnLogin bool `mapstructure:"AUTO_PROVISION_ON_LOGIN"`

	// PresenceTTL is the lifetime of a presence marker (e.g. "300s").
	PresenceTTL string `mapstructure:"PRESENCE_TTL"`
	// PresenceKeyPrefix namespaces presence markers in Redis.
	PresenceKeyPrefix string `mapstructure:"PRESENCE_KEY_PREFIX"`

	// PolicyFile is an optional Rego file replacing the built-in access policy.
	PolicyFile string `mapstructure:"POLICY_FILE"`

	// KafkaBrokers is a comma-separated list of brokers for auth events. Empty disables Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventsKafkaTopic is the Kafka topic for auth events.
	EventsKafkaTopic string `mapstructure:"EVENTS_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint. Empty uses no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as service.name.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogDev switches to the human-readable development logger.
	LogDev bool `mapstructure:"LOG_DEV"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// CORSAllowOrigins is passed to the CORS middleware (comma-separated, "*" allowed outside production).
	CORSAllowOrigins string `mapstructure:"CORS_ALLOW_ORIGINS"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadBase is Load without the token settings checks, for tools (migrate, seed, worker)
// that never sign or verify tokens.
func LoadBase() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.validateBase(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":3001")
	v.SetDefault("OPS_GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ACCESS_ALG", "HS256")
	v.SetDefault("JWT_REFRESH_ALG", "HS256")
	v.SetDefault("JWT_ISSUER", "xend-auth")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOGIN_IDENTIFIER", LoginIdentifierEmail)
	v.SetDefault("AUTO_PROVISION_ON_LOGIN", false)
	v.SetDefault("PRESENCE_TTL", "300s")
	v.SetDefault("PRESENCE_KEY_PREFIX", "presence:")
	v.SetDefault("POLICY_FILE", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENTS_KAFKA_TOPIC", "auth-events")
	v.SetDefault("KAFKA_GROUP_ID", "xend-auth-audit")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "xend-auth")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEV", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if err := c.validateBase(); err != nil {
		return err
	}
	if strings.TrimSpace(c.JWTAccessSecret) == "" || strings.TrimSpace(c.JWTRefreshSecret) == "" {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}
	if strings.TrimSpace(c.JWTAccessSecret) == strings.TrimSpace(c.JWTRefreshSecret) {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if !validHMACAlg(c.JWTAccessAlg) || !validHMACAlg(c.JWTRefreshAlg) {
		return errors.New("config: JWT_ACCESS_ALG and JWT_REFRESH_ALG must be HS256, HS384 or HS512")
	}
	if c.Env == "production" && strings.TrimSpace(c.CORSAllowOrigins) == "*" {
		return errors.New("config: CORS_ALLOW_ORIGINS must not be * when APP_ENV=production")
	}
	return nil
}

func (c *Config) validateBase() error {
	c.LoginIdentifier = strings.ToLower(strings.TrimSpace(c.LoginIdentifier))
	if c.LoginIdentifier != LoginIdentifierEmail && c.LoginIdentifier != LoginIdentifierPhone {
		return errors.New("config: LOGIN_IDENTIFIER must be email or phone")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	return nil
}

func validHMACAlg(alg string) bool {
	switch alg {
	case "HS256", "HS384", "HS512":
		return true
	}
	return false
}

// OpsGRPCEnabled reports whether the ops gRPC server should be started.
func (c *Config) OpsGRPCEnabled() bool {
	addr := strings.TrimSpace(c.OpsGRPCAddr)
	return addr != "" && !strings.EqualFold(addr, "off")
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// PresenceMarkerTTL parses PresenceTTL. Returns 300s if unset or invalid.
func (c *Config) PresenceMarkerTTL() time.Duration {
	d, err := time.ParseDuration(c.PresenceTTL)
	if err != nil || d <= 0 {
		return 300 * time.Second
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka event producer.
func (c *Config) KafkaBrokersList() []string {
	return splitList(c.KafkaBrokers)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
