package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	Environment string

	Server   ServerConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Logging  LoggingConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type KafkaConfig struct {
	Brokers       []string
	SecurityTopic string
	Enabled       bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

// SecurityConfig carries every tunable of the authentication core.
// CookieMaxAge is deliberately absent: the cookie lifetime is always
// derived from SessionIdleTimeout so the two cannot drift.
type SecurityConfig struct {
	BcryptCost         int
	PasswordMinLength  int
	LockoutThreshold   int
	LockoutDuration    time.Duration
	SessionIdleTimeout time.Duration
	ResetTokenTTL      time.Duration
	BackupCodeCount    int
	MFAIssuer          string
	EncryptionKey      string
	StoreBackend       string // "memory" or "redis"
}

// LoadConfig reads configuration from the environment, with .env support
// for local development. Missing values fall back to safe defaults.
func LoadConfig() *Config {
	// .env is optional; real deployments inject the environment directly
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Kafka: KafkaConfig{
			Brokers:       splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
			SecurityTopic: getEnv("KAFKA_SECURITY_TOPIC", "security-events"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			BcryptCost:         getEnvInt("BCRYPT_COST", 12),
			PasswordMinLength:  getEnvInt("PASSWORD_MIN_LENGTH", 12),
			LockoutThreshold:   getEnvInt("LOCKOUT_THRESHOLD", 5),
			LockoutDuration:    getEnvDuration("LOCKOUT_DURATION", 30*time.Minute),
			SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 60*time.Minute),
			ResetTokenTTL:      getEnvDuration("RESET_TOKEN_TTL", time.Hour),
			BackupCodeCount:    getEnvInt("MFA_BACKUP_CODE_COUNT", 8),
			MFAIssuer:          getEnv("MFA_ISSUER", "auth-core"),
			EncryptionKey:      getEnv("ENCRYPTION_KEY", ""),
			StoreBackend:       getEnv("STORE_BACKEND", "memory"),
		},
	}

	cfg.Kafka.Enabled = len(cfg.Kafka.Brokers) > 0

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetServerAddress returns the host:port the HTTP server binds to.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
