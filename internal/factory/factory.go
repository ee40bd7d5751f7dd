// Package factory wires every dependency of the authentication core.
// Construction is explicit: each deployment (or test) gets its own
// isolated instances, never process-wide singletons.
package factory

import (
	"fmt"
	"sync"

	"auth-core/internal/auth"
	"auth-core/internal/client"
	"auth-core/internal/config"
	"auth-core/internal/encryption"
	"auth-core/internal/events"
	"auth-core/internal/handler"
	"auth-core/internal/lockout"
	"auth-core/internal/mfa"
	"auth-core/internal/password"
	"auth-core/internal/reset"
	"auth-core/internal/session"
	"auth-core/internal/store"
	"auth-core/internal/token"
	"auth-core/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config *config.Config

	redisClient *client.RedisClient
	publisher   events.Publisher
	backend     store.Store

	tokens    *token.Manager
	hasher    *password.Hasher
	validator *password.Validator
	lockout   *lockout.Lockout
	sessions  *session.Manager
	mfa       *mfa.Manager
	resets    *reset.Manager
	auth      *auth.Manager

	closeOnce sync.Once
}

// NewFactory loads configuration and constructs the full dependency graph.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{config: cfg}

	if err := f.initializeBackend(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	if err := f.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("store_backend", cfg.Security.StoreBackend),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
		util.Bool("mfa_enabled", f.mfa != nil),
	)

	return f, nil
}

func (f *Factory) initializeBackend() error {
	sec := f.config.Security

	switch sec.StoreBackend {
	case "redis":
		redisClient, err := client.NewRedisClient(f.config, util.Get())
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		f.redisClient = redisClient
		f.backend = store.NewRedis(redisClient, sec.SessionIdleTimeout, sec.ResetTokenTTL)
	case "memory", "":
		if f.config.IsProduction() {
			util.Warn("Using in-memory store in production; sessions will not survive restarts")
		}
		f.backend = store.NewMemory()
	default:
		return fmt.Errorf("unknown store backend: %s", sec.StoreBackend)
	}

	if f.config.Kafka.Enabled {
		publisher, err := events.NewKafkaPublisher(f.config, util.Get())
		if err != nil {
			util.Warn("Kafka publisher initialization failed - security events disabled", util.ErrorField(err))
			f.publisher = events.Nop{}
		} else {
			f.publisher = publisher
		}
	} else {
		f.publisher = events.Nop{}
	}

	return nil
}

func (f *Factory) initializeServices() error {
	sec := f.config.Security

	f.tokens = token.NewManager()
	f.hasher = password.NewHasher(sec.BcryptCost)
	f.validator = password.NewValidator(sec.PasswordMinLength)
	f.lockout = lockout.New(f.backend, sec.LockoutThreshold, sec.LockoutDuration)
	f.sessions = session.NewManager(f.tokens, f.backend, sec.SessionIdleTimeout)
	f.resets = reset.NewManager(f.tokens, f.backend, sec.ResetTokenTTL)

	// MFA is a capability, not a conditional scattered through call
	// sites: without an encryption key the manager is simply absent.
	if sec.EncryptionKey != "" {
		enc, err := encryption.NewManager(sec.EncryptionKey)
		if err != nil {
			return fmt.Errorf("encryption: %w", err)
		}
		f.mfa = mfa.NewManager(f.tokens, f.backend, enc, sec.MFAIssuer, sec.BackupCodeCount)
	} else {
		util.Warn("No encryption key configured - MFA capability disabled")
	}

	f.auth = auth.NewManager(f.hasher, f.validator, f.lockout, f.mfa, f.publisher)

	return nil
}

// Config returns the loaded configuration.
func (f *Factory) Config() *config.Config {
	return f.config
}

// AuthHandler builds the HTTP handler over the constructed services.
func (f *Factory) AuthHandler() *handler.AuthHandler {
	return handler.NewAuthHandler(f.auth, f.sessions, f.mfa, f.resets, f.backend, f.publisher, util.Get())
}

// AuthManager returns the authentication orchestrator.
func (f *Factory) AuthManager() *auth.Manager {
	return f.auth
}

// SessionManager returns the session manager.
func (f *Factory) SessionManager() *session.Manager {
	return f.sessions
}

// Close releases all held resources.
func (f *Factory) Close() {
	f.closeOnce.Do(func() {
		if err := f.publisher.Close(); err != nil {
			util.Error("Failed to close event publisher", util.ErrorField(err))
		}
		if f.redisClient != nil {
			_ = f.redisClient.Close()
		}
		util.Sync()
	})
}
