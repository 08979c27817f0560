package authcore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/identity"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/mailq"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	authmail "github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store/redisstore"
)

// dummyPassword is hashed once at build time; logins for unknown emails
// verify against it.
const dummyPassword = "authcore-dummy-password"

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	store  identity.Store
	redis  redis.UniversalClient
	mailer authmail.Mailer
	logger *slog.Logger
	clock  func() time.Time

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the identity store. Without one, a Redis client is required
// and identities are kept in Redis.
func (b *Builder) WithStore(store identity.Store) *Builder {
	b.store = store
	return b
}

// WithRedis backs the revocation list and request limits with Redis.
// Without it both are process-local.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMailer sets the outbound mail transport. Without one, mail is logged.
func (b *Builder) WithMailer(m authmail.Mailer) *Builder {
	b.mailer = m
	return b
}

// WithLogger sets the structured logger. Nil selects slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for every time-dependent decision.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("identity store or redis client required")
		}
		store = redisstore.New(b.redis, cfg.Store.RedisPrefix)
	}
	store = newTimeoutStore(store, cfg.Store.Timeout)

	// -------- PASSWORD HASHING --------
	primary, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	legacy, err := password.NewBcrypt(cfg.Password.BcryptCost)
	if err != nil {
		return nil, err
	}
	hasher := password.NewChain(primary, legacy)
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}

	// -------- SESSION CREDENTIALS --------
	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Session.TTL,
		SigningMethod: jwt.SigningMethod(cfg.Session.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Session.PrivateKey),
		PublicKey:     cloneBytes(cfg.Session.PublicKey),
		Issuer:        cfg.Session.Issuer,
		Audience:      cfg.Session.Audience,
		Leeway:        cfg.Session.Leeway,
		KeyID:         cfg.Session.KeyID,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}

	// -------- REVOCATION + REQUEST LIMITS --------
	var (
		revocations stores.RevocationStore
		counter     rate.Counter
	)
	if b.redis != nil {
		revocations = stores.NewRedisRevocationStore(b.redis, cfg.Session.RevocationKey)
		counter = rate.NewRedisCounter(b.redis, cfg.Security.RateLimitPrefix)
	} else {
		revocations = stores.NewMemoryRevocationStore(clock)
		counter = rate.NewMemoryCounter()
	}

	engine := &Engine{
		config:      cfg,
		store:       store,
		hasher:      hasher,
		dummyHash:   dummyHash,
		jwtManager:  jm,
		lockout:     limiters.NewLockoutGuard(store, limiters.LockoutConfig{Threshold: cfg.Lockout.Threshold, Duration: cfg.Lockout.Duration}, clock),
		revocations: revocations,
		composer:    authmail.Composer{BaseURL: cfg.Mail.BaseURL, Product: cfg.Mail.Product},
		metrics:     NewMetrics(cfg.Metrics),
		logger:      logger,
		clock:       clock,
	}
	if cfg.Security.EnableRequestLimits {
		engine.requests = limiters.NewRequestLimiter(counter, cfg.Security.requestRules())
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, logger)

	mailer := b.mailer
	if mailer == nil {
		mailer = authmail.NewLog(logger)
	}
	engine.mailQueue = mailq.New(mailq.Config{
		BufferSize:  cfg.Mail.QueueSize,
		Workers:     cfg.Mail.Workers,
		SendTimeout: cfg.Mail.SendTimeout,
	}, mailer, logger, engine.observeMail)

	b.built = true

	return engine, nil
}
