package authcore

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/rate"
)

// Config is the full engine configuration.
//
// Config is set once at process start, cloned by the Builder and treated as
// immutable afterwards.
type Config struct {
	Session        SessionConfig
	Password       PasswordConfig
	Policy         PasswordPolicy
	Lockout        LockoutConfig
	Tokens         TokenConfig
	Mail           MailConfig
	Store          StoreConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	Security       SecurityConfig
	ValidationMode ValidationMode
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the signed session credential minted on login.
type SessionConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte // HMAC secret or Ed25519 private key (PEM or raw)
	PublicKey     []byte // optional Ed25519 public key for verify-only engines
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	RevocationKey string // Redis key prefix for the logout revocation list
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the argon2id work parameters and the legacy bcrypt
// cost accepted for migrated hashes.
type PasswordConfig struct {
	Memory         uint32 // in KiB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	BcryptCost     int
	UpgradeOnLogin bool
}

// LockoutConfig is the automatic account lockout policy.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// TokenConfig holds the lifetimes of emailed one-time tokens.
type TokenConfig struct {
	ResetTTL        time.Duration
	VerificationTTL time.Duration
}

/*
====================================
MAIL CONFIG
====================================
*/

// MailConfig controls outbound account email.
type MailConfig struct {
	BaseURL     string // links are rooted here, e.g. https://app.example.com
	Product     string
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// StoreConfig bounds every identity store call.
type StoreConfig struct {
	Timeout     time.Duration
	RedisPrefix string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// RateRule is one fixed-window request limit. A zero Max disables it.
type RateRule struct {
	Max    int
	Window time.Duration
}

// RequestLimits bounds one action per identifier and per client IP.
type RequestLimits struct {
	PerIdentifier RateRule
	PerIP         RateRule
}

// SecurityConfig groups abuse controls that sit in front of the flows.
type SecurityConfig struct {
	ProductionMode       bool
	EnableRequestLimits  bool
	RateLimitPrefix      string
	Register             RequestLimits
	ResetRequest         RequestLimits
	ResetConfirm         RequestLimits
	VerificationResend   RequestLimits
	VerificationConfirm  RequestLimits
	EnumerationDelay     time.Duration // added to unknown-email reset requests
	AdminKey             string        // guards ConfirmEmailByAddress over HTTP
	RequireVerifiedOAuth bool
}

/*
====================================
VALIDATION MODE
====================================
*/

// ValidationMode selects how session credentials are checked.
type ValidationMode int

const (
	// ModeInherit uses the engine's configured ValidationMode.
	ModeInherit ValidationMode = -1

	// ModeJWTOnly checks signature and expiry only.
	ModeJWTOnly ValidationMode = iota
	// ModeStrict additionally rejects revoked credentials and deleted identities.
	ModeStrict
)

// RouteMode is the per-route override of ValidationMode.
type RouteMode = ValidationMode

func (m ValidationMode) String() string {
	switch m {
	case ModeInherit:
		return "inherit"
	case ModeJWTOnly:
		return "jwt_only"
	case ModeStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ParseValidationMode accepts "jwt_only" or "strict".
func ParseValidationMode(s string) (ValidationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jwt_only", "jwt-only", "jwtonly":
		return ModeJWTOnly, nil
	case "strict":
		return ModeStrict, nil
	default:
		return ModeInherit, ErrInvalidRouteMode
	}
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a Config with production defaults and no secrets.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:           24 * time.Hour,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
			RevocationKey: "acrv",
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			BcryptCost:     10,
			UpgradeOnLogin: true,
		},
		Policy: DefaultPasswordPolicy(),
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		Tokens: TokenConfig{
			ResetTTL:        time.Hour,
			VerificationTTL: 24 * time.Hour,
		},
		Mail: MailConfig{
			BaseURL:     "http://localhost:3000",
			Product:     "Genos",
			QueueSize:   256,
			Workers:     2,
			SendTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Timeout:     5 * time.Second,
			RedisPrefix: "ac",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode:      false,
			EnableRequestLimits: true,
			RateLimitPrefix:     "acrl",
			Register: RequestLimits{
				PerIdentifier: RateRule{Max: 5, Window: 15 * time.Minute},
				PerIP:         RateRule{Max: 20, Window: 15 * time.Minute},
			},
			ResetRequest: RequestLimits{
				PerIdentifier: RateRule{Max: 3, Window: 15 * time.Minute},
				PerIP:         RateRule{Max: 20, Window: 15 * time.Minute},
			},
			ResetConfirm: RequestLimits{
				PerIP: RateRule{Max: 20, Window: 15 * time.Minute},
			},
			VerificationResend: RequestLimits{
				PerIdentifier: RateRule{Max: 3, Window: 15 * time.Minute},
				PerIP:         RateRule{Max: 20, Window: 15 * time.Minute},
			},
			VerificationConfirm: RequestLimits{
				PerIP: RateRule{Max: 30, Window: 15 * time.Minute},
			},
			EnumerationDelay:     0,
			RequireVerifiedOAuth: true,
		},
		ValidationMode: ModeStrict,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.PrivateKey = cloneBytes(cfg.Session.PrivateKey)
	out.Session.PublicKey = cloneBytes(cfg.Session.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (s SecurityConfig) requestRules() map[limiters.Action]limiters.RequestConfig {
	conv := func(l RequestLimits) limiters.RequestConfig {
		return limiters.RequestConfig{
			PerIdentifier: rateRule(l.PerIdentifier),
			PerIP:         rateRule(l.PerIP),
		}
	}
	return map[limiters.Action]limiters.RequestConfig{
		limiters.ActionRegister:           conv(s.Register),
		limiters.ActionResetRequest:       conv(s.ResetRequest),
		limiters.ActionResetConfirm:       conv(s.ResetConfirm),
		limiters.ActionVerificationResend: conv(s.VerificationResend),
		limiters.ActionVerificationVerify: conv(s.VerificationConfirm),
	}
}

func rateRule(r RateRule) rate.Rule {
	return rate.Rule{Max: r.Max, Window: r.Window}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.SigningMethod != "ed25519" && c.Session.SigningMethod != "hs256" {
		return errors.New("unsupported session signing method")
	}
	if c.Session.SigningMethod == "hs256" && len(c.Session.PrivateKey) < 32 {
		return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
	}
	if c.Session.SigningMethod == "ed25519" && len(c.Session.PrivateKey) == 0 && len(c.Session.PublicKey) == 0 {
		return errors.New("ed25519 requires PrivateKey or PublicKey")
	}
	if c.Session.Leeway < 0 || c.Session.Leeway > 2*time.Minute {
		return errors.New("Session Leeway must be between 0 and 2m")
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.BcryptCost != 0 && (c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31) {
		return errors.New("Password BcryptCost must be 0 or between 4 and 31")
	}

	if err := c.Policy.validate(); err != nil {
		return err
	}

	if c.Lockout.Threshold < 0 {
		return errors.New("Lockout Threshold must be >= 0")
	}
	if c.Lockout.Threshold > 0 && c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0 when Threshold is set")
	}

	if c.Tokens.ResetTTL <= 0 {
		return errors.New("Tokens ResetTTL must be > 0")
	}
	if c.Tokens.VerificationTTL <= 0 {
		return errors.New("Tokens VerificationTTL must be > 0")
	}

	if c.Mail.QueueSize <= 0 {
		return errors.New("Mail QueueSize must be > 0")
	}
	if c.Mail.Workers <= 0 {
		return errors.New("Mail Workers must be > 0")
	}
	if c.Mail.SendTimeout <= 0 {
		return errors.New("Mail SendTimeout must be > 0")
	}
	if !strings.HasPrefix(c.Mail.BaseURL, "http://") && !strings.HasPrefix(c.Mail.BaseURL, "https://") {
		return errors.New("Mail BaseURL must be an http or https URL")
	}

	if c.Store.Timeout <= 0 {
		return errors.New("Store Timeout must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.EnumerationDelay < 0 {
		return errors.New("Security EnumerationDelay must be >= 0")
	}
	for action, rule := range c.Security.requestRules() {
		if rule.PerIdentifier.Max < 0 || rule.PerIP.Max < 0 {
			return errors.New("request limit Max must be >= 0 for " + string(action))
		}
		if (rule.PerIdentifier.Max > 0 && rule.PerIdentifier.Window <= 0) ||
			(rule.PerIP.Max > 0 && rule.PerIP.Window <= 0) {
			return errors.New("request limit Window must be > 0 for " + string(action))
		}
	}

	switch c.ValidationMode {
	case ModeJWTOnly, ModeStrict:
		// valid
	default:
		return errors.New("invalid ValidationMode")
	}

	if c.Security.ProductionMode {
		if c.Session.TTL > 7*24*time.Hour {
			return errors.New("ProductionMode requires Session TTL <= 7d")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if c.Lockout.Threshold == 0 {
			return errors.New("ProductionMode requires account lockout")
		}
		if !strings.HasPrefix(c.Mail.BaseURL, "https://") {
			return errors.New("ProductionMode requires an https Mail BaseURL")
		}
		if !c.Security.RequireVerifiedOAuth {
			return errors.New("ProductionMode requires verified OAuth emails")
		}
	}

	return nil
}
