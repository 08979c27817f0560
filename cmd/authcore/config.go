package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/oauth/google"
)

// fileConfig is the on-disk and environment shape of the service config.
// Secrets are normally supplied through the environment only.
type fileConfig struct {
	Listen   string         `yaml:"listen"`
	Log      logConfig      `yaml:"log"`
	Store    storeConfig    `yaml:"store"`
	Session  sessionConfig  `yaml:"session"`
	Password passwordConfig `yaml:"password"`
	Lockout  lockoutConfig  `yaml:"lockout"`
	Tokens   tokenConfig    `yaml:"tokens"`
	Mail     mailConfig     `yaml:"mail"`
	SMTP     smtpConfig     `yaml:"smtp"`
	Google   googleConfig   `yaml:"google"`
	HTTP     httpConfig     `yaml:"http"`
	Security securityConfig `yaml:"security"`
	Metrics  metricsConfig  `yaml:"metrics"`
	Audit    auditConfig    `yaml:"audit"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type storeConfig struct {
	// Driver is memory, miniredis, redis, postgres or sqlite.
	Driver        string        `yaml:"driver"`
	DSN           string        `yaml:"dsn"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Prefix        string        `yaml:"prefix"`
	Timeout       time.Duration `yaml:"timeout"`
}

type sessionConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	SigningMethod  string        `yaml:"signing_method"`
	Secret         string        `yaml:"secret"`
	Ed25519Key     string        `yaml:"ed25519_private_key"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	KeyID          string        `yaml:"key_id"`
	ValidationMode string        `yaml:"validation_mode"`
}

type passwordConfig struct {
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	BcryptCost  int    `yaml:"bcrypt_cost"`
}

type lockoutConfig struct {
	Threshold int           `yaml:"threshold"`
	Duration  time.Duration `yaml:"duration"`
}

type tokenConfig struct {
	ResetTTL        time.Duration `yaml:"reset_ttl"`
	VerificationTTL time.Duration `yaml:"verification_ttl"`
}

type mailConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Product     string        `yaml:"product"`
	QueueSize   int           `yaml:"queue_size"`
	Workers     int           `yaml:"workers"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

type smtpConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	From        string `yaml:"from"`
	ImplicitTLS bool   `yaml:"implicit_tls"`
}

type googleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

type httpConfig struct {
	TrustProxyHeaders bool   `yaml:"trust_proxy_headers"`
	SecureCookies     bool   `yaml:"secure_cookies"`
	PostLoginRedirect string `yaml:"post_login_redirect"`
	AdminKey          string `yaml:"admin_key"`
}

type securityConfig struct {
	ProductionMode       bool          `yaml:"production_mode"`
	EnableRequestLimits  bool          `yaml:"enable_request_limits"`
	EnumerationDelay     time.Duration `yaml:"enumeration_delay"`
	RequireVerifiedOAuth bool          `yaml:"require_verified_oauth"`
}

type metricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Latency bool `yaml:"latency_histograms"`
}

type auditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
}

func defaultFileConfig() *fileConfig {
	d := authcore.DefaultConfig()
	return &fileConfig{
		Listen: ":8080",
		Log:    logConfig{Level: "info", Format: "json"},
		Store: storeConfig{
			Driver:  "memory",
			Prefix:  d.Store.RedisPrefix,
			Timeout: d.Store.Timeout,
		},
		Session: sessionConfig{
			TTL:            d.Session.TTL,
			SigningMethod:  d.Session.SigningMethod,
			ValidationMode: d.ValidationMode.String(),
		},
		Password: passwordConfig{
			MemoryKiB:   d.Password.Memory,
			Time:        d.Password.Time,
			Parallelism: d.Password.Parallelism,
			BcryptCost:  d.Password.BcryptCost,
		},
		Lockout: lockoutConfig{Threshold: d.Lockout.Threshold, Duration: d.Lockout.Duration},
		Tokens:  tokenConfig{ResetTTL: d.Tokens.ResetTTL, VerificationTTL: d.Tokens.VerificationTTL},
		Mail: mailConfig{
			BaseURL:     d.Mail.BaseURL,
			Product:     d.Mail.Product,
			QueueSize:   d.Mail.QueueSize,
			Workers:     d.Mail.Workers,
			SendTimeout: d.Mail.SendTimeout,
		},
		SMTP: smtpConfig{Port: 587},
		Security: securityConfig{
			EnableRequestLimits:  d.Security.EnableRequestLimits,
			RequireVerifiedOAuth: d.Security.RequireVerifiedOAuth,
		},
		Audit: auditConfig{BufferSize: d.Audit.BufferSize},
	}
}

// loadConfig layers defaults, the YAML file at path (if any) and the
// environment, in that order.
func loadConfig(path string, lookup func(string) (string, bool)) (*fileConfig, error) {
	cfg := defaultFileConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *fileConfig, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	var firstErr error
	setErr := func(key string, err error) {
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", key, err)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			setErr(key, err)
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			setErr(key, err)
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			setErr(key, err)
			*dst = d
		}
	}

	str("AUTHCORE_LISTEN", &cfg.Listen)
	str("AUTHCORE_LOG_LEVEL", &cfg.Log.Level)
	str("AUTHCORE_LOG_FORMAT", &cfg.Log.Format)

	str("AUTHCORE_STORE", &cfg.Store.Driver)
	str("AUTHCORE_DSN", &cfg.Store.DSN)
	str("AUTHCORE_REDIS_ADDR", &cfg.Store.RedisAddr)
	str("AUTHCORE_REDIS_PASSWORD", &cfg.Store.RedisPassword)
	integer("AUTHCORE_REDIS_DB", &cfg.Store.RedisDB)

	str("AUTHCORE_SIGNING_SECRET", &cfg.Session.Secret)
	str("AUTHCORE_ED25519_PRIVATE_KEY", &cfg.Session.Ed25519Key)
	str("AUTHCORE_SIGNING_METHOD", &cfg.Session.SigningMethod)
	duration("AUTHCORE_SESSION_TTL", &cfg.Session.TTL)
	str("AUTHCORE_VALIDATION_MODE", &cfg.Session.ValidationMode)

	integer("AUTHCORE_LOCKOUT_THRESHOLD", &cfg.Lockout.Threshold)
	duration("AUTHCORE_LOCKOUT_DURATION", &cfg.Lockout.Duration)

	str("AUTHCORE_BASE_URL", &cfg.Mail.BaseURL)
	str("AUTHCORE_PRODUCT", &cfg.Mail.Product)
	str("AUTHCORE_SMTP_HOST", &cfg.SMTP.Host)
	integer("AUTHCORE_SMTP_PORT", &cfg.SMTP.Port)
	str("AUTHCORE_SMTP_USERNAME", &cfg.SMTP.Username)
	str("AUTHCORE_SMTP_PASSWORD", &cfg.SMTP.Password)
	str("AUTHCORE_SMTP_FROM", &cfg.SMTP.From)

	str("AUTHCORE_GOOGLE_CLIENT_ID", &cfg.Google.ClientID)
	str("AUTHCORE_GOOGLE_CLIENT_SECRET", &cfg.Google.ClientSecret)
	str("AUTHCORE_GOOGLE_REDIRECT_URL", &cfg.Google.RedirectURL)

	str("AUTHCORE_ADMIN_KEY", &cfg.HTTP.AdminKey)
	boolean("AUTHCORE_TRUST_PROXY_HEADERS", &cfg.HTTP.TrustProxyHeaders)
	boolean("AUTHCORE_SECURE_COOKIES", &cfg.HTTP.SecureCookies)
	str("AUTHCORE_POST_LOGIN_REDIRECT", &cfg.HTTP.PostLoginRedirect)

	boolean("AUTHCORE_PRODUCTION", &cfg.Security.ProductionMode)
	boolean("AUTHCORE_REQUEST_LIMITS", &cfg.Security.EnableRequestLimits)
	boolean("AUTHCORE_METRICS", &cfg.Metrics.Enabled)
	boolean("AUTHCORE_AUDIT", &cfg.Audit.Enabled)

	return firstErr
}

// engineConfig converts the service config into an authcore.Config.
func (c *fileConfig) engineConfig() (authcore.Config, error) {
	out := authcore.DefaultConfig()

	out.Session.TTL = c.Session.TTL
	out.Session.SigningMethod = strings.ToLower(c.Session.SigningMethod)
	out.Session.Issuer = c.Session.Issuer
	out.Session.Audience = c.Session.Audience
	out.Session.KeyID = c.Session.KeyID
	switch {
	case c.Session.Ed25519Key != "":
		out.Session.SigningMethod = "ed25519"
		out.Session.PrivateKey = []byte(c.Session.Ed25519Key)
	case c.Session.Secret != "":
		out.Session.PrivateKey = []byte(c.Session.Secret)
	}
	mode, err := authcore.ParseValidationMode(c.Session.ValidationMode)
	if err != nil {
		return authcore.Config{}, fmt.Errorf("validation mode %q: %w", c.Session.ValidationMode, err)
	}
	out.ValidationMode = mode

	out.Password.Memory = c.Password.MemoryKiB
	out.Password.Time = c.Password.Time
	out.Password.Parallelism = c.Password.Parallelism
	out.Password.BcryptCost = c.Password.BcryptCost

	out.Lockout.Threshold = c.Lockout.Threshold
	out.Lockout.Duration = c.Lockout.Duration
	out.Tokens.ResetTTL = c.Tokens.ResetTTL
	out.Tokens.VerificationTTL = c.Tokens.VerificationTTL

	out.Mail.BaseURL = strings.TrimRight(c.Mail.BaseURL, "/")
	out.Mail.Product = c.Mail.Product
	out.Mail.QueueSize = c.Mail.QueueSize
	out.Mail.Workers = c.Mail.Workers
	out.Mail.SendTimeout = c.Mail.SendTimeout

	out.Store.Timeout = c.Store.Timeout
	out.Store.RedisPrefix = c.Store.Prefix

	out.Audit.Enabled = c.Audit.Enabled
	out.Audit.BufferSize = c.Audit.BufferSize
	out.Metrics.Enabled = c.Metrics.Enabled
	out.Metrics.EnableLatencyHistograms = c.Metrics.Latency

	out.Security.ProductionMode = c.Security.ProductionMode
	out.Security.EnableRequestLimits = c.Security.EnableRequestLimits
	out.Security.EnumerationDelay = c.Security.EnumerationDelay
	out.Security.RequireVerifiedOAuth = c.Security.RequireVerifiedOAuth
	out.Security.AdminKey = c.HTTP.AdminKey

	if err := out.Validate(); err != nil {
		return authcore.Config{}, err
	}
	return out, nil
}

// smtp returns the relay settings, or false when mail should only be
// logged.
func (c *fileConfig) smtp() (mail.SMTPConfig, bool) {
	if c.SMTP.Host == "" {
		return mail.SMTPConfig{}, false
	}
	return mail.SMTPConfig{
		Host:        c.SMTP.Host,
		Port:        c.SMTP.Port,
		Username:    c.SMTP.Username,
		Password:    c.SMTP.Password,
		From:        c.SMTP.From,
		ImplicitTLS: c.SMTP.ImplicitTLS,
		Timeout:     c.Mail.SendTimeout,
	}, true
}

// google returns the OAuth client settings, or false when Google sign-in is
// not configured.
func (c *fileConfig) google() (google.Config, bool) {
	if c.Google.ClientID == "" {
		return google.Config{}, false
	}
	return google.Config{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  c.Google.RedirectURL,
	}, true
}
