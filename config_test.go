package authcore

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "test defaults valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "missing secret invalid",
			mutate: func(c *Config) {
				c.Session.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name: "short hs256 secret invalid",
			mutate: func(c *Config) {
				c.Session.PrivateKey = []byte("too-short")
			},
			wantValid: false,
		},
		{
			name: "unknown signing method invalid",
			mutate: func(c *Config) {
				c.Session.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "leeway too large invalid",
			mutate: func(c *Config) {
				c.Session.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "argon2 memory below floor invalid",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "bcrypt cost below minimum invalid",
			mutate: func(c *Config) {
				c.Password.BcryptCost = 2
			},
			wantValid: false,
		},
		{
			name: "bcrypt cost zero selects default",
			mutate: func(c *Config) {
				c.Password.BcryptCost = 0
			},
			wantValid: true,
		},
		{
			name: "policy min length zero invalid",
			mutate: func(c *Config) {
				c.Policy.MinLength = 0
			},
			wantValid: false,
		},
		{
			name: "lockout without duration invalid",
			mutate: func(c *Config) {
				c.Lockout.Duration = 0
			},
			wantValid: false,
		},
		{
			name: "lockout disabled valid",
			mutate: func(c *Config) {
				c.Lockout.Threshold = 0
				c.Lockout.Duration = 0
			},
			wantValid: true,
		},
		{
			name: "zero reset ttl invalid",
			mutate: func(c *Config) {
				c.Tokens.ResetTTL = 0
			},
			wantValid: false,
		},
		{
			name: "non http base url invalid",
			mutate: func(c *Config) {
				c.Mail.BaseURL = "ftp://example.com"
			},
			wantValid: false,
		},
		{
			name: "request limit without window invalid",
			mutate: func(c *Config) {
				c.Security.Register = RequestLimits{PerIP: RateRule{Max: 5}}
			},
			wantValid: false,
		},
		{
			name: "inherit is not a configurable default",
			mutate: func(c *Config) {
				c.ValidationMode = ModeInherit
			},
			wantValid: false,
		},
		{
			name: "production rejects weak hashing",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Mail.BaseURL = "https://app.example.com"
			},
			wantValid: false,
		},
		{
			name: "production rejects plain http links",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Password = DefaultConfig().Password
			},
			wantValid: false,
		},
		{
			name: "production rejects unverified oauth",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Password = DefaultConfig().Password
				c.Mail.BaseURL = "https://app.example.com"
				c.Security.RequireVerifiedOAuth = false
			},
			wantValid: false,
		},
		{
			name: "production valid",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Password = DefaultConfig().Password
				c.Mail.BaseURL = "https://app.example.com"
			},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigNeedsOnlyASecret(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without a signing secret must not validate")
	}
	cfg.Session.PrivateKey = []byte(testSecret)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with secret: %v", err)
	}

	if cfg.Lockout.Threshold != 5 || cfg.Lockout.Duration != 15*time.Minute {
		t.Fatalf("unexpected lockout defaults: %+v", cfg.Lockout)
	}
	if cfg.Tokens.ResetTTL != time.Hour {
		t.Fatalf("unexpected reset ttl: %v", cfg.Tokens.ResetTTL)
	}
}

func TestBuilderClonesSecrets(t *testing.T) {
	cfg := testConfig()
	secret := []byte(testSecret)
	cfg.Session.PrivateKey = secret

	b := New().WithConfig(cfg)
	secret[0] = 'X'
	if b.config.Session.PrivateKey[0] == 'X' {
		t.Fatal("builder must copy key material")
	}
}

func TestEngineConfigStripsKeys(t *testing.T) {
	te := newTestEngine(t)
	if got := te.Config().Session.PrivateKey; got != nil {
		t.Fatalf("Config() leaked key material: %q", got)
	}
}

func TestParseValidationMode(t *testing.T) {
	for in, want := range map[string]ValidationMode{
		"strict":   ModeStrict,
		"jwt_only": ModeJWTOnly,
		"JWT-Only": ModeJWTOnly,
	} {
		got, err := ParseValidationMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseValidationMode(%q) = %v, %v", in, got, err)
		}
		if got.String() == "unknown" {
			t.Fatalf("mode %v has no name", got)
		}
	}
	if _, err := ParseValidationMode("hybrid"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
