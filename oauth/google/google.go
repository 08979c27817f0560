// Package google signs users in with Google through the OAuth 2.0
// authorization code flow with PKCE, and verifies the returned OIDC id_token.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/identity"
)

// Issuer is Google's OIDC issuer.
const Issuer = "https://accounts.google.com"

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Provider runs the Google code flow.
type Provider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// New discovers Google's endpoints and signing keys.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	op, err := oidc.NewProvider(ctx, Issuer)
	if err != nil {
		return nil, fmt.Errorf("init google oidc provider: %w", err)
	}

	return NewWithVerifier(cfg, op.Endpoint(), op.Verifier(&oidc.Config{ClientID: cfg.ClientID})), nil
}

// NewWithVerifier builds a Provider against explicit endpoints, for tests and
// for self-hosted OIDC issuers that speak Google's claim set.
func NewWithVerifier(cfg Config, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier) *Provider {
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: verifier,
	}
}

func (c Config) validate() error {
	if c.ClientID == "" || c.ClientSecret == "" || c.RedirectURL == "" {
		return errors.New("google oauth config missing required fields")
	}
	return nil
}

// AuthCodeURL returns the consent URL for state, committing to the PKCE
// verifier through its S256 challenge.
func (p *Provider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades code for tokens, verifies the id_token and returns the
// profile Google vouched for. The caller decides what an unverified email
// means; Exchange reports it faithfully.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (authcore.OAuthProfile, error) {
	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return authcore.OAuthProfile{}, fmt.Errorf("google token exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return authcore.OAuthProfile{}, errors.New("google did not return id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return authcore.OAuthProfile{}, fmt.Errorf("google id_token verification failed: %w", err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return authcore.OAuthProfile{}, fmt.Errorf("google id_token claims parse failed: %w", err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return authcore.OAuthProfile{}, errors.New("google id_token missing required claims")
	}

	name := claims.Name
	if name == "" {
		name = strings.TrimSpace(claims.GivenName + " " + claims.FamilyName)
	}

	return authcore.OAuthProfile{
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		DisplayName:   name,
		Provider:      identity.ProviderGoogle,
	}, nil
}
