package authcore

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultPasswordSymbols is the symbol set the default policy requires one of.
const DefaultPasswordSymbols = "!@#$%^&*"

// PasswordPolicy is the single rule set applied at registration and at
// password reset confirmation.
type PasswordPolicy struct {
	MinLength     int
	MaxLength     int // bytes; argon2 accepts any length but requests are bounded
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	Symbols       string
}

// DefaultPasswordPolicy requires eight characters with an uppercase letter,
// a digit and one of DefaultPasswordSymbols.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:     8,
		MaxLength:     1024,
		RequireUpper:  true,
		RequireDigit:  true,
		RequireSymbol: true,
		Symbols:       DefaultPasswordSymbols,
	}
}

// Check returns a *PolicyError listing every rule password breaks, or nil.
func (p PasswordPolicy) Check(password string) error {
	var violations []string

	if n := utf8.RuneCountInString(password); n < p.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		violations = append(violations, fmt.Sprintf("must be at most %d bytes", p.MaxLength))
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
		if strings.ContainsRune(p.symbols(), r) {
			symbol = true
		}
	}

	if p.RequireUpper && !upper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if p.RequireLower && !lower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if p.RequireDigit && !digit {
		violations = append(violations, "must contain a digit")
	}
	if p.RequireSymbol && !symbol {
		violations = append(violations, "must contain one of "+p.symbols())
	}

	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}

func (p PasswordPolicy) symbols() string {
	if p.Symbols == "" {
		return DefaultPasswordSymbols
	}
	return p.Symbols
}

func (p PasswordPolicy) validate() error {
	if p.MinLength < 1 {
		return errors.New("Policy MinLength must be >= 1")
	}
	if p.MaxLength != 0 && p.MaxLength < p.MinLength {
		return errors.New("Policy MaxLength must be >= MinLength")
	}
	return nil
}
