package limiters

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/internal/rate"
)

// ErrRequestRateLimited is returned when a request budget is exhausted.
var ErrRequestRateLimited = errors.New("request rate limited")

// Action names a throttled operation.
type Action string

const (
	ActionRegister           Action = "reg"
	ActionResetRequest       Action = "rst"
	ActionResetConfirm       Action = "rsc"
	ActionVerificationResend Action = "vrs"
	ActionVerificationVerify Action = "vfy"
)

// RequestConfig sets per-identifier and per-IP budgets for one action.
type RequestConfig struct {
	PerIdentifier rate.Rule
	PerIP         rate.Rule
}

// RequestLimiter throttles unauthenticated endpoints that send mail or probe
// tokens. A nil RequestLimiter allows everything.
type RequestLimiter struct {
	limiter *rate.Limiter
	rules   map[Action]RequestConfig
}

// NewRequestLimiter returns a limiter counting through counter.
func NewRequestLimiter(counter rate.Counter, rules map[Action]RequestConfig) *RequestLimiter {
	return &RequestLimiter{limiter: rate.New(counter), rules: rules}
}

// Enforce records one request for action by identifier from ip.
func (l *RequestLimiter) Enforce(ctx context.Context, action Action, identifier, ip string) error {
	if l == nil {
		return nil
	}
	cfg, ok := l.rules[action]
	if !ok {
		return nil
	}
	if identifier != "" {
		if err := l.check(ctx, string(action)+":id:"+identifier, cfg.PerIdentifier); err != nil {
			return err
		}
	}
	if ip != "" {
		if err := l.check(ctx, string(action)+":ip:"+ip, cfg.PerIP); err != nil {
			return err
		}
	}
	return nil
}

func (l *RequestLimiter) check(ctx context.Context, key string, rule rate.Rule) error {
	err := l.limiter.Allow(ctx, key, rule)
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrRequestRateLimited
	}
	return err
}
