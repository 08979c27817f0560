package authcore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newBenchmarkEngine(b *testing.B, mode ValidationMode) (*Engine, string) {
	b.Helper()
	mr := miniredis.RunT(b)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.ValidationMode = mode
	engine, err := New().WithConfig(cfg).WithRedis(rdb).WithMailer(newOutbox()).Build()
	if err != nil {
		b.Fatalf("build: %v", err)
	}
	b.Cleanup(engine.Close)

	ctx := context.Background()
	if _, err := engine.Register(ctx, RegisterInput{Email: "bench@x.com", Password: testPassword}); err != nil {
		b.Fatalf("register: %v", err)
	}
	if err := engine.ConfirmEmailByAddress(ctx, "bench@x.com"); err != nil {
		b.Fatalf("confirm: %v", err)
	}
	return engine, "bench@x.com"
}

func BenchmarkValidateJWTOnly(b *testing.B) {
	engine, email := newBenchmarkEngine(b, ModeJWTOnly)
	sess, err := engine.Login(context.Background(), email, testPassword)
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Validate(context.Background(), sess.Token, ModeInherit); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkValidateStrict(b *testing.B) {
	engine, email := newBenchmarkEngine(b, ModeStrict)
	sess, err := engine.Login(context.Background(), email, testPassword)
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Validate(context.Background(), sess.Token, ModeInherit); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkLogin(b *testing.B) {
	engine, email := newBenchmarkEngine(b, ModeStrict)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sess, err := engine.Login(context.Background(), email, testPassword)
		if err != nil {
			b.Fatalf("login failed: %v", err)
		}
		_ = engine.Logout(context.Background(), sess.Token)
	}
}
