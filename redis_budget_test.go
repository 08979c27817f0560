package authcore

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// cmdCounter counts Redis commands issued through a client.
type cmdCounter struct {
	commands atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func TestValidateRedisBudget(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	mail := newOutbox()
	e, err := New().WithConfig(testConfig()).WithRedis(rdb).WithMailer(mail).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(e.Close)

	ctx := context.Background()
	if _, err := e.Register(ctx, RegisterInput{Email: "budget@x.com", Password: testPassword}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := e.ConfirmEmailByAddress(ctx, "budget@x.com"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	sess, err := e.Login(ctx, "budget@x.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Install after the connection is warm so handshake commands are not counted.
	counter := &cmdCounter{}
	rdb.AddHook(counter)

	if _, err := e.Validate(ctx, sess.Token, ModeJWTOnly); err != nil {
		t.Fatalf("jwt-only validate: %v", err)
	}
	if got := counter.commands.Load(); got != 0 {
		t.Fatalf("jwt-only validate issued %d redis commands, want 0", got)
	}

	if _, err := e.Validate(ctx, sess.Token, ModeStrict); err != nil {
		t.Fatalf("strict validate: %v", err)
	}
	// EXISTS on the revocation list plus GET of the identity document.
	if got := counter.commands.Load(); got != 2 {
		t.Fatalf("strict validate issued %d redis commands, want 2", got)
	}
}
