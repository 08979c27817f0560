package authcore

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/identity"
	authmail "github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// outbox records delivered mail and lets tests wait for it.
type outbox struct {
	ch   chan authmail.Message
	fail bool
}

func newOutbox() *outbox {
	return &outbox{ch: make(chan authmail.Message, 64)}
}

func (o *outbox) Send(_ context.Context, msg authmail.Message) error {
	if o.fail {
		return context.DeadlineExceeded
	}
	o.ch <- msg
	return nil
}

var (
	verifyLinkRE = regexp.MustCompile(`/verify/([A-Za-z0-9_-]+)`)
	resetLinkRE  = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)
)

func (o *outbox) next(t *testing.T, kind string) authmail.Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-o.ch:
			if msg.Kind == kind {
				return msg
			}
		case <-timeout:
			t.Fatalf("no %s mail delivered", kind)
			return authmail.Message{}
		}
	}
}

func (o *outbox) verificationToken(t *testing.T) string {
	t.Helper()
	m := verifyLinkRE.FindStringSubmatch(o.next(t, authmail.KindVerification).Text)
	require.Len(t, m, 2)
	return m[1]
}

func (o *outbox) resetToken(t *testing.T) string {
	t.Helper()
	m := resetLinkRE.FindStringSubmatch(o.next(t, authmail.KindReset).Text)
	require.Len(t, m, 2)
	return m[1]
}

func (o *outbox) empty(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case msg := <-o.ch:
		t.Fatalf("unexpected %s mail to %s", msg.Kind, msg.To)
	case <-time.After(wait):
	}
}

// testConfig keeps hashing cheap and disables request limits.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.PrivateKey = []byte(testSecret)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	cfg.Security.EnableRequestLimits = false
	cfg.Metrics.Enabled = true
	return cfg
}

type testEngine struct {
	*Engine
	store *memory.Store
	clock *testClock
	mail  *outbox
	audit *ChannelSink
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) *testEngine {
	t.Helper()
	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	te := &testEngine{
		store: memory.New(),
		clock: newTestClock(),
		mail:  newOutbox(),
		audit: NewChannelSink(256),
	}
	engine, err := New().
		WithConfig(cfg).
		WithStore(te.store).
		WithMailer(te.mail).
		WithAuditSink(te.audit).
		WithClock(te.clock.Now).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	te.Engine = engine
	return te
}

const testPassword = "Abcd123!"

func (te *testEngine) register(t *testing.T, email string) *identity.Identity {
	t.Helper()
	rec, err := te.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  testPassword,
		FirstName: "A",
		LastName:  "B",
	})
	require.NoError(t, err)
	return rec
}

// registerVerified registers email and confirms it with the mailed token.
func (te *testEngine) registerVerified(t *testing.T, email string) *identity.Identity {
	t.Helper()
	rec := te.register(t, email)
	require.NoError(t, te.ConfirmEmail(context.Background(), te.mail.verificationToken(t)))
	return rec
}

func (te *testEngine) get(t *testing.T, email string) *identity.Identity {
	t.Helper()
	rec, err := te.store.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return rec
}

func bcryptHash(t *testing.T, plaintext string) (string, error) {
	t.Helper()
	b, err := password.NewBcrypt(4)
	if err != nil {
		return "", err
	}
	return b.Hash(plaintext)
}
