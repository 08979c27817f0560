package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/identity/storetest"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) identity.Store {
		_, client := newTestRedis(t)
		return New(client, "test")
	})
}

func TestKeysLayout(t *testing.T) {
	mr, client := newTestRedis(t)
	s := New(client, "")
	ctx := context.Background()

	rec := storetest.NewIdentity("layout@example.com")
	rec.VerificationTokenHash = "vdigest"
	require.NoError(t, s.Insert(ctx, rec))

	assert.True(t, mr.Exists("ac:id:"+rec.ID))
	got, err := mr.Get("ac:email:layout@example.com")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got)
	assert.True(t, mr.Exists("ac:vt:vdigest"))

	_, err = s.Update(ctx, rec.ID, func(i *identity.Identity) error {
		i.ClearVerificationToken()
		i.Verified = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("ac:vt:vdigest"))
}

func TestUnavailableWhenRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	s := New(client, "")
	mr.Close()

	_, err := s.GetByEmail(context.Background(), "down@example.com")
	assert.ErrorIs(t, err, identity.ErrUnavailable)

	err = s.Insert(context.Background(), storetest.NewIdentity("down@example.com"))
	assert.ErrorIs(t, err, identity.ErrUnavailable)
}

func TestCorruptRecordIsUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	s := New(client, "")
	require.NoError(t, mr.Set("ac:id:broken", "{not json"))

	_, err := s.GetByID(context.Background(), "broken")
	assert.ErrorIs(t, err, identity.ErrUnavailable)
}
