package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idplane/internal/profile/models"
	id "idplane/pkg/domain"
)

// fakeRedis implements the client subset in memory, with an optional
// injected failure for every operation.
type fakeRedis struct {
	data map[string][]byte
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	val, ok := f.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(string(val))
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.data[key] = value.([]byte)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	return cmd
}

func testProfile(userID id.UserID) *models.Profile {
	return &models.Profile{
		ID:          id.NewProfileID(),
		UserID:      userID,
		DisplayName: "Alice",
		Bio:         "hello",
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestAccessor_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := newFakeRedis()
	acc := New(backend, nil)
	userID := id.NewUserID()

	_, ok := acc.Get(ctx, userID)
	assert.False(t, ok, "empty cache should miss")

	want := testProfile(userID)
	acc.Set(ctx, want)

	got, ok := acc.Get(ctx, userID)
	require.True(t, ok)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.DisplayName, got.DisplayName)

	acc.Delete(ctx, userID)
	_, ok = acc.Get(ctx, userID)
	assert.False(t, ok, "deleted key should miss")
}

func TestAccessor_BackendFailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	backend := newFakeRedis()
	acc := New(backend, nil)
	userID := id.NewUserID()

	acc.Set(ctx, testProfile(userID))

	backend.err = errors.New("connection refused")

	// Get fails → caller sees a miss, never an error.
	_, ok := acc.Get(ctx, userID)
	assert.False(t, ok)

	// Set and Delete do not panic or surface anything.
	acc.Set(ctx, testProfile(userID))
	acc.Delete(ctx, userID)
}

func TestAccessor_CorruptPayloadIsMiss(t *testing.T) {
	ctx := context.Background()
	backend := newFakeRedis()
	acc := New(backend, nil)
	userID := id.NewUserID()

	backend.data[Key(userID)] = []byte("{not json")

	_, ok := acc.Get(ctx, userID)
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	userID := id.NewUserID()
	assert.Equal(t, "user:profile:"+userID.String(), Key(userID))
}

func TestProfileJSONUsesStringIDs(t *testing.T) {
	p := testProfile(id.NewUserID())
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), p.UserID.String())
}
