package statestore

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-gateway/pkg/db"
	"github.com/angelmondragon/storefront-gateway/pkg/db/models"
	"github.com/angelmondragon/storefront-gateway/pkg/redis"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type clockedBackend struct {
	Backend
	advance func(time.Duration)
}

func backends(t *testing.T) map[string]clockedBackend {
	t.Helper()

	mem := NewMemoryBackend()
	memNow := time.Now()
	mem.now = func() time.Time { return memNow }

	dsn := fmt.Sprintf("file:%s-%s?mode=memory&cache=shared", t.Name(), uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.ClientState{}))
	sqlBackend, err := NewSQLBackend(db.NewFromGorm(conn, "sqlite"))
	require.NoError(t, err)
	sqlNow := time.Now()
	sqlBackend.now = func() time.Time { return sqlNow }

	fake := newFakeRedis()
	redisBackend, err := NewRedisBackend(redis.NewWithCmdable(fake))
	require.NoError(t, err)

	return map[string]clockedBackend{
		"memory": {Backend: mem, advance: func(d time.Duration) { memNow = memNow.Add(d) }},
		"sql":    {Backend: sqlBackend, advance: func(d time.Duration) { sqlNow = sqlNow.Add(d) }},
		"redis":  {Backend: redisBackend, advance: fake.advance},
	}
}

func TestBackendsShareSemantics(t *testing.T) {
	for name, b := range backends(t) {
		b := b
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := b.Get(ctx, "s1", "cart")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Set(ctx, "s1", "cart", `[1]`, 0))
			require.NoError(t, b.Set(ctx, "s1", "cart", `[2]`, 0))
			v, err := b.Get(ctx, "s1", "cart")
			require.NoError(t, err)
			assert.Equal(t, `[2]`, v)

			_, err = b.Get(ctx, "s2", "cart")
			require.ErrorIs(t, err, ErrNotFound, "sessions are isolated")

			won, err := b.SetNX(ctx, "s1", "payment_in_progress", "a", time.Minute)
			require.NoError(t, err)
			assert.True(t, won)
			won, err = b.SetNX(ctx, "s1", "payment_in_progress", "b", time.Minute)
			require.NoError(t, err)
			assert.False(t, won, "second claim must lose while the first is live")

			b.advance(2 * time.Minute)
			_, err = b.Get(ctx, "s1", "payment_in_progress")
			require.ErrorIs(t, err, ErrNotFound, "expired entries are invisible")
			won, err = b.SetNX(ctx, "s1", "payment_in_progress", "c", time.Minute)
			require.NoError(t, err)
			assert.True(t, won, "expired claim can be retaken")

			require.NoError(t, b.Del(ctx, "s1", "cart", "payment_in_progress"))
			_, err = b.Get(ctx, "s1", "cart")
			require.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, b.Ping(ctx))
		})
	}
}

type cartSnapshot struct {
	Items []string `json:"items"`
}

func TestTypedHelpers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := New(NewMemoryBackend(), time.Hour)
	require.NoError(t, err)
	sess := store.Session("abc")

	_, ok, err := Load[cartSnapshot](ctx, sess, KeyCart)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Save(ctx, sess, KeyCart, cartSnapshot{Items: []string{"1", "2"}}))
	got, ok, err := Load[cartSnapshot](ctx, sess, KeyCart)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, got.Items)

	won, err := Claim(ctx, sess, KeyPaymentInProgress, "x", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)
	won, err = Claim(ctx, sess, KeyPaymentInProgress, "y", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	require.NoError(t, sess.Clear(ctx, SessionKeys...))
	_, ok, err = Load[cartSnapshot](ctx, sess, KeyCart)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = Load[cartSnapshot](ctx, store.Session(" "), KeyCart)
	assert.Error(t, err, "blank session ids are rejected")
}

func TestNewRequiresBackend(t *testing.T) {
	t.Parallel()
	_, err := New(nil, time.Hour)
	assert.Error(t, err)
}

func TestCookieJarMerge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := New(NewMemoryBackend(), time.Hour)
	require.NoError(t, err)
	jar := NewCookieJar(store)

	cookies, err := jar.Load(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, cookies)

	require.NoError(t, jar.Merge(ctx, "s", []*http.Cookie{{Name: "JSESSIONID", Value: "one", Path: "/ecommerce"}, {Name: "pref", Value: "x"}}))
	require.NoError(t, jar.Merge(ctx, "s", []*http.Cookie{{Name: "JSESSIONID", Value: "two"}, {Name: "pref", MaxAge: -1}}))

	cookies, err = jar.Load(ctx, "s")
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "JSESSIONID", cookies[0].Name)
	assert.Equal(t, "two", cookies[0].Value)

	other, err := jar.Load(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestIdempotencyStoreAdapter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idem := NewIdempotencyStore(NewMemoryBackend())

	key := idem.IdempotencyKey("payment", "k1")
	assert.Equal(t, "idempotency:payment:k1", key)

	ok, err := idem.SetNX(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = idem.SetNX(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := idem.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "pending", v)

	_, err = idem.SetNX(ctx, "other", 42, time.Minute)
	assert.Error(t, err)

	require.NoError(t, idem.Del(ctx, key))
	_, err = idem.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryPurgeExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mem := NewMemoryBackend()
	now := time.Now()
	mem.now = func() time.Time { return now }

	require.NoError(t, mem.Set(ctx, "s", "a", "1", time.Second))
	require.NoError(t, mem.Set(ctx, "s", "b", "2", 0))
	now = now.Add(time.Minute)

	removed, err := mem.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

// fakeRedis is an in-memory go-redis command surface with a controllable clock.
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	expires map[string]time.Time
	now     time.Time
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, expires: map[string]time.Time{}, now: time.Now()}
}

func (f *fakeRedis) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeRedis) live(key string) bool {
	if _, ok := f.data[key]; !ok {
		return false
	}
	if exp, ok := f.expires[key]; ok && !f.now.Before(exp) {
		delete(f.data, key)
		delete(f.expires, key)
		return false
	}
	return true
}

func (f *fakeRedis) put(key string, value any, ttl time.Duration) {
	f.data[key] = fmt.Sprint(value)
	delete(f.expires, key)
	if ttl > 0 {
		f.expires[key] = f.now.Add(ttl)
	}
}

func (f *fakeRedis) Ping(context.Context) *goredis.StatusCmd {
	return goredis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(key, value, ttl)
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live(key) {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(f.data[key], nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) *goredis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live(key) {
		return goredis.NewBoolResult(false, nil)
	}
	f.put(key, value, ttl)
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *goredis.IntCmd {
	return goredis.NewIntResult(1, nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) *goredis.BoolCmd {
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
		delete(f.expires, k)
	}
	return goredis.NewIntResult(int64(len(keys)), nil)
}
