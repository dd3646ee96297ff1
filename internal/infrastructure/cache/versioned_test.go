package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"produceledger/internal/core/tenant"
)

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, time.Minute), mr
}

func tenantCtx(id string) context.Context {
	return tenant.WithTenant(context.Background(), &tenant.Tenant{ID: id})
}

type totals struct {
	Sales string `json:"sales"`
}

func TestFetchJSON_LoadsOnceUntilBump(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := tenantCtx("acme")
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return totals{Sales: "2090.00"}, nil
	}

	key, err := c.BuildKey(ctx, "dashboard", "all")
	require.NoError(t, err)
	assert.Equal(t, "pl:acme:dashboard:all:v1", key)

	var got totals
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "2090.00", got.Sales)

	require.NoError(t, c.Bump(ctx))
	key, err = c.BuildKey(ctx, "dashboard", "all")
	require.NoError(t, err)
	assert.Equal(t, "pl:acme:dashboard:all:v2", key)

	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	assert.Equal(t, 2, calls)
}

func TestBump_IsPerTenant(t *testing.T) {
	c, _ := newTestCache(t)
	acme, other := tenantCtx("acme"), tenantCtx("other")

	require.NoError(t, c.Bump(acme))
	require.NoError(t, c.Bump(acme))

	v, err := c.Version(other)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = c.Version(acme)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestFetchJSON_EntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := tenantCtx("acme")
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return totals{Sales: "1"}, nil
	}

	var got totals
	require.NoError(t, c.FetchJSON(ctx, "k", &got, loader))
	mr.FastForward(2 * time.Minute)
	require.NoError(t, c.FetchJSON(ctx, "k", &got, loader))

	assert.Equal(t, 2, calls)
}

func TestNilCache_CallsLoader(t *testing.T) {
	var c *Versioned
	var got totals

	err := c.FetchJSON(context.Background(), "ignored", &got, func(context.Context) (any, error) {
		return totals{Sales: "5"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "5", got.Sales)
	assert.NoError(t, c.Bump(context.Background()))
}
