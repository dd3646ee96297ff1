package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"produceledger/internal/core/tenant"
	"produceledger/pkg/logger"
)

const keyPrefix = "pl"

// Versioned caches JSON values per tenant. Each tenant has a version counter
// that is part of every key; Bump moves the counter so older entries are never
// read again and expire on their TTL.
//
// A nil *Versioned or one without a client calls the loader directly.
type Versioned struct {
	client *redis.Client
	ttl    time.Duration
}

func NewVersioned(client *redis.Client, ttl time.Duration) *Versioned {
	return &Versioned{client: client, ttl: ttl}
}

func (c *Versioned) enabled() bool {
	return c != nil && c.client != nil
}

func versionKey(tenantID string) string {
	return strings.Join([]string{keyPrefix, tenantID, "version"}, ":")
}

func tenantOf(ctx context.Context) string {
	if id := tenant.GetTenantID(ctx); id != "" {
		return id
	}
	return "default"
}

// Version returns the tenant's current data version, starting at 1.
func (c *Versioned) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	key := versionKey(tenantOf(ctx))
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX so two first readers agree on the starting version
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	return ver, err
}

// BuildKey joins parts under the tenant prefix and appends the current version.
func (c *Versioned) BuildKey(ctx context.Context, parts ...string) (string, error) {
	tenantID := tenantOf(ctx)
	ver, err := c.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("cache version: %w", err)
	}
	all := append([]string{keyPrefix, tenantID}, parts...)
	return fmt.Sprintf("%s:v%d", strings.Join(all, ":"), ver), nil
}

// FetchJSON decodes the cached value at key into dest, or runs loader and
// stores its result. Redis failures fall back to the loader.
func (c *Versioned) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if !c.enabled() {
		return load(ctx, dest, loader)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		logger.Warn(ctx, "cache read failed", "key", key, "error", err)
		return load(ctx, dest, loader)
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached value: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "cache write failed", "key", key, "error", err)
	}
	return json.Unmarshal(raw, dest)
}

func load(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached value of the tenant in ctx.
func (c *Versioned) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, versionKey(tenantOf(ctx))).Err()
}

// BumpQuietly is Bump for write hooks: failures are logged, not returned.
func (c *Versioned) BumpQuietly(ctx context.Context) {
	if err := c.Bump(ctx); err != nil {
		logger.Warn(ctx, "cache bump failed", "error", err)
	}
}
