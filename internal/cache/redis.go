package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: "ledger"}
}

func (r *Redis) Get(ctx context.Context, key Key, dest any) (Generation, bool, error) {
	gen, err := r.generation(ctx, key.Tenant)
	if err != nil {
		return 0, false, err
	}
	raw, err := r.client.Get(ctx, r.dataKey(key, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return gen, false, nil
	}
	if err != nil {
		return gen, false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return gen, false, err
	}
	return gen, true, nil
}

// Set writes under gen, not the current generation. A value built before an invalidation
// lands under a key no reader asks for again and expires with its TTL.
func (r *Redis) Set(ctx context.Context, key Key, gen Generation, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.dataKey(key, gen), raw, r.ttl).Err()
}

func (r *Redis) InvalidateTenant(ctx context.Context, tenant string) error {
	return r.client.Incr(ctx, r.generationKey(tenant)).Err()
}

func (r *Redis) generation(ctx context.Context, tenant string) (Generation, error) {
	gen, err := r.client.Get(ctx, r.generationKey(tenant)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return Generation(gen), err
}

func (r *Redis) generationKey(tenant string) string {
	return r.prefix + ":gen:" + tenant
}

func (r *Redis) dataKey(key Key, gen Generation) string {
	return r.prefix + ":" + key.Tenant + ":" + strconv.FormatInt(int64(gen), 10) + ":" + string(key.Kind) + ":" + key.Params
}
