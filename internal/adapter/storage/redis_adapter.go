package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

const (
	stockKeyPrefix = "stock:"
	settingsKey    = "settings"
)

// decrementAllScript checks every line first and only then decrements, so the
// whole checkout is one atomic unit inside Redis. On a short line it returns
// {0, index, available} without touching any key.
var decrementAllScript = redis.NewScript(`
for i = 1, #KEYS do
	local have = tonumber(redis.call('GET', KEYS[i]) or '0')
	if have < tonumber(ARGV[i]) then
		return {0, i, have}
	end
end
for i = 1, #KEYS do
	redis.call('DECRBY', KEYS[i], tonumber(ARGV[i]))
end
return {1, 0, 0}
`)

// addClampScript applies a relative adjustment with a floor of zero.
var addClampScript = redis.NewScript(`
local q = tonumber(redis.call('GET', KEYS[1]) or '0') + tonumber(ARGV[1])
if q < 0 then
	q = 0
end
redis.call('SET', KEYS[1], q)
return q
`)

// RedisAdapter keeps the ledger in Redis. Durability follows the Redis
// persistence configuration of the deployment; atomicity of DecrementAll comes
// from running the whole check-then-decrement as a single Lua script.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func stockKey(id domain.ItemID) string {
	return stockKeyPrefix + id.String()
}

func (r *RedisAdapter) Get(ctx context.Context, id domain.ItemID) (int, error) {
	quantity, err := r.client.Get(ctx, stockKey(id)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get stock %s: %w", id, err)
	}
	return quantity, nil
}

func (r *RedisAdapter) Set(ctx context.Context, id domain.ItemID, quantity int) error {
	if quantity < 0 {
		quantity = 0
	}
	if err := r.client.Set(ctx, stockKey(id), quantity, 0).Err(); err != nil {
		return fmt.Errorf("set stock %s: %w", id, err)
	}
	return nil
}

func (r *RedisAdapter) Add(ctx context.Context, id domain.ItemID, delta int) (int, error) {
	quantity, err := addClampScript.Run(ctx, r.client, []string{stockKey(id)}, delta).Int()
	if err != nil {
		return 0, fmt.Errorf("add stock %s: %w", id, err)
	}
	return quantity, nil
}

func (r *RedisAdapter) List(ctx context.Context) ([]domain.StockLevel, error) {
	var levels []domain.StockLevel

	iter := r.client.Scan(ctx, 0, stockKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id, err := domain.ParseItemID(key[len(stockKeyPrefix):])
		if err != nil {
			continue
		}
		quantity, err := r.client.Get(ctx, key).Int()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list stock: %w", err)
		}
		levels = append(levels, domain.StockLevel{ItemID: id, Quantity: quantity})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}

	sort.Slice(levels, func(i, j int) bool {
		return levels[i].ItemID.String() < levels[j].ItemID.String()
	})
	return levels, nil
}

func (r *RedisAdapter) DecrementAll(ctx context.Context, lines []domain.CartLine) error {
	keys := make([]string, len(lines))
	args := make([]interface{}, len(lines))
	for i, ln := range lines {
		keys[i] = stockKey(ln.ItemID)
		args[i] = ln.Quantity
	}

	res, err := decrementAllScript.Run(ctx, r.client, keys, args...).Int64Slice()
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if len(res) != 3 {
		return fmt.Errorf("decrement stock: unexpected script reply %v", res)
	}
	if res[0] == 0 {
		short := lines[res[1]-1]
		return &domain.StockShortageError{
			ItemID:    short.ItemID,
			Requested: short.Quantity,
			Available: int(res[2]),
		}
	}
	return nil
}

func (r *RedisAdapter) Setting(ctx context.Context, name string) (string, error) {
	value, err := r.client.HGet(ctx, settingsKey, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", name, err)
	}
	return value, nil
}

func (r *RedisAdapter) PutSetting(ctx context.Context, name, value string) error {
	if err := r.client.HSet(ctx, settingsKey, name, value).Err(); err != nil {
		return fmt.Errorf("put setting %s: %w", name, err)
	}
	return nil
}
