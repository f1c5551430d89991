package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

const cartKeyPrefix = "cart:"

// changeCartScript adjusts a line and deletes the hash field when the result
// drops to zero or below, so no dead lines linger in the hash.
var changeCartScript = redis.NewScript(`
local q = redis.call('HINCRBY', KEYS[1], ARGV[1], tonumber(ARGV[2]))
if q <= 0 then
	redis.call('HDEL', KEYS[1], ARGV[1])
	return 0
end
return q
`)

// RedisCartAdapter keeps one hash per user, field = item id, value = quantity.
// Carts survive restarts when the deployment wants them to.
type RedisCartAdapter struct {
	client *redis.Client
}

func NewRedisCartAdapter(client *redis.Client) *RedisCartAdapter {
	return &RedisCartAdapter{client: client}
}

func cartKey(userID string) string {
	return cartKeyPrefix + userID
}

func (a *RedisCartAdapter) Change(ctx context.Context, userID string, id domain.ItemID, delta int) (int, error) {
	quantity, err := changeCartScript.Run(ctx, a.client,
		[]string{cartKey(userID)}, id.String(), delta).Int()
	if err != nil {
		return 0, fmt.Errorf("change cart line %s: %w", id, err)
	}
	return quantity, nil
}

func (a *RedisCartAdapter) Snapshot(ctx context.Context, userID string) ([]domain.CartLine, error) {
	fields, err := a.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot cart: %w", err)
	}

	lines := make([]domain.CartLine, 0, len(fields))
	for field, value := range fields {
		id, err := domain.ParseItemID(field)
		if err != nil {
			continue
		}
		quantity, err := strconv.Atoi(value)
		if err != nil || quantity < 1 {
			continue
		}
		lines = append(lines, domain.CartLine{ItemID: id, Quantity: quantity})
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ItemID.String() < lines[j].ItemID.String()
	})
	return lines, nil
}

func (a *RedisCartAdapter) Clear(ctx context.Context, userID string) error {
	if err := a.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
