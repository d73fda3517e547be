package redis

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/idexbot/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each token's
// native-asset price is stored as a hash at key "tokenprice:{token}" with
// fields "pips" (decimal string, exact) and "ts" (Unix nanosecond
// timestamp). Pip quantities are stored as strings so no precision is lost
// in transit.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(token string) string {
	return "tokenprice:" + token
}

// SetPrice stores the latest price and timestamp for a token. A nil price
// (unpriced token) deletes any cached entry.
func (pc *PriceCache) SetPrice(ctx context.Context, token string, price *big.Int, ts time.Time) error {
	key := priceKey(token)

	if price == nil {
		if err := pc.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis: clear price %s: %w", token, err)
		}
		return nil
	}

	fields := map[string]interface{}{
		"pips": price.String(),
		"ts":   strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", token, err)
	}
	return nil
}

// GetPrice retrieves the latest price and timestamp for a token. It returns
// domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrice(ctx context.Context, token string) (*big.Int, time.Time, error) {
	key := priceKey(token)
	vals, err := pc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get price %s: %w", token, err)
	}
	if len(vals) == 0 {
		return nil, time.Time{}, domain.ErrNotFound
	}

	pipsStr, ok := vals["pips"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	price, ok := new(big.Int).SetString(pipsStr, 10)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("redis: parse price %s: %w", token, domain.ErrInvalidArgument)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", token, err)
	}

	return price, time.Unix(0, tsNano), nil
}

// GetPrices retrieves the latest prices for multiple tokens using a
// pipeline. Tokens whose keys do not exist are silently omitted from the
// result map.
func (pc *PriceCache) GetPrices(ctx context.Context, tokens []string) (map[string]*big.Int, error) {
	if len(tokens) == 0 {
		return map[string]*big.Int{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(tokens))
	for _, token := range tokens {
		cmds[token] = pipe.HGetAll(ctx, priceKey(token))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	result := make(map[string]*big.Int, len(tokens))
	for token, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		pipsStr, ok := vals["pips"]
		if !ok {
			continue
		}
		if price, ok := new(big.Int).SetString(pipsStr, 10); ok {
			result[token] = price
		}
	}

	return result, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
