package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oddslab/syntharb/internal/domain"
)

// oddsTTL expires cached odds that the feed has stopped refreshing; a
// vanished market should not serve quotes forever.
const oddsTTL = 10 * time.Minute

// OddsCache implements domain.OddsCache using Redis hashes. Each market's
// latest quote is stored at key "odds:{gameID}:{market}" with fields
// "home", "away", and "ts" (Unix nanosecond timestamp).
type OddsCache struct {
	rdb *redis.Client
}

// NewOddsCache creates an OddsCache backed by the given Client.
func NewOddsCache(c *Client) *OddsCache {
	return &OddsCache{rdb: c.Underlying()}
}

func oddsKey(gameID, market string) string {
	return "odds:" + gameID + ":" + market
}

// SetOdds stores the latest quote and timestamp for a (game, market).
func (oc *OddsCache) SetOdds(ctx context.Context, gameID, market string, odds domain.Odds, ts time.Time) error {
	key := oddsKey(gameID, market)
	fields := map[string]interface{}{
		"home": strconv.FormatFloat(odds.Home, 'f', -1, 64),
		"away": strconv.FormatFloat(odds.Away, 'f', -1, 64),
		"ts":   strconv.FormatInt(ts.UnixNano(), 10),
	}
	pipe := oc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, oddsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set odds %s: %w", key, err)
	}
	return nil
}

// GetOdds retrieves the latest quote and timestamp for a (game, market).
// It returns domain.ErrNotFound when the key does not exist.
func (oc *OddsCache) GetOdds(ctx context.Context, gameID, market string) (domain.Odds, time.Time, error) {
	key := oddsKey(gameID, market)
	vals, err := oc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.Odds{}, time.Time{}, fmt.Errorf("redis: get odds %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.Odds{}, time.Time{}, domain.ErrNotFound
	}

	home, err := strconv.ParseFloat(vals["home"], 64)
	if err != nil {
		return domain.Odds{}, time.Time{}, fmt.Errorf("redis: parse home odds %s: %w", key, err)
	}
	away, err := strconv.ParseFloat(vals["away"], 64)
	if err != nil {
		return domain.Odds{}, time.Time{}, fmt.Errorf("redis: parse away odds %s: %w", key, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Odds{}, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", key, err)
	}

	return domain.Odds{Home: home, Away: away}, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.OddsCache = (*OddsCache)(nil)
