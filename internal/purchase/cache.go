package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courseshop-be/internal/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// TTL is how long a cached purchase answer is trusted. Entries are never
// invalidated on order changes, so a fresh purchase may read as missing
// until the entry expires.
const TTL = 1800 * time.Second

const (
	purchasedValue    = "1"
	notPurchasedValue = "0"
)

// CompletedLookup is the authoritative source: a completed order exists for
// the user and course.
type CompletedLookup interface {
	ExistsCompleted(ctx context.Context, userID, courseID int64) (bool, error)
}

type Cache struct {
	client *redis.Client
	lookup CompletedLookup
	ttl    time.Duration
}

func NewCache(client *redis.Client, lookup CompletedLookup) *Cache {
	return &Cache{client: client, lookup: lookup, ttl: TTL}
}

func Key(userID, courseID int64) string {
	return fmt.Sprintf("purchase_status_%d_%d", userID, courseID)
}

// IsPurchased answers from Redis when possible and falls back to the order
// table on a miss. Redis failures degrade to the database answer.
func (c *Cache) IsPurchased(ctx context.Context, userID, courseID int64) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "cache"),
		zap.Int64("user_id", userID),
		zap.Int64("course_id", courseID),
	)
	key := Key(userID, courseID)

	if c.client != nil {
		val, err := c.client.Get(ctx, key).Result()
		switch {
		case err == nil:
			return val == purchasedValue, nil
		case errors.Is(err, redis.Nil):
		default:
			log.Warn("purchase cache read failed", zap.Error(err))
		}
	}

	purchased, err := c.lookup.ExistsCompleted(ctx, userID, courseID)
	if err != nil {
		return false, err
	}

	if c.client != nil {
		val := notPurchasedValue
		if purchased {
			val = purchasedValue
		}
		if err := c.client.Set(ctx, key, val, c.ttl).Err(); err != nil {
			log.Warn("purchase cache write failed", zap.Error(err))
		}
	}

	return purchased, nil
}
