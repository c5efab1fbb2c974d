package score

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const cacheKeyPrefix = "cydime:score:"

// Cached is a read through Redis cache in front of another Store. Only hits
// are cached. Cache failures fall back to the underlying store.
type Cached struct {
	store  Store
	client *redis.Client
	ttl    time.Duration
	log    *log.Logger
}

// NewRedisClient connects to the redis server at url and checks it responds
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// NewCached wraps store with a cache held in client
func NewCached(store Store, client *redis.Client, ttl time.Duration, logger *log.Logger) *Cached {
	return &Cached{
		store:  store,
		client: client,
		ttl:    ttl,
		log:    logger,
	}
}

func cacheKey(key uint32) string {
	return cacheKeyPrefix + strconv.FormatUint(uint64(key), 10)
}

// Score implements Store
func (c *Cached) Score(ctx context.Context, key uint32) (float64, bool, error) {
	cached, err := c.client.Get(ctx, cacheKey(key)).Float64()
	if err == nil {
		return cached, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.log.WithFields(log.Fields{
			"key":   key,
			"error": err.Error(),
		}).Warn("Score cache read failed")
	}

	s, ok, err := c.store.Score(ctx, key)
	if err != nil || !ok {
		return s, ok, err
	}

	if err := c.client.Set(ctx, cacheKey(key), strconv.FormatFloat(s, 'g', -1, 64), c.ttl).Err(); err != nil {
		c.log.WithFields(log.Fields{
			"key":   key,
			"error": err.Error(),
		}).Warn("Score cache write failed")
	}
	return s, true, nil
}

// Replace implements Loader by refreshing the underlying store and dropping
// every cached score
func (c *Cached) Replace(ctx context.Context, entries []Entry) error {
	loader, ok := c.store.(Loader)
	if !ok {
		return errors.New("score store does not support loading")
	}
	if err := loader.Replace(ctx, entries); err != nil {
		return err
	}
	return c.Flush(ctx)
}

// Flush removes every cached score
func (c *Cached) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 1000).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 1000 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}

// Ping implements Pinger
func (c *Cached) Ping(ctx context.Context) error {
	if pinger, ok := c.store.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// Close closes the cache connection and the underlying store
func (c *Cached) Close() error {
	cacheErr := c.client.Close()
	if err := c.store.Close(); err != nil {
		return err
	}
	return cacheErr
}
