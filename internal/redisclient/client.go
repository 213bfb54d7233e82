package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireOrderLock takes the advisory lock serializing mutations of one order.
// Returns false when another session holds it.
func (c *Client) AcquireOrderLock(ctx context.Context, orderID int64, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:order:%d", orderID), "1", ttl).Result()
}

// ReleaseOrderLock releases the per-order lock
func (c *Client) ReleaseOrderLock(ctx context.Context, orderID int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:order:%d", orderID)).Err()
}

// MarkInvoiceSeen caches a reconciled invoice token with a TTL so repeated
// webhook deliveries can short-circuit before touching the database.
func (c *Client) MarkInvoiceSeen(ctx context.Context, token string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("invoice:%s", token), "1", ttl).Err()
}

// WasInvoiceSeen checks whether an invoice token was recently reconciled.
// The database remains the source of truth; a cache miss just means the
// duplicate check happens inside the reconcile transaction.
func (c *Client) WasInvoiceSeen(ctx context.Context, token string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("invoice:%s", token)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}
