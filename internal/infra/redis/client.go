package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mjones3/exception-collector/internal/lifecycle/validation"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Client wraps Redis operations for the validation cache.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity for health reporting.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func cacheKey(transactionID, operation string) string {
	return fmt.Sprintf("validation:%s:%s", transactionID, operation)
}

// cachedResult is the stored form of a validation result.
type cachedResult struct {
	Operation     string `json:"operation"`
	TransactionID string `json:"transaction_id"`
	Valid         bool   `json:"valid"`
	Errors        []struct {
		Code    string `json:"code"`
		Field   string `json:"field,omitempty"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// Get reads a memoized validation result. A miss or a decode failure both
// report absent; the caller falls through to the store.
func (c *Client) Get(ctx context.Context, transactionID, operation string) (validation.Result, bool) {
	data, err := c.rdb.Get(ctx, cacheKey(transactionID, operation)).Bytes()
	if err != nil {
		return validation.Result{}, false
	}

	var cached cachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		slog.Warn("Failed to decode cached validation result", "key", cacheKey(transactionID, operation), "error", err)
		return validation.Result{}, false
	}

	res := validation.Result{
		Operation:     cached.Operation,
		TransactionID: cached.TransactionID,
		Valid:         cached.Valid,
	}
	for _, e := range cached.Errors {
		res.Errors = append(res.Errors, validation.Error{
			Code:    validation.Code(e.Code),
			Field:   e.Field,
			Message: e.Message,
		})
	}
	return res, true
}

// Set memoizes a validation result with the given TTL. Failures are logged
// and swallowed; the cache is advisory.
func (c *Client) Set(ctx context.Context, transactionID, operation string, result validation.Result, ttl time.Duration) {
	cached := cachedResult{
		Operation:     result.Operation,
		TransactionID: result.TransactionID,
		Valid:         result.Valid,
	}
	for _, e := range result.Errors {
		cached.Errors = append(cached.Errors, struct {
			Code    string `json:"code"`
			Field   string `json:"field,omitempty"`
			Message string `json:"message"`
		}{Code: string(e.Code), Field: e.Field, Message: e.Message})
	}

	data, err := json.Marshal(cached)
	if err != nil {
		slog.Warn("Failed to encode validation result for cache", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(transactionID, operation), data, ttl).Err(); err != nil {
		slog.Warn("Failed to store validation result in cache", "error", err)
	}
}

// InvalidateTransaction drops all memoized results for a transaction.
func (c *Client) InvalidateTransaction(ctx context.Context, transactionID string) {
	keys := []string{
		cacheKey(transactionID, "retry"),
		cacheKey(transactionID, "acknowledge"),
		cacheKey(transactionID, "resolve"),
		cacheKey(transactionID, "cancel-retry"),
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("Failed to invalidate validation cache", "transactionID", transactionID, "error", err)
	}
}
