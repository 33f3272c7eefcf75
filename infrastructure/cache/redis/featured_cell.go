// Package redis provides a featured category cell shared through Redis
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const featuredKey = "featured:today"

// featuredRecord is the value stored under the featured key
type featuredRecord struct {
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FeaturedCell implements ports.FeaturedCell on top of Redis
type FeaturedCell struct {
	client *redis.Client
	prefix string
}

// NewFeaturedCell connects to redisURL and verifies the connection
func NewFeaturedCell(redisURL, prefix string) (*FeaturedCell, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewFeaturedCellWithClient(client, prefix), nil
}

// NewFeaturedCellWithClient creates a cell from an existing Redis client
func NewFeaturedCellWithClient(client *redis.Client, prefix string) *FeaturedCell {
	return &FeaturedCell{client: client, prefix: prefix}
}

func (c *FeaturedCell) key() string {
	return c.prefix + featuredKey
}

// Get returns the featured category, "" when none is stored
func (c *FeaturedCell) Get(ctx context.Context) (string, error) {
	raw, err := c.client.Get(ctx, c.key()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get featured category: %w", err)
	}

	var record featuredRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return "", fmt.Errorf("unmarshal featured category: %w", err)
	}
	return record.Category, nil
}

// Set stores the featured category without expiry
func (c *FeaturedCell) Set(ctx context.Context, category string) error {
	raw, err := json.Marshal(featuredRecord{Category: category, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal featured category: %w", err)
	}
	if err := c.client.Set(ctx, c.key(), raw, 0).Err(); err != nil {
		return fmt.Errorf("set featured category: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (c *FeaturedCell) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *FeaturedCell) Close() error {
	return c.client.Close()
}
