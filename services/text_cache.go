package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"prepai-backend/internal/logger"
)

// TextCache keeps extracted document text in Redis keyed by blob hash, so
// an index repair does not have to re-run extraction over the stored blob.
// A nil *TextCache is valid and disables caching.
type TextCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTextCache(rdb *redis.Client, ttl time.Duration) *TextCache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &TextCache{rdb: rdb, ttl: ttl}
}

func (c *TextCache) key(blobHash string) string {
	return "note_text:" + blobHash
}

func (c *TextCache) Get(ctx context.Context, blobHash string) (string, bool) {
	if c == nil || blobHash == "" {
		return "", false
	}
	text, err := c.rdb.Get(ctx, c.key(blobHash)).Result()
	if err != nil {
		return "", false
	}
	return text, true
}

func (c *TextCache) Set(ctx context.Context, blobHash, text string) {
	if c == nil || blobHash == "" || text == "" {
		return
	}
	if err := c.rdb.Set(ctx, c.key(blobHash), text, c.ttl).Err(); err != nil {
		logger.Warn("Failed to cache extracted text", "error", err)
	}
}
