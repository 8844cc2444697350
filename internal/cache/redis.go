// Package cache keeps short-lived lookups in redis so the review UI does not
// hammer the storage backend. Only derived data lives here; redis loss is
// never a correctness problem.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PreviewURLs caches signed preview URLs per item. The cache TTL is kept
// below the signature TTL so a hit is always still valid when served.
type PreviewURLs struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPreviewURLs(client *redis.Client, signedTTL time.Duration) *PreviewURLs {
	ttl := signedTTL - 30*time.Second
	if ttl <= 0 {
		ttl = signedTTL / 2
	}
	return &PreviewURLs{client: client, ttl: ttl}
}

func previewKey(itemID uuid.UUID) string {
	return fmt.Sprintf("preview:%s", itemID)
}

// Get returns the cached URL, or "" on miss. Redis errors count as misses.
func (p *PreviewURLs) Get(ctx context.Context, itemID uuid.UUID) string {
	if p == nil || p.client == nil {
		return ""
	}
	val, err := p.client.Get(ctx, previewKey(itemID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("preview cache get failed", "item_id", itemID, "error", err)
		}
		return ""
	}
	return val
}

func (p *PreviewURLs) Set(ctx context.Context, itemID uuid.UUID, url string) {
	if p == nil || p.client == nil {
		return
	}
	if err := p.client.Set(ctx, previewKey(itemID), url, p.ttl).Err(); err != nil {
		slog.Warn("preview cache set failed", "item_id", itemID, "error", err)
	}
}

// Invalidate drops cached URLs, used when an item's source is resubmitted.
func (p *PreviewURLs) Invalidate(ctx context.Context, itemIDs ...uuid.UUID) {
	if p == nil || p.client == nil || len(itemIDs) == 0 {
		return
	}
	keys := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		keys[i] = previewKey(id)
	}
	if err := p.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("preview cache invalidate failed", "error", err)
	}
}
