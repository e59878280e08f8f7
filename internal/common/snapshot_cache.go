package common

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache keeps gzipped snapshot payloads in Redis so repeated full
// downloads by freshly paired stations don't re-dump the tenant store each
// time. Every method is a no-op on a nil client.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(tenantID string) string {
	return fmt.Sprintf("relay:snapshot:%s", tenantID)
}

func (c *SnapshotCache) Get(ctx context.Context, tenantID string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	blob, err := c.client.Get(ctx, snapshotKey(tenantID)).Bytes()
	if err != nil {
		return nil, false
	}
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, false
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (c *SnapshotCache) Set(ctx context.Context, tenantID string, payload []byte) {
	if c == nil || c.client == nil {
		return
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return
	}
	if err := zw.Close(); err != nil {
		return
	}
	c.client.Set(ctx, snapshotKey(tenantID), buf.Bytes(), c.ttl)
}

// Invalidate drops the cached snapshot after any write to the tenant's data.
func (c *SnapshotCache) Invalidate(ctx context.Context, tenantID string) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, snapshotKey(tenantID))
}
