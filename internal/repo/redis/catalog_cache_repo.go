package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/upmarkt/backend/internal/domain/model"
)

const catalogKey = "catalog:packages"

// CatalogCacheRepo caches the package catalog. The catalog is immutable
// read-only data for this service, so a short TTL is the only invalidation.
type CatalogCacheRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewCatalogCacheRepo(client *goredis.Client, ttl time.Duration) *CatalogCacheRepo {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CatalogCacheRepo{client: client, ttl: ttl}
}

func (r *CatalogCacheRepo) Get(ctx context.Context) ([]model.Package, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.Get(ctx, catalogKey).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get catalog cache: %w", err)
	}

	var packages []model.Package
	if err := json.Unmarshal(raw, &packages); err != nil {
		// A corrupt entry is treated as a miss so the next Set overwrites it.
		return nil, false, nil
	}

	return packages, true, nil
}

func (r *CatalogCacheRepo) Set(ctx context.Context, packages []model.Package) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	raw, err := json.Marshal(packages)
	if err != nil {
		return fmt.Errorf("marshal catalog cache: %w", err)
	}

	if err := r.client.Set(ctx, catalogKey, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set catalog cache: %w", err)
	}

	return nil
}
