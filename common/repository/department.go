package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anatraz/limsbridge/common/db"
	"github.com/anatraz/limsbridge/common/redis"
)

// DepartmentRepository resolves custodial department ids by name
type DepartmentRepository struct {
	db       *db.DB
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewDepartmentRepository creates a new department repository. The cache
// client may be nil.
func NewDepartmentRepository(database *db.DB, cache *redis.Client, cacheTTL time.Duration) *DepartmentRepository {
	return &DepartmentRepository{db: database, cache: cache, cacheTTL: cacheTTL}
}

// IDByName resolves a department id by its site-prefixed name. A missing
// department resolves to nil, not an error: custody falls soft to no
// department, matching how routing behaves when a site has no matching row.
func (r *DepartmentRepository) IDByName(ctx context.Context, name string) (*int64, error) {
	cacheKey := "dept:" + name
	if r.cache != nil {
		if val, err := r.cache.Get(ctx, cacheKey); err == nil {
			if id, err := strconv.ParseInt(val, 10, 64); err == nil {
				return &id, nil
			}
		}
	}

	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM department WHERE name = $1`, name).Scan(&id)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve department %q: %w", name, err)
	}

	if r.cache != nil {
		_ = r.cache.SetWithExpiry(ctx, cacheKey, strconv.FormatInt(id, 10), r.cacheTTL)
	}

	return &id, nil
}
