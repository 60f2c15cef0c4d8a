// Package cache keeps single company reads in Redis in front of any
// controller.Repository. Lists always go to the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/gartstein/directory/internal/company/controller"
	"github.com/gartstein/directory/internal/company/models"
	"github.com/gartstein/directory/internal/company/query"
)

// DefaultTTL applies when no TTL is configured.
const DefaultTTL = 10 * time.Minute

// Key returns the cache key of one company.
func Key(id string) string {
	return "company:" + id
}

// VersionKey counts the writes to one company. A fill only lands when the
// count is the one seen before the store was read.
func VersionKey(id string) string {
	return "company:" + id + ":v"
}

// fillScript sets KEYS[1] unless KEYS[2] moved away from ARGV[1].
var fillScript = redis.NewScript(`
if (redis.call("GET", KEYS[2]) or "0") == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// Repository decorates a store with a read-through cache.
type Repository struct {
	next   controller.Repository
	rdb    *redis.Client
	sf     singleflight.Group
	ttl    time.Duration
	logger *zap.Logger
}

var _ controller.Repository = (*Repository)(nil)

// New wraps next. A non-positive ttl falls back to DefaultTTL.
func New(next controller.Repository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Repository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Repository{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.Named("company_cache"),
	}
}

func (r *Repository) CreateCompany(ctx context.Context, in *models.CompanyInput) (*models.Company, error) {
	return r.next.CreateCompany(ctx, in)
}

// GetCompany serves from Redis when it can. Concurrent misses for the same
// id share one store lookup. Redis failures degrade to a store read, and a
// record read while a write to the same id was in progress is not cached.
func (r *Repository) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	key := Key(id)

	cached, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var c models.Company
		if err := json.Unmarshal(cached, &c); err == nil {
			return &c, nil
		}
		r.logger.Warn("Discarding unreadable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("Cache read failed", zap.Error(err), zap.String("key", key))
	}

	v, err, _ := r.sf.Do(key, func() (interface{}, error) {
		version, verr := r.version(ctx, id)
		company, err := r.next.GetCompany(ctx, id)
		if err != nil {
			return nil, err
		}
		if verr == nil {
			r.fill(ctx, id, version, company)
		}
		return company, nil
	})
	if err != nil {
		return nil, err
	}

	// callers sharing the flight must not alias each other's record
	c := *v.(*models.Company)
	return &c, nil
}

func (r *Repository) ListCompanies(ctx context.Context, plan query.Plan) ([]models.Company, int64, error) {
	return r.next.ListCompanies(ctx, plan)
}

// UpdateCompany evicts the entry whether or not the store write succeeded.
func (r *Repository) UpdateCompany(ctx context.Context, id string, in *models.CompanyInput) (*models.Company, error) {
	updated, err := r.next.UpdateCompany(ctx, id, in)
	r.invalidate(ctx, id)
	return updated, err
}

func (r *Repository) DeleteCompany(ctx context.Context, id string) (*models.Company, error) {
	deleted, err := r.next.DeleteCompany(ctx, id)
	r.invalidate(ctx, id)
	return deleted, err
}

// Close closes the store and the Redis client.
func (r *Repository) Close() error {
	return errors.Join(r.next.Close(), r.rdb.Close())
}

func (r *Repository) version(ctx context.Context, id string) (string, error) {
	v, err := r.rdb.Get(ctx, VersionKey(id)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", nil
	case err != nil:
		r.logger.Warn("Cache version read failed", zap.Error(err), zap.String("key", VersionKey(id)))
		return "", err
	}
	return v, nil
}

func (r *Repository) fill(ctx context.Context, id, version string, company *models.Company) {
	data, err := json.Marshal(company)
	if err != nil {
		return
	}
	stored, err := fillScript.Run(ctx, r.rdb, []string{Key(id), VersionKey(id)},
		version, string(data), r.ttl.Milliseconds()).Int()
	if err != nil {
		r.logger.Warn("Cache write failed", zap.Error(err), zap.String("key", Key(id)))
		return
	}
	if stored == 0 {
		r.logger.Debug("Skipped cache fill after concurrent write", zap.String("key", Key(id)))
	}
}

// invalidate bumps the version before dropping the entry so that fills
// started earlier are refused.
func (r *Repository) invalidate(ctx context.Context, id string) {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, VersionKey(id))
		pipe.Expire(ctx, VersionKey(id), r.ttl)
		pipe.Del(ctx, Key(id))
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to invalidate cache", zap.Error(err), zap.String("key", Key(id)))
	}
}
