// Package instruments provides free-text instrument search backed by a
// bounded TTL cache, plus ticker lookup for the order pipeline.
package instruments

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"broker-backend-go/internal/cache"
	"broker-backend-go/internal/models"
)

// minQueryLen is the minimum trimmed query length before a search runs;
// shorter queries return no results without touching the store.
const minQueryLen = 3

// Store is the instrument lookup the service depends on.
type Store interface {
	Search(ctx context.Context, query string, limit int) ([]models.Instrument, error)
	GetByTicker(ctx context.Context, ticker string) (models.Instrument, error)
}

// Service searches instruments by partial ticker or name match, caching
// materialized result lists per normalized query.
type Service struct {
	log         *zap.Logger
	store       Store
	searchCache *cache.TTL[[]models.Instrument]
	limit       int
}

// NewService creates an instrument service with the given result limit and
// cache bounds.
func NewService(log *zap.Logger, store Store, limit, cacheMaxSize int, cacheTTL time.Duration) *Service {
	return &Service{
		log:         log,
		store:       store,
		searchCache: cache.New[[]models.Instrument](cacheMaxSize, cacheTTL),
		limit:       limit,
	}
}

// Search matches rawQuery against instrument tickers and names. Queries
// shorter than three characters after trimming yield an empty result, not an
// error. Results are cached per lowercased query and limit; concurrent
// lookups for the same key share one store fetch.
func (s *Service) Search(ctx context.Context, rawQuery string) ([]models.Instrument, error) {
	query := strings.TrimSpace(rawQuery)
	if utf8.RuneCountInString(query) < minQueryLen {
		return []models.Instrument{}, nil
	}

	key := strings.ToLower(query) + ":" + strconv.Itoa(s.limit)
	results, hit, err := s.searchCache.GetOrCompute(key, func() ([]models.Instrument, error) {
		return s.store.Search(ctx, query, s.limit)
	})
	if err != nil {
		return nil, err
	}
	if hit {
		s.log.Info("Cache HIT for search key", zap.String("key", key))
	} else {
		s.log.Info("Cache MISS for search key", zap.String("key", key))
	}
	return results, nil
}

// GetByTicker returns the instrument for the exact ticker; not-found errors
// from the store propagate unchanged.
func (s *Service) GetByTicker(ctx context.Context, ticker string) (models.Instrument, error) {
	return s.store.GetByTicker(ctx, ticker)
}
