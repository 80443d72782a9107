package application

import (
	"context"
	"errors"
	"time"

	"github.com/ndelia/wren/internal/domain"
)

// Resolution is the outcome of a successful lookup. Degraded results are
// served from the cache alone when the repository no longer knows the key
// (an orphaned cache entry); they carry no metadata and Link is nil.
type Resolution struct {
	URL      string
	Link     *domain.Link
	Degraded bool
}

// Resolve maps a short code or custom alias to its target URL, cache-aside:
// the cache is consulted first, the repository stays authoritative for
// existence, expiry and counters. Cache failures never fail a resolvable
// link; repository failures always do.
func (s *LinkService) Resolve(ctx context.Context, key string) (*Resolution, error) {
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		// backend logged it; degrade to a miss
		cached = ""
	}

	if cached != "" {
		s.metrics.IncCacheHits()
		return s.resolveCacheHit(ctx, key, cached)
	}

	s.metrics.IncCacheMisses()
	link, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if link.Expired(time.Now()) {
		// expired links are never repopulated and never counted
		s.metrics.IncExpiredLookups()
		return nil, domain.ErrLinkExpired
	}

	_ = s.cache.Set(ctx, key, link.OriginalURL, s.entryTTL(link))

	updated, err := s.repo.RecordAccess(ctx, key)
	if err != nil {
		return nil, err
	}

	s.metrics.IncLinksResolved()
	return &Resolution{URL: updated.OriginalURL, Link: updated}, nil
}

// resolveCacheHit still consults the repository: the cached value is a bare
// URL and cannot answer expiry or ownership questions.
func (s *LinkService) resolveCacheHit(ctx context.Context, key, cached string) (*Resolution, error) {
	link, err := s.repo.FindByKey(ctx, key)
	switch {
	case err == nil:
		if link.Expired(time.Now()) {
			// stale entry outlived the link
			_ = s.cache.Delete(ctx, key)
			s.metrics.IncExpiredLookups()
			return nil, domain.ErrLinkExpired
		}

		updated, err := s.repo.RecordAccess(ctx, key)
		if err != nil {
			return nil, err
		}

		s.metrics.IncLinksResolved()
		return &Resolution{URL: updated.OriginalURL, Link: updated}, nil

	case errors.Is(err, domain.ErrLinkNotFound):
		// Orphaned cache entry: the record is gone but the cache still
		// serves it. Redirecting wins over consistency here.
		s.metrics.IncDegradedResolutions()
		return &Resolution{URL: cached, Degraded: true}, nil

	default:
		return nil, err
	}
}

// entryTTL clamps the configured cache TTL to the link's own expiry so a
// cache entry never outlives its link by more than the staleness window.
func (s *LinkService) entryTTL(link *domain.Link) time.Duration {
	if link.ExpiresAt != nil {
		if until := time.Until(*link.ExpiresAt); until < s.cacheTTL {
			return until
		}
	}
	return s.cacheTTL
}
