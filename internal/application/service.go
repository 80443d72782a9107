package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ndelia/wren/internal/domain"
	"github.com/ndelia/wren/internal/pkg/metrics"
)

// LinkService owns link lifecycle and resolution. The repository is written
// first on every mutation; cache updates are best-effort afterwards, so a
// dead cache never blocks a write.
type LinkService struct {
	repo     domain.LinkRepository
	cache    domain.Cache
	metrics  metrics.Registry
	gen      *CodeGenerator
	validate *validator.Validate

	cacheTTL        time.Duration
	maxCodeAttempts int
}

// Options carries the tunables the service needs from configuration.
type Options struct {
	CacheTTL        time.Duration
	ShortCodeLength int
	MaxCodeAttempts int
}

func NewLinkService(repo domain.LinkRepository, cache domain.Cache, registry metrics.Registry, opts Options) *LinkService {
	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}

	return &LinkService{
		repo:            repo,
		cache:           cache,
		metrics:         registry,
		gen:             NewCodeGenerator(opts.ShortCodeLength),
		validate:        validator.New(),
		cacheTTL:        opts.CacheTTL,
		maxCodeAttempts: opts.MaxCodeAttempts,
	}
}

type CreateLinkRequest struct {
	OriginalURL string     `json:"originalUrl" validate:"required"`
	CustomAlias string     `json:"customAlias,omitempty" validate:"omitempty,alphanum,min=3,max=20"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

type UpdateLinkRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required"`
}

// Create inserts a new link owned by ownerID. The alias pre-check is an
// optimization only; the repository's unique constraint is the arbiter, and
// an insert-time alias violation surfaces as ErrAliasExists all the same.
func (s *LinkService) Create(ctx context.Context, ownerID int64, req CreateLinkRequest) (*domain.Link, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	normalized, err := domain.NormalizeURL(req.OriginalURL)
	if err != nil {
		return nil, err
	}

	var alias *string
	if req.CustomAlias != "" {
		if _, err := s.repo.FindByAlias(ctx, req.CustomAlias); err == nil {
			return nil, domain.ErrAliasExists
		} else if !errors.Is(err, domain.ErrLinkNotFound) {
			return nil, err
		}
		alias = &req.CustomAlias
	}

	var created *domain.Link
	for attempt := 0; attempt < s.maxCodeAttempts; attempt++ {
		code, err := s.gen.Generate()
		if err != nil {
			return nil, err
		}

		link, err := domain.NewLink(code, normalized, &ownerID, alias, req.ExpiresAt)
		if err != nil {
			return nil, err
		}

		created, err = s.repo.Create(ctx, link)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrCodeExists) {
			// collision, draw another code
			continue
		}
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("short code space exhausted after %d attempts", s.maxCodeAttempts)
	}

	s.cacheLink(ctx, created)
	s.metrics.IncLinksCreated()
	return created, nil
}

// Update overwrites the target URL. Owner-only: anonymous links and links
// owned by someone else fail with ErrForbidden, not ErrLinkNotFound.
func (s *LinkService) Update(ctx context.Context, ownerID int64, code string, req UpdateLinkRequest) (*domain.Link, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	normalized, err := domain.NormalizeURL(req.OriginalURL)
	if err != nil {
		return nil, err
	}

	link, err := s.repo.FindByKey(ctx, code)
	if err != nil {
		return nil, err
	}
	if !link.OwnedBy(ownerID) {
		return nil, domain.ErrForbidden
	}

	updated, err := s.repo.UpdateURL(ctx, link.ShortCode, normalized)
	if err != nil {
		return nil, err
	}

	s.cacheLink(ctx, updated)
	return updated, nil
}

// Delete removes the link, store first so a concurrent resolution cannot
// find a record the cache has already dropped. The cache entry may outlive
// the record briefly; the resolver degrades on that window.
func (s *LinkService) Delete(ctx context.Context, ownerID int64, code string) error {
	link, err := s.repo.FindByKey(ctx, code)
	if err != nil {
		return err
	}
	if !link.OwnedBy(ownerID) {
		return domain.ErrForbidden
	}

	if err := s.repo.Delete(ctx, link.ShortCode); err != nil {
		return err
	}

	_ = s.cache.Delete(ctx, link.ShortCode)
	if link.CustomAlias != nil {
		_ = s.cache.Delete(ctx, *link.CustomAlias)
	}
	return nil
}

// Stats returns the full record including counters. Owner-only.
func (s *LinkService) Stats(ctx context.Context, ownerID int64, code string) (*domain.Link, error) {
	link, err := s.repo.FindByKey(ctx, code)
	if err != nil {
		return nil, err
	}
	if !link.OwnedBy(ownerID) {
		return nil, domain.ErrForbidden
	}

	return link, nil
}

// Info is the public read-only projection; it never touches counters.
func (s *LinkService) Info(ctx context.Context, key string) (*domain.Link, error) {
	return s.repo.FindByKey(ctx, key)
}

// Search matches links whose target URL contains substr.
func (s *LinkService) Search(ctx context.Context, substr string) ([]*domain.Link, error) {
	links, err := s.repo.Search(ctx, substr)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, domain.ErrLinkNotFound
	}

	return links, nil
}

// cacheLink seeds or refreshes the cache entries for a link, under both the
// short code and the alias when present. Best-effort.
func (s *LinkService) cacheLink(ctx context.Context, link *domain.Link) {
	if link.Expired(time.Now()) {
		return
	}

	ttl := s.entryTTL(link)
	_ = s.cache.Set(ctx, link.ShortCode, link.OriginalURL, ttl)
	if link.CustomAlias != nil {
		_ = s.cache.Set(ctx, *link.CustomAlias, link.OriginalURL, ttl)
	}
}
