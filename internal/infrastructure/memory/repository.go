package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ndelia/wren/internal/domain"
)

// LinkRepository keeps links in a mutex-guarded map. Used by tests and the
// memory database type; mirrors the SQL repositories' contract, including
// atomic access recording.
type LinkRepository struct {
	links  map[string]*domain.Link // keyed by short code
	nextID int64
	mu     sync.Mutex
}

func NewLinkRepository() *LinkRepository {
	return &LinkRepository{
		links: make(map[string]*domain.Link),
	}
}

func (r *LinkRepository) Create(_ context.Context, link *domain.Link) (*domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.ShortCode]; exists {
		return nil, domain.ErrCodeExists
	}
	if link.CustomAlias != nil {
		if _, taken := r.lookup(*link.CustomAlias); taken {
			return nil, domain.ErrAliasExists
		}
	}

	r.nextID++
	created := *link
	created.ID = r.nextID

	r.links[link.ShortCode] = &created
	return copyLink(&created), nil
}

func (r *LinkRepository) FindByKey(_ context.Context, key string) (*domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.lookup(key)
	if !ok {
		return nil, domain.ErrLinkNotFound
	}

	return copyLink(link), nil
}

func (r *LinkRepository) FindByAlias(_ context.Context, alias string) (*domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, link := range r.links {
		if link.CustomAlias != nil && *link.CustomAlias == alias {
			return copyLink(link), nil
		}
	}

	return nil, domain.ErrLinkNotFound
}

func (r *LinkRepository) RecordAccess(_ context.Context, key string) (*domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.lookup(key)
	if !ok {
		return nil, domain.ErrLinkNotFound
	}

	now := time.Now().UTC()
	link.ClickCount++
	link.LastAccessed = &now

	return copyLink(link), nil
}

func (r *LinkRepository) UpdateURL(_ context.Context, shortCode, url string) (*domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, exists := r.links[shortCode]
	if !exists {
		return nil, domain.ErrLinkNotFound
	}

	link.OriginalURL = url
	return copyLink(link), nil
}

func (r *LinkRepository) Delete(_ context.Context, shortCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[shortCode]; !exists {
		return domain.ErrLinkNotFound
	}

	delete(r.links, shortCode)
	return nil
}

func (r *LinkRepository) Search(_ context.Context, substr string) ([]*domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*domain.Link
	for _, link := range r.links {
		if strings.Contains(link.OriginalURL, substr) {
			matches = append(matches, copyLink(link))
		}
	}

	return matches, nil
}

// lookup matches by short code or custom alias; callers hold the lock.
func (r *LinkRepository) lookup(key string) (*domain.Link, bool) {
	if link, ok := r.links[key]; ok {
		return link, true
	}
	for _, link := range r.links {
		if link.CustomAlias != nil && *link.CustomAlias == key {
			return link, true
		}
	}
	return nil, false
}

func copyLink(link *domain.Link) *domain.Link {
	c := *link
	return &c
}

func (r *LinkRepository) Close() error {
	return nil
}

func (r *LinkRepository) HealthCheck(_ context.Context) error {
	return nil
}
