package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ndelia/wren/internal/domain"
	cacheImpl "github.com/ndelia/wren/internal/infrastructure/cache"
	"github.com/ndelia/wren/internal/infrastructure/memory"
	"github.com/ndelia/wren/internal/pkg/metrics"
)

const testOwner int64 = 1

// failingCache errors on every operation, simulating a cache that is fully
// down. No link operation may fail because of it.
type failingCache struct{}

func (f *failingCache) Get(context.Context, string) (string, error) {
	return "", errors.New("cache down")
}

func (f *failingCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("cache down")
}

func (f *failingCache) Delete(context.Context, string) error {
	return errors.New("cache down")
}

func (f *failingCache) Ping(context.Context) error {
	return errors.New("cache down")
}

func newTestService(cache domain.Cache) (*LinkService, *memory.LinkRepository) {
	repo := memory.NewLinkRepository()
	service := NewLinkService(repo, cache, metrics.NewNoOpRegistry(), Options{})
	return service, repo
}

func TestLinkService_Create_NormalizesScheme(t *testing.T) {
	service, _ := newTestService(cacheImpl.NewMemory())
	ctx := context.Background()

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "no scheme", url: "example.com", expected: "http://example.com"},
		{name: "http kept", url: "http://example.com", expected: "http://example.com"},
		{name: "https kept", url: "https://example.com/path?q=1", expected: "https://example.com/path?q=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, err := service.Create(ctx, testOwner, CreateLinkRequest{OriginalURL: tt.url})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if link.OriginalURL != tt.expected {
				t.Errorf("expected OriginalURL %s, got %s", tt.expected, link.OriginalURL)
			}
			if len(link.ShortCode) != 6 {
				t.Errorf("expected ShortCode length 6, got %d", len(link.ShortCode))
			}
			if link.ClickCount != 0 {
				t.Errorf("expected ClickCount 0, got %d", link.ClickCount)
			}
		})
	}
}

func TestLinkService_Create_InvalidRequests(t *testing.T) {
	service, _ := newTestService(cacheImpl.NewMemory())
	ctx := context.Background()

	tests := []struct {
		name    string
		request CreateLinkRequest
		errMsg  string
	}{
		{
			name:    "empty URL",
			request: CreateLinkRequest{OriginalURL: ""},
			errMsg:  "OriginalURL",
		},
		{
			name:    "alias too short",
			request: CreateLinkRequest{OriginalURL: "https://example.com", CustomAlias: "ab"},
			errMsg:  "CustomAlias",
		},
		{
			name:    "alias too long",
			request: CreateLinkRequest{OriginalURL: "https://example.com", CustomAlias: strings.Repeat("a", 21)},
			errMsg:  "CustomAlias",
		},
		{
			name:    "alias with special chars",
			request: CreateLinkRequest{OriginalURL: "https://example.com", CustomAlias: "my-alias"},
			errMsg:  "CustomAlias",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(ctx, testOwner, tt.request)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestLinkService_Create_DuplicateAlias(t *testing.T) {
	service, _ := newTestService(cacheImpl.NewMemory())
	ctx := context.Background()

	first, err := service.Create(ctx, testOwner, CreateLinkRequest{
		OriginalURL: "https://example1.com",
		CustomAlias: "duplicate",
	})
	if err != nil {
		t.Fatalf("unexpected error creating first link: %v", err)
	}

	_, err = service.Create(ctx, testOwner, CreateLinkRequest{
		OriginalURL: "https://example2.com",
		CustomAlias: "duplicate",
	})
	if !errors.Is(err, domain.ErrAliasExists) {
		t.Fatalf("expected ErrAliasExists, got %v", err)
	}

	// The losing create must not alter the first link
	kept, err := service.Info(ctx, first.ShortCode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kept.OriginalURL != "https://example1.com" {
		t.Errorf("first link was altered: %s", kept.OriginalURL)
	}
}

// collidingRepo forces the first n inserts to collide on short code,
// exercising the bounded regeneration loop.
type collidingRepo struct {
	*memory.LinkRepository
	collisions int
}

func (r *collidingRepo) Create(ctx context.Context, link *domain.Link) (*domain.Link, error) {
	if r.collisions > 0 {
		r.collisions--
		return nil, domain.ErrCodeExists
	}
	return r.LinkRepository.Create(ctx, link)
}

func TestLinkService_Create_RetriesOnCodeCollision(t *testing.T) {
	repo := &collidingRepo{LinkRepository: memory.NewLinkRepository(), collisions: 3}
	service := NewLinkService(repo, cacheImpl.NewMemory(), metrics.NewNoOpRegistry(), Options{MaxCodeAttempts: 5})
	ctx := context.Background()

	link, err := service.Create(ctx, testOwner, CreateLinkRequest{OriginalURL: "https://example.com"})
	if err != nil {
		t.Fatalf("expected create to survive collisions, got %v", err)
	}
	if link.ShortCode == "" {
		t.Fatal("expected a short code")
	}
}

func TestLinkService_Create_CollisionExhaustion(t *testing.T) {
	repo := &collidingRepo{LinkRepository: memory.NewLinkRepository(), collisions: 10}
	service := NewLinkService(repo, cacheImpl.NewMemory(), metrics.NewNoOpRegistry(), Options{MaxCodeAttempts: 3})
	ctx := context.Background()

	_, err := service.Create(ctx, testOwner, CreateLinkRequest{OriginalURL: "https://example.com"})
	if err == nil {
		t.Fatal("expected exhaustion error, got nil")
	}
	if errors.Is(err, domain.ErrCodeExists) || errors.Is(err, domain.ErrAliasExists) {
		t.Fatalf("exhaustion must not surface as a conflict: %v", err)
	}
}

func TestLinkService_Update_OwnerOnly(t *testing.T) {
	service, repo := newTestService(cacheImpl.NewMemory())
	ctx := context.Background()

	owned, err := service.Create(ctx, testOwner, CreateLinkRequest{OriginalURL: "https://example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	anon, err := domain.NewLink("anonym", "https://anon.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.Create(ctx, anon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		ownerID int64
		code    string
		wantErr error
	}{
		{name: "non-owner", ownerID: 99, code: owned.ShortCode, wantErr: domain.ErrForbidden},
		{name: "anonymous link is immutable", ownerID: testOwner, code: "anonym", wantErr: domain.ErrForbidden},
		{name: "missing link", ownerID: testOwner, code: "nosuch", wantErr: domain.ErrLinkNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Update(ctx, tt.ownerID, tt.code, UpdateLinkRequest{OriginalURL: "https://new.example.com"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	updated, err := service.Update(ctx, testOwner, owned.ShortCode, UpdateLinkRequest{OriginalURL: "new.example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.OriginalURL != "http://new.example.com" {
		t.Errorf("expected normalized URL, got %s", updated.OriginalURL)
	}
}

func TestLinkService_Update_RefreshesCache(t *testing.T) {
	cache := cacheImpl.NewMemory()
	service, _ := newTestService(cache)
	ctx := context.Background()

	link, err := service.Create(ctx, testOwner, CreateLinkRequest{OriginalURL: "https://old.example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := service.Update(ctx, testOwner, link.ShortCode, UpdateLinkRequest{OriginalURL: "https://new.example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cached, _ := cache.Get(ctx, link.ShortCode)
	if cached != "https://new.example.com" {
		t.Errorf("expected cache refreshed to new URL, got %q", cached)
	}
}

func TestLinkService_Delete(t *testing.T) {
	cache := cacheImpl.NewMemory()
	service, _ := newTestService(cache)
	ctx := context.Background()

	link, err := service.Create(ctx, testOwner, CreateLinkRequest{
		OriginalURL: "https://example.com",
		CustomAlias: "gone",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := service.Delete(ctx, 99, link.ShortCode); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}

	if err := service.Delete(ctx, testOwner, link.ShortCode); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both cache keys must be dropped
	if cached, _ := cache.Get(ctx, link.ShortCode); cached != "" {
		t.Errorf("expected code cache entry removed, got %q", cached)
	}
	if cached, _ := cache.Get(ctx, "gone"); cached != "" {
		t.Errorf("expected alias cache entry removed, got %q", cached)
	}

	if _, err := service.Resolve(ctx, link.ShortCode); !errors.Is(err, domain.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound after delete, got %v", err)
	}
}

func TestLinkService_Stats_OwnerOnly(t *testing.T) {
	service, _ := newTestService(cacheImpl.NewMemory())
	ctx := context.Background()

	link, err := service.Create(ctx, testOwner, CreateLinkRequest{OriginalURL: "https://example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := service.Stats(ctx, 99, link.ShortCode); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	stats, err := service.Stats(ctx, testOwner, link.ShortCode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ClickCount != 0 {
		t.Errorf("expected ClickCount 0, got %d", stats.ClickCount)
	}
}

func TestLinkService_Info_DoesNotCount(t *testing.T) {
	service, _ := newTestService(cacheImpl.NewMemory())
	ctx := context.Background()

	link, err := service.Create(ctx, testOwner, CreateLinkRequest{OriginalURL: "https://example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		info, err := service.Info(ctx, link.ShortCode)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.ClickCount != 0 {
			t.Errorf("info must not count accesses, got %d", info.ClickCount)
		}
	}
}

func TestLinkService_Search(t *testing.T) {
	service, _ := newTestService(cacheImpl.NewMemory())
	ctx := context.Background()

	for _, u := range []string{"https://golang.org/doc", "https://golang.org/blog", "https://example.com"} {
		if _, err := service.Create(ctx, testOwner, CreateLinkRequest{OriginalURL: u}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	links, err := service.Search(ctx, "golang.org")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links) != 2 {
		t.Errorf("expected 2 matches, got %d", len(links))
	}

	if _, err := service.Search(ctx, "nomatch.invalid"); !errors.Is(err, domain.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound for empty result, got %v", err)
	}
}

func TestLinkService_CacheDown_AllOperationsSucceed(t *testing.T) {
	service, _ := newTestService(&failingCache{})
	ctx := context.Background()

	link, err := service.Create(ctx, testOwner, CreateLinkRequest{OriginalURL: "example.com"})
	if err != nil {
		t.Fatalf("create must survive a dead cache: %v", err)
	}

	res, err := service.Resolve(ctx, link.ShortCode)
	if err != nil {
		t.Fatalf("resolve must survive a dead cache: %v", err)
	}
	if res.URL != "http://example.com" {
		t.Errorf("expected http://example.com, got %s", res.URL)
	}
	if res.Degraded {
		t.Error("store-backed resolution must not be degraded")
	}

	if _, err := service.Update(ctx, testOwner, link.ShortCode, UpdateLinkRequest{OriginalURL: "https://new.example.com"}); err != nil {
		t.Fatalf("update must survive a dead cache: %v", err)
	}

	if err := service.Delete(ctx, testOwner, link.ShortCode); err != nil {
		t.Fatalf("delete must survive a dead cache: %v", err)
	}
}
