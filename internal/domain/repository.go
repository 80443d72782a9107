package domain

import "context"

// LinkRepository is the durable store for links, the single source of truth.
// Uniqueness of short_code and custom_alias is enforced here, not by callers.
type LinkRepository interface {
	// Create inserts the link. Returns ErrCodeExists or ErrAliasExists
	// when the respective unique constraint rejects the insert.
	Create(ctx context.Context, link *Link) (*Link, error)

	// FindByKey looks a link up by short code or custom alias.
	FindByKey(ctx context.Context, key string) (*Link, error)

	// FindByAlias looks a link up by custom alias only.
	FindByAlias(ctx context.Context, alias string) (*Link, error)

	// RecordAccess atomically increments the click count and stamps the
	// last access time, returning the updated link. The store serializes
	// concurrent calls for the same key so no update is lost.
	RecordAccess(ctx context.Context, key string) (*Link, error)

	// UpdateURL overwrites the target URL, returning the updated link.
	UpdateURL(ctx context.Context, shortCode, url string) (*Link, error)

	// Delete removes the link. Returns ErrLinkNotFound when absent.
	Delete(ctx context.Context, shortCode string) error

	// Search returns every link whose target URL contains substr.
	Search(ctx context.Context, substr string) ([]*Link, error)

	Close() error
	HealthCheck(ctx context.Context) error
}
