package domain

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrLinkExpired  = errors.New("link expired")
	ErrCodeExists   = errors.New("short code already exists")
	ErrAliasExists  = errors.New("custom alias already taken")
	ErrForbidden    = errors.New("not the link owner")
	ErrInvalidURL   = errors.New("invalid url")
)

// Link maps a short code (and optionally a custom alias) to a target URL.
// The repository is the source of truth for every field; cache entries only
// ever carry OriginalURL.
type Link struct {
	ID           int64      `db:"id" json:"id"`
	ShortCode    string     `db:"short_code" json:"shortCode"`
	CustomAlias  *string    `db:"custom_alias" json:"customAlias,omitempty"`
	OriginalURL  string     `db:"original_url" json:"originalUrl"`
	OwnerID      *int64     `db:"owner_id" json:"ownerId,omitempty"`
	ClickCount   int64      `db:"click_count" json:"clickCount"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	LastAccessed *time.Time `db:"last_accessed" json:"lastAccessedAt,omitempty"`
	ExpiresAt    *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
}

func NewLink(shortCode, originalURL string, ownerID *int64, customAlias *string, expiresAt *time.Time) (*Link, error) {
	if shortCode == "" {
		return nil, errors.New("short code required")
	}
	if originalURL == "" {
		return nil, ErrInvalidURL
	}

	return &Link{
		ShortCode:   shortCode,
		CustomAlias: customAlias,
		OriginalURL: originalURL,
		OwnerID:     ownerID,
		ClickCount:  0,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   expiresAt,
	}, nil
}

// Expired reports whether the link has an expiry in the past. Links without
// ExpiresAt never expire.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// OwnedBy reports whether ownerID may mutate the link. Anonymous links
// (no owner) are owned by nobody.
func (l *Link) OwnedBy(ownerID int64) bool {
	return l.OwnerID != nil && *l.OwnerID == ownerID
}

// NormalizeURL ensures the target URL carries a scheme before it is stored,
// prefixing http:// when none is present.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if parsed.Scheme == "" {
		raw = "http://" + raw
		if parsed, err = url.Parse(raw); err != nil {
			return "", ErrInvalidURL
		}
	}
	if parsed.Host == "" {
		return "", ErrInvalidURL
	}

	return raw, nil
}
