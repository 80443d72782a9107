package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ndelia/wren/internal/domain"
)

const linkColumns = `id, short_code, custom_alias, original_url, owner_id, click_count, created_at, last_accessed, expires_at`

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) Create(ctx context.Context, link *domain.Link) (*domain.Link, error) {
	query := `
		INSERT INTO links (short_code, custom_alias, original_url, owner_id, click_count, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + linkColumns

	var result domain.Link
	err := r.db.GetContext(ctx, &result, query,
		link.ShortCode, link.CustomAlias, link.OriginalURL, link.OwnerID, link.ClickCount, link.CreatedAt, link.ExpiresAt)
	if err != nil {
		return nil, r.handlePostgreSQLError(err, "create link")
	}

	slog.Debug("Link created", "short_code", result.ShortCode, "id", result.ID)
	return &result, nil
}

func (r *LinkRepository) FindByKey(ctx context.Context, key string) (*domain.Link, error) {
	var link domain.Link
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1 OR custom_alias = $1`

	err := r.db.GetContext(ctx, &link, query, key)
	if err != nil {
		return nil, r.handlePostgreSQLError(err, "find link by key")
	}

	return &link, nil
}

func (r *LinkRepository) FindByAlias(ctx context.Context, alias string) (*domain.Link, error) {
	var link domain.Link
	query := `SELECT ` + linkColumns + ` FROM links WHERE custom_alias = $1`

	err := r.db.GetContext(ctx, &link, query, alias)
	if err != nil {
		return nil, r.handlePostgreSQLError(err, "find link by alias")
	}

	return &link, nil
}

// RecordAccess is a single UPDATE so concurrent resolutions of the same key
// are serialized by the row lock and no count is lost.
func (r *LinkRepository) RecordAccess(ctx context.Context, key string) (*domain.Link, error) {
	query := `
		UPDATE links
		SET click_count = click_count + 1, last_accessed = NOW()
		WHERE short_code = $1 OR custom_alias = $1
		RETURNING ` + linkColumns

	var link domain.Link
	err := r.db.GetContext(ctx, &link, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLinkNotFound
		}
		return nil, r.handlePostgreSQLError(err, "record access")
	}

	slog.Debug("Access recorded", "key", key, "click_count", link.ClickCount)
	return &link, nil
}

func (r *LinkRepository) UpdateURL(ctx context.Context, shortCode, url string) (*domain.Link, error) {
	query := `
		UPDATE links
		SET original_url = $2
		WHERE short_code = $1
		RETURNING ` + linkColumns

	var link domain.Link
	err := r.db.GetContext(ctx, &link, query, shortCode, url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLinkNotFound
		}
		return nil, r.handlePostgreSQLError(err, "update link url")
	}

	return &link, nil
}

func (r *LinkRepository) Delete(ctx context.Context, shortCode string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE short_code = $1`, shortCode)
	if err != nil {
		return r.handlePostgreSQLError(err, "delete link")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrLinkNotFound
	}

	return nil
}

func (r *LinkRepository) Search(ctx context.Context, substr string) ([]*domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE original_url LIKE '%' || $1 || '%' ORDER BY created_at DESC`

	var links []*domain.Link
	err := r.db.SelectContext(ctx, &links, query, substr)
	if err != nil {
		return nil, r.handlePostgreSQLError(err, "search links")
	}

	return links, nil
}

// handlePostgreSQLError converts PostgreSQL-specific errors to domain errors
func (r *LinkRepository) handlePostgreSQLError(err error, operation string) error {
	if pqErr, ok := err.(*pq.Error); ok {
		slog.Error("PostgreSQL error",
			"operation", operation,
			"code", pqErr.Code,
			"message", pqErr.Message,
			"detail", pqErr.Detail,
		)

		switch pqErr.Code {
		case "23505": // unique_violation
			switch pqErr.Constraint {
			case "links_short_code_key":
				return domain.ErrCodeExists
			case "links_custom_alias_key":
				return domain.ErrAliasExists
			}
			return fmt.Errorf("unique constraint violation: %s", pqErr.Detail)
		case "23502": // not_null_violation
			return fmt.Errorf("required field missing: %s", pqErr.Column)
		case "08000", "08003", "08006": // connection errors
			return fmt.Errorf("database connection error: %s", pqErr.Message)
		default:
			return fmt.Errorf("database error [%s]: %s", pqErr.Code, pqErr.Message)
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrLinkNotFound
	}

	return err
}

func (r *LinkRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *LinkRepository) HealthCheck(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection is nil")
	}
	return r.db.PingContext(ctx)
}
