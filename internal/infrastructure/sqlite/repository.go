package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/ndelia/wren/internal/domain"
)

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) Create(ctx context.Context, link *domain.Link) (*domain.Link, error) {
	query := `
		INSERT INTO links (short_code, custom_alias, original_url, owner_id, click_count, created_at, expires_at)
		VALUES (:short_code, :custom_alias, :original_url, :owner_id, :click_count, :created_at, :expires_at)
	`

	res, err := r.db.NamedExecContext(ctx, query, link)
	if err != nil {
		return nil, mapSQLiteError(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	created := *link
	created.ID = id
	return &created, nil
}

func (r *LinkRepository) FindByKey(ctx context.Context, key string) (*domain.Link, error) {
	var link domain.Link
	query := `SELECT * FROM links WHERE short_code = $1 OR custom_alias = $1`

	err := r.db.GetContext(ctx, &link, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLinkNotFound
		}
		return nil, err
	}

	return &link, nil
}

func (r *LinkRepository) FindByAlias(ctx context.Context, alias string) (*domain.Link, error) {
	var link domain.Link
	query := `SELECT * FROM links WHERE custom_alias = $1`

	err := r.db.GetContext(ctx, &link, query, alias)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLinkNotFound
		}
		return nil, err
	}

	return &link, nil
}

func (r *LinkRepository) RecordAccess(ctx context.Context, key string) (*domain.Link, error) {
	// Single UPDATE keeps the increment atomic; SQLite serializes writers.
	query := `UPDATE links SET click_count = click_count + 1, last_accessed = $2 WHERE short_code = $1 OR custom_alias = $1`

	result, err := r.db.ExecContext(ctx, query, key, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrLinkNotFound
	}

	return r.FindByKey(ctx, key)
}

func (r *LinkRepository) UpdateURL(ctx context.Context, shortCode, url string) (*domain.Link, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE links SET original_url = $2 WHERE short_code = $1`, shortCode, url)
	if err != nil {
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrLinkNotFound
	}

	return r.FindByKey(ctx, shortCode)
}

func (r *LinkRepository) Delete(ctx context.Context, shortCode string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE short_code = $1`, shortCode)
	if err != nil {
		return err
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
	var links []*domain.Link
	query := `SELECT * FROM links WHERE original_url LIKE '%' || $1 || '%' ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &links, query, substr)
	if err != nil {
		return nil, err
	}

	return links, nil
}

func mapSQLiteError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		if strings.Contains(sqliteErr.Error(), "custom_alias") {
			return domain.ErrAliasExists
		}
		return domain.ErrCodeExists
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
