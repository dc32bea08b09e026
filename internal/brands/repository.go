package brands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/larder-erp/larder-erp/internal/shared"
)

// ListFilter filters brand listings.
type ListFilter struct {
	Search         string
	ActiveOnly     bool
	IncludeDeleted bool
	shared.ListParams
}

type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Brand, int, error)
	Get(ctx context.Context, id int64) (Brand, error)
	Create(ctx context.Context, brand Brand) (Brand, error)
	Update(ctx context.Context, brand Brand) (Brand, error)
	SetDeletedAt(ctx context.Context, id int64, at *time.Time) error
	ForceDelete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const brandColumns = `id, name, description, is_active, deleted_at, created_at, updated_at`

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Brand, int, error) {
	where := ``
	args := []interface{}{}
	argCount := 0

	if !filter.IncludeDeleted {
		where += ` AND deleted_at IS NULL`
	}
	if filter.ActiveOnly {
		where += ` AND is_active`
	}
	if filter.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR description ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filter.Search+"%")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM brands WHERE 1=1` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, shared.WrapStorage("brands: count", err)
	}

	query := `SELECT ` + brandColumns + ` FROM brands WHERE 1=1` + where + ` ORDER BY name ASC`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filter.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filter.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.WrapStorage("brands: list", err)
	}
	defer rows.Close()

	var result []Brand
	for rows.Next() {
		brand, err := scanBrand(rows)
		if err != nil {
			return nil, 0, shared.WrapStorage("brands: scan", err)
		}
		result = append(result, brand)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Brand, error) {
	query := `SELECT ` + brandColumns + ` FROM brands WHERE id = $1`
	brand, err := scanBrand(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Brand{}, fmt.Errorf("brands: brand %d: %w", id, shared.ErrNotFound)
		}
		return Brand{}, shared.WrapStorage("brands: get", err)
	}
	return brand, nil
}

func (r *repository) Create(ctx context.Context, brand Brand) (Brand, error) {
	query := `INSERT INTO brands (name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING ` + brandColumns
	created, err := scanBrand(r.db.QueryRow(ctx, query, brand.Name, brand.Description, brand.IsActive))
	if err != nil {
		if isUniqueViolation(err) {
			return Brand{}, fmt.Errorf("brands: name already in use: %w", shared.ErrConflict)
		}
		return Brand{}, shared.WrapStorage("brands: create", err)
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, brand Brand) (Brand, error) {
	query := `UPDATE brands SET name = $1, description = $2, is_active = $3, updated_at = NOW()
		WHERE id = $4 AND deleted_at IS NULL
		RETURNING ` + brandColumns
	updated, err := scanBrand(r.db.QueryRow(ctx, query, brand.Name, brand.Description, brand.IsActive, brand.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Brand{}, fmt.Errorf("brands: brand %d: %w", brand.ID, shared.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return Brand{}, fmt.Errorf("brands: name already in use: %w", shared.ErrConflict)
		}
		return Brand{}, shared.WrapStorage("brands: update", err)
	}
	return updated, nil
}

func (r *repository) SetDeletedAt(ctx context.Context, id int64, at *time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE brands SET deleted_at = $1, updated_at = NOW() WHERE id = $2`, at, id)
	if err != nil {
		return shared.WrapStorage("brands: set deleted_at", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("brands: brand %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ForceDelete removes the brand; its price catalog rows go with it via the
// ON DELETE CASCADE on stock_item_prices.
func (r *repository) ForceDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM brands WHERE id = $1`, id)
	if err != nil {
		return shared.WrapStorage("brands: force delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("brands: brand %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBrand(row rowScanner) (Brand, error) {
	var (
		brand     Brand
		deletedAt pgtype.Timestamptz
	)
	err := row.Scan(&brand.ID, &brand.Name, &brand.Description, &brand.IsActive,
		&deletedAt, &brand.CreatedAt, &brand.UpdatedAt)
	if err != nil {
		return Brand{}, err
	}
	if deletedAt.Valid {
		brand.DeletedAt = &deletedAt.Time
	}
	return brand, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
