package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/larder-erp/larder-erp/internal/shared"
)

// Repository persists price catalog entries.
type Repository interface {
	Insert(ctx context.Context, entry Entry) (Entry, error)
	Get(ctx context.Context, stockItemID, brandID int64) (Entry, error)
	ListByItem(ctx context.Context, stockItemID int64) ([]Entry, error)
	Update(ctx context.Context, entry Entry) (Entry, error)
	Delete(ctx context.Context, stockItemID, brandID int64) error
	DeleteAllForItem(ctx context.Context, stockItemID int64) (int64, error)
	SetPreferred(ctx context.Context, stockItemID, brandID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `p.id, p.stock_item_id, p.brand_id, b.name, p.price_before_tax, p.price_after_tax, p.is_preferred, p.created_at, p.updated_at`

const entryJoins = ` FROM stock_item_prices p JOIN brands b ON b.id = p.brand_id`

func (r *repository) Insert(ctx context.Context, entry Entry) (Entry, error) {
	query := `INSERT INTO stock_item_prices (stock_item_id, brand_id, price_before_tax, price_after_tax, is_preferred, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, entry.StockItemID, entry.BrandID,
		decimalToNumeric(entry.PriceBeforeTax), decimalToNumeric(entry.PriceAfterTax), entry.IsPreferred).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == "23505":
				return Entry{}, fmt.Errorf("pricing: brand already priced for this stock item: %w", shared.ErrConflict)
			case pgErr.Code == "23503" && pgErr.ConstraintName == "fk_prices_brand":
				return Entry{}, fmt.Errorf("pricing: brand %d: %w", entry.BrandID, shared.ErrNotFound)
			case pgErr.Code == "23503":
				return Entry{}, fmt.Errorf("pricing: stock item %d: %w", entry.StockItemID, shared.ErrNotFound)
			}
		}
		return Entry{}, shared.WrapStorage("pricing: insert", err)
	}
	return entry, nil
}

func (r *repository) Get(ctx context.Context, stockItemID, brandID int64) (Entry, error) {
	query := `SELECT ` + entryColumns + entryJoins + ` WHERE p.stock_item_id = $1 AND p.brand_id = $2`
	entry, err := scanEntry(r.db.QueryRow(ctx, query, stockItemID, brandID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("pricing: no price for stock item %d and brand %d: %w", stockItemID, brandID, shared.ErrNotFound)
		}
		return Entry{}, shared.WrapStorage("pricing: get", err)
	}
	return entry, nil
}

// ListByItem returns the preferred entry first, then creation order.
func (r *repository) ListByItem(ctx context.Context, stockItemID int64) ([]Entry, error) {
	query := `SELECT ` + entryColumns + entryJoins + ` WHERE p.stock_item_id = $1 ORDER BY p.is_preferred DESC, p.id ASC`
	rows, err := r.db.Query(ctx, query, stockItemID)
	if err != nil {
		return nil, shared.WrapStorage("pricing: list", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, shared.WrapStorage("pricing: scan", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *repository) Update(ctx context.Context, entry Entry) (Entry, error) {
	query := `UPDATE stock_item_prices SET price_before_tax = $1, price_after_tax = $2, updated_at = NOW()
		WHERE stock_item_id = $3 AND brand_id = $4
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		decimalToNumeric(entry.PriceBeforeTax), decimalToNumeric(entry.PriceAfterTax),
		entry.StockItemID, entry.BrandID).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("pricing: no price for stock item %d and brand %d: %w", entry.StockItemID, entry.BrandID, shared.ErrNotFound)
		}
		return Entry{}, shared.WrapStorage("pricing: update", err)
	}
	return entry, nil
}

func (r *repository) Delete(ctx context.Context, stockItemID, brandID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM stock_item_prices WHERE stock_item_id = $1 AND brand_id = $2`, stockItemID, brandID)
	if err != nil {
		return shared.WrapStorage("pricing: delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pricing: no price for stock item %d and brand %d: %w", stockItemID, brandID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) DeleteAllForItem(ctx context.Context, stockItemID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM stock_item_prices WHERE stock_item_id = $1`, stockItemID)
	if err != nil {
		return 0, shared.WrapStorage("pricing: delete all", err)
	}
	return tag.RowsAffected(), nil
}

// SetPreferred flips the preferred flag for every entry of the stock item in
// one conditional statement, so concurrent callers can never leave zero or
// two preferred entries.
func (r *repository) SetPreferred(ctx context.Context, stockItemID, brandID int64) error {
	query := `UPDATE stock_item_prices p
		SET is_preferred = (p.brand_id = $2), updated_at = NOW()
		WHERE p.stock_item_id = $1
		AND EXISTS (SELECT 1 FROM stock_item_prices t WHERE t.stock_item_id = $1 AND t.brand_id = $2)`
	tag, err := r.db.Exec(ctx, query, stockItemID, brandID)
	if err != nil {
		return shared.WrapStorage("pricing: set preferred", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pricing: no price for stock item %d and brand %d: %w", stockItemID, brandID, shared.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry  Entry
		before pgtype.Numeric
		after  pgtype.Numeric
	)
	err := row.Scan(&entry.ID, &entry.StockItemID, &entry.BrandID, &entry.BrandName,
		&before, &after, &entry.IsPreferred, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}
	entry.PriceBeforeTax = numericToDecimal(before)
	entry.PriceAfterTax = numericToDecimal(after)
	return entry, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}
