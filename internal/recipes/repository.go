package recipes

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

// Repository persists recipe lines.
type Repository interface {
	Insert(ctx context.Context, line Line) (Line, error)
	GetLine(ctx context.Context, productID, stockItemID int64) (Line, error)
	ListByProduct(ctx context.Context, productID int64) ([]Line, error)
	Update(ctx context.Context, line Line) (Line, error)
	Delete(ctx context.Context, productID, stockItemID int64) error
	CountUsage(ctx context.Context, stockItemID int64) (int, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const lineColumns = `l.id, l.product_id, l.stock_item_id, i.name, i.unit, l.quantity, l.preferred_brand_id, l.notes, l.created_at, l.updated_at`

const lineJoins = ` FROM recipe_lines l JOIN stock_items i ON i.id = l.stock_item_id`

func (r *repository) Insert(ctx context.Context, line Line) (Line, error) {
	query := `INSERT INTO recipe_lines (product_id, stock_item_id, quantity, preferred_brand_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, line.ProductID, line.StockItemID,
		decimalToNumeric(line.Quantity), line.PreferredBrandID, line.Notes).
		Scan(&line.ID, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == "23505":
				return Line{}, fmt.Errorf("recipes: product %d already uses stock item %d: %w", line.ProductID, line.StockItemID, shared.ErrConflict)
			case pgErr.Code == "23503":
				return Line{}, fmt.Errorf("recipes: stock item %d: %w", line.StockItemID, shared.ErrNotFound)
			}
		}
		return Line{}, shared.WrapStorage("recipes: insert line", err)
	}
	return line, nil
}

func (r *repository) GetLine(ctx context.Context, productID, stockItemID int64) (Line, error) {
	query := `SELECT ` + lineColumns + lineJoins + ` WHERE l.product_id = $1 AND l.stock_item_id = $2`
	line, err := scanLine(r.db.QueryRow(ctx, query, productID, stockItemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, fmt.Errorf("recipes: no line for product %d and stock item %d: %w", productID, stockItemID, shared.ErrNotFound)
		}
		return Line{}, shared.WrapStorage("recipes: get line", err)
	}
	return line, nil
}

func (r *repository) ListByProduct(ctx context.Context, productID int64) ([]Line, error) {
	query := `SELECT ` + lineColumns + lineJoins + ` WHERE l.product_id = $1 ORDER BY l.id ASC`
	rows, err := r.db.Query(ctx, query, productID)
	if err != nil {
		return nil, shared.WrapStorage("recipes: list lines", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, shared.WrapStorage("recipes: scan line", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) Update(ctx context.Context, line Line) (Line, error) {
	query := `UPDATE recipe_lines SET quantity = $1, preferred_brand_id = $2, notes = $3, updated_at = NOW()
		WHERE product_id = $4 AND stock_item_id = $5
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, decimalToNumeric(line.Quantity), line.PreferredBrandID, line.Notes,
		line.ProductID, line.StockItemID).
		Scan(&line.ID, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, fmt.Errorf("recipes: no line for product %d and stock item %d: %w", line.ProductID, line.StockItemID, shared.ErrNotFound)
		}
		return Line{}, shared.WrapStorage("recipes: update line", err)
	}
	return line, nil
}

func (r *repository) Delete(ctx context.Context, productID, stockItemID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM recipe_lines WHERE product_id = $1 AND stock_item_id = $2`, productID, stockItemID)
	if err != nil {
		return shared.WrapStorage("recipes: delete line", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recipes: no line for product %d and stock item %d: %w", productID, stockItemID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) CountUsage(ctx context.Context, stockItemID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM recipe_lines WHERE stock_item_id = $1`, stockItemID).Scan(&count)
	if err != nil {
		return 0, shared.WrapStorage("recipes: count usage", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLine(row rowScanner) (Line, error) {
	var (
		line    Line
		qty     pgtype.Numeric
		brandID pgtype.Int8
	)
	err := row.Scan(&line.ID, &line.ProductID, &line.StockItemID, &line.StockItemName, &line.Unit,
		&qty, &brandID, &line.Notes, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return Line{}, err
	}
	line.Quantity = numericToDecimal(qty)
	if brandID.Valid {
		line.PreferredBrandID = &brandID.Int64
	}
	return line, nil
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
