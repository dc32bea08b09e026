package stock

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
	"github.com/shopspring/decimal"

	"github.com/larder-erp/larder-erp/internal/platform/db"
	"github.com/larder-erp/larder-erp/internal/shared"
)

// Repository persists stock items and movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, name, description, unit, quantity, reorder_threshold, deleted_at, created_at, updated_at`

// WithTx executes the callback inside a repeatable-read transaction. The row
// lock taken by GetItemForUpdate serializes concurrent movements per item.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *Repository) GetItem(ctx context.Context, id int64) (StockItem, error) {
	query := `SELECT ` + itemColumns + ` FROM stock_items WHERE id = $1`
	item, err := scanItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockItem{}, fmt.Errorf("stock: item %d: %w", id, shared.ErrNotFound)
		}
		return StockItem{}, shared.WrapStorage("stock: get item", err)
	}
	return item, nil
}

func (r *Repository) ListItems(ctx context.Context, filter ListFilter) ([]StockItem, int, error) {
	where := ``
	args := []interface{}{}
	argCount := 0

	if !filter.IncludeDeleted {
		where += ` AND deleted_at IS NULL`
	}
	if filter.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR description ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		argCount++
		where += ` AND (CASE WHEN quantity <= 0 THEN 'OUT_OF_STOCK'
			WHEN reorder_threshold IS NOT NULL AND quantity <= reorder_threshold THEN 'LOW_STOCK'
			ELSE 'IN_STOCK' END) = $` + strconv.Itoa(argCount)
		args = append(args, string(filter.Status))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM stock_items WHERE 1=1` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, shared.WrapStorage("stock: count items", err)
	}

	query := `SELECT ` + itemColumns + ` FROM stock_items WHERE 1=1` + where + ` ORDER BY name ASC`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filter.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filter.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.WrapStorage("stock: list items", err)
	}
	defer rows.Close()

	var items []StockItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, shared.WrapStorage("stock: scan item", err)
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *Repository) ListLowStock(ctx context.Context) ([]StockItem, error) {
	query := `SELECT ` + itemColumns + ` FROM stock_items
		WHERE deleted_at IS NULL AND reorder_threshold IS NOT NULL AND quantity <= reorder_threshold
		ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, shared.WrapStorage("stock: list low stock", err)
	}
	defer rows.Close()

	var items []StockItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, shared.WrapStorage("stock: scan item", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) InsertItem(ctx context.Context, item StockItem) (StockItem, error) {
	query := `INSERT INTO stock_items (name, description, unit, quantity, reorder_threshold, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + itemColumns
	row := r.pool.QueryRow(ctx, query, item.Name, item.Description, item.Unit,
		decimalToNumeric(item.Quantity), thresholdToNumeric(item.ReorderThreshold))
	created, err := scanItem(row)
	if err != nil {
		if isUniqueViolation(err) {
			return StockItem{}, fmt.Errorf("stock: item name already in use: %w", shared.ErrConflict)
		}
		return StockItem{}, shared.WrapStorage("stock: insert item", err)
	}
	return created, nil
}

func (r *Repository) UpdateItem(ctx context.Context, item StockItem) (StockItem, error) {
	query := `UPDATE stock_items
		SET name = $1, description = $2, unit = $3, reorder_threshold = $4, updated_at = NOW()
		WHERE id = $5 AND deleted_at IS NULL
		RETURNING ` + itemColumns
	row := r.pool.QueryRow(ctx, query, item.Name, item.Description, item.Unit,
		thresholdToNumeric(item.ReorderThreshold), item.ID)
	updated, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockItem{}, fmt.Errorf("stock: item %d: %w", item.ID, shared.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return StockItem{}, fmt.Errorf("stock: item name already in use: %w", shared.ErrConflict)
		}
		return StockItem{}, shared.WrapStorage("stock: update item", err)
	}
	return updated, nil
}

func (r *Repository) SetDeletedAt(ctx context.Context, id int64, at *time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stock_items SET deleted_at = $1, updated_at = NOW() WHERE id = $2`, at, id)
	if err != nil {
		return shared.WrapStorage("stock: set deleted_at", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stock: item %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

const movementColumns = `m.id, m.stock_item_id, m.movement_type, m.qty_delta, m.previous_qty, m.new_qty,
	m.reason, m.ref_type, m.ref_id, m.actor_id, m.created_at, COALESCE(i.name, ''), COALESCE(a.display_name, m.actor_id)`

// stock_items is LEFT JOINed so history for force-deleted items stays visible.
const movementJoins = ` FROM stock_movements m
	LEFT JOIN stock_items i ON i.id = m.stock_item_id
	LEFT JOIN actors a ON a.actor_id = m.actor_id`

func (r *Repository) GetMovement(ctx context.Context, id int64) (MovementRecord, error) {
	query := `SELECT ` + movementColumns + movementJoins + ` WHERE m.id = $1`
	rec, err := scanMovement(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MovementRecord{}, fmt.Errorf("stock: movement %d: %w", id, shared.ErrNotFound)
		}
		return MovementRecord{}, shared.WrapStorage("stock: get movement", err)
	}
	return rec, nil
}

func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]MovementRecord, int, error) {
	where := ``
	args := []interface{}{}
	argCount := 0

	if filter.StockItemID != 0 {
		argCount++
		where += ` AND m.stock_item_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.StockItemID)
	}
	if filter.Type != "" {
		argCount++
		where += ` AND m.movement_type = $` + strconv.Itoa(argCount)
		args = append(args, string(filter.Type))
	}
	if filter.ActorID != "" {
		argCount++
		where += ` AND m.actor_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.ActorID)
	}
	if !filter.From.IsZero() {
		argCount++
		where += ` AND m.created_at >= $` + strconv.Itoa(argCount)
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		argCount++
		where += ` AND m.created_at <= $` + strconv.Itoa(argCount)
		args = append(args, filter.To)
	}

	var total int
	countQuery := `SELECT COUNT(*)` + movementJoins + ` WHERE 1=1` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, shared.WrapStorage("stock: count movements", err)
	}

	query := `SELECT ` + movementColumns + movementJoins + ` WHERE 1=1` + where + ` ORDER BY m.created_at DESC, m.id DESC`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filter.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filter.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.WrapStorage("stock: list movements", err)
	}
	defer rows.Close()

	var records []MovementRecord
	for rows.Next() {
		rec, err := scanMovement(rows)
		if err != nil {
			return nil, 0, shared.WrapStorage("stock: scan movement", err)
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

func (r *txRepo) GetItemForUpdate(ctx context.Context, id int64) (StockItem, error) {
	query := `SELECT ` + itemColumns + ` FROM stock_items WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	item, err := scanItem(r.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockItem{}, fmt.Errorf("stock: item %d: %w", id, shared.ErrNotFound)
		}
		return StockItem{}, shared.WrapStorage("stock: lock item", err)
	}
	return item, nil
}

func (r *txRepo) UpdateQuantity(ctx context.Context, id int64, qty decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_items SET quantity = $1, updated_at = NOW() WHERE id = $2`,
		decimalToNumeric(qty), id)
	if err != nil {
		return shared.WrapStorage("stock: update quantity", err)
	}
	return nil
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	query := `INSERT INTO stock_movements (stock_item_id, movement_type, qty_delta, previous_qty, new_qty, reason, ref_type, ref_id, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, created_at`
	err := r.tx.QueryRow(ctx, query, m.StockItemID, string(m.Type),
		decimalToNumeric(m.QtyDelta), decimalToNumeric(m.PreviousQty), decimalToNumeric(m.NewQty),
		m.Reason, m.RefType, m.RefID, m.ActorID).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return Movement{}, shared.WrapStorage("stock: insert movement", err)
	}
	return m, nil
}

func (r *txRepo) DeletePricesForItem(ctx context.Context, stockItemID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM stock_item_prices WHERE stock_item_id = $1`, stockItemID); err != nil {
		return shared.WrapStorage("stock: delete prices", err)
	}
	return nil
}

func (r *txRepo) DeleteItem(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM stock_items WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("stock: item is referenced by recipe lines: %w", shared.ErrBusinessRule)
		}
		return shared.WrapStorage("stock: delete item", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stock: item %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (StockItem, error) {
	var (
		item      StockItem
		qty       pgtype.Numeric
		threshold pgtype.Numeric
		deletedAt pgtype.Timestamptz
	)
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Unit, &qty, &threshold,
		&deletedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return StockItem{}, err
	}
	item.Quantity = numericToDecimal(qty)
	if threshold.Valid {
		t := numericToDecimal(threshold)
		item.ReorderThreshold = &t
	}
	if deletedAt.Valid {
		item.DeletedAt = &deletedAt.Time
	}
	return item, nil
}

func scanMovement(row rowScanner) (MovementRecord, error) {
	var (
		rec   MovementRecord
		delta pgtype.Numeric
		prev  pgtype.Numeric
		next  pgtype.Numeric
	)
	err := row.Scan(&rec.ID, &rec.StockItemID, &rec.Type, &delta, &prev, &next,
		&rec.Reason, &rec.RefType, &rec.RefID, &rec.ActorID, &rec.CreatedAt,
		&rec.StockItemName, &rec.ActorName)
	if err != nil {
		return MovementRecord{}, err
	}
	rec.QtyDelta = numericToDecimal(delta)
	rec.PreviousQty = numericToDecimal(prev)
	rec.NewQty = numericToDecimal(next)
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
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

func thresholdToNumeric(t *decimal.Decimal) pgtype.Numeric {
	if t == nil {
		return pgtype.Numeric{}
	}
	return decimalToNumeric(*t)
}
