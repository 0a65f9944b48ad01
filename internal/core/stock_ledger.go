package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StockLedger is the only component permitted to mutate inventory item
// quantities, the denormalized product aggregate, or to append inventory
// movements. Order workflows, returns, and transfers all route their stock
// effects through it.
//
// The Tx-scoped methods run inside a caller-provided transaction so that a
// workflow's state transition, its balance changes, and its movement records
// commit atomically or not at all. Rows are locked with FOR UPDATE before any
// read-modify-write, serializing concurrent operations on the same
// (warehouse, product) pair.
type StockLedger struct {
	pool *pgxpool.Pool
}

func NewStockLedger(pool *pgxpool.Pool) *StockLedger {
	return &StockLedger{pool: pool}
}

// Movement describes one ledger entry to append. IdempotencyKey, when
// non-empty, must be unique across all movements; a replay is rejected with
// DuplicateOperationError before anything is written.
type Movement struct {
	Type                   MovementType
	ProductID              int
	Quantity               decimal.Decimal
	SourceWarehouseID      *int
	DestinationWarehouseID *int
	ReferenceType          ReferenceType
	ReferenceID            *int
	IdempotencyKey         string
	Notes                  string
	CreatedBy              int
}

// AddQuantityTx increases the on-hand quantity of (warehouse, product) by
// qty within the caller's transaction, creating the inventory item row on
// first receipt. It sets last_restocked_at, re-derives the item status, and
// recomputes the product's denormalized total in the same transaction.
//
// Not idempotent: every call is one discrete increment. Callers that may be
// retried must dedup through the movement idempotency key.
func (l *StockLedger) AddQuantityTx(ctx context.Context, tx pgx.Tx, warehouseID, productID int,
	qty, unitPrice decimal.Decimal, occurredAt time.Time) (*InventoryItem, error) {

	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, validationErrorf("quantity to add must be positive, got %s", qty)
	}

	reorderPoint, err := l.productReorderPoint(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if err := l.assertWarehouse(ctx, tx, warehouseID); err != nil {
		return nil, err
	}

	// Create the row on first receipt, then lock it. The upsert alone does
	// not hold the lock we need for the read-modify-write below.
	_, err = tx.Exec(ctx, `
		INSERT INTO inventory_items (warehouse_id, product_id, quantity, unit_price, status)
		VALUES ($1, $2, 0, $3, 'out_of_stock')
		ON CONFLICT (warehouse_id, product_id) DO UPDATE SET updated_at = NOW()
	`, warehouseID, productID, unitPrice)
	if err != nil {
		return nil, fmt.Errorf("upsert inventory item: %w", err)
	}

	var oldQty, oldPrice decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT quantity, unit_price FROM inventory_items
		WHERE warehouse_id = $1 AND product_id = $2
		FOR UPDATE
	`, warehouseID, productID).Scan(&oldQty, &oldPrice)
	if err != nil {
		return nil, fmt.Errorf("lock inventory item: %w", err)
	}

	newQty := oldQty.Add(qty)
	newPrice := oldPrice
	if unitPrice.IsPositive() {
		newPrice = unitPrice
	}
	status := DeriveStockStatus(newQty, reorderPoint)

	item := &InventoryItem{WarehouseID: warehouseID, ProductID: productID}
	err = tx.QueryRow(ctx, `
		UPDATE inventory_items
		SET quantity = $1, unit_price = $2, status = $3, last_restocked_at = $4, updated_at = NOW()
		WHERE warehouse_id = $5 AND product_id = $6
		RETURNING quantity, unit_price, status, last_restocked_at, updated_at
	`, newQty, newPrice, status, occurredAt, warehouseID, productID).Scan(
		&item.Quantity, &item.UnitPrice, &item.Status, &item.LastRestockedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update inventory item: %w", err)
	}

	if err := l.refreshProductQuantity(ctx, tx, productID); err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveQuantityTx decreases the on-hand quantity of (warehouse, product) by
// qty within the caller's transaction. The debit is all-or-nothing: when the
// current quantity is short, or no row exists at all, it fails with
// InsufficientStockError and nothing changes. Negative balances are never
// persisted.
func (l *StockLedger) RemoveQuantityTx(ctx context.Context, tx pgx.Tx, warehouseID, productID int,
	qty decimal.Decimal) (*InventoryItem, error) {

	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, validationErrorf("quantity to remove must be positive, got %s", qty)
	}

	reorderPoint, err := l.productReorderPoint(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	var current decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT quantity FROM inventory_items
		WHERE warehouse_id = $1 AND product_id = $2
		FOR UPDATE
	`, warehouseID, productID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &InsufficientStockError{
			ProductID: productID, WarehouseID: warehouseID,
			Available: decimal.Zero, Requested: qty,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("lock inventory item: %w", err)
	}

	if current.LessThan(qty) {
		return nil, &InsufficientStockError{
			ProductID: productID, WarehouseID: warehouseID,
			Available: current, Requested: qty,
		}
	}

	newQty := current.Sub(qty)
	status := DeriveStockStatus(newQty, reorderPoint)

	item := &InventoryItem{WarehouseID: warehouseID, ProductID: productID}
	err = tx.QueryRow(ctx, `
		UPDATE inventory_items
		SET quantity = $1, status = $2, updated_at = NOW()
		WHERE warehouse_id = $3 AND product_id = $4
		RETURNING quantity, unit_price, status, last_restocked_at, updated_at
	`, newQty, status, warehouseID, productID).Scan(
		&item.Quantity, &item.UnitPrice, &item.Status, &item.LastRestockedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update inventory item: %w", err)
	}

	if err := l.refreshProductQuantity(ctx, tx, productID); err != nil {
		return nil, err
	}
	return item, nil
}

// RecordMovementTx appends one movement row within the caller's transaction.
// Pure append: balances are changed by AddQuantityTx/RemoveQuantityTx in the
// same transaction.
func (l *StockLedger) RecordMovementTx(ctx context.Context, tx pgx.Tx, m Movement) error {
	if m.Quantity.LessThanOrEqual(decimal.Zero) {
		return validationErrorf("movement quantity must be positive, got %s", m.Quantity)
	}

	var key *string
	if m.IdempotencyKey != "" {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM inventory_movements WHERE idempotency_key = $1)",
			m.IdempotencyKey,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check idempotency key: %w", err)
		}
		if exists {
			return &DuplicateOperationError{IdempotencyKey: m.IdempotencyKey}
		}
		key = &m.IdempotencyKey
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO inventory_movements
		            (product_id, type, quantity, source_warehouse_id, destination_warehouse_id,
		             reference_type, reference_id, idempotency_key, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.ProductID, m.Type, m.Quantity, m.SourceWarehouseID, m.DestinationWarehouseID,
		m.ReferenceType, m.ReferenceID, key, m.Notes, m.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert inventory movement: %w", err)
	}
	return nil
}

// AdjustQuantity records a manual stock correction as a standalone
// operation: positive delta adds stock, negative delta removes it. The
// balance change and its adjustment movement commit in one transaction.
func (l *StockLedger) AdjustQuantity(ctx context.Context, warehouseID, productID int,
	delta decimal.Decimal, notes, idempotencyKey string, actorID int) (*InventoryItem, error) {

	if delta.IsZero() {
		return nil, validationErrorf("adjustment delta must be non-zero")
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var item *InventoryItem
	m := Movement{
		Type:           MovementAdjustment,
		ProductID:      productID,
		Quantity:       delta.Abs(),
		ReferenceType:  RefAdjustment,
		IdempotencyKey: idempotencyKey,
		Notes:          notes,
		CreatedBy:      actorID,
	}
	if delta.IsPositive() {
		item, err = l.AddQuantityTx(ctx, tx, warehouseID, productID, delta, decimal.Zero, time.Now())
		m.DestinationWarehouseID = &warehouseID
	} else {
		item, err = l.RemoveQuantityTx(ctx, tx, warehouseID, productID, delta.Neg())
		m.SourceWarehouseID = &warehouseID
	}
	if err != nil {
		return nil, err
	}

	if err := l.RecordMovementTx(ctx, tx, m); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit adjustment: %w", err)
	}
	return item, nil
}

// GetItem returns the inventory item for a (warehouse, product) pair, or a
// NotFoundError if no row exists.
func (l *StockLedger) GetItem(ctx context.Context, warehouseID, productID int) (*InventoryItem, error) {
	item := &InventoryItem{WarehouseID: warehouseID, ProductID: productID}
	err := l.pool.QueryRow(ctx, `
		SELECT quantity, unit_price, status, last_restocked_at, updated_at
		FROM inventory_items
		WHERE warehouse_id = $1 AND product_id = $2
	`, warehouseID, productID).Scan(
		&item.Quantity, &item.UnitPrice, &item.Status, &item.LastRestockedAt, &item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "inventory item for product", ID: productID}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch inventory item: %w", err)
	}
	return item, nil
}

// GetStockLevels returns every inventory item joined with product and
// warehouse info, ordered by SKU then warehouse code.
func (l *StockLedger) GetStockLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT p.id, p.sku, p.name, w.id, w.code,
		       ii.quantity, ii.unit_price, ii.status
		FROM inventory_items ii
		JOIN products p   ON p.id = ii.product_id
		JOIN warehouses w ON w.id = ii.warehouse_id
		ORDER BY p.sku, w.code
	`)
	if err != nil {
		return nil, fmt.Errorf("query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(
			&sl.ProductID, &sl.ProductSKU, &sl.ProductName,
			&sl.WarehouseID, &sl.WarehouseCode,
			&sl.Quantity, &sl.UnitPrice, &sl.Status,
		); err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

// GetMovements returns the movement history for a product, newest first.
func (l *StockLedger) GetMovements(ctx context.Context, productID int) ([]InventoryMovement, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, product_id, type, quantity, source_warehouse_id, destination_warehouse_id,
		       reference_type, reference_id, idempotency_key, notes, created_by, created_at
		FROM inventory_movements
		WHERE product_id = $1
		ORDER BY id DESC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var movements []InventoryMovement
	for rows.Next() {
		var m InventoryMovement
		if err := rows.Scan(
			&m.ID, &m.ProductID, &m.Type, &m.Quantity,
			&m.SourceWarehouseID, &m.DestinationWarehouseID,
			&m.ReferenceType, &m.ReferenceID, &m.IdempotencyKey,
			&m.Notes, &m.CreatedBy, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// refreshProductQuantity recomputes the denormalized product total as the
// sum over all warehouses, inside the same transaction as the item change.
func (l *StockLedger) refreshProductQuantity(ctx context.Context, tx pgx.Tx, productID int) error {
	_, err := tx.Exec(ctx, `
		UPDATE products
		SET quantity = (SELECT COALESCE(SUM(quantity), 0) FROM inventory_items WHERE product_id = $1)
		WHERE id = $1
	`, productID)
	if err != nil {
		return fmt.Errorf("refresh product %d quantity: %w", productID, err)
	}
	return nil
}

func (l *StockLedger) productReorderPoint(ctx context.Context, tx pgx.Tx, productID int) (decimal.Decimal, error) {
	var reorderPoint decimal.Decimal
	err := tx.QueryRow(ctx, "SELECT reorder_point FROM products WHERE id = $1", productID).Scan(&reorderPoint)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, &NotFoundError{Entity: "product", ID: productID}
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("resolve product %d: %w", productID, err)
	}
	return reorderPoint, nil
}

func (l *StockLedger) assertWarehouse(ctx context.Context, tx pgx.Tx, warehouseID int) error {
	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM warehouses WHERE id = $1)", warehouseID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("resolve warehouse %d: %w", warehouseID, err)
	}
	if !exists {
		return &NotFoundError{Entity: "warehouse", ID: warehouseID}
	}
	return nil
}
