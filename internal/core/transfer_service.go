package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TransferService bulk-moves the entire stock of one warehouse into another,
// typically ahead of closing the source down.
type TransferService interface {
	// MoveAllInventory merges every inventory item of the source warehouse
	// into the destination and deletes the source rows. It fails with
	// BlockedByPendingOrdersError while the source has open purchase or
	// sales orders. The returned warning is non-empty when the destination
	// ends up over capacity; the transfer still commits.
	MoveAllInventory(ctx context.Context, sourceID, destID, actorID int) (warning string, err error)
}

type transferService struct {
	pool   *pgxpool.Pool
	ledger *StockLedger
}

func NewTransferService(pool *pgxpool.Pool, ledger *StockLedger) TransferService {
	return &transferService{pool: pool, ledger: ledger}
}

// poBlockingStatuses includes in_transit for deployments that track shipping
// state on purchase orders.
const poBlockingStatuses = "('pending', 'ordered', 'in_transit', 'partially_received')"
const soBlockingStatuses = "('pending', 'processing', 'shipped')"

func (s *transferService) MoveAllInventory(ctx context.Context, sourceID, destID, actorID int) (string, error) {
	if sourceID == destID {
		return "", validationErrorf("source and destination warehouse must differ")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var destCapacity decimal.Decimal
	err = tx.QueryRow(ctx, "SELECT capacity FROM warehouses WHERE id = $1", destID).Scan(&destCapacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &NotFoundError{Entity: "warehouse", ID: destID}
	}
	if err != nil {
		return "", fmt.Errorf("fetch destination warehouse: %w", err)
	}

	var sourceExists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM warehouses WHERE id = $1)", sourceID,
	).Scan(&sourceExists); err != nil {
		return "", fmt.Errorf("resolve source warehouse: %w", err)
	}
	if !sourceExists {
		return "", &NotFoundError{Entity: "warehouse", ID: sourceID}
	}

	var openPOs, openSOs int
	err = tx.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM purchase_orders
			 WHERE warehouse_id = $1 AND deleted_at IS NULL AND status IN `+poBlockingStatuses+`),
			(SELECT count(*) FROM sales_orders
			 WHERE warehouse_id = $1 AND deleted_at IS NULL AND status IN `+soBlockingStatuses+`)
	`, sourceID).Scan(&openPOs, &openSOs)
	if err != nil {
		return "", fmt.Errorf("count open orders: %w", err)
	}
	if openPOs > 0 || openSOs > 0 {
		return "", &BlockedByPendingOrdersError{
			WarehouseID:    sourceID,
			PurchaseOrders: openPOs,
			SalesOrders:    openSOs,
		}
	}

	// Deterministic lock order across concurrent transfers touching the
	// same products.
	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity, unit_price, status
		FROM inventory_items
		WHERE warehouse_id = $1
		ORDER BY product_id
		FOR UPDATE
	`, sourceID)
	if err != nil {
		return "", fmt.Errorf("lock source inventory: %w", err)
	}

	type sourceItem struct {
		productID int
		quantity  decimal.Decimal
		unitPrice decimal.Decimal
		status    StockStatus
	}
	var items []sourceItem
	for rows.Next() {
		var it sourceItem
		if err := rows.Scan(&it.productID, &it.quantity, &it.unitPrice, &it.status); err != nil {
			rows.Close()
			return "", fmt.Errorf("scan source inventory item: %w", err)
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate source inventory: %w", err)
	}

	for _, item := range items {
		// Newly created destination rows inherit the source row's price
		// and status; existing rows keep their own price.
		if _, err := tx.Exec(ctx, `
			INSERT INTO inventory_items (warehouse_id, product_id, quantity, unit_price, status)
			VALUES ($1, $2, 0, $3, $4)
			ON CONFLICT (warehouse_id, product_id) DO NOTHING
		`, destID, item.productID, item.unitPrice, item.status); err != nil {
			return "", fmt.Errorf("prepare destination item for product %d: %w", item.productID, err)
		}

		var destQty decimal.Decimal
		if err := tx.QueryRow(ctx, `
			SELECT quantity FROM inventory_items
			WHERE warehouse_id = $1 AND product_id = $2
			FOR UPDATE
		`, destID, item.productID).Scan(&destQty); err != nil {
			return "", fmt.Errorf("lock destination item for product %d: %w", item.productID, err)
		}

		reorderPoint, err := s.ledger.productReorderPoint(ctx, tx, item.productID)
		if err != nil {
			return "", err
		}
		newQty := destQty.Add(item.quantity)
		if _, err := tx.Exec(ctx, `
			UPDATE inventory_items
			SET quantity = $1, status = $2, updated_at = NOW()
			WHERE warehouse_id = $3 AND product_id = $4
		`, newQty, DeriveStockStatus(newQty, reorderPoint), destID, item.productID); err != nil {
			return "", fmt.Errorf("merge product %d into destination: %w", item.productID, err)
		}

		if err := s.ledger.RecordMovementTx(ctx, tx, Movement{
			Type:                   MovementMove,
			ProductID:              item.productID,
			Quantity:               item.quantity,
			SourceWarehouseID:      &sourceID,
			DestinationWarehouseID: &destID,
			ReferenceType:          RefTransfer,
			ReferenceID:            &sourceID,
			Notes:                  fmt.Sprintf("bulk transfer from warehouse %d to warehouse %d", sourceID, destID),
			CreatedBy:              actorID,
		}); err != nil {
			return "", err
		}

		// The source row is removed, not left at zero.
		if _, err := tx.Exec(ctx,
			"DELETE FROM inventory_items WHERE warehouse_id = $1 AND product_id = $2",
			sourceID, item.productID,
		); err != nil {
			return "", fmt.Errorf("delete source item for product %d: %w", item.productID, err)
		}

		if err := s.ledger.refreshProductQuantity(ctx, tx, item.productID); err != nil {
			return "", err
		}
	}

	var destTotal decimal.Decimal
	if err := tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(quantity), 0) FROM inventory_items WHERE warehouse_id = $1",
		destID,
	).Scan(&destTotal); err != nil {
		return "", fmt.Errorf("sum destination inventory: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transfer: %w", err)
	}

	var warning string
	if destCapacity.IsPositive() && destTotal.GreaterThan(destCapacity) {
		warning = fmt.Sprintf("warehouse %d now holds %s units, exceeding its capacity of %s",
			destID, destTotal.String(), destCapacity.String())
	}
	return warning, nil
}
