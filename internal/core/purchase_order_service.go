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

type purchaseOrderService struct {
	pool   *pgxpool.Pool
	ledger *StockLedger
}

// NewPurchaseOrderService constructs a PurchaseOrderService backed by
// PostgreSQL. All stock effects route through the given ledger.
func NewPurchaseOrderService(pool *pgxpool.Pool, ledger *StockLedger) PurchaseOrderService {
	return &purchaseOrderService{pool: pool, ledger: ledger}
}

/// ReceiptStatus derives the order status after a receipt: received when
// every item is complete, partially_received when some item is strictly
// between zero and its ordered quantity, otherwise the current status.
func ReceiptStatus(items []PurchaseOrderItem, current PurchaseOrderStatus) PurchaseOrderStatus {
	allComplete := len(items) > 0
	anyPartial := false
	for _, it := range items {
		if it.ReceivedQuantity.LessThan(it.Quantity) {
			allComplete = false
		}
		if it.ReceivedQuantity.IsPositive() && it.ReceivedQuantity.LessThan(it.Quantity) {
			anyPartial = true
		}
	}
	switch {
	case allComplete:
		return POStatusReceived
	case anyPartial:
		return POStatusPartiallyReceived
	default:
		return current
	}
}

func (s *purchaseOrderService) CreatePO(ctx context.Context, input PurchaseOrderInput) (*PurchaseOrder, error) {
	if len(input.Items) == 0 {
		return nil, validationErrorf("purchase order must have at least one item")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.validateHeaderRefs(ctx, tx, input); err != nil {
		return nil, err
	}

	amounts, err := validateItems(input.Items)
	if err != nil {
		return nil, err
	}
	totals := SumOrderTotals(amounts, input.ShippingAmount)

	var poID int
	err = tx.QueryRow(ctx, `
		INSERT INTO purchase_orders
		            (po_number, supplier_id, warehouse_id, status, total_amount, tax_amount,
		             shipping_amount, grand_total, expected_delivery_date)
		VALUES ('', $1, $2, 'draft', $3, $4, $5, $6, $7)
		RETURNING id
	`, input.SupplierID, input.WarehouseID, totals.Subtotal, totals.TaxAmount,
		input.ShippingAmount, totals.GrandTotal, input.ExpectedDeliveryDate).Scan(&poID)
	if err != nil {
		return nil, fmt.Errorf("insert purchase order: %w", err)
	}

	// Number from the assigned id so po_number stays unique without a
	// separate sequence.
	if _, err := tx.Exec(ctx,
		"UPDATE purchase_orders SET po_number = 'PO-' || lpad($1::text, 6, '0') WHERE id = $1",
		poID,
	); err != nil {
		return nil, fmt.Errorf("assign PO number: %w", err)
	}

	for i, item := range input.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO purchase_order_items
			            (order_id, product_id, quantity, received_quantity, unit_price, tax_rate, subtotal, tax_amount)
			VALUES ($1, $2, $3, 0, $4, $5, $6, $7)
		`, poID, item.ProductID, item.Quantity, item.UnitPrice, item.TaxRate,
			amounts[i].Subtotal, amounts[i].TaxAmount,
		); err != nil {
			return nil, fmt.Errorf("insert PO item %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase order: %w", err)
	}
	return s.GetPO(ctx, poID)
}

// UpdatePO replaces the item set: submitted items with an id are updated,
// without an id inserted, and persisted items absent from the submission are
// deleted. Header totals are recomputed from the surviving items.
func (s *purchaseOrderService) UpdatePO(ctx context.Context, poID int, input PurchaseOrderInput) (*PurchaseOrder, error) {
	if len(input.Items) == 0 {
		return nil, validationErrorf("purchase order must have at least one item")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := s.lockPO(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	if !status.Editable() {
		return nil, validationErrorf("purchase order %d cannot be edited: status is %s (must be draft or pending)", poID, status)
	}

	if err := s.validateHeaderRefs(ctx, tx, input); err != nil {
		return nil, err
	}
	amounts, err := validateItems(input.Items)
	if err != nil {
		return nil, err
	}

	// Upsert the submitted items, tracking which ids survive.
	keep := make([]int, 0, len(input.Items))
	for i, item := range input.Items {
		if item.ID != nil {
			tag, err := tx.Exec(ctx, `
				UPDATE purchase_order_items
				SET product_id = $1, quantity = $2, unit_price = $3, tax_rate = $4,
				    subtotal = $5, tax_amount = $6
				WHERE id = $7 AND order_id = $8
			`, item.ProductID, item.Quantity, item.UnitPrice, item.TaxRate,
				amounts[i].Subtotal, amounts[i].TaxAmount, *item.ID, poID)
			if err != nil {
				return nil, fmt.Errorf("update PO item %d: %w", *item.ID, err)
			}
			if tag.RowsAffected() == 0 {
				return nil, &NotFoundError{Entity: "purchase order item", ID: *item.ID}
			}
			keep = append(keep, *item.ID)
			continue
		}

		var newID int
		if err := tx.QueryRow(ctx, `
			INSERT INTO purchase_order_items
			            (order_id, product_id, quantity, received_quantity, unit_price, tax_rate, subtotal, tax_amount)
			VALUES ($1, $2, $3, 0, $4, $5, $6, $7)
			RETURNING id
		`, poID, item.ProductID, item.Quantity, item.UnitPrice, item.TaxRate,
			amounts[i].Subtotal, amounts[i].TaxAmount,
		).Scan(&newID); err != nil {
			return nil, fmt.Errorf("insert PO item: %w", err)
		}
		keep = append(keep, newID)
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM purchase_order_items WHERE order_id = $1 AND NOT (id = ANY($2))",
		poID, keep,
	); err != nil {
		return nil, fmt.Errorf("delete removed PO items: %w", err)
	}

	totals := SumOrderTotals(amounts, input.ShippingAmount)
	if _, err := tx.Exec(ctx, `
		UPDATE purchase_orders
		SET supplier_id = $1, warehouse_id = $2, total_amount = $3, tax_amount = $4,
		    shipping_amount = $5, grand_total = $6, expected_delivery_date = $7, updated_at = NOW()
		WHERE id = $8
	`, input.SupplierID, input.WarehouseID, totals.Subtotal, totals.TaxAmount,
		input.ShippingAmount, totals.GrandTotal, input.ExpectedDeliveryDate, poID,
	); err != nil {
		return nil, fmt.Errorf("update purchase order %d: %w", poID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase order update: %w", err)
	}
	return s.GetPO(ctx, poID)
}

func (s *purchaseOrderService) SubmitPO(ctx context.Context, poID int) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, POStatusPending)
}

func (s *purchaseOrderService) MarkAsOrdered(ctx context.Context, poID int) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, POStatusOrdered)
}

func (s *purchaseOrderService) CancelPO(ctx context.Context, poID int) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, POStatusCancelled)
}

// transition performs a plain status flip with no stock effect, validated
// against the transition table.
func (s *purchaseOrderService) transition(ctx context.Context, poID int, to PurchaseOrderStatus) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := s.lockPO(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	if !status.CanTransitionTo(to) {
		return nil, &InvalidTransitionError{Entity: "purchase order", ID: poID,
			From: string(status), To: string(to)}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE purchase_orders SET status = $1, updated_at = NOW() WHERE id = $2",
		to, poID,
	); err != nil {
		return nil, fmt.Errorf("transition purchase order %d to %s: %w", poID, to, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return s.GetPO(ctx, poID)
}

func (s *purchaseOrderService) MarkAsReceived(ctx context.Context, poID, actorID int, idempotencyKey string) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		status      PurchaseOrderStatus
		warehouseID int
		poNumber    string
	)
	err = tx.QueryRow(ctx, `
		SELECT status, warehouse_id, po_number FROM purchase_orders
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, poID).Scan(&status, &warehouseID, &poNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "purchase order", ID: poID}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch purchase order %d: %w", poID, err)
	}

	if status == POStatusReceived {
		return nil, &AlreadyReceivedError{OrderID: poID, PONumber: poNumber}
	}
	if !status.receivable() {
		return nil, &InvalidTransitionError{Entity: "purchase order", ID: poID,
			From: string(status), To: string(POStatusReceived)}
	}

	items, err := fetchPOItems(ctx, tx, poID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, item := range items {
		remaining := item.Quantity.Sub(item.ReceivedQuantity)
		if !remaining.IsPositive() {
			continue
		}

		if _, err := s.ledger.AddQuantityTx(ctx, tx, warehouseID, item.ProductID, remaining, item.UnitPrice, now); err != nil {
			return nil, fmt.Errorf("receive PO %d item %d: %w", poID, item.ID, err)
		}

		key := ""
		if idempotencyKey != "" {
			// One key per movement row; the first item's replay aborts the
			// whole transaction, so the receipt dedups as a unit.
			key = fmt.Sprintf("%s:item-%d", idempotencyKey, item.ID)
		}
		refID := poID
		if err := s.ledger.RecordMovementTx(ctx, tx, Movement{
			Type:                   MovementIn,
			ProductID:              item.ProductID,
			Quantity:               remaining,
			DestinationWarehouseID: &warehouseID,
			ReferenceType:          RefPurchaseOrder,
			ReferenceID:            &refID,
			IdempotencyKey:         key,
			Notes:                  fmt.Sprintf("receipt of %s against %s", remaining.String(), poNumber),
			CreatedBy:              actorID,
		}); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE purchase_order_items SET received_quantity = quantity WHERE order_id = $1",
		poID,
	); err != nil {
		return nil, fmt.Errorf("complete PO %d items: %w", poID, err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE purchase_orders SET status = 'received', received_at = NOW(), updated_at = NOW() WHERE id = $1",
		poID,
	); err != nil {
		return nil, fmt.Errorf("mark PO %d received: %w", poID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit PO receipt: %w", err)
	}
	return s.GetPO(ctx, poID)
}

func (s *purchaseOrderService) MarkItemAsReceived(ctx context.Context, poID, itemID int,
	qty decimal.Decimal, actorID int, idempotencyKey string) (*PurchaseOrder, error) {

	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, validationErrorf("received quantity must be positive, got %s", qty)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		status      PurchaseOrderStatus
		warehouseID int
		poNumber    string
	)
	err = tx.QueryRow(ctx, `
		SELECT status, warehouse_id, po_number FROM purchase_orders
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, poID).Scan(&status, &warehouseID, &poNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "purchase order", ID: poID}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch purchase order %d: %w", poID, err)
	}

	if status == POStatusReceived {
		return nil, &AlreadyReceivedError{OrderID: poID, PONumber: poNumber}
	}
	if !status.receivable() {
		return nil, &InvalidTransitionError{Entity: "purchase order", ID: poID,
			From: string(status), To: string(POStatusPartiallyReceived)}
	}

	var item PurchaseOrderItem
	err = tx.QueryRow(ctx, `
		SELECT id, product_id, quantity, received_quantity, unit_price
		FROM purchase_order_items
		WHERE id = $1 AND order_id = $2
		FOR UPDATE
	`, itemID, poID).Scan(&item.ID, &item.ProductID, &item.Quantity, &item.ReceivedQuantity, &item.UnitPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "purchase order item", ID: itemID}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch PO item %d: %w", itemID, err)
	}

	if item.ReceivedQuantity.Add(qty).GreaterThan(item.Quantity) {
		return nil, &OverReceiptError{
			ItemID:          itemID,
			Ordered:         item.Quantity,
			AlreadyReceived: item.ReceivedQuantity,
			Requested:       qty,
		}
	}

	if _, err := s.ledger.AddQuantityTx(ctx, tx, warehouseID, item.ProductID, qty, item.UnitPrice, time.Now()); err != nil {
		return nil, fmt.Errorf("receive PO %d item %d: %w", poID, itemID, err)
	}
	refID := poID
	if err := s.ledger.RecordMovementTx(ctx, tx, Movement{
		Type:                   MovementIn,
		ProductID:              item.ProductID,
		Quantity:               qty,
		DestinationWarehouseID: &warehouseID,
		ReferenceType:          RefPurchaseOrder,
		ReferenceID:            &refID,
		IdempotencyKey:         idempotencyKey,
		Notes:                  fmt.Sprintf("partial receipt of %s against %s", qty.String(), poNumber),
		CreatedBy:              actorID,
	}); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		"UPDATE purchase_order_items SET received_quantity = received_quantity + $1 WHERE id = $2",
		qty, itemID,
	); err != nil {
		return nil, fmt.Errorf("update PO item %d received quantity: %w", itemID, err)
	}

	items, err := fetchPOItems(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	newStatus := ReceiptStatus(items, status)
	if newStatus != status {
		query := "UPDATE purchase_orders SET status = $1, updated_at = NOW() WHERE id = $2"
		if newStatus == POStatusReceived {
			query = "UPDATE purchase_orders SET status = $1, received_at = NOW(), updated_at = NOW() WHERE id = $2"
		}
		if _, err := tx.Exec(ctx, query, newStatus, poID); err != nil {
			return nil, fmt.Errorf("update PO %d status: %w", poID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit item receipt: %w", err)
	}
	return s.GetPO(ctx, poID)
}

func (s *purchaseOrderService) GetPO(ctx context.Context, poID int) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, po_number, supplier_id, warehouse_id, status, total_amount, tax_amount,
		       shipping_amount, grand_total, expected_delivery_date::text, received_at, created_at
		FROM purchase_orders
		WHERE id = $1 AND deleted_at IS NULL
	`, poID).Scan(
		&po.ID, &po.PONumber, &po.SupplierID, &po.WarehouseID, &po.Status,
		&po.TotalAmount, &po.TaxAmount, &po.ShippingAmount, &po.GrandTotal,
		&po.ExpectedDeliveryDate, &po.ReceivedAt, &po.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "purchase order", ID: poID}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch purchase order %d: %w", poID, err)
	}

	items, err := fetchPOItems(ctx, s.pool, poID)
	if err != nil {
		return nil, err
	}
	po.Items = items
	return po, nil
}

func (s *purchaseOrderService) GetPOs(ctx context.Context, status string) ([]PurchaseOrder, error) {
	query := `
		SELECT id, po_number, supplier_id, warehouse_id, status, total_amount, tax_amount,
		       shipping_amount, grand_total, expected_delivery_date::text, received_at, created_at
		FROM purchase_orders
		WHERE deleted_at IS NULL`
	args := []any{}
	if status != "" {
		query += " AND status = $1"
		args = append(args, status)
	}
	query += " ORDER BY id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := rows.Scan(
			&po.ID, &po.PONumber, &po.SupplierID, &po.WarehouseID, &po.Status,
			&po.TotalAmount, &po.TaxAmount, &po.ShippingAmount, &po.GrandTotal,
			&po.ExpectedDeliveryDate, &po.ReceivedAt, &po.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

// lockPO locks the order header and returns its status.
func (s *purchaseOrderService) lockPO(ctx context.Context, tx pgx.Tx, poID int) (PurchaseOrderStatus, error) {
	var status PurchaseOrderStatus
	err := tx.QueryRow(ctx,
		"SELECT status FROM purchase_orders WHERE id = $1 AND deleted_at IS NULL FOR UPDATE",
		poID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &NotFoundError{Entity: "purchase order", ID: poID}
	}
	if err != nil {
		return "", fmt.Errorf("fetch purchase order %d: %w", poID, err)
	}
	return status, nil
}

func (s *purchaseOrderService) validateHeaderRefs(ctx context.Context, tx pgx.Tx, input PurchaseOrderInput) error {
	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM suppliers WHERE id = $1)", input.SupplierID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("resolve supplier: %w", err)
	}
	if !exists {
		return &NotFoundError{Entity: "supplier", ID: input.SupplierID}
	}

	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM warehouses WHERE id = $1)", input.WarehouseID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("resolve warehouse: %w", err)
	}
	if !exists {
		return &NotFoundError{Entity: "warehouse", ID: input.WarehouseID}
	}

	for i, item := range input.Items {
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", item.ProductID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("resolve product for item %d: %w", i+1, err)
		}
		if !exists {
			return &NotFoundError{Entity: "product", ID: item.ProductID}
		}
	}
	return nil
}

// validateItems checks submitted lines and returns their derived amounts,
// index-aligned with the input.
func validateItems(items []PurchaseOrderItemInput) ([]LineAmounts, error) {
	amounts := make([]LineAmounts, len(items))
	for i, item := range items {
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, validationErrorf("item %d: quantity must be positive, got %s", i+1, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return nil, validationErrorf("item %d: unit price cannot be negative, got %s", i+1, item.UnitPrice)
		}
		if item.TaxRate.IsNegative() {
			return nil, validationErrorf("item %d: tax rate cannot be negative, got %s", i+1, item.TaxRate)
		}
		amounts[i] = ComputeLineAmounts(item.Quantity, item.UnitPrice, item.TaxRate)
	}
	return amounts, nil
}

// pgxRowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func fetchPOItems(ctx context.Context, q pgxRowQuerier, poID int) ([]PurchaseOrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT poi.id, poi.order_id, poi.product_id, p.sku, p.name,
		       poi.quantity, poi.received_quantity, poi.unit_price, poi.tax_rate,
		       poi.subtotal, poi.tax_amount
		FROM purchase_order_items poi
		JOIN products p ON p.id = poi.product_id
		WHERE poi.order_id = $1
		ORDER BY poi.id
	`, poID)
	if err != nil {
		return nil, fmt.Errorf("fetch PO items for order %d: %w", poID, err)
	}
	defer rows.Close()

	var items []PurchaseOrderItem
	for rows.Next() {
		var it PurchaseOrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.ProductSKU, &it.ProductName,
			&it.Quantity, &it.ReceivedQuantity, &it.UnitPrice, &it.TaxRate,
			&it.Subtotal, &it.TaxAmount,
		); err != nil {
			return nil, fmt.Errorf("scan PO item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
