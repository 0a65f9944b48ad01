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

type salesOrderService struct {
	pool   *pgxpool.Pool
	ledger *StockLedger
}

// NewSalesOrderService constructs a SalesOrderService backed by PostgreSQL.
// All stock effects route through the given ledger.
func NewSalesOrderService(pool *pgxpool.Pool, ledger *StockLedger) SalesOrderService {
	return &salesOrderService{pool: pool, ledger: ledger}
}

func (s *salesOrderService) CreateOrder(ctx context.Context, input SalesOrderInput) (*SalesOrder, error) {
	if len(input.Items) == 0 {
		return nil, validationErrorf("sales order must have at least one item")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.validateHeaderRefs(ctx, tx, input); err != nil {
		return nil, err
	}
	amounts, err := validateSalesItems(input.Items)
	if err != nil {
		return nil, err
	}
	totals := SumOrderTotals(amounts, input.ShippingAmount)

	var orderID int
	err = tx.QueryRow(ctx, `
		INSERT INTO sales_orders
		            (order_number, customer_id, warehouse_id, status, subtotal, tax_amount,
		             shipping_amount, grand_total)
		VALUES ('', $1, $2, 'pending', $3, $4, $5, $6)
		RETURNING id
	`, input.CustomerID, input.WarehouseID, totals.Subtotal, totals.TaxAmount,
		input.ShippingAmount, totals.GrandTotal).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("insert sales order: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE sales_orders SET order_number = 'SO-' || lpad($1::text, 6, '0') WHERE id = $1",
		orderID,
	); err != nil {
		return nil, fmt.Errorf("assign order number: %w", err)
	}

	for i, item := range input.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sales_order_items
			            (order_id, product_id, quantity, unit_price, tax_rate, subtotal, tax_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, orderID, item.ProductID, item.Quantity, item.UnitPrice, item.TaxRate,
			amounts[i].Subtotal, amounts[i].TaxAmount,
		); err != nil {
			return nil, fmt.Errorf("insert sales order item %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sales order: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *salesOrderService) UpdateOrder(ctx context.Context, orderID int, input SalesOrderInput) (*SalesOrder, error) {
	if len(input.Items) == 0 {
		return nil, validationErrorf("sales order must have at least one item")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, _, err := s.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if status != SOStatusPending {
		return nil, validationErrorf("sales order %d cannot be edited: status is %s (must be pending)", orderID, status)
	}

	if err := s.validateHeaderRefs(ctx, tx, input); err != nil {
		return nil, err
	}
	amounts, err := validateSalesItems(input.Items)
	if err != nil {
		return nil, err
	}

	keep := make([]int, 0, len(input.Items))
	for i, item := range input.Items {
		if item.ID != nil {
			tag, err := tx.Exec(ctx, `
				UPDATE sales_order_items
				SET product_id = $1, quantity = $2, unit_price = $3, tax_rate = $4,
				    subtotal = $5, tax_amount = $6
				WHERE id = $7 AND order_id = $8
			`, item.ProductID, item.Quantity, item.UnitPrice, item.TaxRate,
				amounts[i].Subtotal, amounts[i].TaxAmount, *item.ID, orderID)
			if err != nil {
				return nil, fmt.Errorf("update sales order item %d: %w", *item.ID, err)
			}
			if tag.RowsAffected() == 0 {
				return nil, &NotFoundError{Entity: "sales order item", ID: *item.ID}
			}
			keep = append(keep, *item.ID)
			continue
		}

		var newID int
		if err := tx.QueryRow(ctx, `
			INSERT INTO sales_order_items
			            (order_id, product_id, quantity, unit_price, tax_rate, subtotal, tax_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, orderID, item.ProductID, item.Quantity, item.UnitPrice, item.TaxRate,
			amounts[i].Subtotal, amounts[i].TaxAmount,
		).Scan(&newID); err != nil {
			return nil, fmt.Errorf("insert sales order item: %w", err)
		}
		keep = append(keep, newID)
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM sales_order_items WHERE order_id = $1 AND NOT (id = ANY($2))",
		orderID, keep,
	); err != nil {
		return nil, fmt.Errorf("delete removed sales order items: %w", err)
	}

	totals := SumOrderTotals(amounts, input.ShippingAmount)
	if _, err := tx.Exec(ctx, `
		UPDATE sales_orders
		SET customer_id = $1, warehouse_id = $2, subtotal = $3, tax_amount = $4,
		    shipping_amount = $5, grand_total = $6, updated_at = NOW()
		WHERE id = $7
	`, input.CustomerID, input.WarehouseID, totals.Subtotal, totals.TaxAmount,
		input.ShippingAmount, totals.GrandTotal, orderID,
	); err != nil {
		return nil, fmt.Errorf("update sales order %d: %w", orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sales order update: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

// Process fulfils a pending order. The availability check runs over every
// item before any debit, so a short line aborts the whole order with no
// partial fulfilment; the items are then debited and one `out` movement is
// appended per line, all in the same transaction as the status flip.
func (s *salesOrderService) Process(ctx context.Context, orderID, actorID int, idempotencyKey string) (*SalesOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, warehouseID, err := s.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if status != SOStatusPending {
		return nil, &InvalidTransitionError{Entity: "sales order", ID: orderID,
			From: string(status), To: string(SOStatusProcessing)}
	}

	items, err := fetchSalesItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	// Whole-order check first. Items are locked in id order on both passes,
	// keeping lock acquisition deterministic.
	for _, item := range items {
		var available decimal.Decimal
		err := tx.QueryRow(ctx, `
			SELECT quantity FROM inventory_items
			WHERE warehouse_id = $1 AND product_id = $2
			FOR UPDATE
		`, warehouseID, item.ProductID).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &InsufficientStockError{
				ProductID: item.ProductID, WarehouseID: warehouseID,
				Available: decimal.Zero, Requested: item.Quantity,
			}
		}
		if err != nil {
			return nil, fmt.Errorf("check stock for product %d: %w", item.ProductID, err)
		}
		if available.LessThan(item.Quantity) {
			return nil, &InsufficientStockError{
				ProductID: item.ProductID, WarehouseID: warehouseID,
				Available: available, Requested: item.Quantity,
			}
		}
	}

	for _, item := range items {
		if _, err := s.ledger.RemoveQuantityTx(ctx, tx, warehouseID, item.ProductID, item.Quantity); err != nil {
			return nil, fmt.Errorf("fulfil order %d item %d: %w", orderID, item.ID, err)
		}

		key := ""
		if idempotencyKey != "" {
			key = fmt.Sprintf("%s:item-%d", idempotencyKey, item.ID)
		}
		refID := orderID
		if err := s.ledger.RecordMovementTx(ctx, tx, Movement{
			Type:              MovementOut,
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			SourceWarehouseID: &warehouseID,
			ReferenceType:     RefSalesOrder,
			ReferenceID:       &refID,
			IdempotencyKey:    key,
			Notes:             fmt.Sprintf("fulfilment of %s for order %d", item.Quantity.String(), orderID),
			CreatedBy:         actorID,
		}); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE sales_orders SET status = 'processing', updated_at = NOW() WHERE id = $1",
		orderID,
	); err != nil {
		return nil, fmt.Errorf("mark order %d processing: %w", orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order processing: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *salesOrderService) MarkAsShipped(ctx context.Context, orderID int, trackingNumber string) (*SalesOrder, error) {
	if trackingNumber == "" {
		return nil, validationErrorf("tracking number is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, _, err := s.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !status.CanTransitionTo(SOStatusShipped) {
		return nil, &InvalidTransitionError{Entity: "sales order", ID: orderID,
			From: string(status), To: string(SOStatusShipped)}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sales_orders
		SET status = 'shipped', shipping_tracking_number = $1, shipped_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`, trackingNumber, orderID); err != nil {
		return nil, fmt.Errorf("mark order %d shipped: %w", orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit shipment: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *salesOrderService) MarkAsDelivered(ctx context.Context, orderID int) (*SalesOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, _, err := s.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !status.CanTransitionTo(SOStatusDelivered) {
		return nil, &InvalidTransitionError{Entity: "sales order", ID: orderID,
			From: string(status), To: string(SOStatusDelivered)}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE sales_orders SET status = 'delivered', delivered_at = NOW(), updated_at = NOW() WHERE id = $1",
		orderID,
	); err != nil {
		return nil, fmt.Errorf("mark order %d delivered: %w", orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit delivery: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

// Cancel cancels a pending or processing order. Only a processing order had
// its stock debited, so only then is stock credited back; a pending order
// cancelled here never gets a credit it did not earn.
func (s *salesOrderService) Cancel(ctx context.Context, orderID, actorID int) (*SalesOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, warehouseID, err := s.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !status.CanTransitionTo(SOStatusCancelled) {
		return nil, &InvalidTransitionError{Entity: "sales order", ID: orderID,
			From: string(status), To: string(SOStatusCancelled)}
	}

	if status == SOStatusProcessing {
		items, err := fetchSalesItems(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		for _, item := range items {
			if _, err := s.ledger.AddQuantityTx(ctx, tx, warehouseID, item.ProductID, item.Quantity, decimal.Zero, now); err != nil {
				return nil, fmt.Errorf("restore stock for order %d item %d: %w", orderID, item.ID, err)
			}
			refID := orderID
			if err := s.ledger.RecordMovementTx(ctx, tx, Movement{
				Type:                   MovementSaleReturn,
				ProductID:              item.ProductID,
				Quantity:               item.Quantity,
				DestinationWarehouseID: &warehouseID,
				ReferenceType:          RefSalesOrder,
				ReferenceID:            &refID,
				Notes:                  fmt.Sprintf("stock restored on cancellation of order %d", orderID),
				CreatedBy:              actorID,
			}); err != nil {
				return nil, err
			}
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE sales_orders SET status = 'cancelled', updated_at = NOW() WHERE id = $1",
		orderID,
	); err != nil {
		return nil, fmt.Errorf("cancel order %d: %w", orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancellation: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *salesOrderService) GetOrder(ctx context.Context, orderID int) (*SalesOrder, error) {
	o := &SalesOrder{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_number, customer_id, warehouse_id, status, subtotal, tax_amount,
		       shipping_amount, grand_total, shipping_tracking_number, shipped_at, delivered_at, created_at
		FROM sales_orders
		WHERE id = $1 AND deleted_at IS NULL
	`, orderID).Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.WarehouseID, &o.Status,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.GrandTotal,
		&o.ShippingTrackingNumber, &o.ShippedAt, &o.DeliveredAt, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "sales order", ID: orderID}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch sales order %d: %w", orderID, err)
	}

	items, err := fetchSalesItems(ctx, s.pool, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (s *salesOrderService) GetOrders(ctx context.Context, status string) ([]SalesOrder, error) {
	query := `
		SELECT id, order_number, customer_id, warehouse_id, status, subtotal, tax_amount,
		       shipping_amount, grand_total, shipping_tracking_number, shipped_at, delivered_at, created_at
		FROM sales_orders
		WHERE deleted_at IS NULL`
	args := []any{}
	if status != "" {
		query += " AND status = $1"
		args = append(args, status)
	}
	query += " ORDER BY id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales orders: %w", err)
	}
	defer rows.Close()

	var orders []SalesOrder
	for rows.Next() {
		var o SalesOrder
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.CustomerID, &o.WarehouseID, &o.Status,
			&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.GrandTotal,
			&o.ShippingTrackingNumber, &o.ShippedAt, &o.DeliveredAt, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sales order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// lockOrder locks the order header and returns its status and warehouse.
func (s *salesOrderService) lockOrder(ctx context.Context, tx pgx.Tx, orderID int) (SalesOrderStatus, int, error) {
	var status SalesOrderStatus
	var warehouseID int
	err := tx.QueryRow(ctx,
		"SELECT status, warehouse_id FROM sales_orders WHERE id = $1 AND deleted_at IS NULL FOR UPDATE",
		orderID,
	).Scan(&status, &warehouseID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, &NotFoundError{Entity: "sales order", ID: orderID}
	}
	if err != nil {
		return "", 0, fmt.Errorf("fetch sales order %d: %w", orderID, err)
	}
	return status, warehouseID, nil
}

func (s *salesOrderService) validateHeaderRefs(ctx context.Context, tx pgx.Tx, input SalesOrderInput) error {
	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)", input.CustomerID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("resolve customer: %w", err)
	}
	if !exists {
		return &NotFoundError{Entity: "customer", ID: input.CustomerID}
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

func validateSalesItems(items []SalesOrderItemInput) ([]LineAmounts, error) {
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

func fetchSalesItems(ctx context.Context, q pgxRowQuerier, orderID int) ([]SalesOrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT soi.id, soi.order_id, soi.product_id, p.sku, p.name,
		       soi.quantity, soi.unit_price, soi.tax_rate, soi.subtotal, soi.tax_amount
		FROM sales_order_items soi
		JOIN products p ON p.id = soi.product_id
		WHERE soi.order_id = $1
		ORDER BY soi.id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch sales order items for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var items []SalesOrderItem
	for rows.Next() {
		var it SalesOrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.ProductSKU, &it.ProductName,
			&it.Quantity, &it.UnitPrice, &it.TaxRate, &it.Subtotal, &it.TaxAmount,
		); err != nil {
			return nil, fmt.Errorf("scan sales order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
