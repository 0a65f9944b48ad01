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

// PurchaseReturn records stock sent back to a supplier against a received
// purchase order item. Immutable once created.
type PurchaseReturn struct {
	ID            int             `json:"id"`
	OrderID       int             `json:"order_id"`
	OrderItemID   int             `json:"order_item_id"`
	ProductID     int             `json:"product_id"`
	WarehouseID   int             `json:"warehouse_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Reason        string          `json:"reason"`
	Notes         string          `json:"notes,omitempty"`
	StockAdjusted bool            `json:"stock_adjusted"`
	ReturnedBy    int             `json:"returned_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PurchaseReturnInput holds the fields for recording a return.
type PurchaseReturnInput struct {
	OrderID        int
	OrderItemID    int
	ProductID      int
	WarehouseID    int
	Quantity       decimal.Decimal
	Reason         string
	Notes          string
	ReturnedBy     int
	IdempotencyKey string
}

// PurchaseReturnService records supplier returns and the stock debits they
// trigger.
type PurchaseReturnService interface {
	// CreateReturn records a return against a purchase order item. When the
	// warehouse holds an inventory row for the product the quantity is
	// debited and a `purchase_return` movement appended; the debit fails
	// with InsufficientStockError when on-hand is short. Without a row the
	// return is still recorded, with StockAdjusted false and no movement.
	CreateReturn(ctx context.Context, input PurchaseReturnInput) (*PurchaseReturn, error)

	// GetReturns lists returns, optionally filtered by order ID (0 = all).
	GetReturns(ctx context.Context, orderID int) ([]PurchaseReturn, error)
}

type purchaseReturnService struct {
	pool   *pgxpool.Pool
	ledger *StockLedger
}

func NewPurchaseReturnService(pool *pgxpool.Pool, ledger *StockLedger) PurchaseReturnService {
	return &purchaseReturnService{pool: pool, ledger: ledger}
}

func (s *purchaseReturnService) CreateReturn(ctx context.Context, input PurchaseReturnInput) (*PurchaseReturn, error) {
	if input.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, validationErrorf("return quantity must be positive, got %s", input.Quantity)
	}
	if input.Reason == "" {
		return nil, validationErrorf("return reason is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.validateLinkage(ctx, tx, input); err != nil {
		return nil, err
	}

	// Returns debit whatever the warehouse currently holds; they do not
	// reconcile against the originally received amount.
	var haveRow bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM inventory_items WHERE warehouse_id = $1 AND product_id = $2)
	`, input.WarehouseID, input.ProductID).Scan(&haveRow); err != nil {
		return nil, fmt.Errorf("check inventory item: %w", err)
	}

	stockAdjusted := false
	if haveRow {
		if _, err := s.ledger.RemoveQuantityTx(ctx, tx, input.WarehouseID, input.ProductID, input.Quantity); err != nil {
			return nil, err
		}
		stockAdjusted = true
	}

	var ret PurchaseReturn
	err = tx.QueryRow(ctx, `
		INSERT INTO purchase_returns
		            (order_id, order_item_id, product_id, warehouse_id, quantity,
		             reason, notes, stock_adjusted, returned_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, input.OrderID, input.OrderItemID, input.ProductID, input.WarehouseID,
		input.Quantity, input.Reason, input.Notes, stockAdjusted, input.ReturnedBy,
	).Scan(&ret.ID, &ret.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert purchase return: %w", err)
	}

	if stockAdjusted {
		refID := ret.ID
		if err := s.ledger.RecordMovementTx(ctx, tx, Movement{
			Type:              MovementPurchaseReturn,
			ProductID:         input.ProductID,
			Quantity:          input.Quantity,
			SourceWarehouseID: &input.WarehouseID,
			ReferenceType:     RefPurchaseReturn,
			ReferenceID:       &refID,
			IdempotencyKey:    input.IdempotencyKey,
			Notes:             fmt.Sprintf("return of %s against order %d: %s", input.Quantity.String(), input.OrderID, input.Reason),
			CreatedBy:         input.ReturnedBy,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase return: %w", err)
	}

	ret.OrderID = input.OrderID
	ret.OrderItemID = input.OrderItemID
	ret.ProductID = input.ProductID
	ret.WarehouseID = input.WarehouseID
	ret.Quantity = input.Quantity
	ret.Reason = input.Reason
	ret.Notes = input.Notes
	ret.StockAdjusted = stockAdjusted
	ret.ReturnedBy = input.ReturnedBy
	return &ret, nil
}

func (s *purchaseReturnService) GetReturns(ctx context.Context, orderID int) ([]PurchaseReturn, error) {
	query := `
		SELECT id, order_id, order_item_id, product_id, warehouse_id, quantity,
		       reason, notes, stock_adjusted, returned_by, created_at
		FROM purchase_returns`
	args := []any{}
	if orderID != 0 {
		query += " WHERE order_id = $1"
		args = append(args, orderID)
	}
	query += " ORDER BY id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase returns: %w", err)
	}
	defer rows.Close()

	var returns []PurchaseReturn
	for rows.Next() {
		var r PurchaseReturn
		if err := rows.Scan(
			&r.ID, &r.OrderID, &r.OrderItemID, &r.ProductID, &r.WarehouseID,
			&r.Quantity, &r.Reason, &r.Notes, &r.StockAdjusted, &r.ReturnedBy, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan purchase return: %w", err)
		}
		returns = append(returns, r)
	}
	return returns, rows.Err()
}

// validateLinkage checks that the order exists, the item belongs to it, and
// the item's product matches the one being returned.
func (s *purchaseReturnService) validateLinkage(ctx context.Context, tx pgx.Tx, input PurchaseReturnInput) error {
	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM purchase_orders WHERE id = $1 AND deleted_at IS NULL)",
		input.OrderID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("resolve purchase order: %w", err)
	}
	if !exists {
		return &NotFoundError{Entity: "purchase order", ID: input.OrderID}
	}

	var itemProductID int
	err := tx.QueryRow(ctx,
		"SELECT product_id FROM purchase_order_items WHERE id = $1 AND order_id = $2",
		input.OrderItemID, input.OrderID,
	).Scan(&itemProductID)
	if errors.Is(err, pgx.ErrNoRows) {
		return validationErrorf("order item %d does not belong to purchase order %d", input.OrderItemID, input.OrderID)
	}
	if err != nil {
		return fmt.Errorf("resolve purchase order item: %w", err)
	}
	if itemProductID != input.ProductID {
		return validationErrorf("product %d does not match order item %d (expected product %d)",
			input.ProductID, input.OrderItemID, itemProductID)
	}

	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM warehouses WHERE id = $1)", input.WarehouseID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("resolve warehouse: %w", err)
	}
	if !exists {
		return &NotFoundError{Entity: "warehouse", ID: input.WarehouseID}
	}
	return nil
}
