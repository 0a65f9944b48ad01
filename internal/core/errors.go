package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Domain failures are typed so callers can translate them without parsing
// messages. Persistence failures are not part of this taxonomy; they wrap
// through fmt.Errorf and surface as generic infrastructure errors.

// ValidationError rejects malformed input before anything is persisted.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// InsufficientStockError aborts a debit that would drive an inventory item
// below zero. Available is zero when no inventory row exists for the pair.
type InsufficientStockError struct {
	ProductID   int
	WarehouseID int
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d in warehouse %d: available %s, requested %s",
		e.ProductID, e.WarehouseID, e.Available.String(), e.Requested.String())
}

// OverReceiptError aborts a purchase order line receipt that would exceed the
// ordered quantity.
type OverReceiptError struct {
	ItemID          int
	Ordered         decimal.Decimal
	AlreadyReceived decimal.Decimal
	Requested       decimal.Decimal
}

func (e *OverReceiptError) Error() string {
	return fmt.Sprintf("purchase order item %d: receiving %s would exceed ordered %s (already received %s)",
		e.ItemID, e.Requested.String(), e.Ordered.String(), e.AlreadyReceived.String())
}

// AlreadyReceivedError aborts a redundant full receipt of a purchase order.
type AlreadyReceivedError struct {
	OrderID  int
	PONumber string
}

func (e *AlreadyReceivedError) Error() string {
	return fmt.Sprintf("purchase order %s already received", e.PONumber)
}

// InvalidTransitionError aborts a workflow method invoked from a state that
// does not permit it.
type InvalidTransitionError struct {
	Entity string
	ID     int
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %d: invalid transition %s -> %s", e.Entity, e.ID, e.From, e.To)
}

// BlockedByPendingOrdersError aborts a warehouse transfer while the source
// warehouse still has open orders.
type BlockedByPendingOrdersError struct {
	WarehouseID    int
	PurchaseOrders int
	SalesOrders    int
}

func (e *BlockedByPendingOrdersError) Error() string {
	return fmt.Sprintf("warehouse %d has %d open purchase order(s) and %d open sales order(s)",
		e.WarehouseID, e.PurchaseOrders, e.SalesOrders)
}

// DuplicateOperationError rejects a replayed idempotency key. The original
// operation's effects stand; the replay mutates nothing.
type DuplicateOperationError struct {
	IdempotencyKey string
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("duplicate operation: idempotency key %s already used", e.IdempotencyKey)
}
