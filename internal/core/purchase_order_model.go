package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrderStatus is the closed state set of a supplier order.
//
//	draft → pending → ordered → partially_received → received
//	ordered/partially_received → cancelled
//
// received and cancelled are terminal; item edits are only valid while
// draft or pending.
type PurchaseOrderStatus string

const (
	POStatusDraft             PurchaseOrderStatus = "draft"
	POStatusPending           PurchaseOrderStatus = "pending"
	POStatusOrdered           PurchaseOrderStatus = "ordered"
	POStatusPartiallyReceived PurchaseOrderStatus = "partially_received"
	POStatusReceived          PurchaseOrderStatus = "received"
	POStatusCancelled         PurchaseOrderStatus = "cancelled"
)

// purchaseOrderTransitions is the single transition table; any transition
// absent from it is rejected with InvalidTransitionError.
var purchaseOrderTransitions = map[PurchaseOrderStatus][]PurchaseOrderStatus{
	POStatusDraft:             {POStatusPending, POStatusOrdered},
	POStatusPending:           {POStatusOrdered},
	POStatusOrdered:           {POStatusPartiallyReceived, POStatusReceived, POStatusCancelled},
	POStatusPartiallyReceived: {POStatusPartiallyReceived, POStatusReceived, POStatusCancelled},
	POStatusReceived:          {},
	POStatusCancelled:         {},
}

// CanTransitionTo reports whether the transition table permits s → to.
func (s PurchaseOrderStatus) CanTransitionTo(to PurchaseOrderStatus) bool {
	for _, allowed := range purchaseOrderTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Editable reports whether order items may still be replaced.
func (s PurchaseOrderStatus) Editable() bool {
	return s == POStatusDraft || s == POStatusPending
}

// receivable reports whether stock may be received against the order.
func (s PurchaseOrderStatus) receivable() bool {
	return s == POStatusOrdered || s == POStatusPartiallyReceived
}

// PurchaseOrder is a supplier order header. Totals are derived from the
// items through SumOrderTotals on every item mutation.
type PurchaseOrder struct {
	ID                   int                 `json:"id"`
	PONumber             string              `json:"po_number"`
	SupplierID           int                 `json:"supplier_id"`
	WarehouseID          int                 `json:"warehouse_id"`
	Status               PurchaseOrderStatus `json:"status"`
	TotalAmount          decimal.Decimal     `json:"total_amount"`
	TaxAmount            decimal.Decimal     `json:"tax_amount"`
	ShippingAmount       decimal.Decimal     `json:"shipping_amount"`
	GrandTotal           decimal.Decimal     `json:"grand_total"`
	ExpectedDeliveryDate *string             `json:"expected_delivery_date,omitempty"` // YYYY-MM-DD
	ReceivedAt           *time.Time          `json:"received_at,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	Items                []PurchaseOrderItem `json:"items"`
}

// PurchaseOrderItem is one ordered line. ReceivedQuantity accumulates
// through partial receipts and never exceeds Quantity.
type PurchaseOrderItem struct {
	ID               int             `json:"id"`
	OrderID          int             `json:"order_id"`
	ProductID        int             `json:"product_id"`
	ProductSKU       string          `json:"product_sku"`
	ProductName      string          `json:"product_name"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
}

// PurchaseOrderItemInput is one submitted line. A non-nil ID updates the
// existing item; a nil ID inserts a new one. Items absent from a submission
// are deleted.
type PurchaseOrderItemInput struct {
	ID        *int
	ProductID int
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
}

// PurchaseOrderInput holds the fields for creating or editing an order.
type PurchaseOrderInput struct {
	SupplierID           int
	WarehouseID          int
	ShippingAmount       decimal.Decimal
	ExpectedDeliveryDate *string // YYYY-MM-DD
	Items                []PurchaseOrderItemInput
}

// PurchaseOrderService drives the supplier order lifecycle and the stock
// receipts it triggers.
type PurchaseOrderService interface {
	// CreatePO creates a DRAFT order with computed line and header totals.
	CreatePO(ctx context.Context, input PurchaseOrderInput) (*PurchaseOrder, error)

	// UpdatePO replaces the order's items (upsert present, delete absent)
	// and recomputes totals. Valid only while draft or pending.
	UpdatePO(ctx context.Context, poID int, input PurchaseOrderInput) (*PurchaseOrder, error)

	// SubmitPO transitions draft → pending.
	SubmitPO(ctx context.Context, poID int) (*PurchaseOrder, error)

	// MarkAsOrdered transitions draft/pending → ordered. No stock effect.
	MarkAsOrdered(ctx context.Context, poID int) (*PurchaseOrder, error)

	// MarkAsReceived receives every item's outstanding remainder in one
	// atomic operation: stock added, one `in` movement per item, status
	// received. Fails with AlreadyReceivedError when already received.
	// idempotencyKey, when non-empty, dedups the whole receipt.
	MarkAsReceived(ctx context.Context, poID, actorID int, idempotencyKey string) (*PurchaseOrder, error)

	// MarkItemAsReceived receives qty against a single item, guarding
	// against over-receipt, then recomputes the order status.
	MarkItemAsReceived(ctx context.Context, poID, itemID int, qty decimal.Decimal,
		actorID int, idempotencyKey string) (*PurchaseOrder, error)

	// CancelPO transitions ordered/partially_received → cancelled. Stock
	// already received stays; stock never received is simply not added.
	CancelPO(ctx context.Context, poID int) (*PurchaseOrder, error)

	// GetPO returns an order with its items.
	GetPO(ctx context.Context, poID int) (*PurchaseOrder, error)

	// GetPOs lists orders, optionally filtered by status ("" = all).
	GetPOs(ctx context.Context, status string) ([]PurchaseOrder, error)
}
