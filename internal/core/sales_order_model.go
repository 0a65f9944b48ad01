package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SalesOrderStatus is the closed state set of an outbound order.
//
//	pending → processing → shipped → delivered
//	pending/processing → cancelled
//	pending → shipped (shipping without explicit processing is allowed)
type SalesOrderStatus string

const (
	SOStatusPending    SalesOrderStatus = "pending"
	SOStatusProcessing SalesOrderStatus = "processing"
	SOStatusShipped    SalesOrderStatus = "shipped"
	SOStatusDelivered  SalesOrderStatus = "delivered"
	SOStatusCancelled  SalesOrderStatus = "cancelled"
)

var salesOrderTransitions = map[SalesOrderStatus][]SalesOrderStatus{
	SOStatusPending:    {SOStatusProcessing, SOStatusShipped, SOStatusCancelled},
	SOStatusProcessing: {SOStatusShipped, SOStatusCancelled},
	SOStatusShipped:    {SOStatusDelivered},
	SOStatusDelivered:  {},
	SOStatusCancelled:  {},
}

// CanTransitionTo reports whether the transition table permits s → to.
func (s SalesOrderStatus) CanTransitionTo(to SalesOrderStatus) bool {
	for _, allowed := range salesOrderTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// SalesOrder is an outbound order header. Stock is debited only by Process;
// cancelling restores it only when processing had happened.
type SalesOrder struct {
	ID                     int              `json:"id"`
	OrderNumber            string           `json:"order_number"`
	CustomerID             int              `json:"customer_id"`
	WarehouseID            int              `json:"warehouse_id"`
	Status                 SalesOrderStatus `json:"status"`
	Subtotal               decimal.Decimal  `json:"subtotal"`
	TaxAmount              decimal.Decimal  `json:"tax_amount"`
	ShippingAmount         decimal.Decimal  `json:"shipping_amount"`
	GrandTotal             decimal.Decimal  `json:"grand_total"`
	ShippingTrackingNumber *string          `json:"shipping_tracking_number,omitempty"`
	ShippedAt              *time.Time       `json:"shipped_at,omitempty"`
	DeliveredAt            *time.Time       `json:"delivered_at,omitempty"`
	CreatedAt              time.Time        `json:"created_at"`
	Items                  []SalesOrderItem `json:"items"`
}

// SalesOrderItem is one ordered line.
type SalesOrderItem struct {
	ID          int             `json:"id"`
	OrderID     int             `json:"order_id"`
	ProductID   int             `json:"product_id"`
	ProductSKU  string          `json:"product_sku"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// SalesOrderItemInput is one submitted line; semantics mirror
// PurchaseOrderItemInput.
type SalesOrderItemInput struct {
	ID        *int
	ProductID int
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
}

// SalesOrderInput holds the fields for creating or editing an order.
type SalesOrderInput struct {
	CustomerID     int
	WarehouseID    int
	ShippingAmount decimal.Decimal
	Items          []SalesOrderItemInput
}

// SalesOrderService drives the outbound order lifecycle and the stock
// debits and restores it triggers.
type SalesOrderService interface {
	// CreateOrder creates a pending order with computed totals. No stock
	// is touched at creation.
	CreateOrder(ctx context.Context, input SalesOrderInput) (*SalesOrder, error)

	// UpdateOrder replaces the order's items and recomputes totals. Valid
	// only while pending.
	UpdateOrder(ctx context.Context, orderID int, input SalesOrderInput) (*SalesOrder, error)

	// Process fulfils a pending order: the whole order is checked against
	// on-hand stock first (no partial fulfilment), then every item is
	// debited with an `out` movement. → processing.
	Process(ctx context.Context, orderID, actorID int, idempotencyKey string) (*SalesOrder, error)

	// MarkAsShipped stores the tracking number and transitions
	// pending/processing → shipped.
	MarkAsShipped(ctx context.Context, orderID int, trackingNumber string) (*SalesOrder, error)

	// MarkAsDelivered transitions shipped → delivered.
	MarkAsDelivered(ctx context.Context, orderID int) (*SalesOrder, error)

	// Cancel transitions pending/processing → cancelled. Stock is restored
	// only when the order was processing; a pending order never had stock
	// removed, so none is credited back.
	Cancel(ctx context.Context, orderID, actorID int) (*SalesOrder, error)

	// GetOrder returns an order with its items.
	GetOrder(ctx context.Context, orderID int) (*SalesOrder, error)

	// GetOrders lists orders, optionally filtered by status ("" = all).
	GetOrders(ctx context.Context, status string) ([]SalesOrder, error)
}
