package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item. Quantity is the denormalized sum of the
// product's inventory_items rows across all warehouses; it is recomputed by
// the StockLedger inside every stock-affecting transaction and is never
// edited directly.
type Product struct {
	ID           int             `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	ReorderPoint decimal.Decimal `json:"reorder_point"`
	Quantity     decimal.Decimal `json:"quantity"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Warehouse is a physical storage location. Capacity is advisory: the sum of
// a warehouse's inventory quantities is checked against it on transfer but
// never hard-enforced.
type Warehouse struct {
	ID        int             `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Capacity  decimal.Decimal `json:"capacity"`
	OwnerID   *int            `json:"owner_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// StockStatus is the derived state of an inventory item.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockLowStock   StockStatus = "low_stock"
	StockOutOfStock StockStatus = "out_of_stock"
)

// DeriveStockStatus computes the status for a quantity against the product's
// reorder point. The derivation is pure: same inputs, same status.
func DeriveStockStatus(quantity, reorderPoint decimal.Decimal) StockStatus {
	switch {
	case quantity.LessThanOrEqual(decimal.Zero):
		return StockOutOfStock
	case quantity.LessThanOrEqual(reorderPoint):
		return StockLowStock
	default:
		return StockInStock
	}
}

// InventoryItem is the per-(warehouse, product) stock record. Rows are
// created lazily on the first receipt for a pair and deleted only by a
// warehouse transfer after their balance has been merged into the
// destination.
type InventoryItem struct {
	WarehouseID     int             `json:"warehouse_id"`
	ProductID       int             `json:"product_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Status          StockStatus     `json:"status"`
	LastRestockedAt *time.Time      `json:"last_restocked_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// MovementType classifies one ledger entry.
type MovementType string

const (
	MovementIn             MovementType = "in"
	MovementOut            MovementType = "out"
	MovementMove           MovementType = "move"
	MovementAdjustment     MovementType = "adjustment"
	MovementPurchaseReturn MovementType = "purchase_return"
	MovementSaleReturn     MovementType = "sale_return"
)

// ReferenceType links a movement to the operation that caused it.
type ReferenceType string

const (
	RefPurchaseOrder  ReferenceType = "purchase_order"
	RefSalesOrder     ReferenceType = "sales_order"
	RefPurchaseReturn ReferenceType = "purchase_return"
	RefAdjustment     ReferenceType = "adjustment"
	RefTransfer       ReferenceType = "transfer"
)

// InventoryMovement is one immutable entry of the append-only stock ledger.
// Movements are never updated or deleted; item quantities must stay
// reconstructable by replaying them.
type InventoryMovement struct {
	ID                     int             `json:"id"`
	ProductID              int             `json:"product_id"`
	Type                   MovementType    `json:"type"`
	Quantity               decimal.Decimal `json:"quantity"`
	SourceWarehouseID      *int            `json:"source_warehouse_id,omitempty"`
	DestinationWarehouseID *int            `json:"destination_warehouse_id,omitempty"`
	ReferenceType          ReferenceType   `json:"reference_type"`
	ReferenceID            *int            `json:"reference_id,omitempty"`
	IdempotencyKey         *string         `json:"idempotency_key,omitempty"`
	Notes                  string          `json:"notes"`
	CreatedBy              int             `json:"created_by"`
	CreatedAt              time.Time       `json:"created_at"`
}

// StockLevel is a read view of an inventory_item joined with product and
// warehouse info.
type StockLevel struct {
	ProductID     int             `json:"product_id"`
	ProductSKU    string          `json:"product_sku"`
	ProductName   string          `json:"product_name"`
	WarehouseID   int             `json:"warehouse_id"`
	WarehouseCode string          `json:"warehouse_code"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Status        StockStatus     `json:"status"`
}
