package core_test

import (
	"errors"
	"testing"

	"warehouse-admin/internal/core"

	"github.com/shopspring/decimal"
)

func newSOInput(items ...core.SalesOrderItemInput) core.SalesOrderInput {
	return core.SalesOrderInput{
		CustomerID:     1,
		WarehouseID:    1,
		ShippingAmount: decimal.NewFromInt(20),
		Items:          items,
	}
}

func soItem(productID int, qty, price, taxRate int64) core.SalesOrderItemInput {
	return core.SalesOrderItemInput{
		ProductID: productID,
		Quantity:  decimal.NewFromInt(qty),
		UnitPrice: decimal.NewFromInt(price),
		TaxRate:   decimal.NewFromInt(taxRate),
	}
}

func TestSalesOrder_CreateComputesTotals(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewSalesOrderService(pool, ledger)

	// 10 × 5.00 at 10% tax + 20 shipping → 50 + 5 + 20 = 75
	order, err := svc.CreateOrder(ctx, newSOInput(soItem(1, 10, 5, 10)))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if order.Status != core.SOStatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
	if order.OrderNumber != "SO-000001" {
		t.Errorf("order_number = %q, want SO-000001", order.OrderNumber)
	}
	if !order.Subtotal.Equal(decimal.NewFromInt(50)) {
		t.Errorf("subtotal = %s, want 50", order.Subtotal)
	}
	if !order.GrandTotal.Equal(decimal.NewFromInt(75)) {
		t.Errorf("grand total = %s, want 75", order.GrandTotal)
	}

	// Creation must not touch stock.
	if _, err := ledger.GetItem(ctx, 1, 1); err == nil {
		t.Error("no inventory row should exist after order creation")
	}
}

func TestSalesOrder_ProcessDebitsStock(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewSalesOrderService(pool, ledger)

	mustAdjust(t, ctx, ledger, 1, 1, 10, "")

	order, err := svc.CreateOrder(ctx, newSOInput(soItem(1, 4, 5, 0)))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	order, err = svc.Process(ctx, order.ID, 1, "proc-1")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if order.Status != core.SOStatusProcessing {
		t.Errorf("status = %s, want processing", order.Status)
	}

	item, err := ledger.GetItem(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(6)) {
		t.Errorf("stock = %s, want 6", item.Quantity)
	}

	// One `out` movement for the fulfilled line.
	movements, err := ledger.GetMovements(ctx, 1)
	if err != nil {
		t.Fatalf("GetMovements failed: %v", err)
	}
	outCount := 0
	for _, m := range movements {
		if m.Type == core.MovementOut {
			outCount++
		}
	}
	if outCount != 1 {
		t.Errorf("out movement count = %d, want 1", outCount)
	}

	// Processing twice is an invalid transition.
	_, err = svc.Process(ctx, order.ID, 1, "proc-2")
	var trErr *core.InvalidTransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestSalesOrder_ProcessInsufficientLeavesOrderPending(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewSalesOrderService(pool, ledger)

	mustAdjust(t, ctx, ledger, 1, 1, 3, "")

	order, err := svc.CreateOrder(ctx, newSOInput(soItem(1, 4, 5, 0)))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	_, err = svc.Process(ctx, order.ID, 1, "")
	var stockErr *core.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if !stockErr.Available.Equal(decimal.NewFromInt(3)) || !stockErr.Requested.Equal(decimal.NewFromInt(4)) {
		t.Errorf("unexpected error detail: %+v", stockErr)
	}

	// Whole-order check: order stays pending, stock untouched, no movement.
	order, err = svc.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if order.Status != core.SOStatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
	item, err := ledger.GetItem(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(3)) {
		t.Errorf("stock = %s, want 3", item.Quantity)
	}
	movements, err := ledger.GetMovements(ctx, 1)
	if err != nil {
		t.Fatalf("GetMovements failed: %v", err)
	}
	for _, m := range movements {
		if m.Type == core.MovementOut {
			t.Error("no out movement should exist after a failed process")
		}
	}
}

func TestSalesOrder_MultiItemAllOrNothing(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewSalesOrderService(pool, ledger)

	mustAdjust(t, ctx, ledger, 1, 1, 100, "")
	mustAdjust(t, ctx, ledger, 1, 2, 1, "")

	// First line is coverable, second is not: nothing may be debited.
	order, err := svc.CreateOrder(ctx, newSOInput(soItem(1, 10, 5, 0), soItem(2, 5, 12, 0)))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	_, err = svc.Process(ctx, order.ID, 1, "")
	var stockErr *core.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductID != 2 {
		t.Errorf("short product = %d, want 2", stockErr.ProductID)
	}

	item, err := ledger.GetItem(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(100)) {
		t.Errorf("product 1 stock = %s, want 100 (untouched)", item.Quantity)
	}
}

func TestSalesOrder_ShipAndDeliver(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewSalesOrderService(pool, ledger)

	mustAdjust(t, ctx, ledger, 1, 1, 10, "")
	order, err := svc.CreateOrder(ctx, newSOInput(soItem(1, 2, 5, 0)))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := svc.Process(ctx, order.ID, 1, ""); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// Tracking number is mandatory.
	_, err = svc.MarkAsShipped(ctx, order.ID, "")
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	order, err = svc.MarkAsShipped(ctx, order.ID, "TRK-12345")
	if err != nil {
		t.Fatalf("MarkAsShipped failed: %v", err)
	}
	if order.Status != core.SOStatusShipped {
		t.Errorf("status = %s, want shipped", order.Status)
	}
	if order.ShippingTrackingNumber == nil || *order.ShippingTrackingNumber != "TRK-12345" {
		t.Errorf("tracking = %v, want TRK-12345", order.ShippingTrackingNumber)
	}
	if order.ShippedAt == nil {
		t.Error("shipped_at should be set")
	}

	order, err = svc.MarkAsDelivered(ctx, order.ID)
	if err != nil {
		t.Fatalf("MarkAsDelivered failed: %v", err)
	}
	if order.Status != core.SOStatusDelivered || order.DeliveredAt == nil {
		t.Errorf("unexpected delivered order: status=%s delivered_at=%v", order.Status, order.DeliveredAt)
	}

	// Delivered orders cannot be cancelled.
	_, err = svc.Cancel(ctx, order.ID, 1)
	var trErr *core.InvalidTransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestSalesOrder_CancelPendingDoesNotRestock(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewSalesOrderService(pool, ledger)

	mustAdjust(t, ctx, ledger, 1, 1, 10, "")
	order, err := svc.CreateOrder(ctx, newSOInput(soItem(1, 4, 5, 0)))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// Pending order never had stock removed, so cancel credits nothing.
	order, err = svc.Cancel(ctx, order.ID, 1)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if order.Status != core.SOStatusCancelled {
		t.Errorf("status = %s, want cancelled", order.Status)
	}

	item, err := ledger.GetItem(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("stock = %s, want 10 (no restock for pending cancel)", item.Quantity)
	}
}

func TestSalesOrder_CancelProcessingRestocks(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewSalesOrderService(pool, ledger)

	mustAdjust(t, ctx, ledger, 1, 1, 10, "")
	order, err := svc.CreateOrder(ctx, newSOInput(soItem(1, 4, 5, 0)))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := svc.Process(ctx, order.ID, 1, ""); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	order, err = svc.Cancel(ctx, order.ID, 1)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if order.Status != core.SOStatusCancelled {
		t.Errorf("status = %s, want cancelled", order.Status)
	}

	// Debited stock comes back with a sale_return movement.
	item, err := ledger.GetItem(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("stock = %s, want 10 (restocked)", item.Quantity)
	}

	movements, err := ledger.GetMovements(ctx, 1)
	if err != nil {
		t.Fatalf("GetMovements failed: %v", err)
	}
	returnCount := 0
	for _, m := range movements {
		if m.Type == core.MovementSaleReturn {
			returnCount++
		}
	}
	if returnCount != 1 {
		t.Errorf("sale_return movement count = %d, want 1", returnCount)
	}
}

func TestSalesOrder_UpdatePendingOnly(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewSalesOrderService(pool, ledger)

	mustAdjust(t, ctx, ledger, 1, 1, 10, "")
	order, err := svc.CreateOrder(ctx, newSOInput(soItem(1, 2, 5, 0)))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	updated, err := svc.UpdateOrder(ctx, order.ID, newSOInput(soItem(1, 3, 5, 0)))
	if err != nil {
		t.Fatalf("UpdateOrder failed: %v", err)
	}
	// 3×5 + 20 shipping = 35
	if !updated.GrandTotal.Equal(decimal.NewFromInt(35)) {
		t.Errorf("grand total = %s, want 35", updated.GrandTotal)
	}

	if _, err := svc.Process(ctx, order.ID, 1, ""); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	_, err = svc.UpdateOrder(ctx, order.ID, newSOInput(soItem(1, 1, 5, 0)))
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
