package core_test

import (
	"errors"
	"testing"

	"warehouse-admin/internal/core"

	"github.com/shopspring/decimal"
)

func newPOInput(items ...core.PurchaseOrderItemInput) core.PurchaseOrderInput {
	return core.PurchaseOrderInput{
		SupplierID:     1,
		WarehouseID:    1,
		ShippingAmount: decimal.NewFromInt(20),
		Items:          items,
	}
}

func poItem(productID int, qty, price, taxRate int64) core.PurchaseOrderItemInput {
	return core.PurchaseOrderItemInput{
		ProductID: productID,
		Quantity:  decimal.NewFromInt(qty),
		UnitPrice: decimal.NewFromInt(price),
		TaxRate:   decimal.NewFromInt(taxRate),
	}
}

func TestPurchaseOrder_CreateComputesTotals(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewPurchaseOrderService(pool, ledger)

	// 10 × 5.00 at 10% tax + 20 shipping → 50 + 5 + 20 = 75
	po, err := svc.CreatePO(ctx, newPOInput(poItem(1, 10, 5, 10)))
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}

	if po.Status != core.POStatusDraft {
		t.Errorf("status = %s, want draft", po.Status)
	}
	if po.PONumber != "PO-000001" {
		t.Errorf("po_number = %q, want PO-000001", po.PONumber)
	}
	if !po.TotalAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("total = %s, want 50", po.TotalAmount)
	}
	if !po.TaxAmount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("tax = %s, want 5", po.TaxAmount)
	}
	if !po.GrandTotal.Equal(decimal.NewFromInt(75)) {
		t.Errorf("grand total = %s, want 75", po.GrandTotal)
	}
	if len(po.Items) != 1 || !po.Items[0].ReceivedQuantity.IsZero() {
		t.Errorf("unexpected items: %+v", po.Items)
	}
}

func TestPurchaseOrder_UpdateReplacesItems(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewPurchaseOrderService(pool, ledger)

	po, err := svc.CreatePO(ctx, newPOInput(poItem(1, 10, 5, 0), poItem(2, 2, 12, 0)))
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}

	// Keep the first item with a new quantity, drop the second, add a third.
	keptID := po.Items[0].ID
	updated, err := svc.UpdatePO(ctx, po.ID, newPOInput(
		core.PurchaseOrderItemInput{
			ID: &keptID, ProductID: 1,
			Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(5),
		},
		poItem(2, 1, 100, 0),
	))
	if err != nil {
		t.Fatalf("UpdatePO failed: %v", err)
	}

	if len(updated.Items) != 2 {
		t.Fatalf("item count = %d, want 2", len(updated.Items))
	}
	if updated.Items[0].ID != keptID || !updated.Items[0].Quantity.Equal(decimal.NewFromInt(4)) {
		t.Errorf("kept item not updated: %+v", updated.Items[0])
	}
	// 4×5 + 1×100 + 20 shipping = 140
	if !updated.GrandTotal.Equal(decimal.NewFromInt(140)) {
		t.Errorf("grand total = %s, want 140", updated.GrandTotal)
	}
}

func TestPurchaseOrder_UpdateRejectedAfterOrdered(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewPurchaseOrderService(pool, ledger)

	po, err := svc.CreatePO(ctx, newPOInput(poItem(1, 10, 5, 0)))
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}
	if _, err := svc.MarkAsOrdered(ctx, po.ID); err != nil {
		t.Fatalf("MarkAsOrdered failed: %v", err)
	}

	_, err = svc.UpdatePO(ctx, po.ID, newPOInput(poItem(1, 1, 1, 0)))
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPurchaseOrder_FullReceipt(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewPurchaseOrderService(pool, ledger)

	po, err := svc.CreatePO(ctx, newPOInput(poItem(1, 10, 5, 0), poItem(2, 3, 12, 0)))
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}
	if _, err := svc.MarkAsOrdered(ctx, po.ID); err != nil {
		t.Fatalf("MarkAsOrdered failed: %v", err)
	}

	po, err = svc.MarkAsReceived(ctx, po.ID, 1, "rcpt-001")
	if err != nil {
		t.Fatalf("MarkAsReceived failed: %v", err)
	}
	if po.Status != core.POStatusReceived {
		t.Errorf("status = %s, want received", po.Status)
	}
	if po.ReceivedAt == nil {
		t.Error("received_at should be set")
	}
	for _, it := range po.Items {
		if !it.ReceivedQuantity.Equal(it.Quantity) {
			t.Errorf("item %d received %s of %s", it.ID, it.ReceivedQuantity, it.Quantity)
		}
	}

	// Stock landed in the order's warehouse.
	item, err := ledger.GetItem(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("warehouse stock = %s, want 10", item.Quantity)
	}
	if item.UnitPrice.IsZero() {
		t.Error("unit price should be set from the PO item")
	}

	// Receiving again is rejected outright.
	_, err = svc.MarkAsReceived(ctx, po.ID, 1, "rcpt-002")
	var recErr *core.AlreadyReceivedError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected AlreadyReceivedError, got %v", err)
	}
}

func TestPurchaseOrder_PartialReceipt(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewPurchaseOrderService(pool, ledger)

	po, err := svc.CreatePO(ctx, newPOInput(poItem(1, 10, 5, 0)))
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}
	if _, err := svc.MarkAsOrdered(ctx, po.ID); err != nil {
		t.Fatalf("MarkAsOrdered failed: %v", err)
	}
	itemID := po.Items[0].ID

	po, err = svc.MarkItemAsReceived(ctx, po.ID, itemID, decimal.NewFromInt(3), 1, "part-1")
	if err != nil {
		t.Fatalf("first MarkItemAsReceived failed: %v", err)
	}
	if po.Status != core.POStatusPartiallyReceived {
		t.Errorf("status = %s, want partially_received", po.Status)
	}
	if !po.Items[0].ReceivedQuantity.Equal(decimal.NewFromInt(3)) {
		t.Errorf("received = %s, want 3", po.Items[0].ReceivedQuantity)
	}

	po, err = svc.MarkItemAsReceived(ctx, po.ID, itemID, decimal.NewFromInt(7), 1, "part-2")
	if err != nil {
		t.Fatalf("second MarkItemAsReceived failed: %v", err)
	}
	if po.Status != core.POStatusReceived {
		t.Errorf("status = %s, want received", po.Status)
	}

	// Exactly two `in` movements, one per receipt.
	movements, err := ledger.GetMovements(ctx, 1)
	if err != nil {
		t.Fatalf("GetMovements failed: %v", err)
	}
	inCount := 0
	for _, m := range movements {
		if m.Type == core.MovementIn {
			inCount++
		}
	}
	if inCount != 2 {
		t.Errorf("in movement count = %d, want 2", inCount)
	}

	item, err := ledger.GetItem(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("stock = %s, want 10", item.Quantity)
	}
}

func TestPurchaseOrder_OverReceipt(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewPurchaseOrderService(pool, ledger)

	po, err := svc.CreatePO(ctx, newPOInput(poItem(1, 10, 5, 0)))
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}
	if _, err := svc.MarkAsOrdered(ctx, po.ID); err != nil {
		t.Fatalf("MarkAsOrdered failed: %v", err)
	}
	itemID := po.Items[0].ID

	if _, err := svc.MarkItemAsReceived(ctx, po.ID, itemID, decimal.NewFromInt(8), 1, ""); err != nil {
		t.Fatalf("MarkItemAsReceived failed: %v", err)
	}

	_, err = svc.MarkItemAsReceived(ctx, po.ID, itemID, decimal.NewFromInt(3), 1, "")
	var overErr *core.OverReceiptError
	if !errors.As(err, &overErr) {
		t.Fatalf("expected OverReceiptError, got %v", err)
	}

	// The rejected receipt must not have added stock.
	item, err := ledger.GetItem(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(8)) {
		t.Errorf("stock = %s, want 8", item.Quantity)
	}
}

func TestPurchaseOrder_CancelKeepsReceivedStock(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewPurchaseOrderService(pool, ledger)

	po, err := svc.CreatePO(ctx, newPOInput(poItem(1, 10, 5, 0)))
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}
	if _, err := svc.MarkAsOrdered(ctx, po.ID); err != nil {
		t.Fatalf("MarkAsOrdered failed: %v", err)
	}
	if _, err := svc.MarkItemAsReceived(ctx, po.ID, po.Items[0].ID, decimal.NewFromInt(4), 1, ""); err != nil {
		t.Fatalf("MarkItemAsReceived failed: %v", err)
	}

	po, err = svc.CancelPO(ctx, po.ID)
	if err != nil {
		t.Fatalf("CancelPO failed: %v", err)
	}
	if po.Status != core.POStatusCancelled {
		t.Errorf("status = %s, want cancelled", po.Status)
	}

	// Stock already received stays in the warehouse.
	item, err := ledger.GetItem(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(4)) {
		t.Errorf("stock = %s, want 4", item.Quantity)
	}

	// A cancelled order cannot be received.
	_, err = svc.MarkAsReceived(ctx, po.ID, 1, "")
	var trErr *core.InvalidTransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestPurchaseOrder_SubmitLifecycle(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewPurchaseOrderService(pool, ledger)

	po, err := svc.CreatePO(ctx, newPOInput(poItem(1, 1, 1, 0)))
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}

	po, err = svc.SubmitPO(ctx, po.ID)
	if err != nil {
		t.Fatalf("SubmitPO failed: %v", err)
	}
	if po.Status != core.POStatusPending {
		t.Errorf("status = %s, want pending", po.Status)
	}

	// Submitting twice is an invalid transition.
	_, err = svc.SubmitPO(ctx, po.ID)
	var trErr *core.InvalidTransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	if _, err := svc.MarkAsOrdered(ctx, po.ID); err != nil {
		t.Fatalf("MarkAsOrdered failed: %v", err)
	}

	// Listing by status sees the ordered PO.
	pos, err := svc.GetPOs(ctx, "ordered")
	if err != nil {
		t.Fatalf("GetPOs failed: %v", err)
	}
	if len(pos) != 1 || pos[0].ID != po.ID {
		t.Errorf("unexpected ordered list: %+v", pos)
	}
}

func TestPurchaseOrder_PartialReceiptIdempotencyKeyReplay(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewPurchaseOrderService(pool, ledger)

	po, err := svc.CreatePO(ctx, newPOInput(poItem(1, 10, 5, 0)))
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}
	if _, err := svc.MarkAsOrdered(ctx, po.ID); err != nil {
		t.Fatalf("MarkAsOrdered failed: %v", err)
	}
	itemID := po.Items[0].ID

	if _, err := svc.MarkItemAsReceived(ctx, po.ID, itemID, decimal.NewFromInt(3), 1, "rcpt-abc"); err != nil {
		t.Fatalf("MarkItemAsReceived failed: %v", err)
	}

	// A retried delivery webhook replays the same key; the ledger rejects
	// it and the whole receipt rolls back.
	_, err = svc.MarkItemAsReceived(ctx, po.ID, itemID, decimal.NewFromInt(3), 1, "rcpt-abc")
	var dupErr *core.DuplicateOperationError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateOperationError, got %v", err)
	}

	po, err = svc.GetPO(ctx, po.ID)
	if err != nil {
		t.Fatalf("GetPO failed: %v", err)
	}
	if !po.Items[0].ReceivedQuantity.Equal(decimal.NewFromInt(3)) {
		t.Errorf("received = %s, want 3 (replay must not double-apply)", po.Items[0].ReceivedQuantity)
	}
	item, err := ledger.GetItem(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(3)) {
		t.Errorf("stock = %s, want 3 (only the first receipt)", item.Quantity)
	}
}
