package core_test

import (
	"errors"
	"strings"
	"testing"

	"warehouse-admin/internal/core"

	"github.com/shopspring/decimal"
)

func TestTransfer_MovesAllStockAndDeletesSourceRows(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewTransferService(pool, ledger)

	mustAdjust(t, ctx, ledger, 1, 1, 30, "")
	mustAdjust(t, ctx, ledger, 1, 2, 5, "")
	// Destination already holds some of product 1: quantities merge.
	mustAdjust(t, ctx, ledger, 2, 1, 10, "")

	warning, err := svc.MoveAllInventory(ctx, 1, 2, 1)
	if err != nil {
		t.Fatalf("MoveAllInventory failed: %v", err)
	}
	if warning != "" {
		t.Logf("capacity warning: %s", warning)
	}

	// Source rows are gone, not zeroed.
	if _, err := ledger.GetItem(ctx, 1, 1); err == nil {
		t.Error("source row for product 1 should be deleted")
	}
	if _, err := ledger.GetItem(ctx, 1, 2); err == nil {
		t.Error("source row for product 2 should be deleted")
	}

	dest1, err := ledger.GetItem(ctx, 2, 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !dest1.Quantity.Equal(decimal.NewFromInt(40)) {
		t.Errorf("destination product 1 = %s, want 40", dest1.Quantity)
	}

	dest2, err := ledger.GetItem(ctx, 2, 2)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !dest2.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Errorf("destination product 2 = %s, want 5", dest2.Quantity)
	}

	// Product aggregates survive the move unchanged.
	if qty := productQuantity(t, ctx, pool, 1); !qty.Equal(decimal.NewFromInt(40)) {
		t.Errorf("product 1 aggregate = %s, want 40", qty)
	}

	// One move movement per transferred item, with both warehouse ids.
	movements, err := ledger.GetMovements(ctx, 1)
	if err != nil {
		t.Fatalf("GetMovements failed: %v", err)
	}
	moveCount := 0
	for _, m := range movements {
		if m.Type == core.MovementMove {
			moveCount++
			if m.SourceWarehouseID == nil || *m.SourceWarehouseID != 1 ||
				m.DestinationWarehouseID == nil || *m.DestinationWarehouseID != 2 {
				t.Errorf("move movement warehouses: %v → %v", m.SourceWarehouseID, m.DestinationWarehouseID)
			}
		}
	}
	if moveCount != 1 {
		t.Errorf("move movement count for product 1 = %d, want 1", moveCount)
	}
}

func TestTransfer_BlockedByOpenOrders(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	transferSvc := core.NewTransferService(pool, ledger)
	poSvc := core.NewPurchaseOrderService(pool, ledger)
	soSvc := core.NewSalesOrderService(pool, ledger)

	mustAdjust(t, ctx, ledger, 1, 1, 10, "")

	po, err := poSvc.CreatePO(ctx, newPOInput(poItem(1, 5, 5, 0)))
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}
	if _, err := poSvc.SubmitPO(ctx, po.ID); err != nil {
		t.Fatalf("SubmitPO failed: %v", err)
	}
	if _, err := soSvc.CreateOrder(ctx, newSOInput(soItem(1, 1, 5, 0))); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	_, err = transferSvc.MoveAllInventory(ctx, 1, 2, 1)
	var blockedErr *core.BlockedByPendingOrdersError
	if !errors.As(err, &blockedErr) {
		t.Fatalf("expected BlockedByPendingOrdersError, got %v", err)
	}
	if blockedErr.PurchaseOrders != 1 || blockedErr.SalesOrders != 1 {
		t.Errorf("blocking counts = %d POs / %d SOs, want 1 / 1", blockedErr.PurchaseOrders, blockedErr.SalesOrders)
	}

	// Close both orders out; terminal statuses do not block.
	if _, err := poSvc.MarkAsOrdered(ctx, po.ID); err != nil {
		t.Fatalf("MarkAsOrdered failed: %v", err)
	}
	if _, err := poSvc.MarkAsReceived(ctx, po.ID, 1, ""); err != nil {
		t.Fatalf("MarkAsReceived failed: %v", err)
	}
	orders, err := soSvc.GetOrders(ctx, "pending")
	if err != nil {
		t.Fatalf("GetOrders failed: %v", err)
	}
	for _, o := range orders {
		if _, err := soSvc.Cancel(ctx, o.ID, 1); err != nil {
			t.Fatalf("Cancel failed: %v", err)
		}
	}

	if _, err := transferSvc.MoveAllInventory(ctx, 1, 2, 1); err != nil {
		t.Fatalf("MoveAllInventory after clearing orders failed: %v", err)
	}
}

func TestTransfer_CapacityWarning(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewTransferService(pool, ledger)

	// Warehouse 2 has capacity 50; moving 80 units overfills it.
	mustAdjust(t, ctx, ledger, 1, 1, 80, "")

	warning, err := svc.MoveAllInventory(ctx, 1, 2, 1)
	if err != nil {
		t.Fatalf("MoveAllInventory failed: %v", err)
	}
	if warning == "" {
		t.Fatal("expected a capacity warning")
	}
	if !strings.Contains(warning, "capacity") {
		t.Errorf("warning %q should mention capacity", warning)
	}

	// The transfer still committed.
	item, err := ledger.GetItem(ctx, 2, 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Quantity.Equal(decimal.NewFromInt(80)) {
		t.Errorf("destination stock = %s, want 80", item.Quantity)
	}
}

func TestTransfer_SameWarehouseRejected(t *testing.T) {
	pool, ctx := setupTestDB(t)
	defer pool.Close()
	ledger := core.NewStockLedger(pool)
	svc := core.NewTransferService(pool, ledger)

	_, err := svc.MoveAllInventory(ctx, 1, 1, 1)
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
