package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDeriveStockStatus(t *testing.T) {
	reorder := decimal.NewFromInt(10)

	cases := []struct {
		name     string
		quantity decimal.Decimal
		want     StockStatus
	}{
		{"zero is out of stock", decimal.Zero, StockOutOfStock},
		{"negative is out of stock", decimal.NewFromInt(-1), StockOutOfStock},
		{"at reorder point is low", decimal.NewFromInt(10), StockLowStock},
		{"below reorder point is low", decimal.NewFromInt(3), StockLowStock},
		{"above reorder point is in stock", decimal.NewFromInt(11), StockInStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStockStatus(tc.quantity, reorder); got != tc.want {
				t.Errorf("DeriveStockStatus(%s, %s) = %s, want %s", tc.quantity, reorder, got, tc.want)
			}
		})
	}
}

func TestPurchaseOrderTransitions(t *testing.T) {
	allowed := []struct{ from, to PurchaseOrderStatus }{
		{POStatusDraft, POStatusPending},
		{POStatusDraft, POStatusOrdered},
		{POStatusPending, POStatusOrdered},
		{POStatusOrdered, POStatusPartiallyReceived},
		{POStatusOrdered, POStatusReceived},
		{POStatusOrdered, POStatusCancelled},
		{POStatusPartiallyReceived, POStatusReceived},
		{POStatusPartiallyReceived, POStatusCancelled},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransitionTo(tr.to) {
			t.Errorf("%s → %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to PurchaseOrderStatus }{
		{POStatusReceived, POStatusCancelled},
		{POStatusReceived, POStatusOrdered},
		{POStatusCancelled, POStatusOrdered},
		{POStatusDraft, POStatusReceived},
		{POStatusPending, POStatusCancelled},
		{POStatusOrdered, POStatusDraft},
	}
	for _, tr := range denied {
		if tr.from.CanTransitionTo(tr.to) {
			t.Errorf("%s → %s should be rejected", tr.from, tr.to)
		}
	}
}

func TestSalesOrderTransitions(t *testing.T) {
	allowed := []struct{ from, to SalesOrderStatus }{
		{SOStatusPending, SOStatusProcessing},
		{SOStatusPending, SOStatusShipped},
		{SOStatusPending, SOStatusCancelled},
		{SOStatusProcessing, SOStatusShipped},
		{SOStatusProcessing, SOStatusCancelled},
		{SOStatusShipped, SOStatusDelivered},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransitionTo(tr.to) {
			t.Errorf("%s → %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to SalesOrderStatus }{
		{SOStatusShipped, SOStatusCancelled},
		{SOStatusDelivered, SOStatusCancelled},
		{SOStatusCancelled, SOStatusPending},
		{SOStatusPending, SOStatusDelivered},
		{SOStatusDelivered, SOStatusShipped},
	}
	for _, tr := range denied {
		if tr.from.CanTransitionTo(tr.to) {
			t.Errorf("%s → %s should be rejected", tr.from, tr.to)
		}
	}
}

func TestReceiptStatus(t *testing.T) {
	item := func(ordered, received int64) PurchaseOrderItem {
		return PurchaseOrderItem{
			Quantity:         decimal.NewFromInt(ordered),
			ReceivedQuantity: decimal.NewFromInt(received),
		}
	}

	cases := []struct {
		name    string
		items   []PurchaseOrderItem
		current PurchaseOrderStatus
		want    PurchaseOrderStatus
	}{
		{"all complete", []PurchaseOrderItem{item(10, 10), item(5, 5)}, POStatusOrdered, POStatusReceived},
		{"one partial", []PurchaseOrderItem{item(10, 3), item(5, 0)}, POStatusOrdered, POStatusPartiallyReceived},
		{"mixed complete and partial", []PurchaseOrderItem{item(10, 10), item(5, 2)}, POStatusPartiallyReceived, POStatusPartiallyReceived},
		{"nothing received keeps current", []PurchaseOrderItem{item(10, 0)}, POStatusOrdered, POStatusOrdered},
		{"full item among untouched keeps current", []PurchaseOrderItem{item(10, 10), item(5, 0)}, POStatusOrdered, POStatusOrdered},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ReceiptStatus(tc.items, tc.current); got != tc.want {
				t.Errorf("ReceiptStatus = %s, want %s", got, tc.want)
			}
		})
	}
}
