package web

import (
	"encoding/json"
	"net/http"

	"warehouse-admin/internal/core"

	"github.com/shopspring/decimal"
)

// createReturn handles POST /api/purchase-orders/{id}/returns.
func (h *Handler) createReturn(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid purchase order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	var req struct {
		OrderItemID    int             `json:"order_item_id"`
		ProductID      int             `json:"product_id"`
		WarehouseID    int             `json:"warehouse_id"`
		Quantity       decimal.Decimal `json:"quantity"`
		Reason         string          `json:"reason"`
		Notes          string          `json:"notes"`
		ReturnedBy     int             `json:"returned_by"`
		IdempotencyKey string          `json:"idempotency_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
		return
	}

	ret, err := h.svc.Returns.CreateReturn(r.Context(), core.PurchaseReturnInput{
		OrderID:        orderID,
		OrderItemID:    req.OrderItemID,
		ProductID:      req.ProductID,
		WarehouseID:    req.WarehouseID,
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		Notes:          req.Notes,
		ReturnedBy:     req.ReturnedBy,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ret)
}

// listReturns handles GET /api/purchase-orders/{id}/returns.
func (h *Handler) listReturns(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid purchase order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	returns, err := h.svc.Returns.GetReturns(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"returns": returns})
}
