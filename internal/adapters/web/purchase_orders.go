package web

import (
	"encoding/json"
	"net/http"

	"warehouse-admin/internal/core"

	"github.com/shopspring/decimal"
)

type purchaseOrderItemRequest struct {
	ID        *int            `json:"id"`
	ProductID int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

type purchaseOrderRequest struct {
	SupplierID           int                        `json:"supplier_id"`
	WarehouseID          int                        `json:"warehouse_id"`
	ShippingAmount       decimal.Decimal            `json:"shipping_amount"`
	ExpectedDeliveryDate *string                    `json:"expected_delivery_date"`
	Items                []purchaseOrderItemRequest `json:"items"`
}

func (req purchaseOrderRequest) toInput() core.PurchaseOrderInput {
	items := make([]core.PurchaseOrderItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = core.PurchaseOrderItemInput{
			ID: it.ID, ProductID: it.ProductID,
			Quantity: it.Quantity, UnitPrice: it.UnitPrice, TaxRate: it.TaxRate,
		}
	}
	return core.PurchaseOrderInput{
		SupplierID:           req.SupplierID,
		WarehouseID:          req.WarehouseID,
		ShippingAmount:       req.ShippingAmount,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Items:                items,
	}
}

// createPurchaseOrder handles POST /api/purchase-orders.
func (h *Handler) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req purchaseOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
		return
	}
	po, err := h.svc.PurchaseOrders.CreatePO(r.Context(), req.toInput())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, po)
}

// updatePurchaseOrder handles PUT /api/purchase-orders/{id}.
func (h *Handler) updatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid purchase order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	var req purchaseOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
		return
	}
	po, err := h.svc.PurchaseOrders.UpdatePO(r.Context(), id, req.toInput())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// submitPurchaseOrder handles POST /api/purchase-orders/{id}/submit.
func (h *Handler) submitPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid purchase order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	po, err := h.svc.PurchaseOrders.SubmitPO(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// markPurchaseOrderOrdered handles POST /api/purchase-orders/{id}/order.
func (h *Handler) markPurchaseOrderOrdered(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid purchase order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	po, err := h.svc.PurchaseOrders.MarkAsOrdered(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// receivePurchaseOrder handles POST /api/purchase-orders/{id}/receive:
// full receipt of every outstanding item.
func (h *Handler) receivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid purchase order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	var req struct {
		ActorID        int    `json:"actor_id"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
		return
	}
	po, err := h.svc.PurchaseOrders.MarkAsReceived(r.Context(), id, req.ActorID, req.IdempotencyKey)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// receivePurchaseOrderItem handles POST /api/purchase-orders/{id}/items/{itemID}/receive:
// partial receipt of one item.
func (h *Handler) receivePurchaseOrderItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid purchase order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	itemID, ok := idParam(r, "itemID")
	if !ok {
		writeError(w, r, "invalid item id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Quantity       decimal.Decimal `json:"quantity"`
		ActorID        int             `json:"actor_id"`
		IdempotencyKey string          `json:"idempotency_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
		return
	}
	po, err := h.svc.PurchaseOrders.MarkItemAsReceived(r.Context(), id, itemID,
		req.Quantity, req.ActorID, req.IdempotencyKey)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// cancelPurchaseOrder handles POST /api/purchase-orders/{id}/cancel.
func (h *Handler) cancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid purchase order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	po, err := h.svc.PurchaseOrders.CancelPO(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// getPurchaseOrder handles GET /api/purchase-orders/{id}.
func (h *Handler) getPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid purchase order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	po, err := h.svc.PurchaseOrders.GetPO(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// listPurchaseOrders handles GET /api/purchase-orders?status=.
func (h *Handler) listPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	pos, err := h.svc.PurchaseOrders.GetPOs(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchase_orders": pos})
}
