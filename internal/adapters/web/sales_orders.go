package web

import (
	"encoding/json"
	"net/http"

	"warehouse-admin/internal/core"

	"github.com/shopspring/decimal"
)

type salesOrderItemRequest struct {
	ID        *int            `json:"id"`
	ProductID int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

type salesOrderRequest struct {
	CustomerID     int                     `json:"customer_id"`
	WarehouseID    int                     `json:"warehouse_id"`
	ShippingAmount decimal.Decimal         `json:"shipping_amount"`
	Items          []salesOrderItemRequest `json:"items"`
}

func (req salesOrderRequest) toInput() core.SalesOrderInput {
	items := make([]core.SalesOrderItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = core.SalesOrderItemInput{
			ID: it.ID, ProductID: it.ProductID,
			Quantity: it.Quantity, UnitPrice: it.UnitPrice, TaxRate: it.TaxRate,
		}
	}
	return core.SalesOrderInput{
		CustomerID:     req.CustomerID,
		WarehouseID:    req.WarehouseID,
		ShippingAmount: req.ShippingAmount,
		Items:          items,
	}
}

// createSalesOrder handles POST /api/sales-orders.
func (h *Handler) createSalesOrder(w http.ResponseWriter, r *http.Request) {
	var req salesOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
		return
	}
	order, err := h.svc.SalesOrders.CreateOrder(r.Context(), req.toInput())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// updateSalesOrder handles PUT /api/sales-orders/{id}.
func (h *Handler) updateSalesOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid sales order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	var req salesOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
		return
	}
	order, err := h.svc.SalesOrders.UpdateOrder(r.Context(), id, req.toInput())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// processSalesOrder handles POST /api/sales-orders/{id}/process.
func (h *Handler) processSalesOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid sales order id", "INVALID_ID", http.StatusBadRequest)
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
	order, err := h.svc.SalesOrders.Process(r.Context(), id, req.ActorID, req.IdempotencyKey)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// shipSalesOrder handles POST /api/sales-orders/{id}/ship.
func (h *Handler) shipSalesOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid sales order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	var req struct {
		TrackingNumber string `json:"tracking_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
		return
	}
	order, err := h.svc.SalesOrders.MarkAsShipped(r.Context(), id, req.TrackingNumber)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// deliverSalesOrder handles POST /api/sales-orders/{id}/deliver.
func (h *Handler) deliverSalesOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid sales order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	order, err := h.svc.SalesOrders.MarkAsDelivered(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// cancelSalesOrder handles POST /api/sales-orders/{id}/cancel.
func (h *Handler) cancelSalesOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid sales order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	var req struct {
		ActorID int `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
		return
	}
	order, err := h.svc.SalesOrders.Cancel(r.Context(), id, req.ActorID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// getSalesOrder handles GET /api/sales-orders/{id}.
func (h *Handler) getSalesOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid sales order id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	order, err := h.svc.SalesOrders.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// listSalesOrders handles GET /api/sales-orders?status=.
func (h *Handler) listSalesOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.SalesOrders.GetOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales_orders": orders})
}
