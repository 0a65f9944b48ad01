package web

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
)

// stockLevels handles GET /api/inventory/stock.
func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.svc.Ledger.GetStockLevels(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock": levels})
}

// listMovements handles GET /api/products/{id}/movements.
func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid product id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	movements, err := h.svc.Ledger.GetMovements(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

// adjustQuantity handles POST /api/inventory/adjustments. A positive delta
// adds stock, a negative one removes it.
func (h *Handler) adjustQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WarehouseID    int             `json:"warehouse_id"`
		ProductID      int             `json:"product_id"`
		Delta          decimal.Decimal `json:"delta"`
		Notes          string          `json:"notes"`
		IdempotencyKey string          `json:"idempotency_key"`
		ActorID        int             `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
		return
	}

	item, err := h.svc.Ledger.AdjustQuantity(r.Context(), req.WarehouseID, req.ProductID,
		req.Delta, req.Notes, req.IdempotencyKey, req.ActorID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
