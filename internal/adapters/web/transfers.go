package web

import (
	"encoding/json"
	"net/http"
)

// transferInventory handles POST /api/warehouses/{id}/transfer: moves the
// entire stock of warehouse {id} into the destination.
func (h *Handler) transferInventory(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, "invalid warehouse id", "INVALID_ID", http.StatusBadRequest)
		return
	}
	var req struct {
		DestinationID int `json:"destination_id"`
		ActorID       int `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
		return
	}

	warning, err := h.svc.Transfers.MoveAllInventory(r.Context(), sourceID, req.DestinationID, req.ActorID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := map[string]any{"transferred": true}
	if warning != "" {
		resp["warning"] = warning
	}
	writeJSON(w, http.StatusOK, resp)
}
