package http

import (
	"encoding/json"
	"net/http"
)

// InventoryReader exposes the pool counters for observability.
type InventoryReader interface {
	Remaining() int
	Capacity() int
}

// HandleInventory returns the current pool level.
func HandleInventory(svc InventoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		resp := inventoryResponse{
			Remaining: svc.Remaining(),
			Capacity:  svc.Capacity(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type inventoryResponse struct {
	Remaining int `json:"remaining"`
	Capacity  int `json:"capacity"`
}
