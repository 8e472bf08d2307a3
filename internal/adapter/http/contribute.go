package httpadapter

import (
	"encoding/json"
	"net/http"
)

type contributeRequest struct {
	TierIndex int `json:"tier_index"`
}

// handleContribute pledges the addressed tier's amount on behalf of the
// caller. The donor must have approved the custody account for at least the
// tier amount beforehand; an insufficient allowance or balance surfaces as
// 402. A sold-out or otherwise closed campaign rejects with 409.
func (h *Handler) handleContribute(w http.ResponseWriter, r *http.Request) {
	donor := account(r)
	if donor == "" {
		http.Error(w, "missing "+accountHeader+" header", http.StatusUnauthorized)
		return
	}
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	var req contributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.svc.Contribute(r.Context(), donor, id, req.TierIndex); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
