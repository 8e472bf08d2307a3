package httpadapter

import "net/http"

// handleRefund returns the caller's full contribution of a failed campaign.
// Calling twice yields 400 (no contribution left); a campaign that is not
// failed yields 409.
func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
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
	if err := h.svc.Refund(r.Context(), donor, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWithdraw settles a successful or sold-out campaign. Any caller may
// trigger it; the payout always goes to the stored campaign owner.
func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller := account(r)
	if caller == "" {
		http.Error(w, "missing "+accountHeader+" header", http.StatusUnauthorized)
		return
	}
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	if err := h.svc.Withdraw(r.Context(), caller, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
