package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type balanceResponse struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

// handleAssetBalance reads an account balance from the funding asset.
func (h *Handler) handleAssetBalance(w http.ResponseWriter, r *http.Request) {
	acct := chi.URLParam(r, "account")
	if acct == "" {
		http.Error(w, "missing account", http.StatusBadRequest)
		return
	}
	balance, err := h.asset.BalanceOf(r.Context(), acct)
	if err != nil {
		h.logger.Error("balance read error", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceResponse{
		Asset:   h.asset.Symbol(),
		Account: acct,
		Balance: balance,
	})
}
