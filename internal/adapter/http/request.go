package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Muzikie/melodyne/internal/core/port"
)

// accountHeader carries the caller identity on mutating routes.
const accountHeader = "X-Account-ID"

// account extracts the caller identity. Empty means unauthenticated.
func account(r *http.Request) string {
	return r.Header.Get(accountHeader)
}

// campaignID parses the {id} path parameter.
func campaignID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", slog.Any("error", err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the engine's rejection taxonomy onto HTTP status codes so
// clients can branch on the reason. Unknown errors are logged and hidden
// behind a 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, port.ErrCampaignNotFound):
		status = http.StatusNotFound
	case errors.Is(err, port.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, port.ErrNotPublished),
		errors.Is(err, port.ErrSoldOut),
		errors.Is(err, port.ErrNotRefundable),
		errors.Is(err, port.ErrNotAllowed),
		errors.Is(err, port.ErrAlreadyWithdrawn):
		status = http.StatusConflict
	case errors.Is(err, port.ErrPlatformPaused),
		errors.Is(err, port.ErrAssetNotAllowed),
		errors.Is(err, port.ErrTooManyActiveCampaigns):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, port.ErrAssetTransfer):
		status = http.StatusPaymentRequired
	case errors.Is(err, port.ErrGoalExceedsCap),
		errors.Is(err, port.ErrInvalidDeadline),
		errors.Is(err, port.ErrBelowMinDuration),
		errors.Is(err, port.ErrAboveMaxDuration),
		errors.Is(err, port.ErrAmountNotPositive),
		errors.Is(err, port.ErrTooManyTiers),
		errors.Is(err, port.ErrNoTiers),
		errors.Is(err, port.ErrInvalidTier),
		errors.Is(err, port.ErrExceedsHardCap),
		errors.Is(err, port.ErrNoContribution):
		status = http.StatusBadRequest
	default:
		h.logger.Error("internal error", slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}
