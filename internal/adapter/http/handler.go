package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Muzikie/melodyne/internal/core/port"
)

// Handler contains dependencies and routes. It is an inbound adapter for
// HTTP: mutating campaign routes identify the caller by the X-Account-ID
// header, the way contract calls carry a sender. The asset routes expose
// the funding-asset read interface so balances can be inspected; the asset
// itself stays an external collaborator.
type Handler struct {
	svc    port.CampaignUseCase
	asset  port.FundingAsset
	stream port.EventStream
	logger *slog.Logger
	router chi.Router
}

// NewHandler creates a handler with all routes configured.
func NewHandler(svc port.CampaignUseCase, asset port.FundingAsset, stream port.EventStream, logger *slog.Logger) *Handler {
	h := &Handler{svc: svc, asset: asset, stream: stream, logger: logger}
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", h.handleCreateCampaign)
			r.Get("/{id}", h.handleGetCampaign)
			r.Post("/{id}/tiers", h.handleAddTier)
			r.Post("/{id}/publish", h.handlePublish)
			r.Post("/{id}/contributions", h.handleContribute)
			r.Post("/{id}/refund", h.handleRefund)
			r.Post("/{id}/withdraw", h.handleWithdraw)
		})
		r.Get("/assets/{account}/balance", h.handleAssetBalance)
		r.Get("/events", h.handleEventStream)
	})
	h.router = r
	return h
}

// Router returns the underlying http.Handler.
func (h *Handler) Router() http.Handler {
	return h.router
}
