package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"
)

type createCampaignRequest struct {
	Goal     int64     `json:"goal"`
	HardCap  int64     `json:"hard_cap"`
	Deadline time.Time `json:"deadline"`
}

type createCampaignResponse struct {
	ID int64 `json:"id"`
}

// handleCreateCampaign creates a draft campaign owned by the caller. The
// request body carries goal, hard cap (smallest asset units) and an RFC3339
// deadline. Policy rejections (pause, duration bounds, owner cap) come back
// as 422, validation errors as 400.
func (h *Handler) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	owner := account(r)
	if owner == "" {
		http.Error(w, "missing "+accountHeader+" header", http.StatusUnauthorized)
		return
	}
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	id, err := h.svc.CreateCampaign(r.Context(), owner, req.Goal, req.HardCap, req.Deadline)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, createCampaignResponse{ID: id})
}

// handleGetCampaign returns the campaign with its status resolved against
// the current time.
func (h *Handler) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	view, err := h.svc.GetCampaign(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

type addTierRequest struct {
	Amount int64 `json:"amount"`
}

// handleAddTier appends a pledge tier to a draft campaign. Owner only.
func (h *Handler) handleAddTier(w http.ResponseWriter, r *http.Request) {
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
	var req addTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.svc.AddTier(r.Context(), caller, id, req.Amount); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePublish opens a draft campaign for contributions. Owner only.
func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
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
	if err := h.svc.PublishCampaign(r.Context(), caller, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
