package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"
)

type eventResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	CampaignID int64     `json:"campaign_id"`
	Account    string    `json:"account"`
	Amount     int64     `json:"amount"`
	At         time.Time `json:"at"`
}

// handleEventStream follows campaign notifications as newline-delimited
// JSON until the client disconnects. Only events published after the
// request arrives are delivered.
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := h.stream.Subscribe()
	defer h.stream.Unsubscribe(ch)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := enc.Encode(eventResponse{
				ID:         ev.ID,
				Type:       string(ev.Type),
				CampaignID: ev.CampaignID,
				Account:    ev.Account,
				Amount:     ev.Amount,
				At:         ev.At,
			}); err != nil {
				return
			}
			fl.Flush()
		}
	}
}
