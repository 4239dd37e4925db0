package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type statusResponse struct {
	Last    *Run  `json:"last,omitempty"`
	History []Run `json:"history"`
}

// Handler serves the stored run outcomes as JSON: the latest run plus the
// retained history, oldest first.
func Handler(m Manager) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last, found, err := m.LastRun(r.Context())
		if err != nil {
			slog.Error("Failed to load last run", "error", err)
			http.Error(w, "failed to load run status", http.StatusInternalServerError)
			return
		}

		history, err := m.History(r.Context())
		if err != nil {
			slog.Error("Failed to load run history", "error", err)
			http.Error(w, "failed to load run status", http.StatusInternalServerError)
			return
		}

		resp := statusResponse{History: history}
		if found {
			resp.Last = &last
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("Failed to encode run status", "error", err)
		}
	})
}
