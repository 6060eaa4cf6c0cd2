package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flashbots/aucnet/history"
	"github.com/flashbots/aucnet/server"
)

const defaultHistoryLimit = 20

// AuctionHandler exposes a running auction server over the admin API.
type AuctionHandler struct {
	srv   *server.Server
	store history.Store
	log   *slog.Logger
}

func NewAuctionHandler(srv *server.Server, store history.Store, log *slog.Logger) *AuctionHandler {
	return &AuctionHandler{srv: srv, store: store, log: log}
}

func (h *AuctionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/status", h.handleStatus)
	r.Get("/api/v1/result", h.handleResult)
	r.Get("/api/v1/history", h.handleHistory)
}

func (h *AuctionHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.srv.CurrentStatus())
}

func (h *AuctionHandler) handleResult(w http.ResponseWriter, r *http.Request) {
	res := h.srv.Result()
	if res == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "bidding still open"})
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *AuctionHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "history not configured"})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	records, err := h.store.RecentAuctions(r.Context(), limit)
	if err != nil {
		h.log.Error("history query failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, records)
}

func (h *AuctionHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("writing response failed", "err", err)
	}
}
