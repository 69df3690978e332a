package hub

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmkor-dev/uptimed/internal/domain/result"
	"github.com/dmkor-dev/uptimed/internal/monitor"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter exposes the hub's websocket endpoint plus the synchronous
// on-demand check trigger. Everything else about the REST API lives in
// the dashboard backend, not here.
func NewRouter(h *Hub) chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   append([]string{"http://localhost:*"}, h.cfg.AllowedOrigins...),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/ws", h.ServeWS)
	r.Post("/endpoints/{id}/check", h.handleManualCheck)
	return r
}

func (h *Hub) handleManualCheck(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	userID, err := h.creds.VerifyPrimary(token)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "bad endpoint id", http.StatusBadRequest)
		return
	}

	ep, err := h.endpoints.GetByID(r.Context(), id)
	if err != nil || ep.UserID != userID {
		http.Error(w, "endpoint not found", http.StatusNotFound)
		return
	}

	res, err := h.svc.Check(r.Context(), ep)
	switch {
	case errors.Is(err, monitor.ErrCheckInProgress):
		http.Error(w, "check already in progress", http.StatusConflict)
		return
	case errors.Is(err, result.ErrNoPriorData):
		http.Error(w, "no check history", http.StatusNotFound)
		return
	case err != nil:
		h.log.Warn("manual check", zap.Int64("endpoint_id", id), zap.Error(err))
		http.Error(w, "check failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}
