package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

var startTime = time.Now()

// Handler serves the pipeline's HTTP surface.
type Handler struct {
	loop    *Loop
	hub     *Hub
	service string
}

// NewHandler wires the HTTP handlers around the status loop and overlay hub.
func NewHandler(loop *Loop, hub *Hub, service string) *Handler {
	return &Handler{loop: loop, hub: hub, service: service}
}

// RegisterRoutes attaches the endpoints to the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.handleHealth).Methods("GET")
	router.HandleFunc("/status", h.handleStatus).Methods("GET")
	router.HandleFunc("/usage", h.handleUsage).Methods("GET")
	router.HandleFunc("/ws", h.hub.ServeWS)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": h.service,
		"uptime":  time.Since(startTime).Round(time.Second).String(),
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.loop.Collect(r.Context()))
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.loop.gate.Stats())
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
