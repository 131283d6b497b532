package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"caliseed/internal/core"
	"caliseed/internal/types"
)

const (
	serviceName    = "CALI + SEED API"
	serviceVersion = "1.0"

	statusOnline     = "online"
	statusDegradedDB = "database unavailable"

	infoPingTimeout = time.Second
)

// Endpoints is the list advertised by the info endpoint.
var Endpoints = []string{
	"/api/events",
	"/api/alerts",
	"/api/stats",
	"/api/locations",
}

// InfoResponse describes the running service.
type InfoResponse struct {
	Message   string   `json:"message"`
	Version   string   `json:"version"`
	Status    string   `json:"status"`
	Endpoints []string `json:"endpoints"`
	Build     any      `json:"build,omitempty"`
}

// InfoHandler serves GET / and GET /api. It always answers 200; a failed
// store ping only changes the reported status.
type InfoHandler struct {
	store  types.Store
	build  any
	logger *slog.Logger
}

func NewInfoHandler(store types.Store, build any, logger *slog.Logger) *InfoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InfoHandler{store: store, build: build, logger: logger}
}

func (h *InfoHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleInfo)
	r.Get("/api", h.HandleInfo)
}

func (h *InfoHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), infoPingTimeout)
	defer cancel()

	status := statusOnline
	if err := h.store.Ping(ctx); err != nil {
		h.logger.WarnContext(r.Context(), "store ping failed", "error", err)
		status = statusDegradedDB
	}

	core.JSON(w, r, http.StatusOK, InfoResponse{
		Message:   serviceName,
		Version:   serviceVersion,
		Status:    status,
		Endpoints: Endpoints,
		Build:     h.build,
	})
}
