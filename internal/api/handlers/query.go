// Package handlers implements the read-only query endpoints over the event
// and alert stores.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caliseed/internal/core"
	"caliseed/internal/types"
)

// QueryHandler serves events, alerts, stats and locations from one store.
type QueryHandler struct {
	store     types.Store
	validator *core.Validator
	logger    *slog.Logger
}

func NewQueryHandler(store types.Store, val *core.Validator, logger *slog.Logger) *QueryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if val == nil {
		val = core.NewValidator()
	}
	return &QueryHandler{store: store, validator: val, logger: logger}
}

// RegisterRoutes mounts the /api endpoints.
func (h *QueryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/events", h.HandleListEvents)
	r.Get("/api/alerts", h.HandleListAlerts)
	r.Get("/api/stats", h.HandleStats)
	r.Get("/api/locations", h.HandleLocations)
}

// HandleListEvents handles GET /api/events?location=&event_type=&limit=.
func (h *QueryHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	p, err := h.validator.ParseQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	events, err := h.store.Events().List(r.Context(), types.EventFilter{
		Location:  p.Location,
		EventType: p.EventType,
		Limit:     p.Limit,
	})
	if err != nil {
		h.fail(w, r, "list events", err)
		return
	}
	core.List(w, r, events)
}

// HandleListAlerts handles GET /api/alerts?location=&limit=. An empty log is
// a successful empty list.
func (h *QueryHandler) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	p, err := h.validator.ParseQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	alerts, err := h.store.Alerts().List(r.Context(), types.AlertFilter{
		Location: p.Location,
		Limit:    p.Limit,
	})
	if err != nil {
		h.fail(w, r, "list alerts", err)
		return
	}
	core.List(w, r, alerts)
}

// HandleLocations handles GET /api/locations.
func (h *QueryHandler) HandleLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.store.Events().DistinctLocations(r.Context())
	if err != nil {
		h.fail(w, r, "list locations", err)
		return
	}
	core.List(w, r, locs)
}

func (h *QueryHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if types.IsStoreUnavailable(err) {
		h.logger.WarnContext(r.Context(), op+" failed: store unavailable", "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeStoreUnavailable, "database unavailable", err))
		return
	}
	h.logger.ErrorContext(r.Context(), op+" failed", "error", err)
	core.Error(w, r, err)
}
