package handlers

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"caliseed/internal/core"
	"caliseed/internal/types"
)

// HandleStats handles GET /api/stats. The five aggregates are independent
// reads and run concurrently; the first failure cancels the rest.
func (h *QueryHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	var stats types.Stats
	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() (err error) {
		stats.TotalEvents, err = h.store.Events().Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalAlerts, err = h.store.Alerts().Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.EventsByLocation, err = h.store.Events().CountByLocation(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.AlertsByLocation, err = h.store.Alerts().CountByLocation(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.EventsByType, err = h.store.Events().CountByType(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		h.fail(w, r, "compute stats", err)
		return
	}

	for _, groups := range []*[]types.GroupCount{&stats.EventsByLocation, &stats.AlertsByLocation, &stats.EventsByType} {
		if *groups == nil {
			*groups = []types.GroupCount{}
		}
	}
	core.JSON(w, r, http.StatusOK, core.DataResponse{Success: true, Data: stats})
}
