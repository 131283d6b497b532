package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"caliseed/internal/types"
)

// healthCheckTimeout bounds the whole probe fan-out.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// StoreProbe pings the configured store.
type StoreProbe struct {
	Store types.Store
}

func (StoreProbe) Name() string { return "store" }

func (p StoreProbe) Check(ctx context.Context) error {
	return p.Store.Ping(ctx)
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every probe concurrently. It answers 200 when all pass
// and 503 when any fails, panics or misses the deadline.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if len(s.HealthProbes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	var (
		mu         sync.Mutex
		components = make(map[string]componentStatus, len(s.HealthProbes))
	)
	for _, p := range s.HealthProbes {
		components[p.Name()] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
	}

	// Probe errors are recorded per component rather than returned, so one
	// failure does not cancel the others.
	var g errgroup.Group
	for _, p := range s.HealthProbes {
		g.Go(func() error {
			err := runProbe(ctx, p)
			status := componentStatus{Status: "healthy"}
			if err != nil {
				status = componentStatus{Status: "unhealthy", Message: err.Error()}
			}
			mu.Lock()
			components[p.Name()] = status
			mu.Unlock()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	resp := healthResponse{Status: "healthy", Components: make(map[string]componentStatus, len(components))}
	for name, c := range components {
		resp.Components[name] = c
		if c.Status != "healthy" {
			resp.Status = "unhealthy"
		}
	}
	mu.Unlock()

	if resp.Status != "healthy" {
		s.Logger.WarnContext(r.Context(), "health check failed", "components", resp.Components)
		JSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	JSON(w, r, http.StatusOK, resp)
}

func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("probe panicked: %v", rvr)
		}
	}()
	return p.Check(ctx)
}
