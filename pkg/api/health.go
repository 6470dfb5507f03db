package api

import (
	"context"
	"log"
	"net/http"
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Backend string                 `json:"backend"`
	Stats   map[string]interface{} `json:"stats,omitempty"`
}

// HandleHealth handles GET requests to the health check endpoint
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Message: "go-securedocs is running",
		Backend: h.backend,
	}
	status := http.StatusOK

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			log.Printf("WARN: Health check ping to %s failed: %v", h.backend, err)
			response.Status = "unhealthy"
			response.Message = "storage backend unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	if h.stats != nil {
		response.Stats = h.stats.GetMemoryStats()
	}

	writeJSON(w, status, response)
}

// CollectionsResponse lists the served collections
type CollectionsResponse struct {
	Collections []string `json:"collections"`
}

// HandleListCollections handles GET requests for the served collection names
func (h *Handler) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CollectionsResponse{Collections: h.ops.Collections()})
}
