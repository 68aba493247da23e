package handlers

import (
	"net/http"

	"github.com/jacobwhite/taskdeck/internal/cache"
	"github.com/jacobwhite/taskdeck/internal/database"
)

// SystemHandler exposes liveness and cache diagnostics endpoints.
type SystemHandler struct {
	db    *database.DB
	cache *cache.Cache
}

func NewSystemHandler(db *database.DB, c *cache.Cache) *SystemHandler {
	return &SystemHandler{db: db, cache: c}
}

type healthResponse struct {
	Status string       `json:"status"`
	DB     string       `json:"db"`
	Cache  cache.Health `json:"cache"`
}

// Health handles GET /health. The database is load-bearing, the cache is
// not: a down cache degrades the response but the service stays up.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", DB: "ok"}
	statusCode := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.DB = "unreachable"
		statusCode = http.StatusServiceUnavailable
	}

	resp.Cache = h.cache.HealthCheck(r.Context())
	if !resp.Cache.Healthy && resp.Status == "ok" {
		resp.Status = "degraded"
	}

	writeJSON(w, statusCode, resp)
}

// CacheStats handles GET /admin/cache/stats
func (h *SystemHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

// ResetCacheStats handles POST /admin/cache/stats/reset
func (h *SystemHandler) ResetCacheStats(w http.ResponseWriter, r *http.Request) {
	h.cache.ResetStats()
	writeJSON(w, http.StatusOK, h.cache.Stats())
}
