package handler

import (
	"context"
	"net/http"

	"github.com/trackwise/trackwise/internal/api/middleware"
	"github.com/trackwise/trackwise/internal/api/response"
)

// Pinger checks connectivity to a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      Pinger
	cache   Pinger
	version string
}

// NewHealthHandler creates a new HealthHandler. cache may be nil.
func NewHealthHandler(db, cache Pinger, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		cache:   cache,
		version: version,
	}
}

type dependencyStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Database dependencyStatus  `json:"database"`
	Cache    *dependencyStatus `json:"cache,omitempty"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	data := healthData{
		Status:   "healthy",
		Version:  h.version,
		Database: dependencyStatus{Connected: h.db.Ping(r.Context()) == nil},
	}
	if !data.Database.Connected {
		data.Status = "degraded"
	}

	if h.cache != nil {
		cache := dependencyStatus{Connected: h.cache.Ping(r.Context()) == nil}
		if !cache.Connected {
			data.Status = "degraded"
		}
		data.Cache = &cache
	}

	response.Success(w, http.StatusOK, data, requestID)
}
