package api

import (
	"net/http"
	"time"

	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/media"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	deps      Deps
	version   string
	startTime time.Time
}

func NewHealthHandler(deps Deps, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{deps: deps, version: version, startTime: startTime}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// ffmpeg is required for every job.
	if media.CheckFFmpeg() {
		checks["ffmpeg"] = "ok"
	} else {
		checks["ffmpeg"] = "missing"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	if h.deps.ModelName != "" {
		checks["model"] = "ok"
	} else {
		checks["model"] = "missing"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	checks["gpu"] = h.deps.Caps.Summary()

	if h.deps.History != nil {
		if err := h.deps.History.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	if h.deps.Notifier != nil {
		if h.deps.Notifier.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	if h.deps.Watcher != nil {
		checks["file_watcher"] = h.deps.Watcher.Status().Status
	} else {
		checks["file_watcher"] = "not_configured"
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}
