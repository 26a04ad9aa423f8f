package api

import (
	"net/http"
	"time"

	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/pipeline"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/watch"
)

// StatusResponse mirrors the original service's GET /status body, extended
// with queue and hardware details.
type StatusResponse struct {
	Status               string         `json:"status"`
	Service              string         `json:"service"`
	Version              string         `json:"version"`
	UptimeSeconds        int64          `json:"uptime_seconds"`
	ProcessingInProgress bool           `json:"processing_in_progress"`
	Provider             string         `json:"provider"`
	Model                string         `json:"model"`
	Encoder              string         `json:"encoder"`
	Queue                pipeline.Stats `json:"queue"`
	Watcher              *watch.Status  `json:"watcher,omitempty"`
}

type StatusHandler struct {
	deps      Deps
	version   string
	startTime time.Time
}

func NewStatusHandler(deps Deps, version string, startTime time.Time) *StatusHandler {
	return &StatusHandler{deps: deps, version: version, startTime: startTime}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:               "running",
		Service:              "Vosk Captions API",
		Version:              h.version,
		UptimeSeconds:        int64(time.Since(h.startTime).Seconds()),
		ProcessingInProgress: h.deps.Pipeline.Busy(),
		Provider:             h.deps.ProviderName,
		Model:                h.deps.ModelName,
		Encoder:              h.deps.Caps.Summary(),
		Queue:                h.deps.Pipeline.Stats(),
	}
	if h.deps.Watcher != nil {
		ws := h.deps.Watcher.Status()
		resp.Watcher = &ws
	}
	WriteJSON(w, http.StatusOK, resp)
}
