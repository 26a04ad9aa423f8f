package api

import (
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/history"
)

// JobsHandler serves the job history. db is nil when no database is
// configured.
type JobsHandler struct {
	db *history.DB
}

func NewJobsHandler(db *history.DB) *JobsHandler {
	return &JobsHandler{db: db}
}

// List handles GET /api/v1/jobs.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		WriteError(w, http.StatusServiceUnavailable, "job history not configured")
		return
	}

	p, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := h.db.List(r.Context(), p.Limit, p.Offset)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"count":  len(jobs),
		"limit":  p.Limit,
		"offset": p.Offset,
	})
}
