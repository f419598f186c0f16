package api

import (
	"net/http"

	"github.com/vytor/recall/internal/logger"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	tags := tagsParam(r)
	log.Debug("fetching stats: tags=%v", tags)

	stats, err := s.Stats.GetStats(r.Context(), tenantFromContext(r.Context()), tags, s.Now())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
