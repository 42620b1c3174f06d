package api

import (
	"net/http"
	"strconv"

	"github.com/sensorgrid/sensorgrid-core/internal/events"
)

// handleListEvents returns the marketplace event log, newest first.
//
//	GET /events
//	GET /events?type=access.purchased&device_id=dev-1&limit=20&offset=0
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter := events.Filter{
		Type:     r.URL.Query().Get("type"),
		DeviceID: r.URL.Query().Get("device_id"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.events.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
