package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/tuya-homie-gateway/internal/audit"
)

// handleListCommands pages through the command audit trail, newest first.
//
// Query parameters:
//   - device: filter by device name
//   - status: filter by outcome (acked, failed, unresolved, rejected)
//   - limit, offset: paging (limit defaults to 50, capped at 200)
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command audit is disabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		DeviceName: q.Get("device"),
		Status:     q.Get("status"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing command audit failed", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// intParam parses an optional non-negative integer query value.
func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
