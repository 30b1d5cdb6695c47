package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/presence-core/internal/audit"
)

// historyChanSize bounds pending history writes. Entries beyond it are
// dropped so a slow database never delays the settings form.
const historyChanSize = 256

// recordChange enqueues c for the history writer (best-effort).
func (s *Server) recordChange(c *audit.Change) {
	if s.history == nil || s.historyCh == nil {
		return
	}

	select {
	case s.historyCh <- c:
	default:
		s.logger.Warn("settings history channel full, dropping entry",
			"mac_address", c.MACAddress,
		)
	}
}

// drainHistory writes queued changes serially until ctx is cancelled,
// then flushes what is left.
func (s *Server) drainHistory(ctx context.Context) {
	defer close(s.historyDone)

	write := func(c *audit.Change) {
		if err := s.history.Create(context.Background(), c); err != nil {
			s.logger.Error("settings history write failed",
				"mac_address", c.MACAddress,
				"error", err,
			)
		}
	}

	for {
		select {
		case c := <-s.historyCh:
			write(c)
		case <-ctx.Done():
			for {
				select {
				case c := <-s.historyCh:
					write(c)
				default:
					return
				}
			}
		}
	}
}

// handleHistory returns recorded settings changes, newest first.
//
// Query parameters:
//   - mac: filter by device MAC address
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeHistoryDisabled(w)
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{MACAddress: q.Get("mac")}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list settings history", "error", err)
		writeInternalError(w, "failed to list settings history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
