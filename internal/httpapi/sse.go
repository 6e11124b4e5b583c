package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleStatusStream pushes a pipeline snapshot whenever it changes.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for snap := range s.monitor.Watch(r.Context(), s.streamInterval) {
		payload, err := json.Marshal(snap)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}
