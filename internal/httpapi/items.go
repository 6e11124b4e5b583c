package httpapi

import (
	"net/http"
	"strconv"

	"github.com/MimeLyc/video-uploader/internal/catalog"
)

const (
	defaultCuePreviewLimit = 80
	maxCuePreviewLimit     = 500
)

type itemDetailResponse struct {
	Record        catalog.Record      `json:"record"`
	TotalCues     int                 `json:"total_cues"`
	Cues          []catalog.StoredCue `json:"cues"`
	PreviewOffset int                 `json:"preview_offset"`
	PreviewLimit  int                 `json:"preview_limit"`
}

// handleItemDetail serves GET /api/items/{item_id}?offset=&limit= with a page of the
// item's catalogued cues.
func (s *Server) handleItemDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rawID, action, ok := parseRoute(r.URL.Path, "/api/items/")
	if !ok || action != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	itemID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	offset, limit := parsePreviewWindow(r)

	record, err := s.catalog.Record(r.Context(), itemID)
	if err != nil {
		writeErr(w, err)
		return
	}
	cues, err := s.catalog.Cues(r.Context(), itemID)
	if err != nil {
		writeErr(w, err)
		return
	}

	start := min(offset, len(cues))
	end := min(start+limit, len(cues))
	writeJSON(w, http.StatusOK, itemDetailResponse{
		Record:        record,
		TotalCues:     len(cues),
		Cues:          cues[start:end],
		PreviewOffset: start,
		PreviewLimit:  limit,
	})
}

func parsePreviewWindow(r *http.Request) (offset, limit int) {
	limit = defaultCuePreviewLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxCuePreviewLimit)
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}
	return offset, limit
}
