package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MimeLyc/video-uploader/internal/errs"
	"github.com/MimeLyc/video-uploader/internal/jobs"
	"github.com/MimeLyc/video-uploader/internal/ledger"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.monitor.Status())
}

type enqueueUploadRequest struct {
	Source        string `json:"source"`
	VideoPath     string `json:"video_path"`
	SubtitlePath  string `json:"subtitle_path"`
	CategoryID    int    `json:"category_id"`
	SubCategoryID int    `json:"sub_category_id"`
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.queue.List())
	case http.MethodPost:
		var req enqueueUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.Source == "" {
			req.Source = "http"
		}
		if req.VideoPath == "" || req.SubtitlePath == "" {
			writeError(w, http.StatusBadRequest, "video_path and subtitle_path are required")
			return
		}
		if req.CategoryID == 0 || req.SubCategoryID == 0 {
			writeError(w, http.StatusBadRequest, "category_id and sub_category_id are required")
			return
		}

		job, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source: req.Source,
			Payload: jobs.JobPayload{
				VideoFile:     req.VideoPath,
				SubtitleFile:  req.SubtitlePath,
				CategoryID:    req.CategoryID,
				SubCategoryID: req.SubCategoryID,
			},
		})
		code := http.StatusCreated
		if !created {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]any{
			"created": created,
			"job":     job,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleUploadDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, action, ok := parseRoute(r.URL.Path, "/api/uploads/")
	if !ok || action != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	job, found := s.queue.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var (
		entries []ledger.Entry
		err     error
	)
	if failed, _ := strconv.ParseBool(r.URL.Query().Get("failed")); failed {
		entries, err = s.reconcile.Failed()
	} else {
		entries, err = s.ledger.LoadAll()
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleLedgerEntry serves
//
//	GET    /api/ledger/{item_id}
//	DELETE /api/ledger/{item_id}        discard
//	POST   /api/ledger/{item_id}/retry  retry catalogue
func (s *Server) handleLedgerEntry(w http.ResponseWriter, r *http.Request) {
	rawID, action, ok := parseRoute(r.URL.Path, "/api/ledger/")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	itemID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	entry, err := s.ledger.Get(itemID)
	if err != nil {
		writeErr(w, err)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, entry)
	case action == "" && r.Method == http.MethodDelete:
		if err := s.reconcile.Discard(r.Context(), entry); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"discarded": itemID})
	case action == "retry" && r.Method == http.MethodPost:
		updated, err := s.reconcile.Retry(r.Context(), entry)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case action == "" || action == "retry":
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	report, err := s.reconcile.RetryAll(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func parseRoute(path, prefix string) (id string, action string, ok bool) {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return "", "", false
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > 2 {
		return "", "", false
	}
	rawID, err := url.PathUnescape(parts[0])
	if err != nil || strings.TrimSpace(rawID) == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		action = parts[1]
	}
	return rawID, action, true
}

func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound, errs.KindFileNotFound:
		return http.StatusNotFound
	case errs.KindBusy:
		return http.StatusConflict
	case errs.KindEmptyContent, errs.KindMalformedSubtitle:
		return http.StatusUnprocessableEntity
	case errs.KindTransfer:
		return http.StatusBadGateway
	case errs.KindPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusForKind(errs.KindOf(err)), map[string]any{
		"error":  err.Error(),
		"advice": errs.Advice(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
