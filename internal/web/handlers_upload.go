package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/tablerag/internal/core"
	"github.com/go-chi/chi/v5"
)

// handleUpload reads the multipart file, prepares it and starts an upload
// session. The response carries the session id used for progress.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.badRequest(w, r, "upload", "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, r, "upload", "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusInternalServerError)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	sessionID, err := s.service.StartUpload(ctx, header.Filename, data, r.FormValue("name"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeJSONStatus(w, http.StatusAccepted, map[string]string{"session_id": sessionID})
}

// handleUploadProgress streams session progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleUploadProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	// The event id is the session's observation sequence, so a reconnecting
	// client can skip events it already received.
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if h := r.Header.Get("Last-Event-ID"); h != "" {
		lastEventIDStr = h
	}
	lastEventID, err := strconv.ParseUint(lastEventIDStr, 10, 64)
	resuming := err == nil

	progressCh, err := s.service.SubscribeProgress(sessionID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, fmt.Errorf("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for {
		select {
		case obs, ok := <-progressCh:
			if !ok {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			if resuming && obs.Seq <= lastEventID {
				continue
			}

			data, err := json.Marshal(obs)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", obs.Seq, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleCancelUpload stops following a session.
func (s *Server) handleCancelUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.service.CancelUpload(sessionID); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, map[string]string{"status": "cancelled"})
}

// handleUploadResult returns the session state. With wait=true it blocks
// until the session ends or the request is cancelled.
func (s *Server) handleUploadResult(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var (
		result *core.SessionResult
		err    error
	)
	if r.URL.Query().Get("wait") == "true" {
		result, err = s.service.WaitUploadResult(r.Context(), sessionID)
	} else {
		result, err = s.service.GetUploadResult(sessionID)
	}
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, result)
}

// handleUploadQueueStatus returns the current state of the upload limiter.
// Used for monitoring and to check if the system can accept more uploads.
func (s *Server) handleUploadQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.UploadLimiterStatus())
}

// handleHistory returns recent session outcomes, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", s.cfg.History.ListLimit)
	if limit <= 0 || limit > s.cfg.History.ListLimit {
		limit = s.cfg.History.ListLimit
	}

	entries, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if entries == nil {
		entries = []core.HistoryEntry{}
	}
	writeJSON(w, entries)
}
