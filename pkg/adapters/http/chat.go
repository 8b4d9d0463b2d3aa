package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aretw0/caregraph"
	"github.com/aretw0/caregraph/internal/sanitize"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/aretw0/caregraph/pkg/protocol"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string   `json:"message"`
	ThreadID  *string  `json:"thread_id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Chat handles POST /api/chat: it validates the request against the OpenAPI
// schema and streams the turn's events as NDJSON.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, s.logger, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("Chat: invalid request body", "err", err)
		return
	}
	if err := s.chatSchema.VisitJSON(raw); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err.Error())
		s.logger.Warn("Chat: request rejected by schema", "err", err)
		return
	}

	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := sanitize.Message(req.Message, s.maxInput)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, sanitize.ErrInputTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, s.logger, status, err.Error())
		s.logger.Warn("Chat: input rejected", "err", err, "size", len(req.Message))
		return
	}

	turn := caregraph.TurnRequest{
		Message:   message,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	if req.ThreadID != nil {
		turn.ThreadID = *req.ThreadID
	}

	w.Header().Set("Content-Type", protocol.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	enc := protocol.NewEncoder(w)
	// answered is set once the stream carries content or an error record.
	answered := false
	res, err := s.engine.Turn(r.Context(), turn, func(ev domain.Event) error {
		if ev.IsContent() || ev.Type == domain.EventError {
			answered = true
		}
		return enc.Encode(ev)
	})
	if err == nil {
		return
	}
	if r.Context().Err() != nil {
		s.logger.Debug("Chat: client went away", "thread_id", res.ThreadID, "err", err)
		return
	}
	s.logger.Error("Chat: turn failed", "thread_id", res.ThreadID, "err", err)
	if answered {
		return
	}
	// Headers are already sent; the failure can only travel in-band.
	_ = enc.Encode(domain.ErrorEvent(caregraph.MsgUnavailable))
}

// UploadResponse is the body returned by POST /api/upload.
type UploadResponse struct {
	FilePath string `json:"file_path"`
}

// Upload handles POST /api/upload with a multipart "file" field.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	if s.attachments == nil {
		writeError(w, s.logger, http.StatusNotFound, "uploads are disabled")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "missing file field")
		s.logger.Warn("Upload: missing file", "err", err)
		return
	}
	defer file.Close()

	path, err := s.attachments.Put(r.Context(), header.Filename, file)
	switch {
	case errors.Is(err, domain.ErrEmptyUpload):
		writeError(w, s.logger, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrUploadTooLarge):
		writeError(w, s.logger, http.StatusRequestEntityTooLarge, err.Error())
		return
	case err != nil:
		writeError(w, s.logger, http.StatusInternalServerError, "failed to store file")
		s.logger.Error("Upload failed", "err", err, "filename", header.Filename)
		return
	}

	s.logger.Info("Attachment stored", "path", path, "size", header.Size)
	writeJSON(w, s.logger, http.StatusOK, UploadResponse{FilePath: path})
}
