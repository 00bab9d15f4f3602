package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/federalgaz/campaignmail/internal/delivery"
	"github.com/federalgaz/campaignmail/internal/sandbox"
)

// SandboxListResponse is the response for GET /api/v1/sandbox/messages
type SandboxListResponse struct {
	Messages []*sandbox.Message `json:"messages"`
	Total    int                `json:"total"`
}

// handleSandboxList handles GET /api/v1/sandbox/messages
func (s *Server) handleSandboxList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 100)
	filter := sandbox.ListFilter{
		Mode:   r.URL.Query().Get("mode"),
		Tag:    r.URL.Query().Get("tag"),
		To:     r.URL.Query().Get("to"),
		Limit:  limit,
		Offset: offset,
	}

	messages, err := s.opts.Sandbox.List(r.Context(), filter)
	if err != nil {
		s.sendSandboxError(w, err, "Failed to list messages")
		return
	}

	s.sendJSON(w, http.StatusOK, SandboxListResponse{Messages: messages, Total: len(messages)})
}

// handleSandboxGet handles GET /api/v1/sandbox/messages/{id}
func (s *Server) handleSandboxGet(w http.ResponseWriter, r *http.Request) {
	msg, err := s.opts.Sandbox.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendSandboxError(w, err, "Failed to get message")
		return
	}

	s.sendJSON(w, http.StatusOK, msg)
}

// handleSandboxHTML handles GET /api/v1/sandbox/messages/{id}/html.
// ?format=raw returns the message as it would go on the wire.
func (s *Server) handleSandboxHTML(w http.ResponseWriter, r *http.Request) {
	msg, err := s.opts.Sandbox.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendSandboxError(w, err, "Failed to get message")
		return
	}

	if r.URL.Query().Get("format") == "raw" {
		raw, err := delivery.BuildMIME(&delivery.Message{
			ID:        msg.ID,
			From:      msg.From,
			To:        msg.To,
			Subject:   msg.Subject,
			HTML:      msg.HTML,
			Text:      msg.Text,
			Headers:   msg.Headers,
			CreatedAt: msg.CapturedAt,
		}, s.opts.Hostname)
		if err != nil {
			s.sendError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		w.Header().Set("Content-Type", "message/rfc822")
		w.Write(raw)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(msg.HTML))
}

// handleSandboxDelete handles DELETE /api/v1/sandbox/messages/{id}
func (s *Server) handleSandboxDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.opts.Sandbox.Delete(r.Context(), id); err != nil {
		s.sendSandboxError(w, err, "Failed to delete message")
		return
	}

	s.logger.Info("sandbox message deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleSandboxClear handles DELETE /api/v1/sandbox/messages.
// ?older_than=24h keeps newer captures.
func (s *Server) handleSandboxClear(w http.ResponseWriter, r *http.Request) {
	var olderThan time.Duration
	if v := r.URL.Query().Get("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			s.sendError(w, http.StatusBadRequest, "invalid older_than duration")
			return
		}
		olderThan = d
	}

	deleted, err := s.opts.Sandbox.Clear(r.Context(), olderThan)
	if err != nil {
		s.sendSandboxError(w, err, "Failed to clear messages")
		return
	}

	s.logger.Info("sandbox cleared", "deleted", deleted, "older_than", olderThan)
	s.sendJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// handleSandboxStats handles GET /api/v1/sandbox/stats
func (s *Server) handleSandboxStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.opts.Sandbox.Stats(r.Context())
	if err != nil {
		s.sendSandboxError(w, err, "Failed to get sandbox stats")
		return
	}

	s.sendJSON(w, http.StatusOK, stats)
}

func (s *Server) sendSandboxError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, sandbox.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "Message not found")
		return
	}
	s.sendStorageError(w, err, message)
}
