package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/federalgaz/campaignmail/internal/dispatch"
)

// SendListResponse is the response for GET /api/v1/sends
type SendListResponse struct {
	Sends []*dispatch.Report `json:"sends"`
	Total int                `json:"total"`
}

// SendRequest is the body of POST /api/v1/send
type SendRequest struct {
	dispatch.Job
	Wait bool `json:"wait,omitempty"`
}

// handleSend handles POST /api/v1/send
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.dispatch(w, r, &req.Job, req.Wait || r.URL.Query().Get("wait") == "true")
}

// dispatch runs job in the background and answers 202 with the running
// report, or waits for the final report when wait is set
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, job *dispatch.Job, wait bool) {
	job.APIKey = apiKeyID(r.Context())

	var (
		report *dispatch.Report
		err    error
		status = http.StatusAccepted
	)
	if wait {
		report, err = s.opts.Dispatcher.Send(r.Context(), job)
		status = http.StatusOK
	} else {
		report, err = s.opts.Dispatcher.Start(r.Context(), job)
	}

	switch {
	case err == nil:
	case errors.Is(err, dispatch.ErrNoRecipients),
		errors.Is(err, dispatch.ErrTooManyRecipients),
		errors.Is(err, dispatch.ErrInvalidSender):
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	default:
		s.logger.Error("failed to start dispatch", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to start dispatch")
		return
	}

	s.logger.Info("dispatch accepted via API",
		"report_id", report.ID,
		"slug", report.Slug,
		"recipients", report.Total,
		"wait", wait,
	)
	s.sendJSON(w, status, report)
}

// handleSendList handles GET /api/v1/sends
func (s *Server) handleSendList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)
	filter := dispatch.ListFilter{
		TemplateID: r.URL.Query().Get("template_id"),
		Status:     dispatch.Status(r.URL.Query().Get("status")),
		Limit:      limit,
		Offset:     offset,
	}

	reports, err := s.opts.Dispatcher.Storage().List(r.Context(), filter)
	if err != nil {
		s.sendStorageError(w, err, "Failed to list sends")
		return
	}

	s.sendJSON(w, http.StatusOK, SendListResponse{Sends: reports, Total: len(reports)})
}

// handleSendGet handles GET /api/v1/sends/{id}
func (s *Server) handleSendGet(w http.ResponseWriter, r *http.Request) {
	report, err := s.opts.Dispatcher.Storage().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendStorageError(w, err, "Failed to get send")
		return
	}

	s.sendJSON(w, http.StatusOK, report)
}

// handleSendDelete handles DELETE /api/v1/sends/{id}
func (s *Server) handleSendDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := s.opts.Dispatcher.Storage().Get(r.Context(), id)
	if err != nil {
		s.sendStorageError(w, err, "Failed to get send")
		return
	}
	if !report.Finished() {
		s.sendError(w, http.StatusConflict, "send is still running")
		return
	}

	if err := s.opts.Dispatcher.Storage().Delete(r.Context(), id); err != nil {
		s.sendStorageError(w, err, "Failed to delete send")
		return
	}

	s.logger.Info("send report deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}
