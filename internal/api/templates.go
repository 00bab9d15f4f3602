package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/federalgaz/campaignmail/internal/dispatch"
	"github.com/federalgaz/campaignmail/internal/metrics"
	"github.com/federalgaz/campaignmail/internal/template"
)

const previewErrorMessage = "an error occurred generating the preview"

// TemplateCreateRequest is the request for creating a template
type TemplateCreateRequest struct {
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	TemplateSlug string      `json:"templateSlug"`
	Request      RequestBody `json:"request"`
}

// TemplateUpdateRequest is the request for updating a template.
// Absent fields keep their stored value.
type TemplateUpdateRequest struct {
	Name         *string      `json:"name,omitempty"`
	Description  *string      `json:"description,omitempty"`
	TemplateSlug *string      `json:"templateSlug,omitempty"`
	Request      *RequestBody `json:"request,omitempty"`
}

// TemplateListResponse is the response for listing templates
type TemplateListResponse struct {
	Templates []*template.Record `json:"templates"`
	Total     int                `json:"total"`
}

// TemplateSendRequest is the request for sending a stored template
type TemplateSendRequest struct {
	Recipients []dispatch.Recipient `json:"recipients"`
	From       string               `json:"from,omitempty"`
	ReplyTo    string               `json:"replyTo,omitempty"`
	Subject    string               `json:"subject,omitempty"`
	Headers    map[string]string    `json:"headers,omitempty"`
	Overrides  *RequestBody         `json:"overrides,omitempty"`
	Wait       bool                 `json:"wait,omitempty"`
}

// handleTemplateList handles GET /api/v1/templates
func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 100)
	filter := template.ListFilter{
		Search: r.URL.Query().Get("search"),
		Slug:   template.Slug(r.URL.Query().Get("slug")),
		Limit:  limit,
		Offset: offset,
	}

	records, err := s.opts.Templates.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list templates", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}

	s.sendJSON(w, http.StatusOK, TemplateListResponse{Templates: records, Total: len(records)})
}

// handleTemplateCreate handles POST /api/v1/templates
func (s *Server) handleTemplateCreate(w http.ResponseWriter, r *http.Request) {
	var req TemplateCreateRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	tmplReq, err := req.Request.resolve()
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := &template.Record{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Slug:        template.Slug(strings.TrimSpace(req.TemplateSlug)),
		Request:     *tmplReq,
	}
	if err := s.opts.Templates.Create(r.Context(), rec); err != nil {
		s.sendStorageError(w, err, "Failed to create template")
		return
	}

	s.logger.Info("template created", "id", rec.ID, "name", rec.Name, "slug", rec.Slug)
	s.sendJSON(w, http.StatusCreated, rec)
}

// handleTemplateGet handles GET /api/v1/templates/{id}
func (s *Server) handleTemplateGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.opts.Templates.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendStorageError(w, err, "Failed to get template")
		return
	}

	s.sendJSON(w, http.StatusOK, rec)
}

// handleTemplateUpdate handles PUT /api/v1/templates/{id}
func (s *Server) handleTemplateUpdate(w http.ResponseWriter, r *http.Request) {
	var req TemplateUpdateRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.opts.Templates.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendStorageError(w, err, "Failed to get template")
		return
	}

	if req.Name != nil {
		rec.Name = *req.Name
	}
	if req.Description != nil {
		rec.Description = strings.TrimSpace(*req.Description)
	}
	if req.TemplateSlug != nil {
		rec.Slug = template.Slug(strings.TrimSpace(*req.TemplateSlug))
		if rec.Slug == "" {
			rec.Slug = template.SlugModern
		}
	}
	if req.Request != nil {
		tmplReq, err := req.Request.resolve()
		if err != nil {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		rec.Request = *tmplReq
	}

	if err := s.opts.Templates.Update(r.Context(), rec); err != nil {
		s.sendStorageError(w, err, "Failed to update template")
		return
	}

	s.logger.Info("template updated", "id", rec.ID, "version", rec.Version)
	s.sendJSON(w, http.StatusOK, rec)
}

// handleTemplateDelete handles DELETE /api/v1/templates/{id}
func (s *Server) handleTemplateDelete(w http.ResponseWriter, r *http.Request) {
	rec, err := s.opts.Templates.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendStorageError(w, err, "Failed to get template")
		return
	}

	if err := s.opts.Templates.Delete(r.Context(), rec.ID); err != nil {
		s.sendStorageError(w, err, "Failed to delete template")
		return
	}

	s.logger.Info("template deleted", "id", rec.ID, "name", rec.Name)
	w.WriteHeader(http.StatusNoContent)
}

// handleTemplatePreview handles POST /api/v1/templates/{id}/preview.
// The optional body overrides fields of the stored request.
func (s *Server) handleTemplatePreview(w http.ResponseWriter, r *http.Request) {
	var body RenderRequest
	if err := s.decodeJSON(r, &body); err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.opts.Templates.Find(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, template.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load template for preview", "id", chi.URLParam(r, "id"), "error", err)
		s.sendError(w, http.StatusInternalServerError, previewErrorMessage)
		return
	}

	overrides, err := body.resolve()
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := mergeRequest(rec.Request, overrides)
	if err != nil {
		s.logger.Error("failed to merge preview overrides", "id", rec.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, previewErrorMessage)
		return
	}

	slug := string(rec.Slug)
	if body.TemplateSlug != "" {
		slug = body.TemplateSlug
	}

	result := s.engine.Render(slug, &req)
	metrics.IncRenders(string(result.Slug), result.Fallback)

	s.writeRendered(w, r, http.StatusOK, result)
}

// handleTemplateSend handles POST /api/v1/templates/{id}/send
func (s *Server) handleTemplateSend(w http.ResponseWriter, r *http.Request) {
	var body TemplateSendRequest
	if err := s.decodeJSON(r, &body); err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.opts.Templates.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.sendStorageError(w, err, "Failed to get template")
		return
	}

	req := rec.Request
	if body.Overrides != nil {
		overrides, err := body.Overrides.resolve()
		if err != nil {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req, err = mergeRequest(rec.Request, overrides); err != nil {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	job := &dispatch.Job{
		TemplateID: rec.ID,
		Slug:       string(rec.Slug),
		Request:    req,
		From:       body.From,
		ReplyTo:    body.ReplyTo,
		Subject:    body.Subject,
		Headers:    body.Headers,
		Recipients: body.Recipients,
	}
	s.dispatch(w, r, job, body.Wait || r.URL.Query().Get("wait") == "true")
}

// mergeRequest overlays the non-empty fields of override onto base.
// templateData keys are merged one by one.
func mergeRequest(base template.Request, override *template.Request) (template.Request, error) {
	merged := base
	merged.TemplateData = maps.Clone(base.TemplateData)
	if override == nil {
		return merged, nil
	}

	data, err := json.Marshal(override)
	if err != nil {
		return merged, fmt.Errorf("failed to encode overrides: %w", err)
	}

	subject := merged.Subject
	if err := json.Unmarshal(data, &merged); err != nil {
		return merged, fmt.Errorf("failed to apply overrides: %w", err)
	}
	if strings.TrimSpace(override.Subject) == "" {
		merged.Subject = subject
	}
	return merged, nil
}

// sendStorageError maps storage sentinel errors to status codes
func (s *Server) sendStorageError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, template.ErrNotFound), errors.Is(err, dispatch.ErrNotFound):
		s.sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, template.ErrNameExists):
		s.sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, template.ErrNameRequired):
		s.sendError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(message, "error", err)
		metrics.IncAPIErrors("storage")
		s.sendError(w, http.StatusInternalServerError, message)
	}
}
