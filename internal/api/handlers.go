package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/federalgaz/campaignmail/internal/metrics"
	"github.com/federalgaz/campaignmail/internal/template"
)

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	MailMode  string `json:"mail_mode"`
	Templates int64  `json:"templates"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SlugResponse describes one built-in template
type SlugResponse struct {
	Slug   template.Slug   `json:"slug"`
	Name   string          `json:"name"`
	Styles template.Styles `json:"styles"`
}

// RequestBody is a template request as sent by clients. templateData may
// be an object or a JSON-encoded string, as stored with campaign records.
type RequestBody struct {
	template.Request
	TemplateData json.RawMessage `json:"templateData,omitempty"`
}

// RenderRequest is the body of POST /api/v1/render
type RenderRequest struct {
	TemplateSlug string `json:"templateSlug"`
	RequestBody
}

// resolve returns the template request with templateData decoded
func (b *RequestBody) resolve() (*template.Request, error) {
	req := b.Request

	data, err := decodeTemplateData(b.TemplateData)
	if err != nil {
		return nil, err
	}
	req.TemplateData = data
	return &req, nil
}

func decodeTemplateData(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("invalid template data: %w", err)
		}
		return template.ParseTemplateData(encoded)
	}
	return template.ParseTemplateData(string(raw))
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Version:  s.opts.Version,
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
		MailMode: s.opts.MailMode,
	}
	if s.opts.Templates != nil {
		if stats, err := s.opts.Templates.Stats(r.Context()); err == nil {
			resp.Templates = stats.Total
		}
	}

	s.sendJSON(w, http.StatusOK, resp)
}

// handleSlugs handles GET /api/v1/slugs
func (s *Server) handleSlugs(w http.ResponseWriter, r *http.Request) {
	slugs := template.Slugs()
	resp := make([]SlugResponse, 0, len(slugs))
	for _, slug := range slugs {
		d, _ := template.Lookup(slug)
		resp = append(resp, SlugResponse{Slug: slug, Name: d.Name, Styles: d.Styles})
	}

	s.sendJSON(w, http.StatusOK, map[string]any{"slugs": resp})
}

// handleRender handles POST /api/v1/render
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var body RenderRequest
	if err := s.decodeJSON(r, &body); err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := body.resolve()
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.engine.Render(body.TemplateSlug, req)
	metrics.IncRenders(string(result.Slug), result.Fallback)

	s.writeRendered(w, r, http.StatusOK, result)
}

// writeRendered answers with the JSON result, or the bare HTML document
// for ?format=html
func (s *Server) writeRendered(w http.ResponseWriter, r *http.Request, status int, result *template.Result) {
	switch r.URL.Query().Get("format") {
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(result.HTML))
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(result.Text))
	default:
		s.sendJSON(w, status, result)
	}
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON decodes the request body into v. An empty body leaves v as is.
func (s *Server) decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	var maxErr *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &maxErr):
		return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
	default:
		return errors.New("invalid request body")
	}
}

// pagination reads limit and offset query parameters
func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, 1000)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
