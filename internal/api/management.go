package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/ratelimit"
)

// RateLimitsResponse is the response for GET /api/v1/ratelimits
type RateLimitsResponse struct {
	Enabled bool                   `json:"enabled"`
	Config  config.RateLimitConfig `json:"config"`
}

// RateLimitStatsResponse is the response for GET /api/v1/ratelimits/{level}/{key}
type RateLimitStatsResponse struct {
	Level       string `json:"level"`
	Key         string `json:"key"`
	HourlyCount int    `json:"hourly_count"`
	DailyCount  int    `json:"daily_count"`
	HourlyLimit int    `json:"hourly_limit"`
	DailyLimit  int    `json:"daily_limit"`
}

// DKIMResponse is the response for GET /api/v1/dkim
type DKIMResponse struct {
	Domain   string   `json:"domain"`
	Selector string   `json:"selector"`
	DNSName  string   `json:"dns_name"`
	DNSValue string   `json:"dns_value"`
	Chunks   []string `json:"chunks"`
}

// handleRateLimits handles GET /api/v1/ratelimits
func (s *Server) handleRateLimits(w http.ResponseWriter, r *http.Request) {
	if s.opts.Limiter == nil {
		s.sendJSON(w, http.StatusOK, RateLimitsResponse{Enabled: false})
		return
	}

	s.sendJSON(w, http.StatusOK, RateLimitsResponse{Enabled: true, Config: s.opts.Limiter.Config()})
}

// handleRateLimitStats handles GET /api/v1/ratelimits/{level}/{key}
func (s *Server) handleRateLimitStats(w http.ResponseWriter, r *http.Request) {
	level := ratelimit.Level(chi.URLParam(r, "level"))
	key := chi.URLParam(r, "key")

	if s.opts.Limiter == nil {
		s.sendError(w, http.StatusServiceUnavailable, "Rate limiting is not enabled")
		return
	}

	switch level {
	case ratelimit.LevelGlobal, ratelimit.LevelAPIKey, ratelimit.LevelRecipientDomain:
	default:
		s.sendError(w, http.StatusBadRequest, "unknown rate limit level")
		return
	}

	stats, err := s.opts.Limiter.GetStats(r.Context(), level, key)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to get rate limit stats")
		return
	}

	response := RateLimitStatsResponse{
		Level:       string(level),
		Key:         key,
		HourlyCount: stats.HourlyCount,
		DailyCount:  stats.DailyCount,
	}
	if limits := s.opts.Limiter.Limits(level, key); limits != nil {
		response.HourlyLimit = limits.MessagesPerHour
		response.DailyLimit = limits.MessagesPerDay
	}

	s.sendJSON(w, http.StatusOK, response)
}

// handleDKIM handles GET /api/v1/dkim
func (s *Server) handleDKIM(w http.ResponseWriter, r *http.Request) {
	kp := s.opts.DKIM
	if kp == nil {
		s.sendError(w, http.StatusNotFound, "DKIM signing is not enabled")
		return
	}

	s.sendJSON(w, http.StatusOK, DKIMResponse{
		Domain:   kp.Domain,
		Selector: kp.Selector,
		DNSName:  kp.DNSName(),
		DNSValue: kp.DNSRecord(),
		Chunks:   kp.DNSRecordChunks(),
	})
}
