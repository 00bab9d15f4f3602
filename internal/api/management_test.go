package api

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/dkim"
	"github.com/federalgaz/campaignmail/internal/ratelimit"
)

func newTestLimiter(t *testing.T) *ratelimit.Limiter {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "ratelimit.db"), 0600, nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	limiter, err := ratelimit.NewLimiter(db, config.RateLimitConfig{
		Enabled:                true,
		DefaultRecipientDomain: &config.LimitValues{MessagesPerHour: 100, MessagesPerDay: 1000},
		RecipientDomains: map[string]*config.LimitValues{
			"gmail.com": {MessagesPerHour: 5},
		},
	}, time.Minute)
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}
	t.Cleanup(func() { limiter.Stop() })
	return limiter
}

func TestRateLimitEndpoints(t *testing.T) {
	limiter := newTestLimiter(t)
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey}, func(o *Options) {
		o.Limiter = limiter
	})

	for i := 0; i < 2; i++ {
		if _, err := limiter.Allow(context.Background(), &ratelimit.Request{Recipient: "user@gmail.com"}); err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
	}

	w := env.do(t, "GET", "/api/v1/ratelimits", "")
	var cfg RateLimitsResponse
	decode(t, w, &cfg)
	if !cfg.Enabled || cfg.Config.RecipientDomains["gmail.com"] == nil {
		t.Errorf("ratelimits = %+v", cfg)
	}

	w = env.do(t, "GET", "/api/v1/ratelimits/recipient_domain/gmail.com", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d. Body: %s", w.Code, w.Body.String())
	}
	var stats RateLimitStatsResponse
	decode(t, w, &stats)
	if stats.HourlyCount != 2 || stats.HourlyLimit != 5 {
		t.Errorf("stats = %+v, want 2 of 5", stats)
	}

	w = env.do(t, "GET", "/api/v1/ratelimits/recipient_domain/example.com", "")
	decode(t, w, &stats)
	if stats.HourlyCount != 0 || stats.HourlyLimit != 100 || stats.DailyLimit != 1000 {
		t.Errorf("default domain stats = %+v", stats)
	}

	w = env.do(t, "GET", "/api/v1/ratelimits/sender/x", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown level Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRateLimitEndpoints_Disabled(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey})

	w := env.do(t, "GET", "/api/v1/ratelimits", "")
	var cfg RateLimitsResponse
	decode(t, w, &cfg)
	if cfg.Enabled {
		t.Error("Enabled = true without a limiter")
	}

	w = env.do(t, "GET", "/api/v1/ratelimits/global/global", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestDKIMEndpoint(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey})
	if w := env.do(t, "GET", "/api/v1/dkim", ""); w.Code != http.StatusNotFound {
		t.Errorf("disabled Status = %d, want %d", w.Code, http.StatusNotFound)
	}

	kp, err := dkim.GenerateKeySize("federalgaz.com", "fg2026", 1024)
	if err != nil {
		t.Fatalf("GenerateKeySize() error = %v", err)
	}
	env = setupTestServer(t, config.APIConfig{APIKey: testAPIKey}, func(o *Options) { o.DKIM = kp })

	w := env.do(t, "GET", "/api/v1/dkim", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp DKIMResponse
	decode(t, w, &resp)
	if resp.DNSName != "fg2026._domainkey.federalgaz.com" {
		t.Errorf("DNSName = %q", resp.DNSName)
	}
	if !strings.HasPrefix(resp.DNSValue, "v=DKIM1; k=rsa; p=") || len(resp.Chunks) == 0 {
		t.Errorf("DNS record = %q in %d chunks", resp.DNSValue, len(resp.Chunks))
	}
}
