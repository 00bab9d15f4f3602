package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/sandbox"
)

func seedSandbox(t *testing.T, env *testEnv) {
	t.Helper()

	now := time.Now().UTC()
	for _, msg := range []*sandbox.Message{
		{
			ID:         "old",
			From:       "kampanya@federalgaz.com",
			To:         []string{"ahmet@example.com"},
			Subject:    "Old campaign",
			Tag:        "modern",
			HTML:       "<p>old</p>",
			Text:       "old",
			Mode:       config.ModeSandbox,
			CapturedAt: now.Add(-48 * time.Hour),
		},
		{
			ID:         "new",
			From:       "kampanya@federalgaz.com",
			To:         []string{"ayse@example.com"},
			Subject:    "New campaign",
			Tag:        "black-friday",
			HTML:       "<p>new</p>",
			Text:       "new",
			Headers:    map[string]string{"X-Campaign": "bf"},
			Mode:       config.ModeSandbox,
			CapturedAt: now,
		},
	} {
		if err := env.sandbox.Save(context.Background(), msg); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
}

func TestSandboxEndpoints(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey})
	seedSandbox(t, env)

	w := env.do(t, "GET", "/api/v1/sandbox/messages", "")
	var list SandboxListResponse
	decode(t, w, &list)
	if list.Total != 2 || list.Messages[0].ID != "new" {
		t.Fatalf("list = %+v", list)
	}
	if list.Messages[0].HTML != "" {
		t.Error("list should leave out bodies")
	}

	w = env.do(t, "GET", "/api/v1/sandbox/messages?tag=modern", "")
	decode(t, w, &list)
	if list.Total != 1 || list.Messages[0].ID != "old" {
		t.Errorf("tag filter = %+v", list)
	}

	w = env.do(t, "GET", "/api/v1/sandbox/messages/new", "")
	var msg sandbox.Message
	decode(t, w, &msg)
	if msg.HTML != "<p>new</p>" {
		t.Errorf("HTML = %q", msg.HTML)
	}

	w = env.do(t, "GET", "/api/v1/sandbox/messages/new/html", "")
	if w.Body.String() != "<p>new</p>" {
		t.Errorf("html body = %q", w.Body.String())
	}

	w = env.do(t, "GET", "/api/v1/sandbox/messages/new/html?format=raw", "")
	if ct := w.Header().Get("Content-Type"); ct != "message/rfc822" {
		t.Errorf("raw Content-Type = %q", ct)
	}
	raw := w.Body.String()
	if !strings.Contains(raw, "Subject: New campaign") || !strings.Contains(raw, "X-Campaign: bf") {
		t.Errorf("raw message headers missing:\n%s", raw)
	}

	w = env.do(t, "GET", "/api/v1/sandbox/stats", "")
	var stats sandbox.Stats
	decode(t, w, &stats)
	if stats.Total != 2 || stats.ByTag["black-friday"] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	w = env.do(t, "GET", "/api/v1/sandbox/messages/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing Status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = env.do(t, "DELETE", "/api/v1/sandbox/messages/new", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete Status = %d, want %d", w.Code, http.StatusNoContent)
	}
	w = env.do(t, "DELETE", "/api/v1/sandbox/messages/new", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("delete twice Status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSandboxClear(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey})
	seedSandbox(t, env)

	w := env.do(t, "DELETE", "/api/v1/sandbox/messages?older_than=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad duration Status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = env.do(t, "DELETE", "/api/v1/sandbox/messages?older_than=24h", "")
	var resp map[string]int
	decode(t, w, &resp)
	if resp["deleted"] != 1 {
		t.Errorf("deleted = %d, want 1", resp["deleted"])
	}

	w = env.do(t, "DELETE", "/api/v1/sandbox/messages", "")
	decode(t, w, &resp)
	if resp["deleted"] != 1 {
		t.Errorf("deleted = %d, want 1", resp["deleted"])
	}
}

func TestSandboxDisabled(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey}, func(o *Options) {
		o.Sandbox = nil
		o.MailMode = config.ModeProduction
	})

	w := env.do(t, "GET", "/api/v1/sandbox/messages", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
