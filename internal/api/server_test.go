package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"

	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/dispatch"
	"github.com/federalgaz/campaignmail/internal/sandbox"
	"github.com/federalgaz/campaignmail/internal/template"
)

const testAPIKey = "test-api-key"

type testEnv struct {
	server    *Server
	db        *bolt.DB
	templates *template.Storage
	sandbox   *sandbox.Storage
	reports   *dispatch.Storage
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestServer builds a server in sandbox mode, so sends are captured
func setupTestServer(t *testing.T, cfg config.APIConfig, modify ...func(*Options)) *testEnv {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "api.db"), 0600, nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	templates, err := template.NewStorage(db)
	if err != nil {
		t.Fatalf("template.NewStorage() error = %v", err)
	}
	sandboxStorage, err := sandbox.NewStorage(db)
	if err != nil {
		t.Fatalf("sandbox.NewStorage() error = %v", err)
	}
	reports, err := dispatch.NewStorage(db)
	if err != nil {
		t.Fatalf("dispatch.NewStorage() error = %v", err)
	}

	sender := sandbox.NewSender(nil, config.ModeSandbox, nil, sandboxStorage, testLogger())
	dispatcher := dispatch.New(sender, reports, nil, dispatch.Config{
		From: "kampanya@federalgaz.com",
	}, testLogger())
	t.Cleanup(dispatcher.Stop)

	opts := Options{
		Version:    "test",
		Hostname:   "mail.federalgaz.com",
		MailMode:   config.ModeSandbox,
		Templates:  templates,
		Dispatcher: dispatcher,
		Sandbox:    sandboxStorage,
	}
	for _, fn := range modify {
		fn(&opts)
	}

	return &testEnv{
		server:    NewServer(&cfg, opts, testLogger()),
		db:        db,
		templates: templates,
		sandbox:   sandboxStorage,
		reports:   reports,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAPIKey)

	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v. Body: %s", err, w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey})
	if err := env.templates.Create(context.Background(), &template.Record{Name: "kasim"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	decode(t, w, &resp)
	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
	if resp.MailMode != config.ModeSandbox {
		t.Errorf("MailMode = %q, want sandbox", resp.MailMode)
	}
	if resp.Templates != 1 {
		t.Errorf("Templates = %d, want 1", resp.Templates)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: "secret-key"})

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"no auth", "", "", http.StatusUnauthorized},
		{"wrong key", "Authorization", "Bearer wrong-key", http.StatusUnauthorized},
		{"correct key", "Authorization", "Bearer secret-key", http.StatusOK},
		{"x-api-key header", "X-API-Key", "secret-key", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/slugs", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_Hash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	// the hash wins over a plain key
	env := setupTestServer(t, config.APIConfig{APIKey: "plain-key", APIKeyHash: string(hash)})

	for key, want := range map[string]int{
		"hashed-key": http.StatusOK,
		"plain-key":  http.StatusUnauthorized,
	} {
		req := httptest.NewRequest("GET", "/api/v1/slugs", nil)
		req.Header.Set("Authorization", "Bearer "+key)
		w := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(w, req)

		if w.Code != want {
			t.Errorf("key %q Status = %d, want %d", key, w.Code, want)
		}
	}
}

func TestKeyID(t *testing.T) {
	id := keyID("secret-key")
	if len(id) != 12 || id != keyID("secret-key") {
		t.Errorf("keyID() = %q, want a stable 12 char id", id)
	}
	if strings.Contains(id, "secret") || id == keyID("other-key") {
		t.Errorf("keyID() = %q leaks or collides", id)
	}
}

func TestAuthMiddleware_NoKeyConfigured(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{})

	req := httptest.NewRequest("GET", "/api/v1/slugs", nil)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestIPFilter(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey, AllowedIPs: []string{"10.0.0.0/8"}})

	// httptest requests come from 192.0.2.1
	if w := env.do(t, "GET", "/api/v1/slugs", ""); w.Code != http.StatusForbidden {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusForbidden)
	}

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health Status = %d, want %d", w.Code, http.StatusOK)
	}

	req = httptest.NewRequest("GET", "/api/v1/slugs", nil)
	req.RemoteAddr = "10.1.2.3:4567"
	req.Header.Set("X-API-Key", testAPIKey)
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("allowed Status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestBodyLimit(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey, MaxBodyBytes: 16})

	w := env.do(t, "POST", "/api/v1/render", `{"templateSlug":"modern","subject":"a very long subject line"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSlugsEndpoint(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey})

	w := env.do(t, "GET", "/api/v1/slugs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Slugs []SlugResponse `json:"slugs"`
	}
	decode(t, w, &resp)
	if len(resp.Slugs) != len(template.Slugs()) {
		t.Fatalf("slugs = %d, want %d", len(resp.Slugs), len(template.Slugs()))
	}
	if resp.Slugs[0].Slug != template.SlugModern {
		t.Errorf("first slug = %q, want modern", resp.Slugs[0].Slug)
	}
	for _, s := range resp.Slugs {
		if s.Name == "" || s.Styles.HeaderBg == "" {
			t.Errorf("slug %q has no defaults: %+v", s.Slug, s)
		}
	}
}
