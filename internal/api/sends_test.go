package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/federalgaz/campaignmail/internal/config"
	"github.com/federalgaz/campaignmail/internal/dispatch"
)

func TestSendEndpoint(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey})

	body := `{
		"templateSlug": "weekend-sale",
		"request": {"subject": "Weekend Sale", "content": "Two days only"},
		"recipients": [{"email": "ayse@example.com"}]
	}`
	w := env.do(t, "POST", "/api/v1/send", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Status = %d, want %d. Body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	var report dispatch.Report
	decode(t, w, &report)
	if report.ID == "" || report.Status != dispatch.StatusRunning {
		t.Fatalf("report = %+v", report)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		w := env.do(t, "GET", "/api/v1/sends/"+report.ID, "")
		if w.Code != http.StatusOK {
			t.Fatalf("GET Status = %d", w.Code)
		}
		var got dispatch.Report
		decode(t, w, &got)
		if got.Finished() {
			if got.Status != dispatch.StatusCompleted || got.Provider != "sandbox" {
				t.Errorf("finished report = %+v", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("dispatch did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w = env.do(t, "GET", "/api/v1/sends?status=completed", "")
	var list SendListResponse
	decode(t, w, &list)
	if list.Total != 1 || list.Sends[0].Items != nil {
		t.Errorf("list = %+v", list)
	}

	w = env.do(t, "DELETE", "/api/v1/sends/"+report.ID, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("DELETE Status = %d, want %d", w.Code, http.StatusNoContent)
	}
	w = env.do(t, "GET", "/api/v1/sends/"+report.ID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("GET after delete Status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSendEndpointValidation(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"no recipients", `{"request":{"subject":"S"}}`, http.StatusBadRequest},
		{"empty recipients", `{"request":{"subject":"S"},"recipients":[]}`, http.StatusBadRequest},
		{"invalid from", `{"from":"nope","recipients":[{"email":"a@b.com"}]}`, http.StatusBadRequest},
		{"invalid json", `{invalid}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/v1/send", tt.body)
			if w.Code != tt.want {
				t.Errorf("Status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestSendEndpoint_Wait(t *testing.T) {
	env := setupTestServer(t, config.APIConfig{APIKey: testAPIKey})

	w := env.do(t, "POST", "/api/v1/send?wait=true", `{"request":{"subject":"S"},"recipients":[{"email":"a@example.com"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var report dispatch.Report
	decode(t, w, &report)
	if report.Status != dispatch.StatusCompleted || len(report.Items) != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.Slug != "modern" {
		t.Errorf("Slug = %q, want modern for an empty slug", report.Slug)
	}
}
