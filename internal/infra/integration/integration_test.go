package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/searchlight-io/searchlight/internal/domain"
)

func TestWebhookExecutorApply(t *testing.T) {
	var got applyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("auth = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(domain.ChangeReceipt{Applied: true, ReferenceID: "chg-9"})
	}))
	defer server.Close()

	e := NewWebhookExecutor(server.URL, "tok")
	receipt, err := e.Apply(context.Background(), "plan-1", []domain.PlanItem{
		{Action: "resolve_indexing", Target: "sitemap"},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !receipt.Applied || receipt.ReferenceID != "chg-9" {
		t.Errorf("receipt = %+v", receipt)
	}
	if got.PlanID != "plan-1" || len(got.Items) != 1 {
		t.Errorf("request = %+v", got)
	}
}

func TestWebhookExecutorErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "change window closed", http.StatusForbidden)
	}))
	defer server.Close()

	e := NewWebhookExecutor(server.URL, "")
	if _, err := e.Apply(context.Background(), "plan-1", nil); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestDisabledExecutorRefuses(t *testing.T) {
	if _, err := (DisabledExecutor{}).Apply(context.Background(), "plan-1", nil); err == nil {
		t.Fatal("disabled executor must refuse")
	}
}

func TestContentCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("site_id") != "site-1" || r.URL.Query().Get("topic") != "content" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(domain.CorroborationResult{Degraded: true, Details: "12 pages changed"})
	}))
	defer server.Close()

	c := NewContentCheck(server.URL)
	result, err := c.Run(context.Background(), "site-1", "content", 7)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Degraded {
		t.Error("expected degraded result")
	}
}
