package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/searchlight-io/searchlight/internal/domain"
)

func TestFetchDaily(t *testing.T) {
	var gotPath, gotAuth, gotStart, gotEnd string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotStart = r.URL.Query().Get("start")
		gotEnd = r.URL.Query().Get("end")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"samples":[
			{"date":"2026-08-01","value":1200},
			{"date":"2026-08-03","value":1180}
		]}`))
	}))
	defer server.Close()

	src := New(Config{Name: domain.SourceGA4, BaseURL: server.URL, APIKey: "secret"})
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	samples, err := src.FetchDaily(context.Background(), "site-1", "sessions", start, end)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if gotPath != "/v1/sites/site-1/metrics/sessions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotStart != "2026-08-01" || gotEnd != "2026-08-03" {
		t.Errorf("window = %s..%s", gotStart, gotEnd)
	}
	// The 2026-08-02 gap stays a gap; the connector never fills it.
	if len(samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(samples))
	}
	if !samples[0].Date.Equal(start) || samples[0].Value != 1200 {
		t.Errorf("first sample = %+v", samples[0])
	}
}

func TestFetchDailyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	src := New(Config{Name: domain.SourceGSC, BaseURL: server.URL})
	_, err := src.FetchDaily(context.Background(), "site-1", "clicks", time.Now().AddDate(0, 0, -7), time.Now())
	if err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestFetchDailyBadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"samples":[{"date":"08/01/2026","value":5}]}`))
	}))
	defer server.Close()

	src := New(Config{Name: domain.SourceAds, BaseURL: server.URL})
	_, err := src.FetchDaily(context.Background(), "site-1", "spend", time.Now().AddDate(0, 0, -7), time.Now())
	if err == nil {
		t.Fatal("expected error on malformed date")
	}
}

func TestFetchDailyContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	src := New(Config{Name: domain.SourceUptime, BaseURL: server.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := src.FetchDaily(ctx, "site-1", "error_rate", time.Now().AddDate(0, 0, -7), time.Now())
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
