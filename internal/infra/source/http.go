// Package source implements metric source connectors over HTTP.
//
// Each provider (analytics, search console, ads, uptime) exposes the same
// daily-series shape behind a different base URL, so one connector type
// covers all of them. Connectors only fetch and decode; window math and
// scoring happen downstream.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/searchlight-io/searchlight/internal/domain"
)

// maxErrorBody bounds how much of an error response gets quoted back.
const maxErrorBody = 512

// Config identifies one provider endpoint.
type Config struct {
	Name    domain.Source
	BaseURL string
	APIKey  string
	Timeout time.Duration // per-request (default 15s)
}

// HTTPSource fetches daily samples from a provider's REST API.
type HTTPSource struct {
	cfg    Config
	client *http.Client
}

// New creates a connector for one provider.
func New(cfg Config) *HTTPSource {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name identifies the provider.
func (s *HTTPSource) Name() domain.Source { return s.cfg.Name }

// seriesResponse is the provider wire format.
type seriesResponse struct {
	Samples []struct {
		Date  string  `json:"date"`
		Value float64 `json:"value"`
	} `json:"samples"`
}

// FetchDaily returns one sample per day in [start, end]. Days the
// provider has no data for are absent from the result.
func (s *HTTPSource) FetchDaily(ctx context.Context, siteID, metricKey string, start, end time.Time) ([]domain.Sample, error) {
	endpoint := fmt.Sprintf("%s/v1/sites/%s/metrics/%s",
		s.cfg.BaseURL, url.PathEscape(siteID), url.PathEscape(metricKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", s.cfg.Name, err)
	}
	q := req.URL.Query()
	q.Set("start", domain.DayString(start))
	q.Set("end", domain.DayString(end))
	req.URL.RawQuery = q.Encode()
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s fetch %s: %w", s.cfg.Name, metricKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%s fetch %s: status %d: %s", s.cfg.Name, metricKey, resp.StatusCode, body)
	}

	var series seriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
		return nil, fmt.Errorf("%s decode %s: %w", s.cfg.Name, metricKey, err)
	}

	samples := make([]domain.Sample, 0, len(series.Samples))
	for _, raw := range series.Samples {
		day, err := time.Parse("2006-01-02", raw.Date)
		if err != nil {
			return nil, fmt.Errorf("%s sample date %q: %w", s.cfg.Name, raw.Date, err)
		}
		samples = append(samples, domain.Sample{Date: day, Value: raw.Value})
	}
	return samples, nil
}
