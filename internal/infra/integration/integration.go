// Package integration implements the outbound collaborator interfaces
// over HTTP: the change executor that applies fix-plan items and the
// corroboration check consulted by the classifier.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/searchlight-io/searchlight/internal/domain"
)

const maxErrorBody = 512

// ─── Change Executor ────────────────────────────────────────────────────────

// WebhookExecutor applies plan items by POSTing them to an operator-run
// endpoint. The endpoint owns the actual change; Searchlight only gets a
// receipt back.
type WebhookExecutor struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookExecutor creates an executor for the given endpoint.
func NewWebhookExecutor(url, token string) *WebhookExecutor {
	return &WebhookExecutor{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type applyRequest struct {
	PlanID string            `json:"plan_id"`
	Items  []domain.PlanItem `json:"items"`
}

// Apply delivers the plan items and decodes the receipt.
func (e *WebhookExecutor) Apply(ctx context.Context, planID string, items []domain.PlanItem) (domain.ChangeReceipt, error) {
	payload, err := json.Marshal(applyRequest{PlanID: planID, Items: items})
	if err != nil {
		return domain.ChangeReceipt{}, fmt.Errorf("encode apply request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return domain.ChangeReceipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return domain.ChangeReceipt{}, fmt.Errorf("apply plan %s: %w", planID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.ChangeReceipt{}, fmt.Errorf("apply plan %s: status %d: %s", planID, resp.StatusCode, body)
	}

	var receipt domain.ChangeReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return domain.ChangeReceipt{}, fmt.Errorf("decode receipt for plan %s: %w", planID, err)
	}
	return receipt, nil
}

// DisabledExecutor refuses every apply. Wired when no executor endpoint
// is configured so plans stay pending instead of silently "executing".
type DisabledExecutor struct{}

// Apply always fails.
func (DisabledExecutor) Apply(_ context.Context, planID string, _ []domain.PlanItem) (domain.ChangeReceipt, error) {
	return domain.ChangeReceipt{}, fmt.Errorf("plan %s: no change executor configured", planID)
}

// ─── Corroboration Check ────────────────────────────────────────────────────

// ContentCheck asks an external service whether a secondary signal
// degraded over the window.
type ContentCheck struct {
	url    string
	client *http.Client
}

// NewContentCheck creates a check client for the given endpoint.
func NewContentCheck(url string) *ContentCheck {
	return &ContentCheck{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Run queries the check endpoint.
func (c *ContentCheck) Run(ctx context.Context, siteID, topic string, windowDays int) (domain.CorroborationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.CorroborationResult{}, err
	}
	q := req.URL.Query()
	q.Set("site_id", siteID)
	q.Set("topic", topic)
	q.Set("window_days", fmt.Sprint(windowDays))
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.CorroborationResult{}, fmt.Errorf("corroboration %s: %w", topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.CorroborationResult{}, fmt.Errorf("corroboration %s: status %d: %s", topic, resp.StatusCode, body)
	}

	var result domain.CorroborationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.CorroborationResult{}, fmt.Errorf("decode corroboration %s: %w", topic, err)
	}
	return result, nil
}
