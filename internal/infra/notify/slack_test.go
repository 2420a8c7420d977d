package notify

import (
	"context"
	"testing"

	"github.com/searchlight-io/searchlight/internal/domain"
)

func TestDisabledNotifierIsSafe(t *testing.T) {
	s := NewSlack("", "#alerts")
	if s.Enabled() {
		t.Fatal("empty token must disable the notifier")
	}

	// Both calls must be no-ops, not panics.
	s.TicketCreated(context.Background(), domain.Ticket{Priority: domain.P0, Title: "site down"})
	s.RunFinished(context.Background(), domain.RunSummary{Status: domain.RunPartial, AnomalyCount: 2})
}

func TestEnabledWithToken(t *testing.T) {
	s := NewSlack("xoxb-test", "#alerts")
	if !s.Enabled() {
		t.Fatal("token must enable the notifier")
	}
}
