// Package notify pushes run outcomes and urgent tickets to Slack.
// Notifications are fire-and-forget: delivery failures are logged and
// never affect the pipeline.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/searchlight-io/searchlight/internal/domain"
)

// Slack posts to a single channel. A zero token disables it entirely.
type Slack struct {
	client  *slack.Client
	channel string
}

// NewSlack creates a notifier. Returns a disabled notifier when token is
// empty so callers never need a nil check.
func NewSlack(token, channel string) *Slack {
	if token == "" {
		return &Slack{}
	}
	return &Slack{client: slack.New(token), channel: channel}
}

// Enabled reports whether a token was configured.
func (s *Slack) Enabled() bool { return s.client != nil }

// TicketCreated announces a new urgent ticket.
func (s *Slack) TicketCreated(ctx context.Context, t domain.Ticket) {
	if s.client == nil {
		return
	}
	text := fmt.Sprintf(":rotating_light: *%s* %s\n%s: site `%s`, target `%s`\n%s",
		t.Priority, t.Title, t.IssueType, t.SiteID, t.Target, t.Evidence)
	s.post(ctx, text)
}

// RunFinished summarizes a finished diagnostic run. Quiet completed runs
// are skipped to keep the channel readable.
func (s *Slack) RunFinished(ctx context.Context, run domain.RunSummary) {
	if s.client == nil {
		return
	}
	if run.Status == domain.RunCompleted && run.AnomalyCount == 0 {
		return
	}
	text := fmt.Sprintf("Diagnostic run for `%s` finished *%s*: %d anomalies, %d new tickets",
		run.SiteID, run.Status, run.AnomalyCount, run.TicketCount)
	if run.PrimaryHypothesis != "" {
		text += fmt.Sprintf("\nPrimary hypothesis: `%s` (%s confidence)", run.PrimaryHypothesis, run.PrimaryConfidence)
	}
	if len(run.FailedSources) > 0 {
		text += fmt.Sprintf("\nFailed sources: %v", run.FailedSources)
	}
	s.post(ctx, text)
}

func (s *Slack) post(ctx context.Context, text string) {
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		log.Printf("[notify] slack post failed: %v", err)
	}
}
