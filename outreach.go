package afflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidroman0O/afflow/state"
)

// Receipt is the delivery outcome reported by a courier for one message.
type Receipt struct {
	Delivered bool
	Converted bool
	Recipient string
	MessageID string
}

// Courier delivers one outreach message over a channel and reports the
// outcome. A conversion in the receipt means the recipient accepted the
// program immediately; real couriers typically report Converted false and
// conversions arrive later through another path.
type Courier interface {
	Send(ctx context.Context, channel, recipient, subject, body string) (Receipt, error)
}

// CourierFunc adapts a function to the Courier interface.
type CourierFunc func(ctx context.Context, channel, recipient, subject, body string) (Receipt, error)

// Send implements Courier.
func (f CourierFunc) Send(ctx context.Context, channel, recipient, subject, body string) (Receipt, error) {
	return f(ctx, channel, recipient, subject, body)
}

// mockCourier accepts every email delivery and converts one known demo
// recipient so a full cycle exercises the conversion path.
type mockCourier struct{}

// NewMockCourier returns an offline delivery backend.
func NewMockCourier() Courier { return mockCourier{} }

func (mockCourier) Send(_ context.Context, channel, recipient, _, _ string) (Receipt, error) {
	if channel != "email" {
		return Receipt{}, fmt.Errorf("unsupported channel %q", channel)
	}
	return Receipt{
		Delivered: true,
		Converted: recipient == "ai.insights@example.com",
		Recipient: recipient,
		MessageID: "msg_" + uuid.NewString(),
	}, nil
}

// OutreachAgent contacts the selected targets over the configured channel.
// Each delivery is recorded in the lead's outreach history; leads already
// contacted or converted are skipped, so a retried run does not double-send.
type OutreachAgent struct {
	cfg     OutreachConfig
	oracle  Oracle
	courier Courier
	log     Logger
	now     func() time.Time
}

// NewOutreachAgent creates the outreach stage.
func NewOutreachAgent(cfg OutreachConfig, oracle Oracle, courier Courier, log Logger, now func() time.Time) *OutreachAgent {
	return &OutreachAgent{cfg: cfg, oracle: oracle, courier: courier, log: log, now: now}
}

// Name implements Agent.Name.
func (a *OutreachAgent) Name() string { return stageOutreach }

// Run implements Agent.Run.
func (a *OutreachAgent) Run(ctx context.Context, st *state.State) error {
	targets := st.OutreachTargets
	if len(targets) == 0 {
		st.AppendDescription("No outreach targets this cycle.")
		a.log.Info("outreach: no targets selected")
		return nil
	}

	max := a.cfg.MaxPerRun
	if max <= 0 || max > len(targets) {
		max = len(targets)
	}

	sent, converted := 0, 0
	for _, lead := range targets[:max] {
		if lead.Status == state.StatusContacted || lead.Status == state.StatusConverted {
			a.log.Debug("outreach: skipping %s, already %s", lead.ID, lead.Status)
			continue
		}
		email := lead.Email()
		if email == "" {
			lead.AppendNote(fmt.Sprintf("Outreach skipped at %s: no %s channel on record.",
				a.now().UTC().Format(time.RFC3339), a.cfg.Method))
			a.log.Warn("outreach: %s has no email channel, skipping", lead.ID)
			continue
		}

		subject := a.render(a.cfg.EmailSubjectTemplate, lead)
		body := a.compose(ctx, lead)

		receipt, err := a.courier.Send(ctx, a.cfg.Method, email, subject, body)
		if err != nil {
			return fmt.Errorf("send to %s: %w", lead.ID, err)
		}

		status := "failed"
		if receipt.Delivered {
			status = "delivered"
			lead.Status = state.StatusContacted
			sent++
		}
		if receipt.Converted {
			lead.Status = state.StatusConverted
			converted++
		}
		lead.RecordOutreach(state.OutreachAttempt{
			Timestamp:      a.now().UTC(),
			Channel:        a.cfg.Method,
			Subject:        subject,
			Recipient:      receipt.Recipient,
			MessageID:      receipt.MessageID,
			MessageExcerpt: excerpt(body),
			Status:         status,
		})
		a.log.Info("outreach: %s to %s %s", a.cfg.Method, lead.ID, status)
	}

	// The working set is consumed; the next cycle selects fresh.
	st.OutreachTargets = nil
	st.AppendDescription(fmt.Sprintf("Sent %d outreach messages, %d converted.", sent, converted))
	return nil
}

// compose produces the message body, asking the oracle to personalize the
// configured template and falling back to the plain template on failure.
func (a *OutreachAgent) compose(ctx context.Context, lead *state.Lead) string {
	base := a.render(a.cfg.MessageTemplates["default"], lead)

	prompt := fmt.Sprintf(
		"Personalize this affiliate outreach message for %s, a %s creator with %d followers. "+
			"Keep it under 120 words and keep the commission terms unchanged.\n\n%s",
		lead.Name, lead.Platform, lead.AudienceSize, base)
	resp, err := a.oracle.Complete(ctx, prompt)
	if err != nil || strings.TrimSpace(resp) == "" {
		return base
	}
	return strings.TrimSpace(resp)
}

func (a *OutreachAgent) render(tmpl string, lead *state.Lead) string {
	r := strings.NewReplacer(
		"{LEAD_NAME}", lead.Name,
		"{LEAD_PLATFORM}", lead.Platform,
	)
	return r.Replace(tmpl)
}

func excerpt(body string) string {
	const n = 80
	if len(body) <= n {
		return body
	}
	return body[:n] + "..."
}
