package afflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidroman0O/afflow/state"
)

func TestOutreachContactsTargets(t *testing.T) {
	cfg := DefaultConfig().Outreach
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	var sentSubjects []string
	courier := CourierFunc(func(_ context.Context, channel, recipient, subject, _ string) (Receipt, error) {
		sentSubjects = append(sentSubjects, subject)
		return Receipt{Delivered: true, Recipient: recipient, MessageID: "msg_1"}, nil
	})
	agent := NewOutreachAgent(cfg, NewCannedOracle(), courier, newTestLogger(t), fixedClock(now))

	st := state.New()
	lead := newProspect("lead_1", 7)
	st.Prospects = []*state.Lead{lead}
	st.OutreachTargets = []*state.Lead{lead}

	require.NoError(t, agent.Run(context.Background(), st))

	assert.Equal(t, state.StatusContacted, lead.Status)
	require.Len(t, lead.OutreachHistory, 1)
	att := lead.OutreachHistory[0]
	assert.Equal(t, "email", att.Channel)
	assert.Equal(t, "delivered", att.Status)
	assert.Equal(t, now, att.Timestamp)

	require.Len(t, sentSubjects, 1)
	assert.Equal(t, "Collaboration Opportunity: Lead lead_1 x Our Brand", sentSubjects[0])

	assert.Empty(t, st.OutreachTargets)
}

func TestOutreachSkipsAlreadyContacted(t *testing.T) {
	cfg := DefaultConfig().Outreach
	sends := 0
	courier := CourierFunc(func(_ context.Context, _, recipient, _, _ string) (Receipt, error) {
		sends++
		return Receipt{Delivered: true, Recipient: recipient}, nil
	})
	agent := NewOutreachAgent(cfg, NewCannedOracle(), courier, newTestLogger(t), time.Now)

	contacted := newProspect("contacted", 5)
	contacted.Status = state.StatusContacted
	converted := newProspect("converted", 5)
	converted.Status = state.StatusConverted
	fresh := newProspect("fresh", 5)

	st := state.New()
	st.Prospects = []*state.Lead{contacted, converted, fresh}
	st.OutreachTargets = []*state.Lead{contacted, converted, fresh}

	require.NoError(t, agent.Run(context.Background(), st))
	assert.Equal(t, 1, sends)
	assert.Empty(t, contacted.OutreachHistory)
	assert.Empty(t, converted.OutreachHistory)
	assert.Len(t, fresh.OutreachHistory, 1)
}

func TestOutreachConversionMarksLead(t *testing.T) {
	cfg := DefaultConfig().Outreach
	courier := CourierFunc(func(_ context.Context, _, recipient, _, _ string) (Receipt, error) {
		return Receipt{Delivered: true, Converted: true, Recipient: recipient}, nil
	})
	agent := NewOutreachAgent(cfg, NewCannedOracle(), courier, newTestLogger(t), time.Now)

	lead := newProspect("lead_1", 5)
	st := state.New()
	st.Prospects = []*state.Lead{lead}
	st.OutreachTargets = []*state.Lead{lead}

	require.NoError(t, agent.Run(context.Background(), st))
	assert.Equal(t, state.StatusConverted, lead.Status)
}

func TestOutreachNoTargetsIsSuccess(t *testing.T) {
	cfg := DefaultConfig().Outreach
	agent := NewOutreachAgent(cfg, NewCannedOracle(), NewMockCourier(), newTestLogger(t), time.Now)
	st := state.New()

	require.NoError(t, agent.Run(context.Background(), st))
	assert.Contains(t, st.TaskDescription, "No outreach targets")
}

func TestOutreachUsesOraclePersonalization(t *testing.T) {
	cfg := DefaultConfig().Outreach
	oracle := OracleFunc(func(context.Context, string) (string, error) {
		return "Hi there, personalized pitch.", nil
	})
	var body string
	courier := CourierFunc(func(_ context.Context, _, recipient, _, b string) (Receipt, error) {
		body = b
		return Receipt{Delivered: true, Recipient: recipient}, nil
	})
	agent := NewOutreachAgent(cfg, oracle, courier, newTestLogger(t), time.Now)

	lead := newProspect("lead_1", 5)
	st := state.New()
	st.OutreachTargets = []*state.Lead{lead}

	require.NoError(t, agent.Run(context.Background(), st))
	assert.Equal(t, "Hi there, personalized pitch.", body)
}

func TestOutreachFallsBackToTemplate(t *testing.T) {
	cfg := DefaultConfig().Outreach
	var body string
	courier := CourierFunc(func(_ context.Context, _, recipient, _, b string) (Receipt, error) {
		body = b
		return Receipt{Delivered: true, Recipient: recipient}, nil
	})
	// The canned oracle returns nothing for personalization prompts.
	agent := NewOutreachAgent(cfg, NewCannedOracle(), courier, newTestLogger(t), time.Now)

	lead := newProspect("lead_1", 5)
	lead.Name = "Creator One"
	lead.Platform = "twitter"
	st := state.New()
	st.OutreachTargets = []*state.Lead{lead}

	require.NoError(t, agent.Run(context.Background(), st))
	assert.Contains(t, body, "Creator One")
	assert.Contains(t, body, "twitter")
	assert.NotContains(t, body, "{LEAD_NAME}")
}

func TestOutreachRespectsMaxPerRun(t *testing.T) {
	cfg := DefaultConfig().Outreach
	cfg.MaxPerRun = 2
	sends := 0
	courier := CourierFunc(func(_ context.Context, _, recipient, _, _ string) (Receipt, error) {
		sends++
		return Receipt{Delivered: true, Recipient: recipient}, nil
	})
	agent := NewOutreachAgent(cfg, NewCannedOracle(), courier, newTestLogger(t), time.Now)

	st := state.New()
	for _, id := range []string{"a", "b", "c", "d"} {
		st.OutreachTargets = append(st.OutreachTargets, newProspect(id, 5))
	}

	require.NoError(t, agent.Run(context.Background(), st))
	assert.Equal(t, 2, sends)
}
