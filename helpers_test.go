package afflow

import (
	"context"
	"testing"
	"time"

	"github.com/davidroman0O/afflow/state"
)

// testLogger routes pipeline logs through the test output.
type testLogger struct {
	t *testing.T
}

func (l *testLogger) Debug(format string, args ...interface{}) { l.t.Logf("DEBUG: "+format, args...) }
func (l *testLogger) Info(format string, args ...interface{})  { l.t.Logf("INFO: "+format, args...) }
func (l *testLogger) Warn(format string, args ...interface{})  { l.t.Logf("WARN: "+format, args...) }
func (l *testLogger) Error(format string, args ...interface{}) { l.t.Logf("ERROR: "+format, args...) }

func newTestLogger(t *testing.T) Logger {
	return &testLogger{t: t}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newProspect(id string, score float64) *state.Lead {
	return &state.Lead{
		ID:                  id,
		Name:                "Lead " + id,
		ContactInfo:         map[string]string{"email": id + "@example.com"},
		Platform:            "youtube",
		AudienceSize:        10000,
		EngagementRate:      0.04,
		ContentQualityScore: score,
		RelevanceScore:      0,
		Status:              state.StatusNew,
	}
}

// flakyCourier fails the first n sends, then delegates to the mock.
type flakyCourier struct {
	failures int
	inner    Courier
}

func (c *flakyCourier) Send(ctx context.Context, channel, recipient, subject, body string) (Receipt, error) {
	if c.failures > 0 {
		c.failures--
		return Receipt{}, context.DeadlineExceeded
	}
	return c.inner.Send(ctx, channel, recipient, subject, body)
}
