package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lead(id string, status LeadStatus) *Lead {
	return &Lead{
		ID:          id,
		Name:        "Lead " + id,
		ContactInfo: map[string]string{"email": id + "@example.com"},
		Status:      status,
	}
}

func TestAddProspectDeduplicates(t *testing.T) {
	st := New()

	assert.True(t, st.AddProspect(lead("a", StatusNew)))
	assert.False(t, st.AddProspect(lead("a", StatusNew)))
	assert.Len(t, st.Prospects, 1)

	assert.False(t, st.AddProspect(nil))
	assert.False(t, st.AddProspect(&Lead{}))
}

func TestAddProspectChecksAffiliates(t *testing.T) {
	st := New()
	st.ActiveAffiliates = []*Lead{lead("a", StatusConverted)}

	assert.False(t, st.AddProspect(lead("a", StatusNew)))
	assert.Empty(t, st.Prospects)
}

func TestPromoteToAffiliate(t *testing.T) {
	st := New()
	st.Prospects = []*Lead{lead("a", StatusConverted), lead("b", StatusNew)}

	promoted, err := st.PromoteToAffiliate("a")
	require.NoError(t, err)
	assert.Equal(t, "a", promoted.ID)
	assert.Len(t, st.Prospects, 1)
	assert.Len(t, st.ActiveAffiliates, 1)

	// Promoting again returns the existing affiliate without duplicating.
	again, err := st.PromoteToAffiliate("a")
	require.NoError(t, err)
	assert.Same(t, promoted, again)
	assert.Len(t, st.ActiveAffiliates, 1)
}

func TestPromoteToAffiliateRejectsUnconverted(t *testing.T) {
	st := New()
	st.Prospects = []*Lead{lead("b", StatusContacted)}

	_, err := st.PromoteToAffiliate("b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONTACTED")

	_, err = st.PromoteToAffiliate("missing")
	require.Error(t, err)
}

func TestAppendCommissionDeduplicates(t *testing.T) {
	st := New()
	c := &Commission{ID: "comm_tx_1", AffiliateID: "a", Amount: 10, Status: CommissionPending}

	assert.True(t, st.AppendCommission(c))
	assert.False(t, st.AppendCommission(&Commission{ID: "comm_tx_1"}))
	assert.Len(t, st.CommissionsLog, 1)

	assert.False(t, st.AppendCommission(nil))
	assert.False(t, st.AppendCommission(&Commission{}))
}

func TestLeadScoreAndEmail(t *testing.T) {
	l := &Lead{
		ContentQualityScore: 8,
		RelevanceScore:      9,
		ContactInfo:         map[string]string{"email": "x@example.com"},
	}
	assert.Equal(t, 17.0, l.Score())
	assert.Equal(t, "x@example.com", l.Email())

	var none Lead
	assert.Empty(t, none.Email())
}

func TestAppendNote(t *testing.T) {
	l := &Lead{}
	l.AppendNote("first")
	l.AppendNote("second")
	assert.Equal(t, "first\nsecond", l.Notes)
}

func TestRecordOutreach(t *testing.T) {
	l := &Lead{}
	l.RecordOutreach(OutreachAttempt{Channel: "email", Status: "delivered", Timestamp: time.Now()})
	l.RecordOutreach(OutreachAttempt{Channel: "email", Status: "failed", Timestamp: time.Now()})
	require.Len(t, l.OutreachHistory, 2)
	assert.Equal(t, "failed", l.OutreachHistory[1].Status)
}

func TestAppendDescription(t *testing.T) {
	st := New()
	st.AppendDescription("Found 3 prospects.")
	st.AppendDescription("")
	st.AppendDescription("Sent 2 messages.")
	assert.Equal(t, "Found 3 prospects. Sent 2 messages.", st.TaskDescription)
}

func TestNewStateStartsAtInitial(t *testing.T) {
	st := New()
	assert.Equal(t, "initial", st.CurrentTask)
	assert.Empty(t, st.LastError)
}
