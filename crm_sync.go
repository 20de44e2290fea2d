package afflow

import (
	"context"
	"fmt"
	"time"

	"github.com/davidroman0O/afflow/crm"
	"github.com/davidroman0O/afflow/state"
)

// CRMSyncAgent promotes freshly converted prospects to the affiliate roster
// and mirrors lead records into the external contact store. Promotion is
// keyed by lead ID and happens at most once per lead, so re-running the
// stage after a partial failure cannot duplicate affiliates.
type CRMSyncAgent struct {
	cfg   CRMConfig
	store *crm.Store
	log   Logger
	now   func() time.Time
}

// NewCRMSyncAgent creates the CRM synchronization stage.
func NewCRMSyncAgent(cfg CRMConfig, store *crm.Store, log Logger, now func() time.Time) *CRMSyncAgent {
	return &CRMSyncAgent{cfg: cfg, store: store, log: log, now: now}
}

// Name implements Agent.Name.
func (a *CRMSyncAgent) Name() string { return stageCRM }

// Run implements Agent.Run.
func (a *CRMSyncAgent) Run(_ context.Context, st *state.State) error {
	promoted := 0
	// Collect IDs first; promotion mutates the prospect slice.
	var convertedIDs []string
	for _, p := range st.Prospects {
		if p.Status == state.StatusConverted {
			convertedIDs = append(convertedIDs, p.ID)
		}
	}
	for _, id := range convertedIDs {
		if _, err := st.PromoteToAffiliate(id); err != nil {
			return fmt.Errorf("promote %s: %w", id, err)
		}
		promoted++
		a.log.Info("crm: promoted %s to active affiliate", id)
	}

	synced, failed := 0, 0
	sync := func(lead *state.Lead) {
		if lead.Email() == "" {
			failed++
			lead.AppendNote(fmt.Sprintf("CRM sync skipped at %s: no email on record.",
				a.now().UTC().Format(time.RFC3339)))
			a.log.Warn("crm: cannot sync %s, no email", lead.ID)
			return
		}
		if err := a.store.Upsert(a.toRecord(lead)); err != nil {
			failed++
			lead.AppendNote(fmt.Sprintf("CRM sync failed at %s: %v.",
				a.now().UTC().Format(time.RFC3339), err))
			a.log.Warn("crm: sync %s failed: %v", lead.ID, err)
			return
		}
		synced++
	}

	for _, l := range st.ActiveAffiliates {
		sync(l)
	}
	for _, l := range st.Prospects {
		if l.Status == state.StatusContacted || l.Status == state.StatusInterested {
			sync(l)
		}
	}

	st.CRMUpdateStatus = fmt.Sprintf("%s sync at %s: %d promoted, %d synced, %d failed",
		a.store.ToolID(), a.now().UTC().Format(time.RFC3339), promoted, synced, failed)
	st.AppendDescription(fmt.Sprintf("CRM updated: %d new affiliates, %d records synced.", promoted, synced))
	return nil
}

func (a *CRMSyncAgent) toRecord(lead *state.Lead) crm.Record {
	rec := crm.Record{
		Email:          lead.Email(),
		FirstName:      lead.Name,
		LeadSource:     lead.Platform,
		Status:         string(lead.Status),
		Platform:       lead.Platform,
		LeadScore:      lead.Score(),
		AudienceSize:   lead.AudienceSize,
		EngagementRate: lead.EngagementRate,
		Notes:          lead.Notes,
	}
	if n := len(lead.OutreachHistory); n > 0 {
		last := lead.OutreachHistory[n-1]
		rec.LastOutreachAt = last.Timestamp
		rec.LastOutreachChannel = last.Channel
	}
	return rec
}
