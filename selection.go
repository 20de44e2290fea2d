package afflow

import (
	"context"
	"sort"

	"github.com/davidroman0O/afflow/state"
)

// selectOutreachTargets picks the prospects to contact next. Eligible leads
// are NEW prospects with an email channel, ranked by combined score with a
// stable ID tie-break. When the eligible count is within the configured
// maximum every eligible lead is selected; otherwise only the top maximum.
//
// Ranking happens before any dispatch, so a concurrent outreach
// implementation cannot change which leads are picked.
func (o *Orchestrator) selectOutreachTargets(st *state.State) {
	max := o.cfg.Workflow.MaxOutreachPerCycle
	if max <= 0 {
		max = 10
	}

	var eligible []*state.Lead
	for _, p := range st.Prospects {
		if p.Status == state.StatusNew && p.Email() != "" {
			eligible = append(eligible, p)
		}
	}

	if len(eligible) == 0 {
		o.log.Info("pipeline %s: no eligible prospects found for outreach", o.id)
		st.OutreachTargets = nil
		return
	}

	if len(eligible) <= max {
		st.OutreachTargets = eligible
		o.log.Info("pipeline %s: selected all %d eligible prospects for outreach", o.id, len(eligible))
		return
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		si, sj := eligible[i].Score(), eligible[j].Score()
		if si != sj {
			return si > sj
		}
		return eligible[i].ID < eligible[j].ID
	})

	st.OutreachTargets = eligible[:max]
	o.log.Info("pipeline %s: selected %d top prospects for outreach out of %d eligible",
		o.id, max, len(eligible))
}

// ApprovalPolicy decides which pending commissions are released for payment.
// The default policy approves everything; hosts that need a real approval
// gate supply their own implementation.
type ApprovalPolicy interface {
	Approve(ctx context.Context, pending []*state.Commission) error
}

// ApproveAll promotes every pending commission to APPROVED.
type ApproveAll struct{}

// Approve implements ApprovalPolicy.
func (ApproveAll) Approve(_ context.Context, pending []*state.Commission) error {
	for _, c := range pending {
		c.Status = state.CommissionApproved
	}
	return nil
}

// selectCommissionsForPayment runs the approval policy over every PENDING
// commission in the log.
func (o *Orchestrator) selectCommissionsForPayment(ctx context.Context, st *state.State) error {
	var pending []*state.Commission
	for _, c := range st.CommissionsLog {
		if c.Status == state.CommissionPending {
			pending = append(pending, c)
		}
	}

	if err := o.approval.Approve(ctx, pending); err != nil {
		return err
	}

	approved := 0
	for _, c := range pending {
		if c.Status == state.CommissionApproved {
			approved++
		}
	}
	o.log.Info("pipeline %s: approved %d commissions for payment", o.id, approved)
	return nil
}
