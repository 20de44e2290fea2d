package afflow

import (
	"context"
	"fmt"
	"time"

	"github.com/davidroman0O/afflow/salesfeed"
	"github.com/davidroman0O/afflow/state"
)

// CommissionAgent pulls unprocessed sales from the ledger and records a
// commission for each one attributed to a known affiliate. Commission IDs
// derive from the transaction ID, so a sale processed twice produces one
// log entry; sales for unknown affiliates are quarantined with a reason
// instead of silently dropped.
type CommissionAgent struct {
	cfg      CommissionConfig
	ledger   *salesfeed.Ledger
	treasury Treasury
	log      Logger
	now      func() time.Time
}

// NewCommissionAgent creates the commission tracking stage.
func NewCommissionAgent(cfg CommissionConfig, ledger *salesfeed.Ledger, treasury Treasury, log Logger, now func() time.Time) *CommissionAgent {
	return &CommissionAgent{cfg: cfg, ledger: ledger, treasury: treasury, log: log, now: now}
}

// Name implements Agent.Name.
func (a *CommissionAgent) Name() string { return stageCommission }

// Run implements Agent.Run.
func (a *CommissionAgent) Run(ctx context.Context, st *state.State) error {
	sales, err := a.ledger.Unprocessed(ctx)
	if err != nil {
		return fmt.Errorf("fetch sales: %w", err)
	}
	if len(sales) == 0 {
		st.AppendDescription("No new sales to process.")
		a.log.Info("commission: no unprocessed sales")
		return nil
	}

	recorded, quarantined, paid := 0, 0, 0
	for _, sale := range sales {
		if !a.knownAffiliate(st, sale.AffiliateID) {
			reason := fmt.Sprintf("no active affiliate or converted prospect with id %s", sale.AffiliateID)
			if err := a.ledger.Quarantine(ctx, sale, reason); err != nil {
				return fmt.Errorf("quarantine sale %s: %w", sale.TransactionID, err)
			}
			quarantined++
			a.log.Warn("commission: quarantined sale %s: %s", sale.TransactionID, reason)
			continue
		}

		commID := "comm_" + sale.TransactionID
		if st.FindCommission(commID) != nil {
			// Recorded on an earlier attempt that failed before the ledger
			// update; finish the bookkeeping and move on.
			if err := a.ledger.MarkProcessed(ctx, sale.TransactionID); err != nil {
				return err
			}
			continue
		}

		rate := a.cfg.DefaultRate + a.tierBonus(st, sale.AffiliateID)
		comm := &state.Commission{
			ID:          commID,
			AffiliateID: sale.AffiliateID,
			SaleAmount:  sale.Amount,
			Rate:        rate,
			Amount:      sale.Amount * rate,
			SaleDate:    sale.CreatedAt,
			Status:      state.CommissionPending,
			ProductID:   sale.ProductID,
			CustomerID:  sale.CustomerID,
		}
		st.AppendCommission(comm)
		if err := a.ledger.MarkProcessed(ctx, sale.TransactionID); err != nil {
			return err
		}
		recorded++
		a.log.Info("commission: recorded %s for %s: %.2f at rate %.2f",
			comm.ID, comm.AffiliateID, comm.Amount, comm.Rate)

		if comm.Amount >= a.cfg.PaymentThreshold {
			if a.payImmediately(ctx, comm) {
				paid++
			}
		}
	}

	st.AppendDescription(fmt.Sprintf(
		"Processed %d sales: %d commissions recorded (%d paid immediately), %d quarantined.",
		len(sales), recorded, paid, quarantined))
	return nil
}

// knownAffiliate reports whether a sale can be attributed: either an active
// affiliate or a prospect that converted but has not been promoted yet.
func (a *CommissionAgent) knownAffiliate(st *state.State, id string) bool {
	if st.FindAffiliate(id) != nil {
		return true
	}
	if p := st.FindProspect(id); p != nil && p.Status == state.StatusConverted {
		return true
	}
	return false
}

// tierBonus returns the bonus of the highest tier whose threshold the
// affiliate's commission count for the current month reaches. Volume is
// computed from the commission log itself.
func (a *CommissionAgent) tierBonus(st *state.State, affiliateID string) float64 {
	nowMonth := a.now().UTC().Format("2006-01")
	volume := 0
	for _, c := range st.CommissionsLog {
		if c.AffiliateID == affiliateID && c.SaleDate.UTC().Format("2006-01") == nowMonth {
			volume++
		}
	}

	best := 0.0
	for name, tier := range a.cfg.PerformanceTiers {
		if volume >= tier.Threshold && tier.Bonus > best {
			best = tier.Bonus
			a.log.Debug("commission: %s qualifies for %s (volume %d)", affiliateID, name, volume)
		}
	}
	return best
}

// payImmediately attempts a single payout for a commission over the
// threshold. A transfer failure leaves the commission pending for the
// regular payment stage; it never fails the commission stage.
func (a *CommissionAgent) payImmediately(ctx context.Context, comm *state.Commission) bool {
	prefs, err := a.treasury.Preferences(ctx, comm.AffiliateID)
	if err != nil {
		a.log.Warn("commission: no payout preferences for %s, leaving %s pending: %v",
			comm.AffiliateID, comm.ID, err)
		return false
	}
	txID, err := a.treasury.Transfer(ctx, comm.AffiliateID, comm.Amount, prefs.Currency, prefs.Method)
	if err != nil {
		a.log.Warn("commission: immediate payout of %s failed, leaving pending: %v", comm.ID, err)
		return false
	}
	comm.Status = state.CommissionPaid
	a.log.Info("commission: paid %s immediately via %s (%s)", comm.ID, prefs.Method, txID)
	return true
}
