package afflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/davidroman0O/afflow/state"
)

// PayoutPrefs describes how an affiliate wants to be paid.
type PayoutPrefs struct {
	Method   string
	Currency string
}

// Treasury is the payment provider backend. Transfer returns the provider's
// transaction ID for a successful payout.
type Treasury interface {
	Preferences(ctx context.Context, affiliateID string) (PayoutPrefs, error)
	Transfer(ctx context.Context, affiliateID string, amount float64, currency, method string) (string, error)
}

// mockTreasury accepts every transfer and hands out the configured default
// payout preferences.
type mockTreasury struct {
	cfg PaymentConfig
}

// NewMockTreasury returns an offline payment backend.
func NewMockTreasury(cfg PaymentConfig) Treasury {
	return &mockTreasury{cfg: cfg}
}

func (t *mockTreasury) Preferences(_ context.Context, _ string) (PayoutPrefs, error) {
	return PayoutPrefs{Method: t.cfg.DefaultMethod, Currency: t.cfg.DefaultCurrency}, nil
}

func (t *mockTreasury) Transfer(_ context.Context, _ string, _ float64, _, _ string) (string, error) {
	return "payout_" + uuid.NewString(), nil
}

// PaymentAgent pays out approved commissions. When batching is enabled the
// approved commissions of each affiliate ride one transfer; a batch either
// completes and marks every member PAID, or fails and leaves every member
// APPROVED for the next run.
type PaymentAgent struct {
	cfg      PaymentConfig
	treasury Treasury
	log      Logger
}

// NewPaymentAgent creates the payment stage.
func NewPaymentAgent(cfg PaymentConfig, treasury Treasury, log Logger) *PaymentAgent {
	return &PaymentAgent{cfg: cfg, treasury: treasury, log: log}
}

// Name implements Agent.Name.
func (a *PaymentAgent) Name() string { return stagePayment }

// Run implements Agent.Run.
func (a *PaymentAgent) Run(ctx context.Context, st *state.State) error {
	// Group approved commissions by affiliate, preserving log order.
	byAffiliate := make(map[string][]*state.Commission)
	var order []string
	for _, c := range st.CommissionsLog {
		if c.Status != state.CommissionApproved {
			continue
		}
		if _, seen := byAffiliate[c.AffiliateID]; !seen {
			order = append(order, c.AffiliateID)
		}
		byAffiliate[c.AffiliateID] = append(byAffiliate[c.AffiliateID], c)
	}

	if len(order) == 0 {
		st.AppendDescription("No approved commissions to pay.")
		a.log.Info("payment: nothing approved for payout")
		return nil
	}

	paidBatches, skipped := 0, 0
	var total float64
	for _, affiliateID := range order {
		batch := byAffiliate[affiliateID]
		if !a.cfg.BatchPayments {
			for _, c := range batch {
				if a.payBatch(ctx, affiliateID, []*state.Commission{c}) {
					paidBatches++
					total += c.Amount
				} else {
					skipped++
				}
			}
			continue
		}
		sum := 0.0
		for _, c := range batch {
			sum += c.Amount
		}
		if sum < a.cfg.MinimumPayment {
			skipped++
			a.log.Info("payment: holding %.2f for %s, below minimum %.2f",
				sum, affiliateID, a.cfg.MinimumPayment)
			continue
		}
		if a.payBatch(ctx, affiliateID, batch) {
			paidBatches++
			total += sum
		} else {
			skipped++
		}
	}

	st.AppendDescription(fmt.Sprintf("Paid %d batches totaling %.2f, %d held.",
		paidBatches, total, skipped))
	return nil
}

// payBatch executes one transfer covering a set of commissions. Statuses
// flip to PAID only after the transfer succeeds, so a failed transfer
// leaves the whole batch eligible for retry.
func (a *PaymentAgent) payBatch(ctx context.Context, affiliateID string, batch []*state.Commission) bool {
	sum := 0.0
	for _, c := range batch {
		sum += c.Amount
	}
	if sum < a.cfg.MinimumPayment {
		a.log.Info("payment: holding %.2f for %s, below minimum %.2f",
			sum, affiliateID, a.cfg.MinimumPayment)
		return false
	}

	prefs, err := a.treasury.Preferences(ctx, affiliateID)
	if err != nil {
		a.log.Warn("payment: no payout preferences for %s: %v", affiliateID, err)
		return false
	}
	txID, err := a.treasury.Transfer(ctx, affiliateID, sum, prefs.Currency, prefs.Method)
	if err != nil {
		a.log.Warn("payment: transfer of %.2f to %s failed: %v", sum, affiliateID, err)
		return false
	}

	for _, c := range batch {
		c.Status = state.CommissionPaid
	}
	a.log.Info("payment: paid %.2f %s to %s via %s (%s), %d commissions",
		sum, prefs.Currency, affiliateID, prefs.Method, txID, len(batch))
	return true
}
