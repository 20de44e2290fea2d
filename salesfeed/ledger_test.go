package salesfeed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := Open()
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func TestSeedAndUnprocessed(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ledger.Seed([]Sale{
		{Source: "stripe", TransactionID: "tx_b", Amount: 20, AffiliateID: "aff_1", CreatedAt: now.Add(time.Hour)},
		{Source: "stripe", TransactionID: "tx_a", Amount: 10, AffiliateID: "aff_1", CreatedAt: now},
	}))

	sales, err := ledger.Unprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "tx_a", sales[0].TransactionID)
	assert.Equal(t, "tx_b", sales[1].TransactionID)
	assert.True(t, sales[0].CreatedAt.Equal(now))
}

func TestSeedIgnoresDuplicates(t *testing.T) {
	ledger := openTestLedger(t)
	now := time.Now().UTC()

	require.NoError(t, ledger.Seed([]Sale{
		{Source: "stripe", TransactionID: "tx_1", Amount: 10, AffiliateID: "aff_1", CreatedAt: now},
	}))
	require.NoError(t, ledger.Seed([]Sale{
		{Source: "stripe", TransactionID: "tx_1", Amount: 999, AffiliateID: "aff_1", CreatedAt: now},
	}))

	sales, err := ledger.Unprocessed(context.Background())
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, 10.0, sales[0].Amount)
}

func TestMarkProcessed(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, ledger.Seed([]Sale{
		{Source: "stripe", TransactionID: "tx_1", Amount: 10, AffiliateID: "aff_1", CreatedAt: now},
		{Source: "stripe", TransactionID: "tx_2", Amount: 20, AffiliateID: "aff_1", CreatedAt: now},
	}))

	require.NoError(t, ledger.MarkProcessed(ctx, "tx_1"))
	sales, err := ledger.Unprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "tx_2", sales[0].TransactionID)

	// Marking again is harmless; marking an unknown ID is an error.
	require.NoError(t, ledger.MarkProcessed(ctx, "tx_1"))
	assert.Error(t, ledger.MarkProcessed(ctx, "tx_missing"))
}

func TestQuarantineRetiresSale(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	sale := Sale{Source: "stripe", TransactionID: "tx_q", Amount: 50, AffiliateID: "ghost", CreatedAt: now}

	require.NoError(t, ledger.Seed([]Sale{sale}))
	require.NoError(t, ledger.Quarantine(ctx, sale, "unknown affiliate ghost"))

	sales, err := ledger.Unprocessed(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)

	quarantined, err := ledger.Quarantined(ctx)
	require.NoError(t, err)
	require.Len(t, quarantined, 1)
	assert.Equal(t, "tx_q", quarantined[0].Sale.TransactionID)
	assert.Equal(t, "ghost", quarantined[0].Sale.AffiliateID)
	assert.Equal(t, "unknown affiliate ghost", quarantined[0].Reason)
}

func TestSeedDemoLoadsStockSales(t *testing.T) {
	ledger := openTestLedger(t)
	require.NoError(t, ledger.SeedDemo())

	sales, err := ledger.Unprocessed(context.Background())
	require.NoError(t, err)
	assert.Len(t, sales, 4)

	// Reseeding changes nothing.
	require.NoError(t, ledger.SeedDemo())
	sales, err = ledger.Unprocessed(context.Background())
	require.NoError(t, err)
	assert.Len(t, sales, 4)
}
