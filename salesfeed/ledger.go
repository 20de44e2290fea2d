// Package salesfeed tracks attributed sales awaiting commission processing.
// The ledger is backed by an in-memory SQLite database so processed-state
// and quarantine queries survive across cycles within one process without
// any external infrastructure.
package salesfeed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Sale is one attributed transaction reported by a sales source.
type Sale struct {
	Source        string
	TransactionID string
	Amount        float64
	AffiliateID   string
	CreatedAt     time.Time
	ProductID     string
	CustomerID    string
}

// QuarantinedSale is a sale set aside because it could not be processed,
// together with the reason it was rejected.
type QuarantinedSale struct {
	Sale   Sale
	Reason string
}

// Ledger stores incoming sales and their processing state.
type Ledger struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sales (
	transaction_id TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	amount         REAL NOT NULL,
	affiliate_id   TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	product_id     TEXT NOT NULL DEFAULT '',
	customer_id    TEXT NOT NULL DEFAULT '',
	processed      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS quarantine (
	transaction_id TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	amount         REAL NOT NULL,
	affiliate_id   TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	product_id     TEXT NOT NULL DEFAULT '',
	customer_id    TEXT NOT NULL DEFAULT '',
	reason         TEXT NOT NULL
);`

// Open creates an empty in-memory ledger.
func Open() (*Ledger, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	// The in-memory database vanishes if its only connection closes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error { return l.db.Close() }

// Seed inserts sales, ignoring transaction IDs already present.
func (l *Ledger) Seed(sales []Sale) error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, s := range sales {
		_, err := tx.Exec(
			`INSERT OR IGNORE INTO sales
			 (transaction_id, source, amount, affiliate_id, created_at, product_id, customer_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.TransactionID, s.Source, s.Amount, s.AffiliateID,
			s.CreatedAt.UTC().Format(time.RFC3339), s.ProductID, s.CustomerID)
		if err != nil {
			return fmt.Errorf("seed sale %s: %w", s.TransactionID, err)
		}
	}
	return tx.Commit()
}

// SeedDemo loads the stock demo sales used when no real feed is wired.
func (l *Ledger) SeedDemo() error {
	now := time.Now().UTC()
	return l.Seed([]Sale{
		{Source: "stripe", TransactionID: "tx_001", Amount: 100.00, AffiliateID: "yt_ai_channel_1", CreatedAt: now, ProductID: "prod_basic", CustomerID: "cust_001"},
		{Source: "stripe", TransactionID: "tx_002", Amount: 75.50, AffiliateID: "tw_saas_guru_1", CreatedAt: now, ProductID: "prod_basic", CustomerID: "cust_002"},
		{Source: "stripe", TransactionID: "tx_003", Amount: 25.00, AffiliateID: "yt_ai_channel_1", CreatedAt: now, ProductID: "prod_addon", CustomerID: "cust_003"},
		{Source: "stripe", TransactionID: "tx_004", Amount: 50.00, AffiliateID: "unknown_affiliate_id", CreatedAt: now, ProductID: "prod_basic", CustomerID: "cust_004"},
	})
}

// Unprocessed returns every sale not yet marked processed, oldest first.
func (l *Ledger) Unprocessed(ctx context.Context) ([]Sale, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT transaction_id, source, amount, affiliate_id, created_at, product_id, customer_id
		 FROM sales WHERE processed = 0 ORDER BY created_at, transaction_id`)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed sales: %w", err)
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkProcessed flags a sale so it is never handed out again.
func (l *Ledger) MarkProcessed(ctx context.Context, txID string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE sales SET processed = 1 WHERE transaction_id = ?`, txID)
	if err != nil {
		return fmt.Errorf("mark sale %s processed: %w", txID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no sale with transaction id %s", txID)
	}
	return nil
}

// Quarantine sets a sale aside with a reason and marks it processed so it
// does not resurface each cycle. Quarantined sales stay queryable for audit.
func (l *Ledger) Quarantine(ctx context.Context, s Sale, reason string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quarantine: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO quarantine
		 (transaction_id, source, amount, affiliate_id, created_at, product_id, customer_id, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.TransactionID, s.Source, s.Amount, s.AffiliateID,
		s.CreatedAt.UTC().Format(time.RFC3339), s.ProductID, s.CustomerID, reason)
	if err != nil {
		return fmt.Errorf("quarantine sale %s: %w", s.TransactionID, err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE sales SET processed = 1 WHERE transaction_id = ?`, s.TransactionID)
	if err != nil {
		return fmt.Errorf("retire quarantined sale %s: %w", s.TransactionID, err)
	}
	return tx.Commit()
}

// Quarantined returns every quarantined sale with its reason.
func (l *Ledger) Quarantined(ctx context.Context) ([]QuarantinedSale, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT transaction_id, source, amount, affiliate_id, created_at, product_id, customer_id, reason
		 FROM quarantine ORDER BY created_at, transaction_id`)
	if err != nil {
		return nil, fmt.Errorf("query quarantine: %w", err)
	}
	defer rows.Close()

	var out []QuarantinedSale
	for rows.Next() {
		var q QuarantinedSale
		var created string
		err := rows.Scan(&q.Sale.TransactionID, &q.Sale.Source, &q.Sale.Amount,
			&q.Sale.AffiliateID, &created, &q.Sale.ProductID, &q.Sale.CustomerID, &q.Reason)
		if err != nil {
			return nil, fmt.Errorf("scan quarantined sale: %w", err)
		}
		q.Sale.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, q)
	}
	return out, rows.Err()
}

func scanSale(rows *sql.Rows) (Sale, error) {
	var s Sale
	var created string
	err := rows.Scan(&s.TransactionID, &s.Source, &s.Amount, &s.AffiliateID,
		&created, &s.ProductID, &s.CustomerID)
	if err != nil {
		return Sale{}, fmt.Errorf("scan sale: %w", err)
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return s, nil
}
