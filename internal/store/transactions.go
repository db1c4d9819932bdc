package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/mailledger/internal/model"
)

const insertTransactionSQL = `
	INSERT INTO transactions (
		id, account_id, occurred_at, amount_minor, direction,
		category, labels, payment_mode, currency, status,
		note, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// transactionRow mirrors the transactions table.
type transactionRow struct {
	ID          string    `db:"id"`
	AccountID   string    `db:"account_id"`
	OccurredAt  time.Time `db:"occurred_at"`
	AmountMinor int64     `db:"amount_minor"`
	Direction   string    `db:"direction"`
	Category    string    `db:"category"`
	Labels      string    `db:"labels"`
	PaymentMode string    `db:"payment_mode"`
	Currency    string    `db:"currency"`
	Status      string    `db:"status"`
	Note        string    `db:"note"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r transactionRow) toModel() (model.Transaction, error) {
	t := model.Transaction{
		ID:          r.ID,
		AccountID:   r.AccountID,
		Date:        r.OccurredAt.UTC(),
		Amount:      fromMinor(r.AmountMinor),
		Direction:   model.Direction(r.Direction),
		Category:    r.Category,
		PaymentMode: model.PaymentMode(r.PaymentMode),
		Currency:    r.Currency,
		Status:      r.Status,
		Note:        r.Note,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.Labels != "" {
		if err := json.Unmarshal([]byte(r.Labels), &t.Labels); err != nil {
			return model.Transaction{}, fmt.Errorf("unmarshaling labels of %s: %w", r.ID, err)
		}
	}
	return t, nil
}

func transactionArgs(t *model.Transaction) ([]any, error) {
	labels := t.Labels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("marshaling labels for %s: %w", t.ID, err)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return []any{
		t.ID, t.AccountID, t.Date.UTC(), toMinor(t.Amount), string(t.Direction),
		t.Category, string(labelsJSON), string(t.PaymentMode), t.Currency, t.Status,
		t.Note, t.CreatedAt.UTC(),
	}, nil
}

// FindTransactionByFingerprint returns the ledger entry with the given
// id, or ErrNotFound.
func (s *SQLStore) FindTransactionByFingerprint(ctx context.Context, id string) (*model.Transaction, error) {
	var row transactionRow
	if err := s.db.GetContext(ctx, &row, s.q("SELECT * FROM transactions WHERE id = ?"), id); err != nil {
		return nil, notFound(err, "transaction "+id)
	}
	t, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveTransaction inserts a ledger entry without touching the account.
func (s *SQLStore) SaveTransaction(ctx context.Context, t *model.Transaction) error {
	args, err := transactionArgs(t)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.q(insertTransactionSQL), args...); err != nil {
		return fmt.Errorf("saving transaction %s: %w", t.ID, err)
	}
	return nil
}

// ApplyTransaction implements Store.
func (s *SQLStore) ApplyTransaction(ctx context.Context, t *model.Transaction, syncedAt time.Time) (bool, error) {
	args, err := transactionArgs(t)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := insertIfAbsent(ctx, tx, s.q(insertTransactionSQL+" ON CONFLICT (id) DO NOTHING"), args)
	if err != nil {
		return false, fmt.Errorf("inserting transaction %s: %w", t.ID, err)
	}
	if !inserted {
		return false, nil
	}

	res, err := tx.ExecContext(ctx, s.q(updateBalanceSQL), toMinor(t.SignedAmount()), syncedAt.UTC(), t.AccountID)
	if err != nil {
		return false, fmt.Errorf("updating balance of account %s: %w", t.AccountID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return false, fmt.Errorf("account %s: %w", t.AccountID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction %s: %w", t.ID, err)
	}
	return true, nil
}

func insertIfAbsent(ctx context.Context, tx *sqlx.Tx, query string, args []any) (bool, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListTransactions returns an account's ledger entries, oldest first.
func (s *SQLStore) ListTransactions(ctx context.Context, accountID string) ([]model.Transaction, error) {
	var rows []transactionRow
	err := s.db.SelectContext(ctx, &rows, s.q(
		"SELECT * FROM transactions WHERE account_id = ? ORDER BY occurred_at, id",
	), accountID)
	if err != nil {
		return nil, fmt.Errorf("querying transactions of %s: %w", accountID, err)
	}

	txns := make([]model.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.toModel()
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, nil
}
