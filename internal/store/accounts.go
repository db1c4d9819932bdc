package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nhle/mailledger/internal/model"
)

// CreateInstitution inserts an institution. If it has no ID, a new UUID
// is generated.
func (s *SQLStore) CreateInstitution(ctx context.Context, inst *model.Institution) error {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	inst.AlertAddress = normalizeAddress(inst.AlertAddress)

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO institutions (id, name, alert_address)
		VALUES (?, ?, ?)`),
		inst.ID, inst.Name, inst.AlertAddress,
	)
	if err != nil {
		return fmt.Errorf("creating institution %s: %w", inst.AlertAddress, err)
	}
	return nil
}

// GetInstitutionByAddress returns the institution sending alerts from
// address.
func (s *SQLStore) GetInstitutionByAddress(ctx context.Context, address string) (*model.Institution, error) {
	var inst model.Institution
	err := s.db.QueryRowxContext(ctx, s.q(
		"SELECT id, name, alert_address FROM institutions WHERE alert_address = ?",
	), normalizeAddress(address)).Scan(&inst.ID, &inst.Name, &inst.AlertAddress)
	if err != nil {
		return nil, notFound(err, "institution "+address)
	}
	return &inst, nil
}

// CreateAccount inserts an account. If it has no ID, a new UUID is
// generated.
func (s *SQLStore) CreateAccount(ctx context.Context, acct *model.Account) error {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	if !acct.Type.Valid() {
		return fmt.Errorf("creating account %s: invalid type %q", acct.Name, acct.Type)
	}

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO accounts (
			id, name, number, type, balance_minor,
			institution_id, search_text, start_date, last_synced_on
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		acct.ID, acct.Name, acct.Number, string(acct.Type), toMinor(acct.Balance),
		acct.InstitutionID, acct.SearchText, nullTime(acct.StartDate), nullTime(acct.LastSyncedOn),
	)
	if err != nil {
		return fmt.Errorf("creating account %s: %w", acct.Name, err)
	}
	return nil
}

// accountRow mirrors the account select list.
type accountRow struct {
	ID            string       `db:"id"`
	Name          string       `db:"name"`
	Number        string       `db:"number"`
	Type          string       `db:"type"`
	BalanceMinor  int64        `db:"balance_minor"`
	InstitutionID string       `db:"institution_id"`
	SearchText    string       `db:"search_text"`
	StartDate     sql.NullTime `db:"start_date"`
	LastSyncedOn  sql.NullTime `db:"last_synced_on"`
	InstName      string       `db:"inst_name"`
	InstAddress   string       `db:"inst_address"`
}

const accountSelect = `
	SELECT a.id, a.name, a.number, a.type, a.balance_minor,
	       a.institution_id, a.search_text, a.start_date, a.last_synced_on,
	       i.name AS inst_name, i.alert_address AS inst_address
	FROM accounts a
	JOIN institutions i ON i.id = a.institution_id`

func (r accountRow) toModel() model.Account {
	return model.Account{
		ID:            r.ID,
		Name:          r.Name,
		Number:        r.Number,
		Type:          model.AccountType(r.Type),
		Balance:       fromMinor(r.BalanceMinor),
		InstitutionID: r.InstitutionID,
		Institution: model.Institution{
			ID:           r.InstitutionID,
			Name:         r.InstName,
			AlertAddress: r.InstAddress,
		},
		SearchText:   r.SearchText,
		StartDate:    timeOrZero(r.StartDate),
		LastSyncedOn: timeOrZero(r.LastSyncedOn),
	}
}

// GetAccount retrieves a single account by its ID.
func (s *SQLStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var row accountRow
	if err := s.db.GetContext(ctx, &row, s.q(accountSelect+" WHERE a.id = ?"), id); err != nil {
		return nil, notFound(err, "account "+id)
	}
	acct := row.toModel()
	return &acct, nil
}

// FindAccountsByType returns all accounts of the given classification.
func (s *SQLStore) FindAccountsByType(ctx context.Context, t model.AccountType) ([]model.Account, error) {
	return s.selectAccounts(ctx, accountSelect+" WHERE a.type = ? ORDER BY a.name", string(t))
}

// FindAccountsByInstitutionAddress returns the accounts whose
// institution sends alerts from address.
func (s *SQLStore) FindAccountsByInstitutionAddress(ctx context.Context, address string) ([]model.Account, error) {
	return s.selectAccounts(ctx, accountSelect+" WHERE i.alert_address = ? ORDER BY a.name", normalizeAddress(address))
}

func (s *SQLStore) selectAccounts(ctx context.Context, query string, args ...any) ([]model.Account, error) {
	var rows []accountRow
	if err := s.db.SelectContext(ctx, &rows, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}

	accounts := make([]model.Account, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, r.toModel())
	}
	return accounts, nil
}

// UpdateAccountBalanceAndSyncTime adds delta to the account balance and
// stamps its sync time. The addition happens in SQL so concurrent
// updates never lose each other.
func (s *SQLStore) UpdateAccountBalanceAndSyncTime(
	ctx context.Context, accountID string, delta decimal.Decimal, now time.Time,
) error {
	res, err := s.db.ExecContext(ctx, s.q(updateBalanceSQL), toMinor(delta), now.UTC(), accountID)
	if err != nil {
		return fmt.Errorf("updating balance of account %s: %w", accountID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return nil
}

const updateBalanceSQL = `
	UPDATE accounts
	SET balance_minor = balance_minor + ?, last_synced_on = ?
	WHERE id = ?`

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timeOrZero(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}
