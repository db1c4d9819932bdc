package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
// Money is stored in minor units so balance deltas stay exact in SQL.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS institutions (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	alert_address TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS accounts (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	number         TEXT NOT NULL DEFAULT '',
	type           TEXT NOT NULL CHECK(type IN ('BANK', 'LOAN', 'CREDIT_CARD')),
	balance_minor  BIGINT NOT NULL DEFAULT 0,
	institution_id TEXT NOT NULL REFERENCES institutions(id),
	search_text    TEXT NOT NULL DEFAULT '',
	start_date     TIMESTAMP,
	last_synced_on TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_accounts_type ON accounts(type);
CREATE INDEX IF NOT EXISTS idx_accounts_institution_id ON accounts(institution_id);

CREATE TABLE IF NOT EXISTS transactions (
	id           TEXT PRIMARY KEY,
	account_id   TEXT NOT NULL REFERENCES accounts(id),
	occurred_at  TIMESTAMP NOT NULL,
	amount_minor BIGINT NOT NULL,
	direction    TEXT NOT NULL CHECK(direction IN ('Income', 'Expense')),
	category     TEXT NOT NULL DEFAULT '',
	labels       TEXT NOT NULL DEFAULT '[]',
	payment_mode TEXT NOT NULL DEFAULT '',
	currency     TEXT NOT NULL DEFAULT 'INR',
	status       TEXT NOT NULL DEFAULT '',
	note         TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_date ON transactions(account_id, occurred_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
