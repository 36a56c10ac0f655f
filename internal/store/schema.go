package store

// schema is applied on open. Amounts are stored as exact decimal strings;
// SQLite REAL would reintroduce the float rounding the pipeline avoids.
const schema = `
CREATE TABLE IF NOT EXISTS bank_transactions (
	id               TEXT PRIMARY KEY,
	bank_account_id  INTEGER NOT NULL,
	fingerprint      TEXT NOT NULL,
	date             TEXT NOT NULL,
	amount           TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	counterparty     TEXT NOT NULL DEFAULT '',
	counterparty_ref TEXT NOT NULL DEFAULT '',
	source_ref       TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	imported_at      TEXT NOT NULL,
	UNIQUE (bank_account_id, fingerprint)
);

CREATE TABLE IF NOT EXISTS accounts (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	code      TEXT NOT NULL UNIQUE,
	name      TEXT NOT NULL,
	type      TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS contacts (
	id                        INTEGER PRIMARY KEY AUTOINCREMENT,
	company_name              TEXT NOT NULL,
	email                     TEXT NOT NULL DEFAULT '',
	default_ledger_account_id INTEGER NOT NULL DEFAULT 0,
	settlement_account_id     INTEGER NOT NULL DEFAULT 0,
	vat_rate                  TEXT NOT NULL DEFAULT '0',
	last_booked_at            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS invoices (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	contact_id  INTEGER NOT NULL,
	number      TEXT NOT NULL,
	outstanding TEXT NOT NULL,
	issued_at   TEXT NOT NULL,
	paid        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS journal_entries (
	id             TEXT PRIMARY KEY,
	date           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	contact_id     INTEGER NOT NULL DEFAULT 0,
	transaction_id TEXT NOT NULL,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS journal_lines (
	entry_id    TEXT NOT NULL,
	line_no     INTEGER NOT NULL,
	account_id  INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	debit       TEXT NOT NULL,
	credit      TEXT NOT NULL,
	PRIMARY KEY (entry_id, line_no)
);

CREATE TABLE IF NOT EXISTS import_runs (
	id              TEXT PRIMARY KEY,
	filename        TEXT NOT NULL,
	bank_account_id INTEGER NOT NULL,
	started_at      TEXT NOT NULL,
	finished_at     TEXT NOT NULL,
	total_processed INTEGER NOT NULL,
	auto_booked     INTEGER NOT NULL,
	needs_review    INTEGER NOT NULL,
	duplicates      INTEGER NOT NULL,
	errors          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bank_transactions_fingerprint
	ON bank_transactions (bank_account_id, fingerprint);
CREATE INDEX IF NOT EXISTS idx_invoices_open
	ON invoices (paid, contact_id);
`
