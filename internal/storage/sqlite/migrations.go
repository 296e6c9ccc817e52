package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the ledger schema.
// These run on startup to ensure tables exist.
const schema = `
CREATE TABLE IF NOT EXISTS split_payment_groups (
    id TEXT PRIMARY KEY,
    payable_type TEXT NOT NULL,
    payable_ref TEXT NOT NULL,
    payer_id TEXT NOT NULL,
    payee_id TEXT,
    total_amount REAL NOT NULL,
    currency TEXT NOT NULL,
    total_installments INTEGER NOT NULL,
    completed_installments INTEGER NOT NULL DEFAULT 0,
    completed_amount REAL NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS split_payment_transactions (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    gateway_order_id TEXT,
    gateway_payment_ref TEXT,
    gateway_signature TEXT,
    status TEXT NOT NULL,
    failure_reason TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE (group_id, sequence),
    FOREIGN KEY (group_id) REFERENCES split_payment_groups(id)
);

CREATE TABLE IF NOT EXISTS split_payment_progress (
    group_id TEXT PRIMARY KEY,
    progress_percentage REAL NOT NULL,
    completed_installments INTEGER NOT NULL,
    total_installments INTEGER NOT NULL,
    completed_amount REAL NOT NULL,
    total_amount REAL NOT NULL,
    next_installment_amount REAL,
    FOREIGN KEY (group_id) REFERENCES split_payment_groups(id)
);

CREATE TABLE IF NOT EXISTS payables (
    payable_type TEXT NOT NULL,
    payable_ref TEXT NOT NULL,
    group_id TEXT NOT NULL,
    paid_at INTEGER NOT NULL,
    PRIMARY KEY (payable_type, payable_ref)
);

CREATE TABLE IF NOT EXISTS outbox_events (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    payload TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    dispatched_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_split_transactions_group_id ON split_payment_transactions(group_id);
CREATE INDEX IF NOT EXISTS idx_split_groups_payer_id ON split_payment_groups(payer_id);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_events(dispatched_at, created_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
