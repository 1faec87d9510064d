// journal/schema.go
package journal

// Decimal columns are stored as TEXT so values round-trip exactly.
const Schema = `
CREATE TABLE IF NOT EXISTS trade_updates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	time DATETIME NOT NULL,
	event TEXT NOT NULL,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	type TEXT NOT NULL,
	qty TEXT NOT NULL,
	status TEXT NOT NULL,
	filled_price TEXT,
	stop_price TEXT
);

CREATE INDEX IF NOT EXISTS idx_trade_updates_order ON trade_updates(order_id);

CREATE TABLE IF NOT EXISTS account (
	time DATETIME NOT NULL,
	cash TEXT NOT NULL,
	buying_power TEXT NOT NULL,
	positions_value TEXT NOT NULL,
	unrealized_pl TEXT NOT NULL,
	open_orders INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_account_time ON account(time);
`
