package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordUpdate(u UpdateRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trade_updates
		(time, event, order_id, symbol, side, type, qty, status, filled_price, stop_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Time, u.Event, u.OrderID, u.Symbol, u.Side, u.Type,
		u.Qty.String(), u.Status, u.FilledPrice, u.StopPrice,
	)
	return err
}

func (j *SQLite) RecordAccount(a AccountSnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO account
		(time, cash, buying_power, positions_value, unrealized_pl, open_orders)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.Time, a.Cash.String(), a.BuyingPower.String(),
		a.PositionsValue.String(), a.UnrealizedPL.String(), a.OpenOrders,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
