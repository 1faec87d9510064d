package journal

import (
	"fmt"
	"time"
)

// ListUpdates returns every trade update for orderID in insertion order. An
// empty orderID lists all updates.
func (j *SQLite) ListUpdates(orderID string) ([]UpdateRecord, error) {
	query := `
		SELECT time, event, order_id, symbol, side, type, qty, status, filled_price, stop_price
		FROM trade_updates`
	var args []any
	if orderID != "" {
		query += ` WHERE order_id = ?`
		args = append(args, orderID)
	}
	query += ` ORDER BY id ASC`

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	defer rows.Close()

	var out []UpdateRecord
	for rows.Next() {
		var rec UpdateRecord
		if err := rows.Scan(
			&rec.Time,
			&rec.Event,
			&rec.OrderID,
			&rec.Symbol,
			&rec.Side,
			&rec.Type,
			&rec.Qty,
			&rec.Status,
			&rec.FilledPrice,
			&rec.StopPrice,
		); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAccountBetween returns account snapshots with start <= time < end.
func (j *SQLite) ListAccountBetween(start, end time.Time) ([]AccountSnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, cash, buying_power, positions_value, unrealized_pl, open_orders
		FROM account
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("list account: %w", err)
	}
	defer rows.Close()

	var out []AccountSnapshot
	for rows.Next() {
		var rec AccountSnapshot
		if err := rows.Scan(
			&rec.Time,
			&rec.Cash,
			&rec.BuyingPower,
			&rec.PositionsValue,
			&rec.UnrealizedPL,
			&rec.OpenOrders,
		); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
