package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	updateHeader  = []string{"time", "event", "order_id", "symbol", "side", "type", "qty", "status", "filled_price", "stop_price"}
	accountHeader = []string{"time", "cash", "buying_power", "positions_value", "unrealized_pl", "open_orders"}
)

type CSV struct {
	updates *csv.Writer
	account *csv.Writer
	uf, af  *os.File
}

func NewCSV(updatesPath, accountPath string) (*CSV, error) {
	uf, err := os.Create(updatesPath)
	if err != nil {
		return nil, err
	}
	af, err := os.Create(accountPath)
	if err != nil {
		_ = uf.Close()
		return nil, err
	}

	j := &CSV{updates: csv.NewWriter(uf), account: csv.NewWriter(af), uf: uf, af: af}

	if err := j.write(j.updates, updateHeader); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("write updates header: %w", err)
	}
	if err := j.write(j.account, accountHeader); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("write account header: %w", err)
	}
	return j, nil
}

func (j *CSV) RecordUpdate(u UpdateRecord) error {
	return j.write(j.updates, []string{
		u.Time.Format(time.RFC3339),
		u.Event,
		u.OrderID,
		u.Symbol,
		u.Side,
		u.Type,
		u.Qty.String(),
		u.Status,
		nullable(u.FilledPrice),
		nullable(u.StopPrice),
	})
}

func (j *CSV) RecordAccount(a AccountSnapshot) error {
	return j.write(j.account, []string{
		a.Time.Format(time.RFC3339),
		a.Cash.String(),
		a.BuyingPower.String(),
		a.PositionsValue.String(),
		a.UnrealizedPL.String(),
		strconv.Itoa(a.OpenOrders),
	})
}

func (j *CSV) write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSV) Close() error {
	j.updates.Flush()
	if err := j.updates.Error(); err != nil {
		return err
	}
	j.account.Flush()
	if err := j.account.Error(); err != nil {
		return err
	}

	if err := j.uf.Close(); err != nil {
		return err
	}
	return j.af.Close()
}

func nullable(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
