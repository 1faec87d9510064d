package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, "100000", cfg.Account.Cash.String())
	assert.Equal(t, 3, cfg.Simulation.TickRetries)
	assert.Equal(t, "ema-cross", cfg.Strategy.Name)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing currency", func(c *Config) { c.Account.Currency = "" }, "account.currency is required"},
		{"negative cash", func(c *Config) { c.Account.Cash = decimal.NewFromInt(-1) }, "account.cash must be positive"},
		{"low leverage", func(c *Config) { c.Account.Leverage = decimal.RequireFromString("0.5") }, "account.leverage"},
		{"live mode", func(c *Config) { c.Simulation.Mode = "live" }, "simulation.mode"},
		{"bad start", func(c *Config) { c.Simulation.Start = "yesterday" }, "simulation.start"},
		{"end before start", func(c *Config) { c.Simulation.End = "2023-12-01" }, "must not be before"},
		{"bad resolution", func(c *Config) { c.Simulation.Resolution = "5x" }, "simulation.resolution"},
		{"bad failure policy", func(c *Config) { c.Simulation.OnTickFailure = "ignore" }, "on_tick_failure"},
		{"unknown feed", func(c *Config) { c.Data.Feed = "oanda" }, "data.feed"},
		{"no source", func(c *Config) { c.Data.Source = "" }, "data.source is required"},
		{"no subscriptions", func(c *Config) { c.Subscriptions = nil }, "subscriptions"},
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "martingale" }, "unknown strategy"},
		{"strategy symbol not subscribed", func(c *Config) { c.Strategy.Symbol = "MSFT" }, "not in subscriptions"},
		{"noop needs no symbol", func(c *Config) { c.Strategy = StrategyConfig{Name: "noop"} }, ""},
		{"csv journal paths", func(c *Config) { c.Journal.Type = "csv" }, "updates_file and account_file"},
		{"sqlite journal path", func(c *Config) { c.Journal.Type = "sqlite" }, "db_path"},
		{"unknown journal", func(c *Config) { c.Journal.Type = "kafka" }, "journal.type"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Strategy.StopLossPct = decimal.RequireFromString("2.5")
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.Account.Currency, loaded.Account.Currency)
			assert.True(t, cfg.Account.Cash.Equal(loaded.Account.Cash))
			assert.True(t, loaded.Strategy.StopLossPct.Equal(decimal.RequireFromString("2.5")))
			assert.Equal(t, cfg.Subscriptions, loaded.Subscriptions)
			assert.Equal(t, cfg.Simulation, loaded.Simulation)
		})
	}
}

func TestLoadPlainYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	doc := `
account:
  currency: USD
  cash: 25000
  leverage: 2
  allow_short: true
simulation:
  start: 2024-01-02
  end: 2024-01-31T00:00:00Z
  resolution: 1h
  on_tick_failure: skip
data:
  feed: duckdb
  source: bars.duckdb
subscriptions: [aapl, msft]
strategy:
  name: open-once
  symbol: AAPL
  qty: 1.5
  take_profit_pct: 4
journal:
  type: sqlite
  db_path: run.db
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "25000", cfg.Account.Cash.String())
	assert.Equal(t, "2", cfg.Account.Leverage.String())
	assert.True(t, cfg.Account.AllowShort)
	assert.Equal(t, "1.5", cfg.Strategy.Qty.String())

	start, end, err := cfg.Simulation.Window()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.True(t, end.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)))

	p := cfg.StrategyParams()
	assert.Equal(t, "AAPL", p.Symbol)
	assert.Equal(t, "4", p.TakeProfitPct.String())
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account: [unclosed"), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"2024-03-01T09:30:00-05:00", time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC), false},
		{"03/01/2024", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
		})
	}
}
