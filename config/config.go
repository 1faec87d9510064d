// Package config loads and validates a backtest configuration from YAML or
// JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/market/data"
	"github.com/rustyeddy/papertrader/strategies"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config represents a complete backtest configuration
type Config struct {
	Account       AccountConfig    `json:"account" yaml:"account"`
	Simulation    SimulationConfig `json:"simulation" yaml:"simulation"`
	Data          DataConfig       `json:"data" yaml:"data"`
	Subscriptions []string         `json:"subscriptions" yaml:"subscriptions"`
	Strategy      StrategyConfig   `json:"strategy" yaml:"strategy"`
	Journal       JournalConfig    `json:"journal" yaml:"journal"`
	Log           LogConfig        `json:"log" yaml:"log"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	ID         string          `json:"id" yaml:"id"`
	Currency   string          `json:"currency" yaml:"currency"`
	Cash       decimal.Decimal `json:"cash" yaml:"cash"`
	Leverage   decimal.Decimal `json:"leverage" yaml:"leverage"`
	AllowShort bool            `json:"allow_short" yaml:"allow_short"`
}

// SimulationConfig contains the clock and tick failure settings
type SimulationConfig struct {
	Mode          string `json:"mode" yaml:"mode"`
	Start         string `json:"start" yaml:"start"` // "2024-01-02" or RFC3339
	End           string `json:"end" yaml:"end"`
	Resolution    string `json:"resolution" yaml:"resolution"` // "1m", "1h", "1d"
	TickRetries   int    `json:"tick_retries" yaml:"tick_retries"`
	OnTickFailure string `json:"on_tick_failure" yaml:"on_tick_failure"` // "abort" or "skip"
	Seed          int64  `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// DataConfig selects the market data provider
type DataConfig struct {
	Feed   string `json:"feed" yaml:"feed"`     // "csv", "duckdb" or "dukascopy"
	Source string `json:"source" yaml:"source"` // directory or database file
}

// StrategyConfig contains strategy parameters
type StrategyConfig struct {
	Name          string          `json:"name" yaml:"name"`
	Symbol        string          `json:"symbol" yaml:"symbol"`
	Qty           decimal.Decimal `json:"qty" yaml:"qty"`
	Fast          int             `json:"fast,omitempty" yaml:"fast,omitempty"`
	Slow          int             `json:"slow,omitempty" yaml:"slow,omitempty"`
	TakeProfitPct decimal.Decimal `json:"take_profit_pct" yaml:"take_profit_pct"`
	StopLossPct   decimal.Decimal `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	RiskPct       decimal.Decimal `json:"risk_pct" yaml:"risk_pct"`
	MaxRiskPct    decimal.Decimal `json:"max_risk_pct" yaml:"max_risk_pct"`
	MinRR         decimal.Decimal `json:"min_rr" yaml:"min_rr"`
	ADXPeriod     int             `json:"adx_period,omitempty" yaml:"adx_period,omitempty"`
	MinADX        float64         `json:"min_adx,omitempty" yaml:"min_adx,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type        string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	UpdatesFile string `json:"updates_file,omitempty" yaml:"updates_file,omitempty"`
	AccountFile string `json:"account_file,omitempty" yaml:"account_file,omitempty"`
	DBPath      string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	// Report, when set, is where the Org summary of the run is written.
	Report string `json:"report,omitempty" yaml:"report,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "console" or "json"
}

// LoadFromFile loads configuration from a file (YAML, or JSON)
func LoadFromFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		if jerr := json.Unmarshal(b, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise
func (c *Config) SaveToFile(path string) error {
	var (
		b   []byte
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(c)
	default:
		b, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ParseTime accepts a date ("2006-01-02") or RFC3339. Times are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want 2006-01-02 or RFC3339)", s)
	}
	return t, nil
}

// Window returns the parsed simulation start and end.
func (s SimulationConfig) Window() (start, end time.Time, err error) {
	if start, err = ParseTime(s.Start); err != nil {
		return start, end, fmt.Errorf("simulation.start: %w", err)
	}
	if end, err = ParseTime(s.End); err != nil {
		return start, end, fmt.Errorf("simulation.end: %w", err)
	}
	return start, end, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if !c.Account.Cash.IsPositive() {
		return fmt.Errorf("account.cash must be positive")
	}
	if !c.Account.Leverage.IsZero() && c.Account.Leverage.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("account.leverage must be at least 1")
	}

	if m := c.Simulation.Mode; m != "" && !strings.EqualFold(m, "backtest") {
		return fmt.Errorf("simulation.mode %q is not supported (want backtest)", m)
	}
	start, end, err := c.Simulation.Window()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("simulation.end must not be before simulation.start")
	}
	if _, err := market.ParseResolution(c.Simulation.Resolution); err != nil {
		return fmt.Errorf("simulation.resolution: %w", err)
	}
	switch strings.ToLower(c.Simulation.OnTickFailure) {
	case "", "abort", "skip":
	default:
		return fmt.Errorf("simulation.on_tick_failure must be 'abort' or 'skip'")
	}

	switch c.Data.Feed {
	case data.FeedCSV, data.FeedDuckDB, data.FeedDukascopy:
	default:
		return fmt.Errorf("data.feed must be one of %s, %s, %s", data.FeedCSV, data.FeedDuckDB, data.FeedDukascopy)
	}
	if c.Data.Source == "" {
		return fmt.Errorf("data.source is required")
	}
	if len(c.Subscriptions) == 0 {
		return fmt.Errorf("subscriptions must list at least one symbol")
	}

	if err := c.validateStrategy(); err != nil {
		return err
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.UpdatesFile == "" || c.Journal.AccountFile == "" {
			return fmt.Errorf("journal updates_file and account_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if c.Log.Level != "" {
		if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be 'console' or 'json'")
	}
	return nil
}

func (c *Config) validateStrategy() error {
	s := c.Strategy
	name := strings.ToLower(strings.TrimSpace(s.Name))
	if name == "" || name == "noop" || name == "none" {
		return nil
	}
	if _, err := strategies.ByName(name, c.StrategyParams()); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	sym := market.NormalizeSymbol(s.Symbol)
	for _, sub := range c.Subscriptions {
		if market.NormalizeSymbol(sub) == sym {
			return nil
		}
	}
	return fmt.Errorf("strategy.symbol %s is not in subscriptions", s.Symbol)
}

// StrategyParams maps the strategy section onto strategy parameters.
func (c *Config) StrategyParams() strategies.Params {
	s := c.Strategy
	p := strategies.Params{
		Symbol:        s.Symbol,
		Qty:           s.Qty,
		Fast:          s.Fast,
		Slow:          s.Slow,
		TakeProfitPct: s.TakeProfitPct,
		StopLossPct:   s.StopLossPct,
		RiskPct:       s.RiskPct,
		ADXPeriod:     s.ADXPeriod,
		MinADX:        s.MinADX,
	}
	p.Policy.MaxRiskPct = s.MaxRiskPct
	p.Policy.MinRR = s.MinRR
	return p
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:         "paper",
			Currency:   "USD",
			Cash:       decimal.NewFromInt(100000),
			Leverage:   decimal.NewFromInt(1),
			AllowShort: false,
		},
		Simulation: SimulationConfig{
			Mode:          "backtest",
			Start:         "2024-01-02",
			End:           "2024-06-28",
			Resolution:    "1d",
			TickRetries:   3,
			OnTickFailure: "abort",
			Seed:          1,
		},
		Data: DataConfig{
			Feed:   data.FeedCSV,
			Source: "./data",
		},
		Subscriptions: []string{"AAPL"},
		Strategy: StrategyConfig{
			Name:   "ema-cross",
			Symbol: "AAPL",
			Qty:    decimal.NewFromInt(10),
			Fast:   10,
			Slow:   30,
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
