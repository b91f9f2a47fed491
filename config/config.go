package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/scalper/engine"
	"github.com/rustyeddy/scalper/exits"
	"github.com/rustyeddy/scalper/pricing"
	"github.com/rustyeddy/scalper/risk"
	"gopkg.in/yaml.v3"
)

// MaxSpreadCeilingPips is the widest spread gate a configuration may set.
const MaxSpreadCeilingPips = 5.0

var ErrInvalid = errors.New("invalid config")

// Config is the complete scalper configuration.
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Exits   ExitsConfig   `json:"exits" yaml:"exits"`
	Risk    RiskConfig    `json:"risk" yaml:"risk"`
	Pricing PricingConfig `json:"pricing" yaml:"pricing"`
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

type AccountConfig struct {
	ID       string  `json:"id" yaml:"id"`
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
	Leverage float64 `json:"leverage" yaml:"leverage"`
}

// ExitsConfig is the file form of exits.Config; the timeout is in minutes.
type ExitsConfig struct {
	ATRPeriod              int     `json:"atr_period" yaml:"atr_period"`
	SLMultiplier           float64 `json:"sl_multiplier" yaml:"sl_multiplier"`
	TPMultiplier           float64 `json:"tp_multiplier" yaml:"tp_multiplier"`
	TrailMultiplier        float64 `json:"trail_multiplier" yaml:"trail_multiplier"`
	BufferSpreadMultiplier float64 `json:"buffer_spread_multiplier" yaml:"buffer_spread_multiplier"`
	BufferATRMultiplier    float64 `json:"buffer_atr_multiplier" yaml:"buffer_atr_multiplier"`
	TimeoutMinutes         float64 `json:"timeout_minutes" yaml:"timeout_minutes"`
	DecayRate              float64 `json:"decay_rate" yaml:"decay_rate"`
	BreakevenTrigger       float64 `json:"breakeven_trigger" yaml:"breakeven_trigger"`
	BreakevenCushion       float64 `json:"breakeven_cushion" yaml:"breakeven_cushion"`
	MinSLPips              float64 `json:"min_sl_pips" yaml:"min_sl_pips"`
	MaxSLPips              float64 `json:"max_sl_pips" yaml:"max_sl_pips"`
	MinTPPips              float64 `json:"min_tp_pips" yaml:"min_tp_pips"`
	MaxTPPips              float64 `json:"max_tp_pips" yaml:"max_tp_pips"`
	MinRiskReward          float64 `json:"min_risk_reward" yaml:"min_risk_reward"`
	StructureMinRR         float64 `json:"structure_min_rr" yaml:"structure_min_rr"`
	FallbackATRPips        float64 `json:"fallback_atr_pips" yaml:"fallback_atr_pips"`
}

type RiskConfig struct {
	RiskPct              float64 `json:"risk_pct" yaml:"risk_pct"`
	MaxTradesPerDay      int     `json:"max_trades_per_day" yaml:"max_trades_per_day"`
	MaxOpenTrades        int     `json:"max_open_trades" yaml:"max_open_trades"`
	MaxDailyLossPct      float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses" yaml:"max_consecutive_losses"`
	PauseMinutes         float64 `json:"pause_minutes" yaml:"pause_minutes"`
	MaxSpreadPips        float64 `json:"max_spread_pips" yaml:"max_spread_pips"`
	LotStep              float64 `json:"lot_step" yaml:"lot_step"`
	MinUnits             float64 `json:"min_units" yaml:"min_units"`
	MaxUnits             float64 `json:"max_units" yaml:"max_units"`
}

type PricingConfig struct {
	DynamicSpread bool               `json:"dynamic_spread" yaml:"dynamic_spread"`
	Slippage      bool               `json:"slippage" yaml:"slippage"`
	Seed          int64              `json:"seed" yaml:"seed"`
	Spreads       map[string]float64 `json:"spreads,omitempty" yaml:"spreads,omitempty"`
}

type EngineConfig struct {
	MonitorInterval string `json:"monitor_interval" yaml:"monitor_interval"` // e.g. "1m", "5s"
}

// ParseInterval converts the monitor interval to a time.Duration.
func (e EngineConfig) ParseInterval() (time.Duration, error) {
	if e.MonitorInterval == "" {
		return time.Minute, nil
	}
	return time.ParseDuration(e.MonitorInterval)
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	RiskFile   string `json:"risk_file,omitempty" yaml:"risk_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// LoadFromFile loads configuration from a file (JSON or YAML), applies
// environment overrides and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set. A
// missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides configuration values from SCALPER_* environment
// variables.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv("SCALPER_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("SCALPER_JOURNAL_DB"); ok && v != "" {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = v
	}
	if v, ok := os.LookupEnv("SCALPER_ACCOUNT_BALANCE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: SCALPER_ACCOUNT_BALANCE: %v", ErrInvalid, err)
		}
		c.Account.Balance = f
	}
	if v, ok := os.LookupEnv("SCALPER_RISK_PCT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: SCALPER_RISK_PCT: %v", ErrInvalid, err)
		}
		c.Risk.RiskPct = f
	}
	return nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid. Every failure wraps
// ErrInvalid.
func (c *Config) Validate() error {
	bad := func(format string, a ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, a...)...)
	}

	if c.Account.Currency == "" {
		return bad("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return bad("account.balance must be positive")
	}
	if c.Account.Leverage < 0 {
		return bad("account.leverage must not be negative")
	}

	if err := c.ExitsConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	r := c.Risk
	if r.RiskPct <= 0 || r.RiskPct > 0.05 {
		return bad("risk.risk_pct must be in (0, 0.05]")
	}
	if r.MaxTradesPerDay <= 0 {
		return bad("risk.max_trades_per_day must be positive")
	}
	if r.MaxOpenTrades <= 0 {
		return bad("risk.max_open_trades must be positive")
	}
	if r.MaxDailyLossPct <= 0 || r.MaxDailyLossPct >= 1 {
		return bad("risk.max_daily_loss_pct must be in (0, 1)")
	}
	if r.MaxConsecutiveLosses <= 0 {
		return bad("risk.max_consecutive_losses must be positive")
	}
	if r.PauseMinutes < 0 {
		return bad("risk.pause_minutes must not be negative")
	}
	if r.MaxSpreadPips < 0 || r.MaxSpreadPips > MaxSpreadCeilingPips {
		return bad("risk.max_spread_pips must be between 0 and %g", MaxSpreadCeilingPips)
	}
	if r.LotStep < 0 || r.MinUnits < 0 || r.MaxUnits < 0 {
		return bad("risk lot sizes must not be negative")
	}
	if r.MaxUnits > 0 && r.MinUnits > r.MaxUnits {
		return bad("risk.min_units must not exceed risk.max_units")
	}

	for instr, s := range c.Pricing.Spreads {
		if s <= 0 {
			return bad("pricing.spreads[%s] must be positive", instr)
		}
	}

	if _, err := c.Engine.ParseInterval(); err != nil {
		return bad("engine.monitor_interval: %v", err)
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.RiskFile == "" {
			return bad("journal trades_file and risk_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return bad("journal db_path required for SQLite type")
		}
	default:
		return bad("journal.type must be 'csv', 'sqlite' or 'none'")
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return bad("log.format must be 'text' or 'json'")
	}
	return nil
}

// ExitsConfig converts the file form into the calculator configuration.
func (c *Config) ExitsConfig() exits.Config {
	e := c.Exits
	return exits.Config{
		ATRPeriod:              e.ATRPeriod,
		SLMultiplier:           e.SLMultiplier,
		TPMultiplier:           e.TPMultiplier,
		TrailMultiplier:        e.TrailMultiplier,
		BufferSpreadMultiplier: e.BufferSpreadMultiplier,
		BufferATRMultiplier:    e.BufferATRMultiplier,
		Timeout:                minutes(e.TimeoutMinutes),
		DecayRate:              e.DecayRate,
		BreakevenTrigger:       e.BreakevenTrigger,
		BreakevenCushion:       e.BreakevenCushion,
		MinSLPips:              e.MinSLPips,
		MaxSLPips:              e.MaxSLPips,
		MinTPPips:              e.MinTPPips,
		MaxTPPips:              e.MaxTPPips,
		MinRiskReward:          e.MinRiskReward,
		StructureMinRR:         e.StructureMinRR,
		FallbackATRPips:        e.FallbackATRPips,
	}
}

// Policy converts the risk section into a governor policy.
func (c *Config) Policy() risk.Policy {
	p := risk.DefaultPolicy()
	p.AccountBaseCurrency = c.Account.Currency
	p.DefaultRiskPct = c.Risk.RiskPct
	p.MaxTradesPerDay = c.Risk.MaxTradesPerDay
	p.MaxOpenTrades = c.Risk.MaxOpenTrades
	p.MaxDailyLossPct = c.Risk.MaxDailyLossPct
	p.MaxConsecutiveLosses = c.Risk.MaxConsecutiveLosses
	p.PauseWindow = minutes(c.Risk.PauseMinutes)
	p.MaxSpreadPips = c.Risk.MaxSpreadPips
	p.MinRR = c.Exits.MinRiskReward
	return p
}

// PricingConfig overlays the file settings on the default price model.
func (c *Config) PricingConfig() pricing.Config {
	p := pricing.DefaultConfig()
	p.DynamicSpread = c.Pricing.DynamicSpread
	p.Slippage = c.Pricing.Slippage
	p.Seed = c.Pricing.Seed
	if len(c.Pricing.Spreads) > 0 {
		p.Spreads = make(map[string]float64, len(c.Pricing.Spreads))
		for k, v := range c.Pricing.Spreads {
			p.Spreads[k] = v
		}
	}
	return p
}

func (c *Config) Sizing() engine.Sizing {
	s := engine.DefaultSizing()
	if c.Risk.LotStep > 0 {
		s.LotStep = c.Risk.LotStep
	}
	if c.Risk.MinUnits > 0 {
		s.MinUnits = c.Risk.MinUnits
	}
	if c.Risk.MaxUnits > 0 {
		s.MaxUnits = c.Risk.MaxUnits
	}
	return s
}

// EngineAccount is the starting account for a new engine.
func (c *Config) EngineAccount() engine.Account {
	return engine.Account{
		ID:       c.Account.ID,
		Currency: c.Account.Currency,
		Balance:  c.Account.Balance,
		Leverage: c.Account.Leverage,
	}
}

// EngineOptions fills the configuration-derived engine options; callers
// add the journal, rate source, listeners and logger.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Exits:   c.ExitsConfig(),
		Policy:  c.Policy(),
		Pricing: c.PricingConfig(),
		Sizing:  c.Sizing(),
	}
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	ex := exits.DefaultConfig()
	pol := risk.DefaultPolicy()
	pr := pricing.DefaultConfig()
	sz := engine.DefaultSizing()

	return &Config{
		Account: AccountConfig{
			ID:       "SIM-001",
			Currency: "USD",
			Balance:  100000,
			Leverage: 50,
		},
		Exits: ExitsConfig{
			ATRPeriod:              ex.ATRPeriod,
			SLMultiplier:           ex.SLMultiplier,
			TPMultiplier:           ex.TPMultiplier,
			TrailMultiplier:        ex.TrailMultiplier,
			BufferSpreadMultiplier: ex.BufferSpreadMultiplier,
			BufferATRMultiplier:    ex.BufferATRMultiplier,
			TimeoutMinutes:         ex.Timeout.Minutes(),
			DecayRate:              ex.DecayRate,
			BreakevenTrigger:       ex.BreakevenTrigger,
			BreakevenCushion:       ex.BreakevenCushion,
			MinSLPips:              ex.MinSLPips,
			MaxSLPips:              ex.MaxSLPips,
			MinTPPips:              ex.MinTPPips,
			MaxTPPips:              ex.MaxTPPips,
			MinRiskReward:          ex.MinRiskReward,
			StructureMinRR:         ex.StructureMinRR,
			FallbackATRPips:        ex.FallbackATRPips,
		},
		Risk: RiskConfig{
			RiskPct:              pol.DefaultRiskPct,
			MaxTradesPerDay:      pol.MaxTradesPerDay,
			MaxOpenTrades:        pol.MaxOpenTrades,
			MaxDailyLossPct:      pol.MaxDailyLossPct,
			MaxConsecutiveLosses: pol.MaxConsecutiveLosses,
			PauseMinutes:         pol.PauseWindow.Minutes(),
			MaxSpreadPips:        pol.MaxSpreadPips,
			LotStep:              sz.LotStep,
			MinUnits:             sz.MinUnits,
			MaxUnits:             sz.MaxUnits,
		},
		Pricing: PricingConfig{
			DynamicSpread: pr.DynamicSpread,
			Slippage:      pr.Slippage,
		},
		Engine: EngineConfig{MonitorInterval: "1m"},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./scalper.db",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}
