package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"factor-trading-bot/internal/types"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	ModePaper = "PAPER"
	ModeLive  = "LIVE"

	MissedPolicySkip    = "skip"
	MissedPolicyCatchUp = "catch_up"
)

type Config struct {
	Mode       string          `yaml:"mode"`
	Timeframe  types.Timeframe `yaml:"timeframe"`
	Venue      string          `yaml:"venue"`
	AssetClass string          `yaml:"asset_class"`
	Universe   []string        `yaml:"universe"`
	Factors    []string        `yaml:"factors"`
	Strategy   string          `yaml:"strategy"`

	MetricsAddr              string `yaml:"metrics_addr"`
	ClosePositionsOnShutdown bool   `yaml:"close_positions_on_shutdown"`

	Signal struct {
		Feature    string  `yaml:"feature"`
		Threshold  float64 `yaml:"threshold"`
		Window     int     `yaml:"window"`
		MinPeriods int     `yaml:"min_periods"`
	} `yaml:"signal"`

	Risk struct {
		CashFraction       float64 `yaml:"cash_fraction"`
		TransactionCost    float64 `yaml:"transaction_cost"`
		VolWindow          int     `yaml:"vol_window"`
		VolFloorMultiple   float64 `yaml:"vol_floor_multiple"`
		VolCap             float64 `yaml:"vol_cap"`
		TakeProfitMultiple float64 `yaml:"take_profit_multiple"`
		StopLossMultiple   float64 `yaml:"stop_loss_multiple"`
	} `yaml:"risk"`

	History struct {
		BackfillDays   int     `yaml:"backfill_days"`
		EndOffsetDays  float64 `yaml:"end_offset_days"`
		WarmupLookback int     `yaml:"warmup_lookback"`
		CycleLookback  int     `yaml:"cycle_lookback"`
		// RetentionDays bounds in-memory history; 0 keeps everything.
		RetentionDays *int `yaml:"retention_days"`
	} `yaml:"history"`

	Scheduler struct {
		TriggerSecond       int    `yaml:"trigger_second"`
		MissedPolicy        string `yaml:"missed_policy"`
		AbortAlertThreshold int    `yaml:"abort_alert_threshold"`
	} `yaml:"scheduler"`

	Tracker struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"tracker"`

	Broker struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"broker"`

	Feed struct {
		BaseURL          string `yaml:"base_url"`
		TimeoutSeconds   int    `yaml:"timeout_seconds"`
		RequestsPerBurst int    `yaml:"requests_per_burst"`
		RefillMillis     int    `yaml:"refill_millis"`
	} `yaml:"feed"`
}

// Credentials are read from the environment only, never from config.yaml.
type Credentials struct {
	BrokerKeyID  string `env:"APCA_API_KEY_ID,required,notEmpty"`
	BrokerSecret string `env:"APCA_API_SECRET_KEY,required,notEmpty"`
	FeedAPIKey   string `env:"LUMNIS_API_KEY,required,notEmpty"`
}

// LoadCredentials parses broker and feed credentials from the environment.
func LoadCredentials() (*Credentials, error) {
	var c Credentials
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return &c, nil
}

// Retention returns the history retention window; zero means unbounded.
func (c *Config) Retention() time.Duration {
	if c.History.RetentionDays == nil {
		return 0
	}
	return time.Duration(*c.History.RetentionDays) * 24 * time.Hour
}

// Paper reports whether orders target the paper trading environment.
func (c *Config) Paper() bool {
	return c.Mode != ModeLive
}

func (c *Config) Validate() error {
	if c.Mode != ModePaper && c.Mode != ModeLive {
		return fmt.Errorf("invalid mode '%s': must be 'PAPER' or 'LIVE'", c.Mode)
	}
	if !c.Timeframe.Valid() {
		return fmt.Errorf("invalid timeframe '%s': must be 'min' or 'hour'", c.Timeframe)
	}
	if len(c.Universe) == 0 {
		return errors.New("universe cannot be empty")
	}
	if len(c.Factors) == 0 {
		return errors.New("factors cannot be empty")
	}
	if c.Scheduler.TriggerSecond < 0 || c.Scheduler.TriggerSecond > 59 {
		return fmt.Errorf("scheduler.trigger_second must be between 0-59, got %d", c.Scheduler.TriggerSecond)
	}
	if c.Scheduler.MissedPolicy != MissedPolicySkip && c.Scheduler.MissedPolicy != MissedPolicyCatchUp {
		return fmt.Errorf("scheduler.missed_policy must be 'skip' or 'catch_up', got '%s'", c.Scheduler.MissedPolicy)
	}
	if c.Risk.CashFraction <= 0 || c.Risk.CashFraction > 1 {
		return fmt.Errorf("risk.cash_fraction must be in (0, 1], got %.4f", c.Risk.CashFraction)
	}
	if c.Risk.VolCap < c.Risk.TransactionCost*c.Risk.VolFloorMultiple {
		return fmt.Errorf("risk.vol_cap %.4f is below the volatility floor %.4f", c.Risk.VolCap, c.Risk.TransactionCost*c.Risk.VolFloorMultiple)
	}
	if c.Risk.VolWindow < 2 {
		return fmt.Errorf("risk.vol_window must be at least 2, got %d", c.Risk.VolWindow)
	}
	if c.History.RetentionDays != nil && *c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days cannot be negative, got %d", *c.History.RetentionDays)
	}
	return nil
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func (c *Config) applyDefaults() {
	c.Mode = strings.ToUpper(c.Mode)
	if c.Mode == "" {
		c.Mode = ModePaper
	}
	if c.Timeframe == "" {
		c.Timeframe = types.TimeframeMinute
	}
	if c.Venue == "" {
		c.Venue = "binance"
	}
	if c.AssetClass == "" {
		c.AssetClass = "crypto"
	}
	if c.Strategy == "" {
		c.Strategy = "macd"
	}

	if c.Signal.Feature == "" {
		c.Signal.Feature = "vpin_500"
	}
	if c.Signal.Threshold == 0 {
		c.Signal.Threshold = 2
	}
	if c.Signal.Window == 0 {
		c.Signal.Window = 10000
	}
	if c.Signal.MinPeriods == 0 {
		c.Signal.MinPeriods = 30
	}

	if c.Risk.CashFraction == 0 {
		c.Risk.CashFraction = 0.9
	}
	if c.Risk.TransactionCost == 0 {
		c.Risk.TransactionCost = 0.0015
	}
	if c.Risk.VolWindow == 0 {
		c.Risk.VolWindow = 60
	}
	if c.Risk.VolFloorMultiple == 0 {
		c.Risk.VolFloorMultiple = 15
	}
	if c.Risk.VolCap == 0 {
		c.Risk.VolCap = 0.1
	}
	if c.Risk.TakeProfitMultiple == 0 {
		c.Risk.TakeProfitMultiple = 2
	}
	if c.Risk.StopLossMultiple == 0 {
		c.Risk.StopLossMultiple = 2
	}

	if c.History.BackfillDays == 0 {
		c.History.BackfillDays = 80
	}
	if c.History.EndOffsetDays == 0 {
		c.History.EndOffsetDays = 1.5
	}
	if c.History.WarmupLookback == 0 {
		c.History.WarmupLookback = c.Timeframe.DefaultLookback()
	}
	if c.History.CycleLookback == 0 {
		c.History.CycleLookback = 50
	}
	if c.History.RetentionDays == nil {
		days := 90
		c.History.RetentionDays = &days
	}

	if c.Scheduler.MissedPolicy == "" {
		c.Scheduler.MissedPolicy = MissedPolicySkip
	}
	if c.Scheduler.AbortAlertThreshold == 0 {
		c.Scheduler.AbortAlertThreshold = 3
	}

	if c.Broker.TimeoutSeconds == 0 {
		c.Broker.TimeoutSeconds = 15
	}
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = "https://api.lumnis.io/v1"
	}
	if c.Feed.TimeoutSeconds == 0 {
		c.Feed.TimeoutSeconds = 30
	}
	if c.Feed.RequestsPerBurst == 0 {
		c.Feed.RequestsPerBurst = 5
	}
	if c.Feed.RefillMillis == 0 {
		c.Feed.RefillMillis = 200
	}
}
