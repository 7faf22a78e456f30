// Package config holds the YAML-backed settings of the signal desk.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Exchange struct {
	Name         string `yaml:"name"`
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
	RESTEndpoint string `yaml:"rest_endpoint"`
	WSEndpoint   string `yaml:"ws_endpoint"`
	Category     string `yaml:"category"`
}

// Universe selects the instruments a cycle collects. An explicit symbol list
// wins over discovery.
type Universe struct {
	Symbols        []string `yaml:"symbols"`
	QuoteCoin      string   `yaml:"quote_coin"`
	MaxInstruments int      `yaml:"max_instruments"`
}

type LongRule struct {
	Min24h       float64 `yaml:"min_24h"`
	Min1h        float64 `yaml:"min_1h"`
	MinVolumePct float64 `yaml:"min_volume_pct"`
	Limit        int     `yaml:"limit"`
}

type ShortRule struct {
	Max24h       float64 `yaml:"max_24h"`
	Max1h        float64 `yaml:"max_1h"`
	MinVolumePct float64 `yaml:"min_volume_pct"`
	Limit        int     `yaml:"limit"`
}

type SpikeRule struct {
	Min1h       float64 `yaml:"min_1h"`
	MinMultiple float64 `yaml:"min_multiple"`
	Limit       int     `yaml:"limit"`
}

type Rules struct {
	Long  LongRule  `yaml:"long"`
	Short ShortRule `yaml:"short"`
	Spike SpikeRule `yaml:"spike"`
}

type MarkPolicy string

const (
	MarkOnAcceptance MarkPolicy = "acceptance"
	MarkOnExecution  MarkPolicy = "execution"
)

type Cooldown struct {
	Window  time.Duration `yaml:"window"`
	MarkOn  MarkPolicy    `yaml:"mark_on"`
	PerKind bool          `yaml:"per_kind"`
}

type Ledger struct {
	StartingBalance float64 `yaml:"starting_balance"`
	Leverage        int     `yaml:"leverage"`
}

type Exits struct {
	TakeProfitPct     float64 `yaml:"take_profit_pct"`
	StopLossPct       float64 `yaml:"stop_loss_pct"`
	TrailPct          float64 `yaml:"trail_pct"`
	TakeProfitPortion float64 `yaml:"take_profit_portion"`
}

type Sizing struct {
	MinUSD float64 `yaml:"min_usd"`
	MaxUSD float64 `yaml:"max_usd"`
}

// Strategy tunes the rule filter that sits between detection and entry.
type Strategy struct {
	MinConfidence   float64 `yaml:"min_confidence"`
	MaxFundingRate  float64 `yaml:"max_funding_rate"`
	MinOpenInterest float64 `yaml:"min_open_interest"`
}

type Scheduler struct {
	Interval    time.Duration `yaml:"interval"`
	CycleBudget time.Duration `yaml:"cycle_budget"`
}

type Retry struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

type Collector struct {
	Concurrency int   `yaml:"concurrency"`
	Retry       Retry `yaml:"retry"`
}

type Storage struct {
	Driver string `yaml:"driver"` // sqlite, postgres or memory
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type Notify struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

type Model struct {
	Path    string `yaml:"path"`
	Library string `yaml:"library"` // onnxruntime shared library
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Config struct {
	Exchange  Exchange  `yaml:"exchange"`
	Universe  Universe  `yaml:"universe"`
	Rules     Rules     `yaml:"rules"`
	Cooldown  Cooldown  `yaml:"cooldown"`
	Ledger    Ledger    `yaml:"ledger"`
	Exits     Exits     `yaml:"exits"`
	Sizing    Sizing    `yaml:"sizing"`
	Strategy  Strategy  `yaml:"strategy"`
	Scheduler Scheduler `yaml:"scheduler"`
	Collector Collector `yaml:"collector"`
	Storage   Storage   `yaml:"storage"`
	Notify    Notify    `yaml:"notify"`
	Model     Model     `yaml:"model"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

// Default returns a config with every tunable set.
func Default() Config {
	return Config{
		Exchange: Exchange{
			Name:         "bybit",
			RESTEndpoint: "https://api.bybit.com",
			WSEndpoint:   "wss://stream.bybit.com/v5/public/linear",
			Category:     "linear",
		},
		Universe: Universe{QuoteCoin: "USDT", MaxInstruments: 150},
		Rules: Rules{
			Long:  LongRule{Min24h: 5, Min1h: 1, MinVolumePct: 50, Limit: 3},
			Short: ShortRule{Max24h: -5, Max1h: -1, MinVolumePct: 50, Limit: 3},
			Spike: SpikeRule{Min1h: 3, MinMultiple: 3, Limit: 4},
		},
		Cooldown: Cooldown{Window: 6 * time.Hour, MarkOn: MarkOnAcceptance},
		Ledger:   Ledger{StartingBalance: 1000, Leverage: 1},
		Exits: Exits{
			TakeProfitPct:     0.04,
			StopLossPct:       0.02,
			TrailPct:          0.015,
			TakeProfitPortion: 0.5,
		},
		Sizing:    Sizing{MinUSD: 20, MaxUSD: 100},
		Strategy:  Strategy{MinConfidence: 0.5, MaxFundingRate: 0.001},
		Scheduler: Scheduler{Interval: 5 * time.Minute, CycleBudget: time.Minute},
		Collector: Collector{
			Concurrency: 8,
			Retry:       Retry{MaxAttempts: 3, InitialInterval: 200 * time.Millisecond, MaxInterval: 2 * time.Second},
		},
		Storage: Storage{Driver: "sqlite", Path: "signaldesk.db"},
		Server:  Server{Port: 8080},
		Logging: Logging{Level: "info"},
	}
}

// Load reads a YAML file over the defaults and applies environment secrets.
// A .env file next to the process is loaded when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BYBIT_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("BYBIT_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Notify.DiscordWebhookURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
	}
}

// Validate rejects settings the core cannot run with.
func (c *Config) Validate() error {
	if c.Rules.Long.Limit < 0 || c.Rules.Short.Limit < 0 || c.Rules.Spike.Limit < 0 {
		return fmt.Errorf("rules: limits must not be negative")
	}
	if c.Cooldown.Window <= 0 {
		return fmt.Errorf("cooldown: window must be positive")
	}
	switch c.Cooldown.MarkOn {
	case MarkOnAcceptance, MarkOnExecution:
	default:
		return fmt.Errorf("cooldown: unknown mark_on %q", c.Cooldown.MarkOn)
	}
	if c.Exits.TakeProfitPortion <= 0 || c.Exits.TakeProfitPortion > 1 {
		return fmt.Errorf("exits: take_profit_portion must be in (0, 1]")
	}
	if !(c.Exits.TrailPct >= 0 && c.Exits.TrailPct < 1) {
		return fmt.Errorf("exits: trail_pct must be in [0, 1)")
	}
	if c.Ledger.Leverage < 1 {
		return fmt.Errorf("ledger: leverage must be at least 1")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler: interval must be positive")
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}
	return nil
}
