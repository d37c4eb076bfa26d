package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedPosition is one position row seeded from the config file.
type SeedPosition struct {
	Ticker   string  `yaml:"ticker"`
	Qty      float64 `yaml:"qty"`
	AvgPrice float64 `yaml:"avg_price"`
}

// Config holds all application configuration.
type Config struct {
	Binance struct {
		BaseURLs []string `yaml:"base_urls"`
	} `yaml:"binance"`
	Ingest struct {
		Symbols       []string `yaml:"symbols"`
		Interval      string   `yaml:"interval"`
		BatchLimit    int      `yaml:"batch_limit"`
		LookbackHours int      `yaml:"lookback_hours"`
	} `yaml:"ingest"`
	Portfolio struct {
		Cash             float64        `yaml:"cash"`
		DrawdownLookback int            `yaml:"drawdown_lookback"`
		Positions        []SeedPosition `yaml:"positions"`
	} `yaml:"portfolio"`
	Schedule struct {
		UpdateCron string `yaml:"update_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Ingest.Symbols = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Ingest.Symbols = append(cfg.Ingest.Symbols, s)
			}
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("UPDATE_CRON"); v != "" {
		cfg.Schedule.UpdateCron = v
	}
	if v := os.Getenv("CASH"); v != "" {
		var cash float64
		if _, err := fmt.Sscanf(v, "%f", &cash); err == nil {
			cfg.Portfolio.Cash = cash
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if len(cfg.Binance.BaseURLs) == 0 {
		// binance.com may answer 451/403 from the US, so the US host goes first.
		cfg.Binance.BaseURLs = []string{"https://api.binance.us", "https://api.binance.com"}
	}
	if len(cfg.Ingest.Symbols) == 0 {
		cfg.Ingest.Symbols = []string{"BTCUSDT", "ETHUSDT", "DOGEUSDT"}
	}
	if cfg.Ingest.Interval == "" {
		cfg.Ingest.Interval = "1m"
	}
	if cfg.Ingest.BatchLimit == 0 {
		cfg.Ingest.BatchLimit = 900
	}
	if cfg.Ingest.LookbackHours == 0 {
		cfg.Ingest.LookbackHours = 12
	}
	if cfg.Portfolio.Cash == 0 {
		cfg.Portfolio.Cash = 1000
	}
	if cfg.Portfolio.DrawdownLookback == 0 {
		cfg.Portfolio.DrawdownLookback = 5000
	}
	if cfg.Schedule.UpdateCron == "" {
		cfg.Schedule.UpdateCron = "0 * * * * *"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/market.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are sane.
func (c *Config) Validate() error {
	if len(c.Ingest.Symbols) == 0 {
		return fmt.Errorf("ingest.symbols must not be empty")
	}
	if c.Ingest.BatchLimit < 1 || c.Ingest.BatchLimit > 1000 {
		return fmt.Errorf("ingest.batch_limit must be in 1..1000, got %d", c.Ingest.BatchLimit)
	}
	if c.Ingest.LookbackHours <= 0 {
		return fmt.Errorf("ingest.lookback_hours must be positive")
	}
	if c.Portfolio.DrawdownLookback < 2 {
		return fmt.Errorf("portfolio.drawdown_lookback must be at least 2")
	}
	for _, p := range c.Portfolio.Positions {
		if p.Ticker == "" {
			return fmt.Errorf("portfolio.positions entries need a ticker")
		}
	}
	return nil
}
