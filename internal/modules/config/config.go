package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	venueKeyENV       = "VENUE_API_KEY"
	venueSecretENV    = "VENUE_API_SECRET"
	venuePassphENV    = "VENUE_PASSPHRASE"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB string `yaml:"db_dsn"`

	// paper — симулированные заливки, real — живая площадка
	Mode string `yaml:"mode"`

	// Вселенная инструментов: ордер вне этого списка не пройдёт валидацию
	Tickers   []string `yaml:"tickers"`
	Timeframe string   `yaml:"timeframe"`

	// Риск-лимиты
	MaxActivePositions int     `yaml:"max_active_positions"`
	MaxLeverage        float64 `yaml:"max_leverage"`
	StopLossRequired   bool    `yaml:"stop_loss_required"`
	MaxLossPct         float64 `yaml:"max_loss_pct"`    // напр. 0.05 => стоп не дальше 5% от цены
	TrailingStopPct    float64 `yaml:"trailing_stop_pct"`
	DailyLossLimit     float64 `yaml:"daily_loss_limit"` // напр. 0.02 => -2% за день и новые входы стоп
	MaxDrawdown        float64 `yaml:"max_drawdown"`
	RiskPerTrade       float64 `yaml:"risk_per_trade"` // доля капитала под риск на сделку, напр. 0.01

	InitialBalance float64 `yaml:"initial_balance"`
	Slippage       float64 `yaml:"slippage"` // напр. 0.001 => 0.1%

	// Пайплайн сигналов
	Strategies    []string `yaml:"strategies"`
	MinConfidence float64  `yaml:"min_confidence"`

	// Ретраи сетевых вызовов
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`

	// Нижняя граница паузы между циклами
	CycleFloor time.Duration `yaml:"cycle_floor"`

	Venue struct {
		BaseURL    string `yaml:"base_url"`
		WSURL      string `yaml:"ws_url"`
		APIKey     string `yaml:"api_key"`
		APISecret  string `yaml:"api_secret"`
		Passphrase string `yaml:"passphrase"`
	} `yaml:"venue"`

	Health struct {
		Addr string `yaml:"addr"`
	} `yaml:"health"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		Mode:      getenvDefault("MODE", "paper"),
		Timeframe: getenvDefault("TIMEFRAME", "1m"),

		MaxActivePositions: intFromEnv("MAX_ACTIVE_POSITIONS", 5),
		MaxLeverage:        floatFromEnv("MAX_LEVERAGE", 3),
		StopLossRequired:   boolFromEnv("STOP_LOSS_REQUIRED", true),
		MaxLossPct:         floatFromEnv("MAX_LOSS_PCT", 0.05),
		TrailingStopPct:    floatFromEnv("TRAILING_STOP_PCT", 0.02),
		DailyLossLimit:     floatFromEnv("DAILY_LOSS_LIMIT", 0.02),
		MaxDrawdown:        floatFromEnv("MAX_DRAWDOWN", 0.05),
		RiskPerTrade:       floatFromEnv("RISK_PER_TRADE", 0.01),

		InitialBalance: floatFromEnv("INITIAL_BALANCE", 100000),
		Slippage:       floatFromEnv("SLIPPAGE", 0.001),

		MinConfidence: floatFromEnv("MIN_CONFIDENCE", 0.65),

		RetryAttempts:  intFromEnv("RETRY_ATTEMPTS", 3),
		RetryBaseDelay: durationFromEnv("RETRY_BASE_DELAY", "1s"),
		CycleFloor:     durationFromEnv("CYCLE_FLOOR", "10s"),
	}
	err = decoder.Decode(&config)
	if err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	if len(config.Tickers) == 0 {
		return nil, fmt.Errorf("config: empty tickers list")
	}
	if config.Mode != "paper" && config.Mode != "real" {
		return nil, fmt.Errorf("config: invalid mode %q", config.Mode)
	}
	if len(config.Strategies) == 0 {
		config.Strategies = []string{"trend_following"}
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	if v := os.Getenv(venueKeyENV); v != "" {
		config.Venue.APIKey = v
	}
	if v := os.Getenv(venueSecretENV); v != "" {
		config.Venue.APISecret = v
	}
	if v := os.Getenv(venuePassphENV); v != "" {
		config.Venue.Passphrase = v
	}

	return &config, nil
}

// Tracked — входит ли тикер во вселенную инструментов.
func (c *Config) Tracked(ticker string) bool {
	for _, t := range c.Tickers {
		if strings.EqualFold(t, ticker) {
			return true
		}
	}
	return false
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
