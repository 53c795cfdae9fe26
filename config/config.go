// Package config loads chartd settings: an optional .env file, an optional
// YAML file for chart settings, then environment variables on top.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"chartengine/internal/chart"
	"chartengine/internal/marketdata/session"
	"chartengine/internal/model"
)

// ThresholdSpec is a threshold declared in configuration.
type ThresholdSpec struct {
	Label string  `yaml:"label"`
	Price float64 `yaml:"price"`
}

// File is the YAML layout read from CHART_CONFIG.
type File struct {
	Symbols    []string        `yaml:"symbols"`
	Chart      chart.Config    `yaml:"chart"`
	Thresholds []ThresholdSpec `yaml:"thresholds"`
}

// Config holds all application configuration.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	HTTPAddr      string
	MetricsAddr   string
	LogLevel      string

	// Feed
	FeedSource     string // "ws" or "redis"
	FeedURL        string
	BarIntervalSec int

	// SessionOnly keeps the WS feed connected only inside Session.
	SessionOnly bool
	Session     session.Config

	// Charts
	Symbols    []string
	Chart      chart.Config
	Thresholds []ThresholdSpec
	ReplaySize int

	// ConfirmOnClose only emits signals for closed bars.
	ConfirmOnClose bool
	// WarmBars is how many stored bars per symbol are loaded at startup.
	WarmBars int

	// Admin endpoints are disabled when the secret is empty.
	AdminTOTPSecret string
	// APIRateLimit is requests/sec per client IP on /api; 0 disables it.
	APIRateLimit float64
	APIRateBurst int

	// Notifications
	TelegramToken  string
	TelegramChatID string
	WebhookURL     string
}

// Load reads .env (if present), the YAML file named by CHART_CONFIG (if
// set) and then environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{Chart: chart.DefaultConfig()}
	if path := os.Getenv("CHART_CONFIG"); path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Symbols = f.Symbols
		cfg.Chart = f.Chart
		cfg.Thresholds = f.Thresholds
	}

	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.SQLitePath = getEnv("SQLITE_PATH", "data/chart.db")
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	cfg.FeedSource = getEnv("FEED_SOURCE", "ws")
	cfg.FeedURL = getEnv("FEED_URL", "ws://localhost:9001/ws")
	cfg.BarIntervalSec = getEnvInt("BAR_INTERVAL_SEC", 60)
	cfg.ReplaySize = getEnvInt("REPLAY_SIZE", 200)
	cfg.ConfirmOnClose = getEnvBool("CONFIRM_ON_CLOSE", true)

	cfg.APIRateLimit = getEnvFloat("API_RATE_LIMIT", 20)
	cfg.APIRateBurst = getEnvInt("API_RATE_BURST", 50)

	cfg.SessionOnly = getEnvBool("FEED_SESSION_ONLY", false)
	cfg.Session = session.Config{
		Timezone: getEnv("SESSION_TZ", "IST"),
		Open:     getEnv("SESSION_OPEN", "09:15"),
		Close:    getEnv("SESSION_CLOSE", "15:30"),
	}
	if v := os.Getenv("SESSION_HOLIDAYS"); v != "" {
		cfg.Session.Holidays = strings.Split(v, ",")
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Symbols = ParseSymbols(v)
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"NIFTY"}
	}
	if v := os.Getenv("CHART_THRESHOLDS"); v != "" {
		cfg.Thresholds = ParseThresholds(v)
	}

	cfg.Chart.MaxLength = getEnvInt("CHART_MAX_LENGTH", cfg.Chart.MaxLength)
	cfg.Chart.Padding = getEnvFloat("CHART_PADDING", cfg.Chart.Padding)
	cfg.Chart.FastMA.Period = getEnvInt("CHART_FAST_PERIOD", cfg.Chart.FastMA.Period)
	cfg.Chart.SlowMA.Period = getEnvInt("CHART_SLOW_PERIOD", cfg.Chart.SlowMA.Period)
	if v := os.Getenv("CHART_MA_TYPE"); v != "" {
		typ := model.MAType(strings.ToUpper(v))
		cfg.Chart.FastMA.Type = typ
		cfg.Chart.SlowMA.Type = typ
	}

	cfg.WarmBars = getEnvInt("WARM_BARS", cfg.Chart.MaxLength)

	cfg.AdminTOTPSecret = getEnv("ADMIN_TOTP_SECRET", "")
	cfg.TelegramToken = getEnv("TELEGRAM_TOKEN", "")
	cfg.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")
	cfg.WebhookURL = getEnv("WEBHOOK_URL", "")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a YAML config file. Chart fields absent from the file
// keep their defaults.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	f := &File{Chart: chart.DefaultConfig()}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	f.Symbols = ParseSymbols(strings.Join(f.Symbols, ","))
	return f, nil
}

// Validate checks settings that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.FeedSource != "ws" && c.FeedSource != "redis" {
		return fmt.Errorf("%w: feed source %q", model.ErrInvalidConfig, c.FeedSource)
	}
	if c.BarIntervalSec <= 0 {
		return fmt.Errorf("%w: bar interval %d", model.ErrInvalidConfig, c.BarIntervalSec)
	}
	if c.WarmBars < 0 {
		return fmt.Errorf("%w: warm bars %d", model.ErrInvalidConfig, c.WarmBars)
	}
	if c.ReplaySize <= 0 {
		return fmt.Errorf("%w: replay size %d", model.ErrInvalidConfig, c.ReplaySize)
	}
	if _, err := chart.New(c.Chart); err != nil {
		return err
	}
	if c.APIRateLimit < 0 || (c.APIRateLimit > 0 && c.APIRateBurst <= 0) {
		return fmt.Errorf("%w: api rate %v burst %d", model.ErrInvalidConfig, c.APIRateLimit, c.APIRateBurst)
	}
	if c.SessionOnly {
		if _, err := session.New(c.Session); err != nil {
			return fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
		}
	}
	return nil
}

// ThresholdList converts configured thresholds to model thresholds
// without IDs.
func (c *Config) ThresholdList() []model.Threshold {
	out := make([]model.Threshold, len(c.Thresholds))
	for i, t := range c.Thresholds {
		out[i] = model.Threshold{Label: t.Label, Price: t.Price}
	}
	return out
}

// ChartConfig returns the engine config for one symbol.
func (c *Config) ChartConfig(symbol string) chart.Config {
	cc := c.Chart
	cc.Symbol = symbol
	return cc
}

// ParseSymbols splits a comma-separated list, trimming and upper-casing.
func ParseSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ParseThresholds parses "price[:label],..." e.g. "120:target,95.5:stop".
func ParseThresholds(s string) []ThresholdSpec {
	parts := strings.Split(s, ",")
	out := make([]ThresholdSpec, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		priceStr, label, _ := strings.Cut(p, ":")
		price, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
		if err != nil {
			log.Printf("[config] skipping invalid threshold: %q", p)
			continue
		}
		out = append(out, ThresholdSpec{Label: strings.TrimSpace(label), Price: price})
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] %s=%q is not a number, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] %s=%q is not a boolean, using %v", key, v, fallback)
		return fallback
	}
	return b
}
