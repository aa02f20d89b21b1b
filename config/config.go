// Package config loads the runtime settings for the notifier and the
// webhook listener from the environment, with an optional .env file for
// local runs.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"coopflow/schedule"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`

	EvoBaseURL  string        `env:"EVO_BASE_URL"`
	EvoAPIKey   string        `env:"EVO_APIKEY"`
	EvoInstance string        `env:"EVO_INSTANCE"`
	EvoTimeout  time.Duration `env:"EVO_TIMEOUT" envDefault:"30s"`

	DanfeAPIURL string `env:"DANFE_API_URL"`
	DanfeAPIKey string `env:"DANFE_API_KEY"`

	DefaultAreaCode string `env:"DEFAULT_AREA_CODE" envDefault:"46"`
	TIPhone         string `env:"TI_NOTIFY_PHONE"`

	// Minutes between polling cycles. Anything below one minute is
	// clamped up so a misconfigured value cannot hammer the database.
	IntervalMinutes int `env:"NOTIFY_INTERVAL_MINUTES" envDefault:"10"`

	CollectionsStart string `env:"COBRANCA_HORARIO_INICIO" envDefault:"09:00"`
	CollectionsEnd   string `env:"COBRANCA_HORARIO_FIM"    envDefault:"17:59"`

	// Weekly payables report. Weekday follows the 0=Monday convention
	// the finance team already uses in its cron jobs.
	PayWeekday    int    `env:"PAY_REPORT_DAY_OF_WEEK"     envDefault:"0"`
	PayHour       int    `env:"PAY_REPORT_HOUR"            envDefault:"8"`
	PayMinute     int    `env:"PAY_REPORT_MINUTE"          envDefault:"0"`
	PayRangeDays  int    `env:"PAY_REPORT_RANGE_DAYS"      envDefault:"7"`
	PayOffsetDays int    `env:"PAY_REPORT_START_OFFSET_DAYS" envDefault:"0"`
	PayPhonesRaw  string `env:"PAY_NOTIFY_PHONES"`

	StateDir string `env:"STATE_DIR" envDefault:"."`

	WebhookAddr   string `env:"WEBHOOK_ADDR" envDefault:":8080"`
	WebhookAPIKey string `env:"WEBHOOK_APIKEY"`
}

// Load reads .env when present, then the process environment, and
// validates the settings every run needs.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.EvoBaseURL == "" || cfg.EvoAPIKey == "" || cfg.EvoInstance == "" {
		return Config{}, fmt.Errorf("config: EVO_BASE_URL, EVO_APIKEY and EVO_INSTANCE are required")
	}

	return cfg, nil
}

// LoadWebhook reads settings for the webhook listener only, which needs
// neither the database nor the gateway credentials.
func LoadWebhook() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

// Interval is the pause between polling cycles, never below one minute.
func (c Config) Interval() time.Duration {
	minutes := c.IntervalMinutes
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

// PayPhones splits the report recipient list on commas and semicolons.
func (c Config) PayPhones() []string {
	fields := strings.FieldsFunc(c.PayPhonesRaw, func(r rune) bool {
		return r == ',' || r == ';'
	})

	var phones []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			phones = append(phones, f)
		}
	}
	return phones
}

// PayGate converts the cron-style 0=Monday weekday into the report gate.
func (c Config) PayGate() schedule.WeeklyGate {
	weekday := time.Weekday((c.PayWeekday + 1) % 7)
	return schedule.WeeklyGate{Weekday: weekday, Hour: c.PayHour, Minute: c.PayMinute}
}

// CollectionsGate is the business-hours window for dunning messages.
func (c Config) CollectionsGate() schedule.BusinessHoursGate {
	return schedule.BusinessHoursGate{Start: c.CollectionsStart, End: c.CollectionsEnd}
}

// StatePath resolves a send-state file inside the state directory.
func (c Config) StatePath(name string) string {
	return filepath.Join(c.StateDir, name)
}
