package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
//
// Nested envconfig tags carry the full variable name; envconfig falls back
// to the tag alone when the prefixed name is not set.
type Config struct {
	ForecastAPIKey      string `yaml:"forecast_api_key" envconfig:"FORECAST_API_KEY"`
	ForecastEndpoint    string `yaml:"forecast_endpoint" envconfig:"FORECAST_ENDPOINT" validate:"omitempty,url"`
	ForecastSource      string `yaml:"forecast_source" envconfig:"FORECAST_SOURCE" validate:"oneof=primary experimental"`
	ExplanationEndpoint string `yaml:"explanation_endpoint" envconfig:"EXPLANATION_ENDPOINT" validate:"omitempty,url"`
	ExplanationAPIKey   string `yaml:"explanation_api_key" envconfig:"EXPLANATION_API_KEY"`

	Gemini struct {
		APIKey string `yaml:"api_key" envconfig:"GEMINI_API_KEY"`
		Model  string `yaml:"model" envconfig:"GEMINI_MODEL"`
	} `yaml:"gemini"`
	Scraper struct {
		URL string `yaml:"url" envconfig:"SCRAPER_URL" validate:"omitempty,url"`
	} `yaml:"scraper"`
	Telegram struct {
		BotToken string `yaml:"bot_token" envconfig:"TELEGRAM_BOT_TOKEN"`
		ChatID   string `yaml:"chat_id" envconfig:"TELEGRAM_CHAT_ID" validate:"required_with=BotToken"`
	} `yaml:"telegram"`
	Schedule struct {
		WeeklyCron string `yaml:"weekly_cron" envconfig:"SCHEDULE_WEEKLY_CRON" validate:"required"`
		Strategy   string `yaml:"strategy" envconfig:"SCHEDULE_STRATEGY"`
		RunOnStart bool   `yaml:"run_on_start" envconfig:"RUN_ON_START"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" envconfig:"DATABASE_SQLITE_PATH"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr" envconfig:"HTTP_ADDR" validate:"required"`
	} `yaml:"http"`
	Log struct {
		Level  string `yaml:"level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`
		Pretty bool   `yaml:"pretty" envconfig:"LOG_PRETTY"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy" envconfig:"HTTPS_PROXY"`
}

// Path returns CONFIG_PATH or the default location.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is allowed.
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

	// Only variables present in the environment replace file values.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.ForecastSource = strings.ToLower(strings.TrimSpace(c.ForecastSource))
	if c.ForecastSource == "" {
		c.ForecastSource = "primary"
	}
	if c.Schedule.WeeklyCron == "" {
		c.Schedule.WeeklyCron = "0 0 7 * * 1"
	}
	if c.Schedule.Strategy == "" {
		c.Schedule.Strategy = "balanced"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/icestock.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks field formats and that the weekly schedule parses.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidation(verrs)
		}
		return fmt.Errorf("validate config: %w", err)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Schedule.WeeklyCron); err != nil {
		return fmt.Errorf("schedule.weekly_cron: %w", err)
	}
	return nil
}

// ExplanationConfigured reports whether the generic explanation endpoint is usable.
func (c *Config) ExplanationConfigured() bool {
	return c.ExplanationEndpoint != "" && c.ExplanationAPIKey != ""
}

func formatValidation(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required", "required_with":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a URL, got %q", field, fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
