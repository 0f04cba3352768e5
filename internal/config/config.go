package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"movie_sync/internal/domain"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "config.yaml"

const defaultPageDelay = 1500 * time.Millisecond

type Config struct {
	Douban   DoubanConfig   `yaml:"douban"`
	Notion   NotionConfig   `yaml:"notion"`
	Sync     SyncConfig     `yaml:"sync"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	LogLevel string         `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

type DoubanConfig struct {
	UserID       string        `yaml:"user_id" validate:"required"`
	Mode         string        `yaml:"mode" validate:"oneof=web api"`
	BaseURL      string        `yaml:"base_url" validate:"url"`
	APIBaseURL   string        `yaml:"api_base_url" validate:"url"`
	APIKey       string        `yaml:"api_key"`
	PageSize     int           `yaml:"page_size" validate:"gt=0,lte=100"`
	PageDelay    time.Duration `yaml:"page_delay" validate:"gte=0"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	FetchDetails bool          `yaml:"fetch_details"`
}

type NotionConfig struct {
	APIKey       string        `yaml:"api_key" validate:"required"`
	DatabaseID   string        `yaml:"database_id"`
	ParentPageID string        `yaml:"parent_page_id"`
	DatabaseName string        `yaml:"database_name"`
	BaseURL      string        `yaml:"base_url" validate:"url"`
	Version      string        `yaml:"version"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	PageSize     int           `yaml:"page_size" validate:"gt=0,lte=100"`
}

// DatabaseConfigured reports whether an existing database id is set.
func (n NotionConfig) DatabaseConfigured() bool {
	return n.DatabaseID != ""
}

// SyncConfig selects what is synced. A zero Interval means a single pass;
// otherwise passes repeat until the process is stopped.
type SyncConfig struct {
	Status      domain.Status `yaml:"status"`
	Incremental bool          `yaml:"incremental"`
	Interval    time.Duration `yaml:"interval" validate:"gte=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
}

// RabbitMQConfig enables event publishing when URL is set.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

// Load reads .env, the optional YAML file at path and environment overrides,
// then applies defaults and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	// page_delay: 0s disables pacing, so its default is set before decoding.
	cfg := Config{Douban: DoubanConfig{PageDelay: defaultPageDelay}}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// PathFromEnv returns CONFIG_PATH or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

func (c *Config) applyEnv() error {
	setString(&c.Douban.UserID, "DOUBAN_USER_ID")
	setString(&c.Douban.Mode, "DOUBAN_MODE")
	setString(&c.Douban.APIKey, "DOUBAN_API_KEY")
	setString(&c.Notion.APIKey, "NOTION_API_KEY")
	setString(&c.Notion.DatabaseID, "NOTION_DATABASE_ID")
	setString(&c.Notion.ParentPageID, "NOTION_PARENT_PAGE_ID")
	setString(&c.RabbitMQ.URL, "RABBITMQ_URL")
	setString(&c.LogLevel, "LOG_LEVEL")

	if v, ok := os.LookupEnv("SYNC_STATUS"); ok && v != "" {
		c.Sync.Status = domain.Status(v)
	}
	if v, ok := os.LookupEnv("INCREMENTAL_SYNC"); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &domain.ConfigurationError{Key: "INCREMENTAL_SYNC", Reason: "not a boolean: " + v}
		}
		c.Sync.Incremental = b
	}
	if v, ok := os.LookupEnv("SYNC_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return &domain.ConfigurationError{Key: "SYNC_INTERVAL", Reason: "not a duration: " + v}
		}
		c.Sync.Interval = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = strings.TrimSpace(v)
	}
}

func (c *Config) setDefaults() {
	if c.Douban.Mode == "" {
		c.Douban.Mode = "web"
	}
	if c.Douban.BaseURL == "" {
		c.Douban.BaseURL = "https://movie.douban.com"
	}
	if c.Douban.APIBaseURL == "" {
		c.Douban.APIBaseURL = "https://api.douban.com/v2/movie"
	}
	if c.Douban.PageSize == 0 {
		c.Douban.PageSize = 100
	}
	if c.Douban.Timeout == 0 {
		c.Douban.Timeout = 30 * time.Second
	}
	if c.Notion.DatabaseName == "" {
		c.Notion.DatabaseName = "豆瓣电影"
	}
	if c.Notion.BaseURL == "" {
		c.Notion.BaseURL = "https://api.notion.com/v1"
	}
	if c.Notion.Version == "" {
		c.Notion.Version = "2022-06-28"
	}
	if c.Notion.Timeout == 0 {
		c.Notion.Timeout = 30 * time.Second
	}
	if c.Notion.PageSize == 0 {
		c.Notion.PageSize = 100
	}
	if c.Sync.Status == "" {
		c.Sync.Status = domain.StatusWatched
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "movie_sync"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "movies"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "movie_sync_events"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required settings and normalizes the sync status.
// Every violation is reported as *domain.ConfigurationError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &domain.ConfigurationError{
				Key:    yamlKey(fe.Namespace()),
				Reason: reason(fe),
			}
		}
		return &domain.ConfigurationError{Reason: err.Error()}
	}

	status, err := domain.ParseStatus(string(c.Sync.Status))
	if err != nil {
		return err
	}
	c.Sync.Status = status

	return nil
}

var yamlKeys = map[string]string{
	"Douban":       "douban",
	"Notion":       "notion",
	"Sync":         "sync",
	"RabbitMQ":     "rabbitmq",
	"LogLevel":     "log_level",
	"UserID":       "user_id",
	"Mode":         "mode",
	"BaseURL":      "base_url",
	"APIBaseURL":   "api_base_url",
	"APIKey":       "api_key",
	"PageSize":     "page_size",
	"PageDelay":    "page_delay",
	"Timeout":      "timeout",
	"DatabaseID":   "database_id",
	"ParentPageID": "parent_page_id",
	"DatabaseName": "database_name",
	"Version":      "version",
	"Interval":     "interval",
}

// yamlKey turns "Config.Douban.UserID" into "douban.user_id".
func yamlKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if k, ok := yamlKeys[p]; ok {
			parts[i] = k
		}
	}
	return strings.Join(parts, ".")
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("is not a valid url: %v", fe.Value())
	default:
		return fmt.Sprintf("failed %s=%s, got %v", fe.Tag(), fe.Param(), fe.Value())
	}
}
