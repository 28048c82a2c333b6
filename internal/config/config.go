// Package config loads noticecal configuration from a YAML file and
// NOTICECAL_* environment variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Enrich   EnrichConfig   `mapstructure:"enrich"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// Schedule is the cron expression used by `noticecal serve`.
	Schedule string `mapstructure:"schedule"`
}

// DatabaseConfig locates the SQLite mirror.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SourceConfig describes the notice board endpoint.
type SourceConfig struct {
	// ListURL is the board listing endpoint returning paginated JSON.
	ListURL string `mapstructure:"list_url"`
	// BoardID is the board identifier posted with each listing request.
	BoardID string `mapstructure:"board_id"`
	// ViewURL is the human-facing posting URL template embedded in memos;
	// the board id is appended as boardId=<id>.
	ViewURL string `mapstructure:"view_url"`
	// MenuNo is the site menu number appended to view links.
	MenuNo string `mapstructure:"menu_no"`
}

// CalendarConfig describes the remote Google Calendar.
type CalendarConfig struct {
	// CredentialsFile is the service account key JSON path.
	CredentialsFile string `mapstructure:"credentials_file"`
	// Summary names the calendar created on first run.
	Summary string `mapstructure:"summary"`
	// Timezone is the single fixed zone for all-day detection and
	// timestamped events (IANA name).
	Timezone string `mapstructure:"timezone"`
	// OwnerEmail, when set, is granted an owner ACL on the created calendar.
	OwnerEmail string `mapstructure:"owner_email"`
}

// EnrichConfig configures the LLM oracle and worker pool.
type EnrichConfig struct {
	// APIKey is the Anthropic API key. Falls back to ANTHROPIC_API_KEY.
	APIKey string `mapstructure:"api_key"`
	// Model is the Anthropic model id.
	Model string `mapstructure:"model"`
	// MaxTokens bounds each completion.
	MaxTokens int `mapstructure:"max_tokens"`
	// Workers caps the enrichment pool size.
	Workers int `mapstructure:"workers"`
	// BatchBudget is the content-length budget per schedule-extraction
	// batch, in characters.
	BatchBudget int `mapstructure:"batch_budget"`
	// RetryInterval is the sleep between retries on rate-limit responses.
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// LoggingConfig configures optional file logging with rotation.
type LoggingConfig struct {
	// File, when set, tees logs into a rotated file next to stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "noticecal.db")

	v.SetDefault("source.list_url", "https://soco.seoul.go.kr/youth/pgm/home/yohome/bbsListJson.json")
	v.SetDefault("source.board_id", "BMSR00015")
	v.SetDefault("source.view_url", "https://soco.seoul.go.kr/youth/bbs/BMSR00015/view.do")
	v.SetDefault("source.menu_no", "400008")

	v.SetDefault("calendar.credentials_file", "key.json")
	v.SetDefault("calendar.summary", "서울시 청년안심주택 공고")
	v.SetDefault("calendar.timezone", "Asia/Seoul")
	v.SetDefault("calendar.owner_email", "")

	v.SetDefault("enrich.api_key", "")
	v.SetDefault("enrich.model", "claude-sonnet-4-5")
	v.SetDefault("enrich.max_tokens", 8192)
	v.SetDefault("enrich.workers", 50)
	v.SetDefault("enrich.batch_budget", 6000)
	v.SetDefault("enrich.retry_interval", 5*time.Second)

	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)

	v.SetDefault("schedule", "0 */6 * * *")
}

// Load reads configuration from path (optional) merged over defaults and
// NOTICECAL_* environment variables. An empty path searches the working
// directory for config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NOTICECAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Missing config file is fine; defaults + env apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Calendar.Timezone == "" {
		return fmt.Errorf("calendar.timezone must not be empty")
	}
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return fmt.Errorf("calendar.timezone %q is not a valid IANA zone: %w", c.Calendar.Timezone, err)
	}
	if c.Enrich.Workers < 1 {
		return fmt.Errorf("enrich.workers must be at least 1, got %d", c.Enrich.Workers)
	}
	if c.Enrich.BatchBudget < 1 {
		return fmt.Errorf("enrich.batch_budget must be positive, got %d", c.Enrich.BatchBudget)
	}
	if c.Enrich.RetryInterval <= 0 {
		return fmt.Errorf("enrich.retry_interval must be positive, got %v", c.Enrich.RetryInterval)
	}
	return nil
}

// Location resolves the configured timezone. Validate has already checked
// that the zone parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
