package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every configuration failure.
var ErrInvalidConfig = errors.New("invalid configuration")

const dateLayout = "20060102"

// Config holds all application configuration.
type Config struct {
	Strategy struct {
		Pool           []string `yaml:"pool" validate:"required,min=1,dive,required"`
		MomentumWindow int      `yaml:"momentum_window" default:"20" validate:"gte=1"`
		StartDate      string   `yaml:"start_date" default:"20160101" validate:"required"`
		InitialCash    float64  `yaml:"initial_cash" default:"1000000" validate:"gt=0"`
		Policy         string   `yaml:"policy" default:"regime" validate:"oneof=regime top"`
		Rebalance      string   `yaml:"rebalance" default:"weekly" validate:"oneof=daily weekly"`
		Benchmark      string   `yaml:"benchmark" default:"510300"`
		Defensive      string   `yaml:"defensive" default:"518880"`
		RegimePeriod   int      `yaml:"regime_period" default:"200" validate:"gte=1"`
	} `yaml:"strategy"`
	DataSource struct {
		Provider      string  `yaml:"provider" default:"eastmoney" validate:"oneof=eastmoney yahoo mock"`
		FailurePolicy string  `yaml:"failure_policy" default:"exclude" validate:"oneof=exclude abort"`
		RateLimit     float64 `yaml:"rate_limit" default:"5" validate:"gte=0"`
		// YahooSymbols overrides the ticker sent to Yahoo, e.g. "518880": "GLD".
		YahooSymbols map[string]string `yaml:"yahoo_symbols"`
		Cache         struct {
			Backend   string        `yaml:"backend" default:"memory" validate:"oneof=none memory redis"`
			TTL       time.Duration `yaml:"ttl" default:"6h"`
			RedisAddr string        `yaml:"redis_addr"`
		} `yaml:"cache"`
	} `yaml:"data_source"`
	Notify struct {
		FeishuWebhook string `yaml:"feishu_webhook" validate:"omitempty,url"`
		Telegram      struct {
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
		} `yaml:"telegram"`
		Retries int `yaml:"retries" default:"3" validate:"gte=0"`
	} `yaml:"notify"`
	Schedule struct {
		Cron string `yaml:"cron" default:"0 30 15 * * 1-5"`
	} `yaml:"schedule"`
	Server struct {
		Addr string `yaml:"addr" default:":8080"`
	} `yaml:"server"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/etf_rotation.db"`
	} `yaml:"database"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ETF_POOL"); v != "" {
		c.Strategy.Pool = ParsePool(v)
	}
	if v := os.Getenv("MOMENTUM_WINDOW"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: MOMENTUM_WINDOW %q is not an integer", ErrInvalidConfig, v)
		}
		c.Strategy.MomentumWindow = n
	}
	if v := os.Getenv("INITIAL_CASH"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: INITIAL_CASH %q is not a number", ErrInvalidConfig, v)
		}
		c.Strategy.InitialCash = f
	}

	strs := map[string]*string{
		"START_DATE":         &c.Strategy.StartDate,
		"POLICY":             &c.Strategy.Policy,
		"REBALANCE":          &c.Strategy.Rebalance,
		"BENCHMARK":          &c.Strategy.Benchmark,
		"DEFENSIVE":          &c.Strategy.Defensive,
		"DATA_SOURCE":        &c.DataSource.Provider,
		"FAILURE_POLICY":     &c.DataSource.FailurePolicy,
		"FEISHU_WEBHOOK":     &c.Notify.FeishuWebhook,
		"TELEGRAM_BOT_TOKEN": &c.Notify.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Notify.Telegram.ChatID,
		"HTTPS_PROXY":        &c.Proxy,
		"SQLITE_PATH":        &c.Database.SQLitePath,
		"CRON_SCHEDULE":      &c.Schedule.Cron,
		"LOG_LEVEL":          &c.Log.Level,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.DataSource.Cache.RedisAddr = v
		c.DataSource.Cache.Backend = "redis"
	}
	return nil
}

// ParsePool splits a comma separated instrument list, dropping blanks and duplicates.
func ParsePool(s string) []string {
	var pool []string
	seen := make(map[string]bool)
	for _, code := range strings.Split(s, ",") {
		code = strings.TrimSpace(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		pool = append(pool, code)
	}
	return pool
}

var validate = validator.New()

// Validate checks field rules and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Start(); err != nil {
		return err
	}
	if c.Strategy.Policy == "regime" {
		if !c.InPool(c.Strategy.Benchmark) {
			return fmt.Errorf("%w: benchmark %s is not in the pool", ErrInvalidConfig, c.Strategy.Benchmark)
		}
	}
	if c.DataSource.Cache.Backend == "redis" && c.DataSource.Cache.RedisAddr == "" {
		return fmt.Errorf("%w: redis cache requires data_source.cache.redis_addr", ErrInvalidConfig)
	}
	return nil
}

// Start parses the history start date (YYYYMMDD or YYYY-MM-DD).
func (c *Config) Start() (time.Time, error) {
	for _, layout := range []string{dateLayout, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, c.Strategy.StartDate, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: start_date %q is not YYYYMMDD", ErrInvalidConfig, c.Strategy.StartDate)
}

// Warnings lists settings that are valid but probably not what the operator meant.
func (c *Config) Warnings() []string {
	var out []string
	if c.Strategy.Policy == "regime" && !c.InPool(c.Strategy.Defensive) {
		out = append(out, fmt.Sprintf("defensive %s is not in the pool; bearish markets will always hold cash", c.Strategy.Defensive))
	}
	return out
}

func (c *Config) InPool(symbol string) bool {
	for _, s := range c.Strategy.Pool {
		if s == symbol {
			return true
		}
	}
	return false
}

// TelegramEnabled reports whether both bot token and chat are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Notify.Telegram.BotToken != "" && c.Notify.Telegram.ChatID != ""
}
