package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/buddy/internal/core"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Collector  CollectorConfig           `mapstructure:"collector"`
	Backtest   BacktestConfig            `mapstructure:"backtest"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
	Schedule   ScheduleConfig            `mapstructure:"schedule"`
	Notifiers  map[string]NotifierConfig `mapstructure:"notifiers"`
	Router     RouterConfig              `mapstructure:"router"`
	Tickers    TickersConfig             `mapstructure:"tickers"`
	Bot        BotConfig                 `mapstructure:"bot"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
	Alerts     AlertsConfig              `mapstructure:"alerts"`
	Log        LogConfig                 `mapstructure:"log"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	APIKey      string   `mapstructure:"api_key"`
	JobTTLHours int      `mapstructure:"job_ttl_hours"`
	MaxJobs     int      `mapstructure:"max_jobs"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type StorageConfig struct {
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	History   HistoryConfig   `mapstructure:"history"`
}

type ArtifactsConfig struct {
	Type   string   `mapstructure:"type"`   // "localfs" or "s3"
	Path   string   `mapstructure:"path"`   // For localfs
	Dir    string   `mapstructure:"dir"`    // Directory inside the store
	Format string   `mapstructure:"format"` // "csv" or "parquet"
	S3     S3Config `mapstructure:"s3"`     // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type HistoryConfig struct {
	Path       string `mapstructure:"path"` // empty keeps history in memory
	MaxEntries int    `mapstructure:"max_entries"`
}

type CollectorConfig struct {
	Provider   string        `mapstructure:"provider"` // "yahoo" or "alpaca"
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Alpaca     AlpacaConfig  `mapstructure:"alpaca"`
}

type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Feed      string `mapstructure:"feed"`
}

// BacktestConfig holds the defaults used by the chat commands. Amounts are
// strings so they decode into exact decimals.
type BacktestConfig struct {
	Start     string        `mapstructure:"start"`
	End       string        `mapstructure:"end"` // empty means today
	Initial   string        `mapstructure:"initial"`
	Monthly   string        `mapstructure:"monthly"`
	Strategy  string        `mapstructure:"strategy"`
	Benchmark string        `mapstructure:"benchmark"`
	Tickers   []string      `mapstructure:"tickers"`
	Pause     time.Duration `mapstructure:"pause"`
}

type StrategyConfig struct {
	Params map[string]any `mapstructure:"params"`
}

type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"` // zero disables periodic run-all
}

type NotifierConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	URL      string `mapstructure:"url"`
	// Email notifier fields
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	// Webhook notifier fields
	Headers map[string]string `mapstructure:"headers"`
}

type RouterConfig struct {
	DedupTTL  time.Duration `mapstructure:"dedup_ttl"`
	DedupSize int           `mapstructure:"dedup_size"`
}

type TickersConfig struct {
	Path string `mapstructure:"path"`
}

type BotConfig struct {
	Name string `mapstructure:"name"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AlertsConfig holds report alert configuration.
type AlertsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	Rules    []AlertRule   `mapstructure:"rules"`
}

// AlertRule defines a single alert rule over the metrics of a finished
// backtest, e.g. "max_drawdown > 30".
type AlertRule struct {
	Name     string        `mapstructure:"name"`
	Expr     string        `mapstructure:"expr"`
	For      time.Duration `mapstructure:"for"`
	Severity string        `mapstructure:"severity"`
	Message  string        `mapstructure:"message"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Load reads configuration from file on top of Defaults. A .env file next to
// the config file, or in the working directory, is loaded first.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("BUDDY")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.Contains(val, "${") {
			v.Set(key, os.ExpandEnv(val))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.ApplyEnv()

	return cfg, nil
}

// LoadDotEnv loads the first existing file among paths into the process
// environment. Variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("loading %s: %w", p, err))
		}
	}
	return nil
}

// ApplyEnv fills gaps from the well-known environment variables used by
// chat deployments.
func (c *Config) ApplyEnv() {
	if url := os.Getenv("DISCORD_WEBHOOK_URL"); url != "" {
		if c.Notifiers == nil {
			c.Notifiers = make(map[string]NotifierConfig)
		}
		n := c.Notifiers["webhook"]
		if n.URL == "" {
			n.URL = url
			n.Enabled = true
			c.Notifiers["webhook"] = n
		}
	}
	if c.Server.APIKey == "" {
		c.Server.APIKey = os.Getenv("BUDDY_API_KEY")
	}
	if c.Collector.Alpaca.APIKey == "" {
		c.Collector.Alpaca.APIKey = os.Getenv("APCA_API_KEY_ID")
	}
	if c.Collector.Alpaca.APISecret == "" {
		c.Collector.Alpaca.APISecret = os.Getenv("APCA_API_SECRET_KEY")
	}
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Mode:        "release",
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Storage: StorageConfig{
			Artifacts: ArtifactsConfig{
				Type:   "localfs",
				Path:   ".",
				Dir:    "results",
				Format: "csv",
			},
			History: HistoryConfig{
				MaxEntries: 1000,
			},
		},
		Collector: CollectorConfig{
			Provider:   "yahoo",
			Timeout:    30 * time.Second,
			Retries:    1,
			RetryDelay: time.Second,
		},
		Backtest: BacktestConfig{
			Start:     "2022-01-01",
			Initial:   "30000000",
			Monthly:   "1000000",
			Strategy:  "modified_monthly",
			Benchmark: "VOO",
			Tickers:   []string{"QQQ", "NVDA", "BAC", "COIN"},
			Pause:     2 * time.Second,
		},
		Router: RouterConfig{
			DedupTTL:  10 * time.Second,
			DedupSize: 1024,
		},
		Bot: BotConfig{
			Name: "buddy",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Alerts: AlertsConfig{
			Cooldown: time.Hour,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// StartDate parses Backtest.Start.
func (b BacktestConfig) StartDate() (time.Time, error) {
	return parseDate("start", b.Start)
}

// EndDate parses Backtest.End, returning the zero time when unset.
func (b BacktestConfig) EndDate() (time.Time, error) {
	if b.End == "" {
		return time.Time{}, nil
	}
	return parseDate("end", b.End)
}

// Amounts parses the initial and monthly investment.
func (b BacktestConfig) Amounts() (initial, monthly decimal.Decimal, err error) {
	initial, err = parseAmount("initial", b.Initial)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	monthly, err = parseAmount("monthly", b.Monthly)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return initial, monthly, nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.%s must be YYYY-MM-DD, got %q", field, s))
	}
	return t, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.%s must be a number, got %q", field, s))
	}
	if d.IsNegative() {
		return decimal.Zero, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.%s cannot be negative, got %s", field, s))
	}
	return d, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	// Storage validation
	a := c.Storage.Artifacts
	switch a.Type {
	case "", "localfs":
	case "s3":
		if a.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.artifacts.s3.bucket required when type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown artifact storage type %q", a.Type))
	}
	switch a.Format {
	case "", "csv", "parquet":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown artifact format %q", a.Format))
	}

	// Collector validation
	switch c.Collector.Provider {
	case "", "yahoo":
	case "alpaca":
		if c.Collector.Alpaca.APIKey == "" || c.Collector.Alpaca.APISecret == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("alpaca api_key and api_secret required when provider is alpaca"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown collector provider %q", c.Collector.Provider))
	}
	if c.Collector.Retries < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("collector.retries cannot be negative, got %d", c.Collector.Retries))
	}

	// Backtest validation
	if c.Backtest.Start != "" {
		if _, err := c.Backtest.StartDate(); err != nil {
			return err
		}
	}
	if _, err := c.Backtest.EndDate(); err != nil {
		return err
	}
	if _, _, err := c.Backtest.Amounts(); err != nil {
		return err
	}
	if c.Backtest.Pause < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.pause cannot be negative, got %s", c.Backtest.Pause))
	}
	if c.Schedule.Interval < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("schedule.interval cannot be negative, got %s", c.Schedule.Interval))
	}

	// Router validation
	if c.Router.DedupTTL < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("router.dedup_ttl cannot be negative, got %s", c.Router.DedupTTL))
	}
	if c.Router.DedupSize < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("router.dedup_size cannot be negative, got %d", c.Router.DedupSize))
	}

	// Alerts validation
	if c.Alerts.Cooldown < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("alerts.cooldown cannot be negative, got %s", c.Alerts.Cooldown))
	}
	for i, r := range c.Alerts.Rules {
		if r.Name == "" || r.Expr == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("alerts.rules[%d] needs a name and an expr", i))
		}
	}

	return nil
}
