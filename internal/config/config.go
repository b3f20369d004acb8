package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/evan-axel/stock-scanner/internal/logging"
)

// Metadata backends understood by MetadataConfig.Provider.
const (
	MetadataPolygon = "polygon"
	MetadataYahoo   = "yahoo"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	FMP      FMPConfig      `mapstructure:"fmp"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Twilio   TwilioConfig   `mapstructure:"twilio"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// FMPConfig covers the market-data provider and its call budget.
type FMPConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Exchange          string        `mapstructure:"exchange"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MaxDailyCalls     int           `mapstructure:"max_daily_calls"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	ThrottleStep      time.Duration `mapstructure:"throttle_step"`
	MinRemainingCalls int           `mapstructure:"min_remaining_calls"`
}

// ScanConfig holds the screening thresholds.
type ScanConfig struct {
	NearLowRatio     float64 `mapstructure:"near_low_ratio"`
	MinMarketCap     float64 `mapstructure:"min_market_cap"`
	MaxMarketCap     float64 `mapstructure:"max_market_cap"`
	DescriptionLimit int     `mapstructure:"description_limit"`
}

// MetadataConfig selects and tunes the company metadata backend.
type MetadataConfig struct {
	Provider       string        `mapstructure:"provider"`
	SymbolInterval time.Duration `mapstructure:"symbol_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Polygon        PolygonConfig `mapstructure:"polygon"`
}

// PolygonConfig carries Polygon.io credentials.
type PolygonConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// TwilioConfig describes the WhatsApp delivery account.
type TwilioConfig struct {
	AccountSID       string        `mapstructure:"account_sid"`
	AuthToken        string        `mapstructure:"auth_token"`
	FromNumber       string        `mapstructure:"from_number"`
	ToNumber         string        `mapstructure:"to_number"`
	APIBase          string        `mapstructure:"api_base"`
	MaxMessageLength int           `mapstructure:"max_message_length"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
}

// envAliases binds the historical unprefixed variable names.
var envAliases = map[string]string{
	"fmp.api_key":              "FMP_API_KEY",
	"metadata.polygon.api_key": "POLYGON_API_KEY",
	"twilio.account_sid":       "TWILIO_ACCOUNT_SID",
	"twilio.auth_token":        "TWILIO_AUTH_TOKEN",
	"twilio.from_number":       "TWILIO_FROM_NUMBER",
	"twilio.to_number":         "TWILIO_TO_NUMBER",
}

// LoadEnvFile loads a dotenv file into the process environment.
// Variables that are already set win, and a missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STOCKSCANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, alias := range envAliases {
		prefixed := "STOCKSCANNER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stockscanner")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("fmp.base_url", "https://financialmodelingprep.com")
	v.SetDefault("fmp.exchange", "nasdaq")
	v.SetDefault("fmp.request_timeout", "10s")
	v.SetDefault("fmp.max_daily_calls", 250)
	v.SetDefault("fmp.max_attempts", 3)
	v.SetDefault("fmp.retry_backoff", "1s")
	v.SetDefault("fmp.throttle_step", "200ms")
	v.SetDefault("fmp.min_remaining_calls", 5)

	v.SetDefault("scan.near_low_ratio", 1.02)
	v.SetDefault("scan.min_market_cap", 10_000_000.0)
	v.SetDefault("scan.max_market_cap", 300_000_000.0)
	v.SetDefault("scan.description_limit", 200)

	v.SetDefault("metadata.provider", MetadataPolygon)
	v.SetDefault("metadata.symbol_interval", "100ms")
	v.SetDefault("metadata.request_timeout", "10s")

	v.SetDefault("twilio.api_base", "https://api.twilio.com")
	v.SetDefault("twilio.max_message_length", 1600)
	v.SetDefault("twilio.request_timeout", "10s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.FMP.MaxDailyCalls <= 0 {
		return fmt.Errorf("fmp.max_daily_calls must be greater than zero")
	}
	if c.FMP.MaxAttempts <= 0 {
		return fmt.Errorf("fmp.max_attempts must be greater than zero")
	}
	if c.FMP.RetryBackoff < 0 || c.FMP.ThrottleStep < 0 || c.FMP.RequestTimeout < 0 {
		return fmt.Errorf("fmp durations cannot be negative")
	}
	if c.FMP.MinRemainingCalls < 0 {
		return fmt.Errorf("fmp.min_remaining_calls cannot be negative")
	}
	if c.Scan.NearLowRatio <= 0 {
		return fmt.Errorf("scan.near_low_ratio must be greater than zero")
	}
	if c.Scan.MinMarketCap < 0 || c.Scan.MaxMarketCap <= 0 {
		return fmt.Errorf("scan market cap bounds must be positive")
	}
	if c.Scan.MinMarketCap > c.Scan.MaxMarketCap {
		return fmt.Errorf("scan.min_market_cap must not exceed scan.max_market_cap")
	}
	if c.Scan.DescriptionLimit <= 0 {
		return fmt.Errorf("scan.description_limit must be greater than zero")
	}
	switch strings.ToLower(c.Metadata.Provider) {
	case MetadataPolygon, MetadataYahoo:
	default:
		return fmt.Errorf("metadata.provider %q is not supported", c.Metadata.Provider)
	}
	if c.Metadata.SymbolInterval < 0 {
		return fmt.Errorf("metadata.symbol_interval cannot be negative")
	}
	if c.Twilio.MaxMessageLength <= 100 {
		return fmt.Errorf("twilio.max_message_length must be greater than 100")
	}
	return nil
}

// TwilioReady reports whether every delivery credential is present.
func (c *Config) TwilioReady() bool {
	t := c.Twilio
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != "" && t.ToNumber != ""
}
