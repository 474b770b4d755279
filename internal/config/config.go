package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Server struct {
	Port              string `mapstructure:"port"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
}

type Finnhub struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	// Symbols overrides the upstream ticker per instrument; keys are
	// matched case-insensitively.
	Symbols               map[string]string `mapstructure:"symbols"`
	MaxRequestsPerMinute  int               `mapstructure:"max_requests_per_minute"`
	Burst                 int               `mapstructure:"burst"`
	MinRequestIntervalSec int               `mapstructure:"min_request_interval_sec"`
	CacheTTLSeconds       int               `mapstructure:"cache_ttl_sec"`
}

// Enabled reports whether live quotes can be requested at all.
func (f Finnhub) Enabled() bool { return f.APIKey != "" }

type Poller struct {
	IntervalSec int `mapstructure:"interval_sec"`
	HistorySize int `mapstructure:"history_size"`
}

func (p Poller) Interval() time.Duration { return time.Duration(p.IntervalSec) * time.Second }

type Redis struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
	Channel  string `mapstructure:"channel"`
	TTLSec   int    `mapstructure:"ttl_sec"`
}

type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type Config struct {
	Server  Server  `mapstructure:"server"`
	Finnhub Finnhub `mapstructure:"finnhub"`
	Poller  Poller  `mapstructure:"poller"`
	Redis   Redis   `mapstructure:"redis"`
	Log     Log     `mapstructure:"log"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		Finnhub: Finnhub{
			BaseURL:              "https://finnhub.io/api/v1",
			MaxRequestsPerMinute: 60,
			Burst:                3,
			CacheTTLSeconds:      5,
		},
		Poller: Poller{IntervalSec: 30, HistorySize: 20},
		Redis: Redis{
			Addr:    "localhost:6379",
			Key:     "market:snapshot",
			Channel: "market.snapshot",
			TTLSec:  120,
		},
		Log: Log{Level: "info"},
	}
}

// env names checked after the dotted-key form (SERVER_PORT etc).
var envAliases = map[string][]string{
	"server.port":                      {"PORT"},
	"server.request_timeout_sec":       {"REQUEST_TIMEOUT_SEC"},
	"finnhub.max_requests_per_minute":  {"FINNHUB_MAX_RPM"},
	"finnhub.min_request_interval_sec": {"FINNHUB_MIN_INTERVAL_SEC"},
	"poller.interval_sec":              {"POLL_INTERVAL_SEC"},
	"poller.history_size":              {"HISTORY_SIZE"},
}

// Load reads a JSON or YAML config from path, after loading .env into the
// process environment. If path is empty, config.json in the working
// directory is used when present. Environment variables override the file.
func Load(path string) (Config, error) {
	def := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return def, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, def)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		names := append([]string{strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, envAliases[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return def, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return def, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return def, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.request_timeout_sec", c.Server.RequestTimeoutSec)

	v.SetDefault("finnhub.api_key", c.Finnhub.APIKey)
	v.SetDefault("finnhub.base_url", c.Finnhub.BaseURL)
	v.SetDefault("finnhub.max_requests_per_minute", c.Finnhub.MaxRequestsPerMinute)
	v.SetDefault("finnhub.burst", c.Finnhub.Burst)
	v.SetDefault("finnhub.min_request_interval_sec", c.Finnhub.MinRequestIntervalSec)
	v.SetDefault("finnhub.cache_ttl_sec", c.Finnhub.CacheTTLSeconds)

	v.SetDefault("poller.interval_sec", c.Poller.IntervalSec)
	v.SetDefault("poller.history_size", c.Poller.HistorySize)

	v.SetDefault("redis.enabled", c.Redis.Enabled)
	v.SetDefault("redis.addr", c.Redis.Addr)
	v.SetDefault("redis.password", c.Redis.Password)
	v.SetDefault("redis.db", c.Redis.DB)
	v.SetDefault("redis.key", c.Redis.Key)
	v.SetDefault("redis.channel", c.Redis.Channel)
	v.SetDefault("redis.ttl_sec", c.Redis.TTLSec)

	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.development", c.Log.Development)
}

func (c Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Poller.IntervalSec <= 0 {
		return fmt.Errorf("poller.interval_sec must be positive, got %d", c.Poller.IntervalSec)
	}
	if c.Poller.HistorySize <= 0 {
		return fmt.Errorf("poller.history_size must be positive, got %d", c.Poller.HistorySize)
	}
	if c.Finnhub.MaxRequestsPerMinute < 0 || c.Finnhub.MinRequestIntervalSec < 0 || c.Finnhub.CacheTTLSeconds < 0 {
		return errors.New("finnhub limits must not be negative")
	}
	return nil
}

// Logger builds the process logger from the log section.
func (l Log) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if l.Level != "" {
		lvl, err := zap.ParseAtomicLevel(l.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}
