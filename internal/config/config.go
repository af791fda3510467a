// Package config loads the engine configuration from YAML, .env and
// TRADEGATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tradegate/internal/broker"
	"tradegate/internal/domain"
	"tradegate/internal/feed"
	"tradegate/internal/logger"
	"tradegate/internal/position"
	"tradegate/internal/risk"
	"tradegate/internal/storage/backends"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRADEGATE_"

var validate = validator.New()

// Config is the full engine configuration.
type Config struct {
	Log      LogConfig           `yaml:"log"`
	Engine   EngineConfig        `yaml:"engine"`
	Strategy StrategyConfig      `yaml:"strategy"`
	Blend    BlendConfig         `yaml:"blend"`
	Risk     RiskConfig          `yaml:"risk"`
	Sectors  map[string][]string `yaml:"sectors"`
	Position PositionConfig      `yaml:"position"`
	Storage  StorageConfig       `yaml:"storage"`
	Broker   BrokerConfig        `yaml:"broker"`
	Feed     FeedConfig          `yaml:"feed"`
	Regime   RegimeConfig        `yaml:"regime"`
	Metrics  MetricsConfig       `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stderr"`
}

type EngineConfig struct {
	Instruments       []string           `yaml:"instruments" default:"[\"AAPL\",\"MSFT\",\"NVDA\",\"TSLA\",\"AMZN\"]" validate:"min=1,dive,required"`
	Timeframe         string             `yaml:"timeframe" default:"1h" validate:"oneof=5m 15m 1h 1d"`
	ConfirmTimeframes []string           `yaml:"confirm_timeframes" default:"[\"15m\",\"1h\",\"1d\"]" validate:"dive,oneof=5m 15m 1h 1d"`
	Interval          time.Duration      `yaml:"interval" default:"5m" validate:"gt=0"`
	BucketInterval    time.Duration      `yaml:"bucket_interval" validate:"gte=0"` // 0 uses Interval
	CallTimeout       time.Duration      `yaml:"call_timeout" default:"10s" validate:"gt=0"`
	Workers           int                `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
	Timezone          string             `yaml:"timezone" default:"America/New_York" validate:"required"`
	LotSize           float64            `yaml:"lot_size" default:"0.1" validate:"gt=0"`
	LotSizes          map[string]float64 `yaml:"lot_sizes" validate:"dive,gt=0"`
}

type StrategyConfig struct {
	// Names lists evaluators in priority order. Empty selects the built-in table.
	Names []string `yaml:"names"`
}

type BlendConfig struct {
	Threshold     float64       `yaml:"threshold" default:"0.40" validate:"gt=0,lte=1"`
	ScorerTimeout time.Duration `yaml:"scorer_timeout" default:"2s" validate:"gt=0"`
	VolLowPct     float64       `yaml:"vol_low_pct" default:"0.01" validate:"gte=0"`
	VolHighPct    float64       `yaml:"vol_high_pct" default:"0.04" validate:"gtfield=VolLowPct"`
}

type RiskConfig struct {
	BaseRiskFraction    float64 `yaml:"base_risk_fraction" default:"0.10" validate:"gt=0,lte=1"`
	MaxDailyLossPct     float64 `yaml:"max_daily_loss_pct" default:"0.05" validate:"gt=0,lte=1"`
	WinMultiplier       float64 `yaml:"win_multiplier" default:"1.3" validate:"gte=1"`
	MaxStreakMultiplier float64 `yaml:"max_streak_multiplier" default:"1.3" validate:"gte=1"`
	BreakerPolicy       string  `yaml:"breaker_policy" default:"manual" validate:"oneof=manual rollover"`
	GlobalCap           int     `yaml:"global_cap" default:"7" validate:"gte=1"`
	SectorCap           int     `yaml:"sector_cap" default:"2" validate:"gte=1"`
	DailyTradeCap       int     `yaml:"daily_trade_cap" validate:"gte=0"`
	MinRiskFraction     float64 `yaml:"min_risk_fraction" default:"0.01" validate:"gt=0"`
	MaxRiskFraction     float64 `yaml:"max_risk_fraction" default:"0.30" validate:"gtefield=MinRiskFraction,lte=1"`
	MinOrderValue       float64 `yaml:"min_order_value" default:"5" validate:"gte=0"`
	ProfitReinvestRate  float64 `yaml:"profit_reinvest_rate" validate:"gte=0,lte=1"`
}

type PositionConfig struct {
	RewardRisk      float64 `yaml:"reward_risk" default:"2.0" validate:"gt=0"`
	BreakevenPct    float64 `yaml:"breakeven_pct" default:"0.01" validate:"gte=0"`
	TrailFactor     float64 `yaml:"trail_factor" default:"1.5" validate:"gt=0"`
	PartialFraction float64 `yaml:"partial_fraction" default:"0.5" validate:"gt=0,lte=1"`
	FallbackVolPct  float64 `yaml:"fallback_vol_pct" default:"0.02" validate:"gt=0"`
}

type StorageConfig struct {
	Backend       string        `yaml:"backend" default:"file" validate:"oneof=memory file postgres"`
	Dir           string        `yaml:"dir" default:"./state" validate:"required_if=Backend file"`
	PostgresDSN   string        `yaml:"postgres_dsn" validate:"required_if=Backend postgres"`
	RedisURL      string        `yaml:"redis_url"`                  // non-empty moves the order ledger to redis
	RedisTTL      time.Duration `yaml:"redis_ttl" validate:"gte=0"` // 0 keeps ledger records forever
	ClickHouseDSN string        `yaml:"clickhouse_dsn"`             // non-empty moves the decision journal to clickhouse
}

type BrokerConfig struct {
	Kind          string        `yaml:"kind" default:"paper" validate:"oneof=paper"`
	PaperCash     float64       `yaml:"paper_cash" default:"100000" validate:"gt=0"`
	MaxRetries    uint64        `yaml:"max_retries" default:"1" validate:"lte=5"`
	RetryDelay    time.Duration `yaml:"retry_delay" default:"500ms"`
	RatePerSecond float64       `yaml:"rate_per_second" default:"5" validate:"gte=0"`
	Burst         int           `yaml:"burst" default:"5" validate:"gte=1"`
}

type FeedConfig struct {
	Kind              string        `yaml:"kind" default:"ws" validate:"oneof=ws memory"`
	URL               string        `yaml:"url" validate:"required_if=Kind ws,omitempty,url"`
	MaxAge            time.Duration `yaml:"max_age" default:"15m"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" default:"1s"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay" default:"30s"`
}

type RegimeConfig struct {
	Kind       string  `yaml:"kind" default:"static" validate:"oneof=static benchmark"`
	Multiplier float64 `yaml:"multiplier" default:"1.0" validate:"gt=0"`
	VolIndex   string  `yaml:"vol_index" default:"VIX"`
	Benchmark  string  `yaml:"benchmark" default:"SPY"`
}

type MetricsConfig struct {
	Addr      string `yaml:"addr" default:":9090"` // empty disables the endpoint
	Namespace string `yaml:"namespace" default:"tradegate"`
}

// Load reads the YAML file at path (optional when empty), applies
// defaults, .env and TRADEGATE_* overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup and no .env file.
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.applyEnv(getenv); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("TIMEZONE", &c.Engine.Timezone)
	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("STATE_DIR", &c.Storage.Dir)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("REDIS_URL", &c.Storage.RedisURL)
	str("CLICKHOUSE_DSN", &c.Storage.ClickHouseDSN)
	str("FEED_URL", &c.Feed.URL)
	str("METRICS_ADDR", &c.Metrics.Addr)
	str("BREAKER_POLICY", &c.Risk.BreakerPolicy)

	if v := getenv(EnvPrefix + "INSTRUMENTS"); v != "" {
		c.Engine.Instruments = splitList(v)
	}
	if v := getenv(EnvPrefix + "STRATEGIES"); v != "" {
		c.Strategy.Names = splitList(v)
	}
	if v := getenv(EnvPrefix + "INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sINTERVAL: %w", EnvPrefix, err)
		}
		c.Engine.Interval = d
	}
	if v := getenv(EnvPrefix + "BASE_RISK"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sBASE_RISK: %w", EnvPrefix, err)
		}
		c.Risk.BaseRiskFraction = f
	}
	if v := getenv(EnvPrefix + "PAPER_CASH"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sPAPER_CASH: %w", EnvPrefix, err)
		}
		c.Broker.PaperCash = f
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Namespace(), e.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		return fmt.Errorf("engine.timezone: %w", err)
	}
	// An expired fingerprint inside its own bucket would let the order go out twice.
	if ttl := c.Storage.RedisTTL; ttl > 0 && ttl <= c.BucketInterval() {
		return fmt.Errorf("storage.redis_ttl %s must exceed the bucket interval %s", ttl, c.BucketInterval())
	}
	return nil
}

// Location returns the trading timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BucketInterval returns the idempotency bucket width.
func (c *Config) BucketInterval() time.Duration {
	if c.Engine.BucketInterval > 0 {
		return c.Engine.BucketInterval
	}
	return c.Engine.Interval
}

// Timeframe returns the primary evaluation timeframe.
func (c *Config) Timeframe() domain.Timeframe {
	return domain.Timeframe(c.Engine.Timeframe)
}

// ConfirmTimeframes returns the multi-timeframe confirmation set.
func (c *Config) ConfirmTimeframes() []domain.Timeframe {
	out := make([]domain.Timeframe, 0, len(c.Engine.ConfirmTimeframes))
	for _, tf := range c.Engine.ConfirmTimeframes {
		out = append(out, domain.Timeframe(tf))
	}
	return out
}

// LoggerConfig maps the log section.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Log.Level, Format: c.Log.Format, Output: c.Log.Output}
}

// RiskParams maps the risk section onto the risk machine parameters.
func (c *Config) RiskParams() risk.Params {
	return risk.Params{
		BaseRiskFraction:    c.Risk.BaseRiskFraction,
		MaxDailyLossPct:     c.Risk.MaxDailyLossPct,
		WinMultiplier:       c.Risk.WinMultiplier,
		MaxStreakMultiplier: c.Risk.MaxStreakMultiplier,
		BreakerPolicy:       risk.BreakerPolicy(c.Risk.BreakerPolicy),
		Location:            c.Location(),
	}
}

// Limits maps the risk section onto the gate limits.
func (c *Config) Limits() risk.Limits {
	return risk.Limits{
		GlobalCap:       c.Risk.GlobalCap,
		SectorCap:       c.Risk.SectorCap,
		DailyTradeCap:   c.Risk.DailyTradeCap,
		MinRiskFraction: c.Risk.MinRiskFraction,
		MaxRiskFraction: c.Risk.MaxRiskFraction,
		MinOrderValue:   c.Risk.MinOrderValue,

		ProfitReinvestRate: c.Risk.ProfitReinvestRate,
	}
}

// Instruments builds the sector and lot size lookup. An empty sectors
// section falls back to the built-in map.
func (c *Config) Instruments() *risk.Instruments {
	sectors := c.Sectors
	if len(sectors) == 0 {
		sectors = risk.DefaultSectors
	}
	return risk.NewInstruments(sectors, c.Engine.LotSize, c.Engine.LotSizes)
}

// PositionParams maps the position section.
func (c *Config) PositionParams() position.Params {
	return position.Params{
		RewardRisk:      c.Position.RewardRisk,
		BreakevenPct:    c.Position.BreakevenPct,
		TrailFactor:     c.Position.TrailFactor,
		PartialFraction: c.Position.PartialFraction,
		FallbackVolPct:  c.Position.FallbackVolPct,
	}
}

// GuardOptions maps the broker section onto the guarded broker wrapper.
func (c *Config) GuardOptions() broker.GuardOptions {
	opts := broker.DefaultGuardOptions()
	opts.CallTimeout = c.Engine.CallTimeout
	opts.MaxRetries = c.Broker.MaxRetries
	opts.RetryDelay = c.Broker.RetryDelay
	opts.RatePerSecond = c.Broker.RatePerSecond
	opts.Burst = c.Broker.Burst
	return opts
}

// WSConfig maps the feed section onto the websocket client settings.
func (c *Config) WSConfig() feed.WSClientConfig {
	cfg := feed.DefaultWSConfig()
	cfg.MaxAge = c.Feed.MaxAge
	if c.Feed.ReconnectDelay > 0 {
		cfg.ReconnectDelay = c.Feed.ReconnectDelay
	}
	if c.Feed.MaxReconnectDelay > 0 {
		cfg.MaxReconnectDelay = c.Feed.MaxReconnectDelay
	}
	return cfg
}

// StoreOptions maps the storage section.
func (c *Config) StoreOptions() backends.Options {
	return backends.Options{
		Backend:       c.Storage.Backend,
		Dir:           c.Storage.Dir,
		PostgresDSN:   c.Storage.PostgresDSN,
		RedisURL:      c.Storage.RedisURL,
		RedisTTL:      c.Storage.RedisTTL,
		ClickHouseDSN: c.Storage.ClickHouseDSN,
	}
}
