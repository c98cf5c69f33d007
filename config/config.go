package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/vnmchuo/tenant-reports/internal/pricing"
)

type Config struct {
	// Server
	Port   string // default: 8080
	AppEnv string // development | production

	// Database
	PostgresDSN string

	// Cache, locks and rate limiting
	RedisAddr string

	// Metrics source
	MetricsSourceAddr         string // default: localhost:9092
	SourceCallTimeout         time.Duration
	SourceRetryMax            int
	SourceRetryInitialBackoff time.Duration
	SourceRetryMaxBackoff     time.Duration

	// Circuit breaker around the metrics source
	BreakerFailureRatio     float64
	BreakerMinRequests      uint32
	BreakerWindow           time.Duration
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenRequests uint32

	// Pricing
	PricingBaseCost           float64
	PricingCostPerUser        float64
	PricingCostPerGB          float64
	PricingCostPer1000APICall float64

	// Daily snapshot job
	SnapshotJobEnabled    bool
	SnapshotCron          string // default: "0 0 * * *"
	SnapshotTenants       []string
	SnapshotLockTTL       time.Duration
	SnapshotTenantTimeout time.Duration

	// Rate Limiting
	RateLimitRPM int64 // report requests per tenant per minute, 0 disables

	// Logging
	LogLevel  string
	LogFormat string

	// Observability
	OTELExporterType     string // "stdout", "otlp" or "none"
	OTELExporterEndpoint string // default: "localhost:4317"
}

var defaults = map[string]any{
	"port":                            "8080",
	"app_env":                         "development",
	"metrics_source_addr":             "localhost:9092",
	"source_call_timeout":             "5s",
	"source_retry_max":                "3",
	"source_retry_initial_backoff":    "200ms",
	"source_retry_max_backoff":        "2s",
	"breaker_failure_ratio":           "0.5",
	"breaker_min_requests":            "10",
	"breaker_window":                  "60s",
	"breaker_open_timeout":            "30s",
	"breaker_half_open_requests":      "3",
	"pricing_base_cost":               "50.0",
	"pricing_cost_per_user":           "5.0",
	"pricing_cost_per_gb":             "0.10",
	"pricing_cost_per_1000_api_calls": "1.0",
	"snapshot_job_enabled":            "true",
	"snapshot_cron":                   "0 0 * * *",
	"snapshot_tenants":                "",
	"snapshot_lock_ttl":               "2m",
	"snapshot_tenant_timeout":         "2m",
	"rate_limit_rpm":                  "600",
	"log_level":                       "info",
	"log_format":                      "json",
	"otel_exporter_type":              "stdout",
	"otel_exporter_endpoint":          "localhost:4317",
}

// Load reads configuration from the environment, after loading a .env file
// if one is present.
func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	return build(v)
}

// parser collects every invalid value so Load reports them together.
type parser struct {
	v    *viper.Viper
	errs []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err))
}

func (p *parser) getString(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) getDuration(key string) time.Duration {
	d, err := time.ParseDuration(p.getString(key))
	if err != nil {
		p.fail(key, err)
		return 0
	}
	if d <= 0 {
		p.fail(key, errors.New("must be positive"))
	}
	return d
}

func (p *parser) getInt(key string) int64 {
	n, err := strconv.ParseInt(p.getString(key), 10, 64)
	if err != nil {
		p.fail(key, err)
		return 0
	}
	if n < 0 {
		p.fail(key, errors.New("must not be negative"))
	}
	return n
}

func (p *parser) getUint32(key string) uint32 {
	n, err := strconv.ParseUint(p.getString(key), 10, 32)
	if err != nil {
		p.fail(key, err)
		return 0
	}
	if n == 0 {
		p.fail(key, errors.New("must be positive"))
	}
	return uint32(n)
}

func (p *parser) getPrice(key string) float64 {
	f, err := strconv.ParseFloat(p.getString(key), 64)
	if err != nil {
		p.fail(key, err)
		return 0
	}
	if f < 0 {
		p.fail(key, errors.New("must not be negative"))
	}
	return f
}

func (p *parser) getBool(key string) bool {
	b, err := strconv.ParseBool(p.getString(key))
	if err != nil {
		p.fail(key, err)
	}
	return b
}

func (p *parser) getList(key string) []string {
	var out []string
	for _, item := range strings.Split(p.getString(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// minSnapshotLockTTL leaves room for a renewal round trip in each third of the
// lease.
const minSnapshotLockTTL = 3 * time.Second

func build(v *viper.Viper) (*Config, error) {
	p := &parser{v: v}

	cfg := &Config{
		Port:                      p.getString("port"),
		AppEnv:                    p.getString("app_env"),
		PostgresDSN:               p.getString("postgres_dsn"),
		RedisAddr:                 p.getString("redis_addr"),
		MetricsSourceAddr:         p.getString("metrics_source_addr"),
		SourceCallTimeout:         p.getDuration("source_call_timeout"),
		SourceRetryMax:            int(p.getInt("source_retry_max")),
		SourceRetryInitialBackoff: p.getDuration("source_retry_initial_backoff"),
		SourceRetryMaxBackoff:     p.getDuration("source_retry_max_backoff"),
		BreakerMinRequests:        p.getUint32("breaker_min_requests"),
		BreakerWindow:             p.getDuration("breaker_window"),
		BreakerOpenTimeout:        p.getDuration("breaker_open_timeout"),
		BreakerHalfOpenRequests:   p.getUint32("breaker_half_open_requests"),
		PricingBaseCost:           p.getPrice("pricing_base_cost"),
		PricingCostPerUser:        p.getPrice("pricing_cost_per_user"),
		PricingCostPerGB:          p.getPrice("pricing_cost_per_gb"),
		PricingCostPer1000APICall: p.getPrice("pricing_cost_per_1000_api_calls"),
		SnapshotJobEnabled:        p.getBool("snapshot_job_enabled"),
		SnapshotCron:              p.getString("snapshot_cron"),
		SnapshotTenants:           p.getList("snapshot_tenants"),
		SnapshotLockTTL:           p.getDuration("snapshot_lock_ttl"),
		SnapshotTenantTimeout:     p.getDuration("snapshot_tenant_timeout"),
		RateLimitRPM:              p.getInt("rate_limit_rpm"),
		LogLevel:                  p.getString("log_level"),
		LogFormat:                 p.getString("log_format"),
		OTELExporterType:          p.getString("otel_exporter_type"),
		OTELExporterEndpoint:      p.getString("otel_exporter_endpoint"),
	}

	ratio, err := strconv.ParseFloat(p.getString("breaker_failure_ratio"), 64)
	switch {
	case err != nil:
		p.fail("breaker_failure_ratio", err)
	case ratio <= 0 || ratio > 1:
		p.fail("breaker_failure_ratio", errors.New("must be in (0, 1]"))
	}
	cfg.BreakerFailureRatio = ratio

	if cfg.SourceRetryMaxBackoff < cfg.SourceRetryInitialBackoff {
		p.errs = append(p.errs, errors.New("SOURCE_RETRY_MAX_BACKOFF must not be below SOURCE_RETRY_INITIAL_BACKOFF"))
	}
	if cfg.SnapshotLockTTL > 0 && cfg.SnapshotLockTTL < minSnapshotLockTTL {
		p.errs = append(p.errs, fmt.Errorf("SNAPSHOT_LOCK_TTL must be at least %s", minSnapshotLockTTL))
	}
	if _, err := cron.ParseStandard(cfg.SnapshotCron); err != nil {
		p.fail("snapshot_cron", err)
	}

	// Validation
	if cfg.PostgresDSN == "" {
		p.errs = append(p.errs, errors.New("POSTGRES_DSN is required"))
	}
	if cfg.RedisAddr == "" {
		p.errs = append(p.errs, errors.New("REDIS_ADDR is required"))
	}

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("failed to load config: %w", errors.Join(p.errs...))
	}
	return cfg, nil
}

// Pricing returns the configured rate schedule.
func (c *Config) Pricing() pricing.Schedule {
	return pricing.Schedule{
		BaseCost:            c.PricingBaseCost,
		CostPerUser:         c.PricingCostPerUser,
		CostPerGB:           c.PricingCostPerGB,
		CostPer1000APICalls: c.PricingCostPer1000APICall,
	}
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
