package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

const envPrefix = "RECON"

type Config struct {
	AppEnv   string
	LogLevel string
	HTTPAddr string

	Database DatabaseConfig
	Redis    RedisConfig
	Tracing  TracingConfig

	SamplesDir     string
	ReportsDir     string
	DefaultCountry string
	SnowflakeNode  int64
	MetricsEnabled bool
	RecalcLockTTL  time.Duration
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver       string
	DSN          string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TracingConfig struct {
	// Endpoint is the OTLP collector host:port. Empty disables export.
	Endpoint string
	// Protocol is "http" or "grpc".
	Protocol    string
	Insecure    bool
	SampleRatio float64
}

// IsProduction reports whether the service runs with production logging.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads .env when present, then RECON_* environment variables over the
// defaults.
func Load() Config {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "recon.db")
	v.SetDefault("db.busy_timeout", 5*time.Second)
	v.SetDefault("db.max_open_conns", 1)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.protocol", "http")
	v.SetDefault("otel.insecure", true)
	v.SetDefault("otel.sample_ratio", 1.0)
	v.SetDefault("samples.dir", "samples")
	v.SetDefault("reports.dir", "reports")
	v.SetDefault("default.country", "SA")
	v.SetDefault("snowflake.node", 1)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("recalc.lock_ttl", 2*time.Minute)
	return v
}

// FromViper maps an already configured viper instance.
func FromViper(v *viper.Viper) Config {
	return Config{
		AppEnv:   v.GetString("app.env"),
		LogLevel: v.GetString("log.level"),
		HTTPAddr: v.GetString("http.addr"),
		Database: DatabaseConfig{
			Driver:       strings.ToLower(strings.TrimSpace(v.GetString("db.driver"))),
			DSN:          v.GetString("db.dsn"),
			BusyTimeout:  v.GetDuration("db.busy_timeout"),
			MaxOpenConns: v.GetInt("db.max_open_conns"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Tracing: TracingConfig{
			Endpoint:    strings.TrimSpace(v.GetString("otel.endpoint")),
			Protocol:    strings.ToLower(strings.TrimSpace(v.GetString("otel.protocol"))),
			Insecure:    v.GetBool("otel.insecure"),
			SampleRatio: v.GetFloat64("otel.sample_ratio"),
		},
		SamplesDir:     v.GetString("samples.dir"),
		ReportsDir:     v.GetString("reports.dir"),
		DefaultCountry: strings.ToUpper(strings.TrimSpace(v.GetString("default.country"))),
		SnowflakeNode:  v.GetInt64("snowflake.node"),
		MetricsEnabled: v.GetBool("metrics.enabled"),
		RecalcLockTTL:  v.GetDuration("recalc.lock_ttl"),
	}
}
