package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the ensemble pipeline. Values are read from
// environment variables; a .env file can supply them during development.
type Config struct {
	Symbol         string `env:"SYMBOL" envDefault:"EUR/USD"`
	Timeframe      string `env:"TIMEFRAME" envDefault:"5min"`
	HorizonMinutes int    `env:"HORIZON_MINUTES" envDefault:"60"`

	RegimeLookback   int `env:"REGIME_LOOKBACK" envDefault:"120"`
	FallbackLookback int `env:"FALLBACK_LOOKBACK" envDefault:"20"`

	OracleLookbackHours int           `env:"ORACLE_LOOKBACK_HOURS" envDefault:"72"`
	OracleCacheTTL      time.Duration `env:"ORACLE_CACHE_TTL" envDefault:"5m"`

	FanoutTimeout  time.Duration `env:"FANOUT_TIMEOUT" envDefault:"20s"`
	FanoutRate     int           `env:"FANOUT_RATE" envDefault:"10"` // predictor starts per second
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout int           `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds

	RedisAddr     string `env:"REDIS_ADDR" envDefault:""`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	PGHost     string `env:"PG_HOST" envDefault:""`
	PGPort     string `env:"PG_PORT" envDefault:"5432"`
	PGUser     string `env:"PG_USER" envDefault:"postgres"`
	PGPassword string `env:"PG_PASSWORD" envDefault:""`
	PGDatabase string `env:"PG_DATABASE" envDefault:"forecasts"`
	PGSSLMode  string `env:"PG_SSLMODE" envDefault:"disable"`

	CandlesFile string `env:"CANDLES_FILE" envDefault:""`
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		Symbol:         getEnv("SYMBOL", "EUR/USD"),
		Timeframe:      getEnv("TIMEFRAME", "5min"),
		HorizonMinutes: getEnvInt("HORIZON_MINUTES", 60),

		RegimeLookback:   getEnvInt("REGIME_LOOKBACK", 120),
		FallbackLookback: getEnvInt("FALLBACK_LOOKBACK", 20),

		OracleLookbackHours: getEnvInt("ORACLE_LOOKBACK_HOURS", 72),
		OracleCacheTTL:      getEnvDuration("ORACLE_CACHE_TTL", 5*time.Minute),

		FanoutTimeout:  getEnvDuration("FANOUT_TIMEOUT", 20*time.Second),
		FanoutRate:     getEnvInt("FANOUT_RATE", 10),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RequestTimeout: getEnvInt("REQUEST_TIMEOUT", 30),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		PGHost:     getEnv("PG_HOST", ""),
		PGPort:     getEnv("PG_PORT", "5432"),
		PGUser:     getEnv("PG_USER", "postgres"),
		PGPassword: getEnv("PG_PASSWORD", ""),
		PGDatabase: getEnv("PG_DATABASE", "forecasts"),
		PGSSLMode:  getEnv("PG_SSLMODE", "disable"),

		CandlesFile: getEnv("CANDLES_FILE", ""),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
