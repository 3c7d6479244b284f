package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/forecastlab/ensemble/config"
	"github.com/forecastlab/ensemble/internal/ensemble"
	"github.com/forecastlab/ensemble/internal/fallback"
	"github.com/forecastlab/ensemble/internal/performance"
	"github.com/forecastlab/ensemble/internal/predictors"
	"github.com/forecastlab/ensemble/models"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}
}

func main() {
	cfg := config.Load()

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(lvl)

	candles, err := loadCandles(cfg.CandlesFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.CandlesFile).Msg("Failed to load candles")
	}
	if len(candles) == 0 {
		log.Warn().Msg("No candle history available, forecast will be served from the baseline")
	}

	oracle, bonus, cleanup := buildOracle(cfg)
	defer cleanup()

	registry := predictors.NewRegistry()
	for _, bot := range []models.Predictor{
		predictors.NewTechnicalBot("technical"),
		predictors.NewMomentumBot("momentum"),
	} {
		if err := registry.Register(bot); err != nil {
			log.Fatal().Err(err).Msg("Failed to register predictor")
		}
	}

	orch := ensemble.New(registry, oracle, bonus, fallback.DefaultCalendar(), ensemble.Options{
		FanoutTimeout:       cfg.FanoutTimeout,
		FanoutRate:          cfg.FanoutRate,
		OracleLookbackHours: cfg.OracleLookbackHours,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.RequestTimeout)*time.Second)
	defer cancel()

	log.Info().
		Str("symbol", cfg.Symbol).
		Str("timeframe", cfg.Timeframe).
		Int("horizon_minutes", cfg.HorizonMinutes).
		Int("candles", len(candles)).
		Msg("Running ensemble forecast")

	result := orch.Forecast(ctx, cfg.Symbol, cfg.Timeframe, cfg.HorizonMinutes, candles, registry.Names())

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode forecast")
	}
	fmt.Println(string(out))

	log.Info().
		Str("model_version", result.ModelVersion).
		Float64("confidence", result.OverallConfidence).
		Int("points", len(result.Series)).
		Int("trend_direction", result.Trend.Direction).
		Str("trend_label", result.Trend.Label).
		Msg("Forecast complete")
}

// buildOracle wires the performance oracle from the environment. Without a
// Postgres host the pipeline runs on a static oracle with neutral scores.
func buildOracle(cfg *config.Config) (models.PerformanceOracle, models.BonusSource, func()) {
	if cfg.PGHost == "" {
		log.Info().Msg("No performance database configured, using neutral static oracle")
		static := performance.NewStaticOracle()
		return static, static, func() {}
	}

	store, err := performance.NewStore(performance.ConnectionParams{
		Host:     cfg.PGHost,
		Port:     cfg.PGPort,
		User:     cfg.PGUser,
		Password: cfg.PGPassword,
		DBName:   cfg.PGDatabase,
		SSLMode:  cfg.PGSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to performance database")
	}

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	oracle := performance.NewOracle(store, cache, cfg.OracleCacheTTL)
	cleanup := func() {
		if cache != nil {
			if err := cache.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close cache connection")
			}
		}
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database connection")
		}
	}
	return oracle, oracle, cleanup
}

// loadCandles reads OHLCV history from a JSON file. An empty path yields an
// empty history instead of an error.
func loadCandles(path string) ([]models.Candle, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candles file: %w", err)
	}
	var candles []models.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		return nil, fmt.Errorf("parse candles file: %w", err)
	}
	return candles, nil
}
