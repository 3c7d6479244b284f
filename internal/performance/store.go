package performance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConnectionParams holds PostgreSQL connection parameters.
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Store is the Postgres-backed side of the performance oracle: historical
// accuracy rows per (symbol, timeframe, bot) and the experiment registry
// feeding the weighting bonus. Reads retry transient failures with
// exponential backoff; writes are idempotent upserts.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore opens the database and ensures the schema exists.
func NewStore(params ConnectionParams) (*Store, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := createTables(db); err != nil {
		return nil, err
	}

	return &Store{
		db:     db,
		logger: log.With().Str("component", "performance_store").Logger(),
	}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bot_performance (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			bot_name TEXT NOT NULL,
			accuracy_score DOUBLE PRECISION NOT NULL,
			recency_factor DOUBLE PRECISION NOT NULL,
			sample_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (symbol, timeframe, bot_name)
		)`)
	if err != nil {
		return fmt.Errorf("creating bot_performance table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS model_experiments (
			model_family TEXT PRIMARY KEY,
			best_rmse DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("creating model_experiments table: %w", err)
	}
	return nil
}

// Score returns the recorded accuracy score within the lookback window, or
// (0, false) when no fresh row exists.
func (s *Store) Score(ctx context.Context, symbol, timeframe, botName string, lookbackHours int) (float64, bool, error) {
	var score float64
	err := s.queryRowWithRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, `
			SELECT accuracy_score FROM bot_performance
			WHERE symbol = $1 AND timeframe = $2 AND bot_name = $3
			  AND updated_at >= NOW() - $4 * INTERVAL '1 hour'`,
			symbol, timeframe, botName, lookbackHours,
		).Scan(&score)
	})
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("querying score: %w", err)
	}
	return clamp(score, 0, 1), true, nil
}

// Recency returns the recorded recency factor within the lookback window.
func (s *Store) Recency(ctx context.Context, symbol, timeframe, botName string, lookbackHours int) (float64, bool, error) {
	var recency float64
	err := s.queryRowWithRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, `
			SELECT recency_factor FROM bot_performance
			WHERE symbol = $1 AND timeframe = $2 AND bot_name = $3
			  AND updated_at >= NOW() - $4 * INTERVAL '1 hour'`,
			symbol, timeframe, botName, lookbackHours,
		).Scan(&recency)
	})
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("querying recency: %w", err)
	}
	return clamp(recency, 0.5, 1.0), true, nil
}

// Upsert records a fresh evaluation for one bot. Replays are harmless.
func (s *Store) Upsert(ctx context.Context, symbol, timeframe, botName string, score, recency float64, samples int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_performance (symbol, timeframe, bot_name, accuracy_score, recency_factor, sample_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (symbol, timeframe, bot_name) DO UPDATE SET
			accuracy_score = EXCLUDED.accuracy_score,
			recency_factor = EXCLUDED.recency_factor,
			sample_count = EXCLUDED.sample_count,
			updated_at = NOW()`,
		symbol, timeframe, botName, clamp(score, 0, 1), clamp(recency, 0.5, 1.0), samples,
	)
	if err != nil {
		return fmt.Errorf("upserting performance row: %w", err)
	}
	return nil
}

// BestRMSE returns the best recorded RMSE for a model family, or false when
// no experiment has been recorded.
func (s *Store) BestRMSE(ctx context.Context, modelFamily string) (float64, bool, error) {
	var rmse float64
	err := s.queryRowWithRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT best_rmse FROM model_experiments WHERE model_family = $1`,
			modelFamily,
		).Scan(&rmse)
	})
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("querying experiment registry: %w", err)
	}
	return rmse, true, nil
}

// RecordExperiment keeps the lowest RMSE seen per model family.
func (s *Store) RecordExperiment(ctx context.Context, modelFamily string, rmse float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_experiments (model_family, best_rmse, recorded_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (model_family) DO UPDATE SET
			best_rmse = LEAST(model_experiments.best_rmse, EXCLUDED.best_rmse),
			recorded_at = NOW()`,
		modelFamily, rmse,
	)
	if err != nil {
		return fmt.Errorf("recording experiment: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) queryRowWithRetry(ctx context.Context, query func() error) error {
	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = 5 * time.Second

	return backoff.Retry(func() error {
		err := query()
		if err == sql.ErrNoRows {
			// Missing rows are an answer, not a transient failure.
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(strategy, ctx))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
