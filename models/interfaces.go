package models

import "context"

// Predictor is the capability every forecasting bot exposes. Implementations
// must be safe for concurrent use: the orchestrator calls Predict from its
// fan-out goroutines.
type Predictor interface {
	Name() string
	Predict(ctx context.Context, candles []Candle, horizonMinutes int, timeframe string) (*BotPrediction, error)
}

// Trainer is an optional capability of a Predictor.
type Trainer interface {
	Train(ctx context.Context, candles []Candle, options map[string]interface{}) (*TrainReport, error)
}

// PerformanceOracle supplies historical accuracy scores and recency factors
// for a bot. Score lies in [0,1], Recency in [0.5,1.0]. Implementations
// return neutral values rather than errors when no evaluation history exists.
type PerformanceOracle interface {
	Score(ctx context.Context, symbol, timeframe, botName string, lookbackHours int) (float64, error)
	Recency(ctx context.Context, symbol, timeframe, botName string, lookbackHours int) (float64, error)
}

// BonusSource supplies an optional weighting bonus per bot, derived from an
// experiment registry (best recorded RMSE per model family). The returned
// value lies in [0,0.3]; 0 means no recorded experiments.
type BonusSource interface {
	Bonus(ctx context.Context, symbol, timeframe, botName string) (float64, error)
}
