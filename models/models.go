package models

import (
	"time"
)

// Candle represents a single price candle as delivered by the data layer.
// Prices are always positive, volume is non-negative.
type Candle struct {
	Timestamp time.Time `json:"start_ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// PredictedPoint is a single forecast point.
type PredictedPoint struct {
	Timestamp time.Time `json:"ts"`
	Price     float64   `json:"price"`
}

// TrendMeta carries per-bot trend metadata alongside a forecast.
// Direction is -1, 0 or 1; Strength lies in [0,1].
type TrendMeta struct {
	Direction       int                `json:"trend_direction"`
	Strength        float64            `json:"trend_strength"`
	DurationMinutes float64            `json:"trend_duration_minutes"`
	Extra           map[string]float64 `json:"extra,omitempty"`
}

// BotPrediction is the raw output of one predictor for one request.
// Series timestamps are strictly increasing and unique. A prediction is
// never mutated after it is produced; validation wraps or replaces it.
type BotPrediction struct {
	BotName    string           `json:"bot_name"`
	Series     []PredictedPoint `json:"series"`
	Confidence float64          `json:"confidence"`
	Meta       TrendMeta        `json:"meta"`
}

// Market regime names.
const (
	RegimeTrendingUp   = "trending_up"
	RegimeTrendingDown = "trending_down"
	RegimeRangeBound   = "range_bound"
	RegimeVolatile     = "volatile"
	RegimeNeutral      = "neutral"
	RegimeUnknown      = "unknown"
)

// RegimeResult is the per-request classification of recent price action.
type RegimeResult struct {
	Name       string  `json:"name"`
	Volatility float64 `json:"volatility"`
	Momentum   float64 `json:"momentum"`
	RangeRatio float64 `json:"range_ratio"`
}

// ValidationStats holds the measurements taken while checking one series.
type ValidationStats struct {
	MaxDriftUp       float64 `json:"max_drift_up"`
	MaxDriftDown     float64 `json:"max_drift_down"`
	MaxStepChange    float64 `json:"max_step_change"`
	VolatilityRatio  float64 `json:"volatility_ratio,omitempty"`
	DirectionalMatch float64 `json:"directional_match,omitempty"`
}

// ValidationOutcome is produced and consumed within one validation call.
type ValidationOutcome struct {
	IsValid bool            `json:"is_valid"`
	Reason  string          `json:"rejection_reason,omitempty"`
	Flags   []string        `json:"flags,omitempty"`
	Stats   ValidationStats `json:"stats"`
}

// PriceBand is a statistical interval around the merged forecast.
type PriceBand struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// BotContribution records how much one bot contributed to a merged result.
type BotContribution struct {
	Weight     float64   `json:"weight"`
	Confidence float64   `json:"confidence"`
	Meta       TrendMeta `json:"meta"`
}

// TrendSummary is the single authoritative trend of a merged forecast.
type TrendSummary struct {
	Direction       int     `json:"direction"`
	Strength        float64 `json:"strength"`
	Label           string  `json:"label"` // weak, moderate, strong
	DurationMinutes float64 `json:"duration_minutes"`
}

// SanitizationSummary records which bots survived validation and how.
type SanitizationSummary struct {
	Retained      []string `json:"retained"`
	Dropped       []string `json:"dropped"`
	Sanitized     []string `json:"sanitized"`
	Flags         []string `json:"validation_flags,omitempty"`
	DroppedPoints int      `json:"dropped_points,omitempty"`
	ClippedPoints int      `json:"clipped_points,omitempty"`
}

// MergedPrediction is the externally visible result of one orchestration run.
// It is immutable once produced; persistence and transport happen elsewhere.
type MergedPrediction struct {
	Symbol             string                     `json:"symbol"`
	Timeframe          string                     `json:"timeframe"`
	HorizonMinutes     int                        `json:"horizon_minutes"`
	ProducedAt         time.Time                  `json:"produced_at"`
	Series             []PredictedPoint           `json:"predicted_series"`
	OverallConfidence  float64                    `json:"overall_confidence"`
	ConfidenceInterval PriceBand                  `json:"confidence_interval"`
	BotContributions   map[string]BotContribution `json:"bot_contributions"`
	Trend              TrendSummary               `json:"trend"`
	ModelVersion       string                     `json:"model_version"`
	Sanitization       SanitizationSummary        `json:"sanitization"`
}

// TrainReport is returned by predictors that support retraining.
type TrainReport struct {
	Status  string             `json:"status"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Bounds that every merged series must satisfy relative to the reference
// close. Per-bot validation applies tighter limits, see the validation
// package.
const (
	MaxRelativeMove = 0.12
	MaxStepMove     = 0.06
)
