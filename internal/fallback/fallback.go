package fallback

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/forecastlab/ensemble/models"
)

// ModelVersion tags degraded output so downstream consumers can tell a
// baseline result from a normal ensemble merge.
const ModelVersion = "baseline_fallback_v1"

// BotName is the contribution tag of the baseline series.
const BotName = "baseline"

// Confidence of every baseline result. Fixed and deliberately low.
const Confidence = 0.25

const (
	momentumLookback = 20
	// The raw momentum is damped before extrapolation so the baseline
	// never projects an aggressive move it has no model for.
	driftDamping = 0.3
	// Per-step drift cap keeps the series inside the merged-output bounds
	// for any horizon length.
	maxStepDrift = 0.002
)

// Baseline is the escape hatch of the pipeline: it always returns a usable
// MergedPrediction from candles alone, extrapolating recent momentum over
// trading-calendar-aware timestamps.
type Baseline struct {
	calendar *Calendar
	logger   zerolog.Logger
}

func NewBaseline(calendar *Calendar) *Baseline {
	if calendar == nil {
		calendar = DefaultCalendar()
	}
	return &Baseline{
		calendar: calendar,
		logger:   log.With().Str("component", "baseline_fallback").Logger(),
	}
}

// Predict builds the baseline forecast. The series is never empty, every
// price is positive, and the result carries the fallback model version.
func (b *Baseline) Predict(symbol, timeframe string, horizonMinutes int, candles []models.Candle) *models.MergedPrediction {
	interval := models.IntervalForTimeframe(timeframe)
	steps := models.StepsForHorizon(horizonMinutes, timeframe)

	reference := 1.0
	start := time.Now().UTC()
	drift := 0.0
	if len(candles) > 0 {
		last := candles[len(candles)-1]
		if last.Close > 0 {
			reference = last.Close
		}
		start = last.Timestamp

		window := candles
		if len(window) > momentumLookback {
			window = window[len(window)-momentumLookback:]
		}
		first := window[0].Close
		if first > 0 && len(window) > 1 {
			momentum := (last.Close - first) / first
			drift = momentum / float64(len(window)-1) * driftDamping
			if drift > maxStepDrift {
				drift = maxStepDrift
			} else if drift < -maxStepDrift {
				drift = -maxStepDrift
			}
		}
	} else {
		b.logger.Error().Str("symbol", symbol).Msg("Baseline invoked without candles, emitting flat unit series")
	}

	timestamps := b.calendar.Timestamps(start, interval, steps)
	series := make([]models.PredictedPoint, steps)
	price := reference
	for i, ts := range timestamps {
		price *= 1 + drift
		if price <= 0 {
			price = reference
		}
		series[i] = models.PredictedPoint{Timestamp: ts, Price: price}
	}

	direction := 0
	if drift > 0 {
		direction = 1
	} else if drift < 0 {
		direction = -1
	}

	b.logger.Warn().
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Float64("drift", drift).
		Int("steps", steps).
		Msg("Serving baseline fallback forecast")

	return &models.MergedPrediction{
		Symbol:             symbol,
		Timeframe:          timeframe,
		HorizonMinutes:     horizonMinutes,
		ProducedAt:         time.Now().UTC(),
		Series:             series,
		OverallConfidence:  Confidence,
		ConfidenceInterval: band(series),
		BotContributions: map[string]models.BotContribution{
			BotName: {Weight: 1, Confidence: Confidence, Meta: models.TrendMeta{
				Direction: direction,
				Strength:  0.1,
			}},
		},
		Trend: models.TrendSummary{
			Direction:       direction,
			Strength:        0.1,
			Label:           "weak",
			DurationMinutes: float64(horizonMinutes),
		},
		ModelVersion: ModelVersion,
		Sanitization: models.SanitizationSummary{Retained: []string{BotName}},
	}
}

func band(series []models.PredictedPoint) models.PriceBand {
	if len(series) == 0 {
		return models.PriceBand{}
	}
	low := series[0].Price
	high := series[0].Price
	for _, p := range series {
		if p.Price < low {
			low = p.Price
		}
		if p.Price > high {
			high = p.Price
		}
	}
	spread := (high - low) / 2
	mid := (high + low) / 2
	return models.PriceBand{Lower: mid - 1.5*spread, Upper: mid + 1.5*spread}
}
