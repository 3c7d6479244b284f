package regime

import (
	"math"

	"github.com/forecastlab/ensemble/models"
)

// Classification thresholds. The rule chain is ordered; the first matching
// rule wins.
const (
	rangeVolatilityMax = 0.004
	rangeMomentumMax   = 0.01
	trendMomentumMin   = 0.015
	volatileStdMin     = 0.01
	volatileRangeMin   = 0.03
)

// DefaultLookback is how many trailing candles the classifier inspects.
const DefaultLookback = 120

// Classify derives a market regime from the most recent candles. It is a
// pure function: identical input yields an identical result, and the only
// degraded outcome is RegimeUnknown on insufficient data.
func Classify(candles []models.Candle) models.RegimeResult {
	if len(candles) < 2 {
		return models.RegimeResult{Name: models.RegimeUnknown}
	}
	if len(candles) > DefaultLookback {
		candles = candles[len(candles)-DefaultLookback:]
	}

	returns := make([]float64, 0, len(candles)-1)
	highest := candles[0].High
	lowest := candles[0].Low
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev > 0 {
			returns = append(returns, candles[i].Close/prev-1)
		}
		if candles[i].High > highest {
			highest = candles[i].High
		}
		if candles[i].Low < lowest {
			lowest = candles[i].Low
		}
	}

	first := candles[0].Close
	last := candles[len(candles)-1].Close
	if first <= 0 || last <= 0 || len(returns) == 0 {
		return models.RegimeResult{Name: models.RegimeUnknown}
	}

	volatility := stddev(returns)
	momentum := last/first - 1
	rangeRatio := (highest - lowest) / last

	return models.RegimeResult{
		Name:       resolve(volatility, momentum, rangeRatio),
		Volatility: volatility,
		Momentum:   momentum,
		RangeRatio: rangeRatio,
	}
}

// resolve applies the ordered rule chain to the computed metrics.
func resolve(volatility, momentum, rangeRatio float64) string {
	switch {
	case volatility < rangeVolatilityMax && math.Abs(momentum) < rangeMomentumMax:
		return models.RegimeRangeBound
	case momentum > trendMomentumMin:
		return models.RegimeTrendingUp
	case momentum < -trendMomentumMin:
		return models.RegimeTrendingDown
	case volatility >= volatileStdMin || rangeRatio > volatileRangeMin:
		return models.RegimeVolatile
	default:
		return models.RegimeNeutral
	}
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}
