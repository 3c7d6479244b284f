package validation

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/forecastlab/ensemble/models"
)

// Rejection reason codes. A failing check short-circuits with its code;
// ReasonLowDirectional is advisory only and never rejects.
const (
	ReasonEmptySeries      = "empty_series"
	ReasonInvalidReference = "invalid_reference_price"
	ReasonNaNOrInf         = "nan_or_inf_values"
	ReasonNegativePrices   = "negative_prices"
	ReasonExcessiveDrift   = "excessive_drift"
	ReasonExcessiveStep    = "excessive_step_change"
	ReasonOutOfBounds      = "out_of_bounds"
	ReasonVolMismatch      = "volatility_mismatch"
	ReasonTooSmooth        = "too_smooth"
	ReasonLowDirectional   = "low_directional_consistency"
)

// Per-bot bounds relative to the reference close. These are tighter than the
// merged-series invariants so a clean bot series can never break the final
// output bounds.
const (
	MaxTotalDriftPct = 0.10
	MaxStepChangePct = 0.03
	AbsLowerFactor   = 0.85
	AbsUpperFactor   = 1.15

	minVolRatio       = 0.2
	maxVolRatio       = 2.0
	smoothnessEpsilon = 1e-6

	minCandlesForVolCheck = 10
	minCandlesForDirCheck = 5
	minDirectionalMatch   = 0.6
)

// Validator checks one bot's raw series against a reference close and can
// produce a clamped replacement for series that fail the bound checks.
type Validator struct {
	logger zerolog.Logger
}

func New() *Validator {
	return &Validator{
		logger: log.With().Str("component", "validator").Logger(),
	}
}

// Validate runs the ordered check chain over a predicted series. The first
// failing check decides the rejection reason; later checks are skipped.
// recentCandles is optional and only enables the volatility-alignment and
// directional-consistency checks when enough history is supplied.
func (v *Validator) Validate(series []models.PredictedPoint, referenceClose float64, recentCandles []models.Candle) models.ValidationOutcome {
	out := models.ValidationOutcome{}

	if len(series) == 0 {
		out.Reason = ReasonEmptySeries
		return out
	}
	if referenceClose <= 0 || !isFinite(referenceClose) {
		out.Reason = ReasonInvalidReference
		return out
	}

	for _, p := range series {
		if !isFinite(p.Price) {
			out.Reason = ReasonNaNOrInf
			return out
		}
		if p.Price <= 0 {
			out.Reason = ReasonNegativePrices
			return out
		}
	}

	for _, p := range series {
		drift := (p.Price - referenceClose) / referenceClose
		if drift > out.Stats.MaxDriftUp {
			out.Stats.MaxDriftUp = drift
		}
		if -drift > out.Stats.MaxDriftDown {
			out.Stats.MaxDriftDown = -drift
		}
	}
	if out.Stats.MaxDriftUp > MaxTotalDriftPct || out.Stats.MaxDriftDown > MaxTotalDriftPct {
		out.Reason = ReasonExcessiveDrift
		return out
	}

	for i := 1; i < len(series); i++ {
		step := math.Abs(series[i].Price-series[i-1].Price) / series[i-1].Price
		if step > out.Stats.MaxStepChange {
			out.Stats.MaxStepChange = step
		}
	}
	if out.Stats.MaxStepChange > MaxStepChangePct {
		out.Reason = ReasonExcessiveStep
		return out
	}

	lower := referenceClose * AbsLowerFactor
	upper := referenceClose * AbsUpperFactor
	for _, p := range series {
		if p.Price < lower || p.Price > upper {
			out.Reason = ReasonOutOfBounds
			return out
		}
	}

	if len(recentCandles) >= minCandlesForVolCheck {
		predStd := stddev(stepReturns(series))
		actStd := stddev(candleReturns(recentCandles))
		if actStd > 0 {
			ratio := predStd / actStd
			out.Stats.VolatilityRatio = ratio
			if ratio < minVolRatio || ratio > maxVolRatio {
				out.Reason = ReasonVolMismatch
				return out
			}
		}
	}

	if len(series) >= 3 {
		diffs := make([]float64, 0, len(series)-1)
		for i := 1; i < len(series); i++ {
			diffs = append(diffs, series[i].Price-series[i-1].Price)
		}
		if stddev(diffs)/referenceClose <= smoothnessEpsilon {
			out.Reason = ReasonTooSmooth
			return out
		}
	}

	// Advisory only: short-term reversals against the recent trend are a
	// legitimate forecast, so a low match is flagged, never rejected.
	if len(recentCandles) >= minCandlesForDirCheck {
		match := directionalMatch(series, recentCandles)
		out.Stats.DirectionalMatch = match
		if match < minDirectionalMatch {
			out.Flags = append(out.Flags, ReasonLowDirectional)
			v.logger.Debug().
				Float64("match", match).
				Msg("Forecast direction disagrees with recent trend")
		}
	}

	out.IsValid = true
	return out
}

// Sanitize repairs a series without dropping points: non-finite or
// non-positive prices are replaced with the last valid price, and every
// price is clamped into the intersection of the absolute band around the
// reference close and the per-step band around the previous repaired price.
// The result satisfies the absolute and step bounds, though a series clamped
// to the edge of the absolute band can still exceed the tighter drift limit.
// Sanitizing an already sanitized series changes nothing.
func (v *Validator) Sanitize(series []models.PredictedPoint, referenceClose float64) ([]models.PredictedPoint, int) {
	if len(series) == 0 || referenceClose <= 0 {
		return nil, 0
	}

	absLower := referenceClose * AbsLowerFactor
	absUpper := referenceClose * AbsUpperFactor

	out := make([]models.PredictedPoint, len(series))
	clipped := 0
	lastValid := referenceClose
	for i, p := range series {
		price := p.Price
		if !isFinite(price) || price <= 0 {
			price = lastValid
		}

		lower := absLower
		upper := absUpper
		if i > 0 {
			// Clamp into the intersection of the absolute band and the
			// step band around the previous repaired price, so repeated
			// sanitation is a no-op.
			lower = math.Max(lower, lastValid*(1-MaxStepChangePct))
			upper = math.Min(upper, lastValid*(1+MaxStepChangePct))
		}
		if price < lower {
			price = lower
		} else if price > upper {
			price = upper
		}

		if price != p.Price {
			clipped++
		}
		out[i] = models.PredictedPoint{Timestamp: p.Timestamp, Price: price}
		lastValid = price
	}
	return out, clipped
}

func directionalMatch(series []models.PredictedPoint, recent []models.Candle) float64 {
	first := recent[len(recent)-minCandlesForDirCheck].Close
	last := recent[len(recent)-1].Close
	trendSign := sign(last - first)
	if trendSign == 0 || len(series) < 2 {
		return 1
	}

	matches := 0
	steps := 0
	for i := 1; i < len(series); i++ {
		s := sign(series[i].Price - series[i-1].Price)
		if s == 0 {
			continue
		}
		steps++
		if s == trendSign {
			matches++
		}
	}
	if steps == 0 {
		return 1
	}
	return float64(matches) / float64(steps)
}

func stepReturns(series []models.PredictedPoint) []float64 {
	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1].Price > 0 {
			returns = append(returns, series[i].Price/series[i-1].Price-1)
		}
	}
	return returns
}

func candleReturns(candles []models.Candle) []float64 {
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		if candles[i-1].Close > 0 {
			returns = append(returns, candles[i].Close/candles[i-1].Close-1)
		}
	}
	return returns
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

func sign(x float64) int {
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return 0
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
