package trend

import (
	"math"

	"github.com/forecastlab/ensemble/models"
)

const (
	directionThreshold = 0.005 // head-to-tail change for a non-flat direction
	botDirectionGate   = 0.3   // weighted bot signal needed to override
	seriesBlend        = 0.6
	botBlend           = 0.4

	// Projected relative move over the series that counts as full strength.
	fullStrengthMove = 0.02
)

// Strength buckets.
const (
	LabelWeak     = "weak"
	LabelModerate = "moderate"
	LabelStrong   = "strong"
)

// FromSeries derives direction, strength and duration from a price series.
// Strength comes from the linear-regression slope, direction from the
// head-to-tail change thresholded at ±0.5%, and duration from the run of
// same-signed step changes at the end of the series.
func FromSeries(series []models.PredictedPoint) models.TrendSummary {
	if len(series) < 2 {
		return models.TrendSummary{Label: LabelWeak}
	}

	slope, mean := regressionSlope(series)
	strength := 0.0
	if mean > 0 {
		projected := slope * float64(len(series)-1) / mean
		strength = math.Min(math.Abs(projected)/fullStrengthMove, 1.0)
	}

	direction := 0
	headTail := (series[len(series)-1].Price - series[0].Price) / series[0].Price
	if headTail > directionThreshold {
		direction = 1
	} else if headTail < -directionThreshold {
		direction = -1
	}

	return models.TrendSummary{
		Direction:       direction,
		Strength:        strength,
		Label:           Bucket(strength),
		DurationMinutes: runDurationMinutes(series),
	}
}

// Reconcile blends the trend recomputed from the merged series with the
// confidence-weighted average of each contributing bot's own trend metadata.
// The bot consensus only overrides the series direction when its weighted
// signal is decisive.
func Reconcile(series []models.PredictedPoint, contributions []models.BotPrediction) models.TrendSummary {
	fromSeries := FromSeries(series)

	var confSum, dirSum, strengthSum, durationSum float64
	counted := 0
	for _, c := range contributions {
		conf := c.Confidence
		if conf <= 0 {
			continue
		}
		counted++
		confSum += conf
		dirSum += conf * float64(c.Meta.Direction)
		strengthSum += conf * c.Meta.Strength
		durationSum += c.Meta.DurationMinutes
	}
	if confSum <= 0 {
		return fromSeries
	}

	botDirection := dirSum / confSum
	botStrength := strengthSum / confSum
	meanDuration := durationSum / float64(counted)

	final := fromSeries
	final.Strength = seriesBlend*fromSeries.Strength + botBlend*botStrength
	final.Label = Bucket(final.Strength)
	if botDirection > botDirectionGate {
		final.Direction = 1
	} else if botDirection < -botDirectionGate {
		final.Direction = -1
	}
	final.DurationMinutes = math.Max(fromSeries.DurationMinutes, meanDuration)
	return final
}

// Bucket maps a strength value to its label.
func Bucket(strength float64) string {
	switch {
	case strength < 0.3:
		return LabelWeak
	case strength < 0.6:
		return LabelModerate
	default:
		return LabelStrong
	}
}

// regressionSlope fits price against index and returns the per-step slope
// and the mean price.
func regressionSlope(series []models.PredictedPoint) (float64, float64) {
	n := float64(len(series))
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range series {
		x := float64(i)
		sumX += x
		sumY += p.Price
		sumXY += x * p.Price
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	return (n*sumXY - sumX*sumY) / denom, sumY / n
}

// runDurationMinutes measures how long the trailing run of same-signed step
// changes lasts, in minutes derived from the series timestamps.
func runDurationMinutes(series []models.PredictedPoint) float64 {
	if len(series) < 2 {
		return 0
	}

	lastSign := sign(series[len(series)-1].Price - series[len(series)-2].Price)
	if lastSign == 0 {
		return 0
	}
	run := 1
	for i := len(series) - 2; i > 0; i-- {
		if sign(series[i].Price-series[i-1].Price) != lastSign {
			break
		}
		run++
	}

	stepMinutes := series[len(series)-1].Timestamp.Sub(series[len(series)-2].Timestamp).Minutes()
	if stepMinutes <= 0 {
		return 0
	}
	return float64(run) * stepMinutes
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
