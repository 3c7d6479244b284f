package merge

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/forecastlab/ensemble/internal/validation"
	"github.com/forecastlab/ensemble/models"
)

// Merger combines several validated bot series into one weighted series and
// re-sanitizes the result. Unlike per-bot sanitation, offending merged
// points are dropped rather than clamped: a merged anomaly reflects bot
// disagreement, and removing it is safer than forcing a value.
type Merger struct {
	logger zerolog.Logger
}

func New() *Merger {
	return &Merger{
		logger: log.With().Str("component", "series_merger").Logger(),
	}
}

// Combine groups points across all input series by exact timestamp and emits
// the weighted mean price per timestamp, sorted ascending. A bot missing
// from the weight map contributes with its own confidence as weight. The
// output depends only on the content of the predictions, never on their
// order.
func (m *Merger) Combine(predictions []models.BotPrediction, weights map[string]float64) []models.PredictedPoint {
	type bucket struct {
		weightedSum float64
		totalWeight float64
		priceSum    float64
		count       int
	}

	buckets := make(map[int64]*bucket)
	for _, pred := range predictions {
		weight, ok := weights[pred.BotName]
		if !ok {
			weight = pred.Confidence
		}
		for _, p := range pred.Series {
			key := p.Timestamp.UnixNano()
			b := buckets[key]
			if b == nil {
				b = &bucket{}
				buckets[key] = b
			}
			b.weightedSum += p.Price * weight
			b.totalWeight += weight
			b.priceSum += p.Price
			b.count++
		}
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	series := make([]models.PredictedPoint, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		price := 0.0
		if b.totalWeight > 0 {
			price = b.weightedSum / b.totalWeight
		} else {
			// All contributing weights were zero; fall back to the plain mean.
			price = b.priceSum / float64(b.count)
		}
		var ts = timeFromUnixNano(k)
		series = append(series, models.PredictedPoint{Timestamp: ts, Price: price})
	}
	return series
}

// CleanMerged applies the per-bot bound checks (drift, step, absolute band)
// to a merged series, dropping offending points instead of clamping them.
// The returned count is how many points were removed.
func (m *Merger) CleanMerged(series []models.PredictedPoint, referenceClose float64) ([]models.PredictedPoint, int) {
	if referenceClose <= 0 {
		return nil, len(series)
	}

	absLower := referenceClose * validation.AbsLowerFactor
	absUpper := referenceClose * validation.AbsUpperFactor

	kept := make([]models.PredictedPoint, 0, len(series))
	dropped := 0
	for _, p := range series {
		if !isFinite(p.Price) || p.Price <= 0 {
			dropped++
			continue
		}
		drift := math.Abs(p.Price-referenceClose) / referenceClose
		if drift > validation.MaxTotalDriftPct {
			dropped++
			continue
		}
		if p.Price < absLower || p.Price > absUpper {
			dropped++
			continue
		}
		if len(kept) > 0 {
			prev := kept[len(kept)-1].Price
			if math.Abs(p.Price-prev)/prev > validation.MaxStepChangePct {
				dropped++
				continue
			}
		}
		kept = append(kept, p)
	}

	if dropped > 0 {
		m.logger.Debug().
			Int("dropped", dropped).
			Int("kept", len(kept)).
			Msg("Dropped out-of-bound points from merged series")
	}
	return kept, dropped
}

// Estimator turns merged output and per-bot confidences into an overall
// confidence and a price band.
type Estimator struct{}

// Overall is the weight-normalized mean of the contributing bot confidences.
func (Estimator) Overall(predictions []models.BotPrediction, weights map[string]float64) float64 {
	num := 0.0
	den := 0.0
	for _, pred := range predictions {
		w, ok := weights[pred.BotName]
		if !ok {
			w = pred.Confidence
		}
		num += pred.Confidence * w
		den += w
	}
	if den <= 0 {
		return 0
	}
	conf := num / den
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

// Band is mean ± 1.5 standard deviations of the merged prices, floored at
// zero. An empty series yields a zero band.
func (Estimator) Band(series []models.PredictedPoint) models.PriceBand {
	if len(series) == 0 {
		return models.PriceBand{}
	}

	mean := 0.0
	for _, p := range series {
		mean += p.Price
	}
	mean /= float64(len(series))

	variance := 0.0
	for _, p := range series {
		variance += (p.Price - mean) * (p.Price - mean)
	}
	variance /= float64(len(series))
	std := math.Sqrt(variance)

	lower := mean - 1.5*std
	if lower < 0 {
		lower = 0
	}
	return models.PriceBand{Lower: lower, Upper: mean + 1.5*std}
}

func timeFromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
