package predictors

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/forecastlab/ensemble/models"
)

const minCandlesForMomentum = 12

// MomentumBot extrapolates recent price velocity and acceleration. It is
// deliberately simple; its value to the ensemble is being decorrelated from
// the indicator-driven bots.
type MomentumBot struct {
	name string
}

func NewMomentumBot(name string) *MomentumBot {
	return &MomentumBot{name: name}
}

func (b *MomentumBot) Name() string { return b.name }

func (b *MomentumBot) Predict(ctx context.Context, candles []models.Candle, horizonMinutes int, timeframe string) (*models.BotPrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(candles) < minCandlesForMomentum {
		return nil, fmt.Errorf("need at least %d candles, got %d", minCandlesForMomentum, len(candles))
	}
	last := candles[len(candles)-1]
	if last.Close <= 0 {
		return nil, fmt.Errorf("non-positive reference close %v", last.Close)
	}

	// Velocity: mean return over the last 5 steps. Acceleration: change in
	// velocity between the two preceding 5-step windows.
	velocity := windowReturn(candles, 5)
	previous := windowReturn(candles[:len(candles)-5], 5)
	acceleration := velocity - previous

	drift := clampFloat(velocity/5+acceleration/10, -0.002, 0.002)
	volatility := returnsStdDev(candles)

	steps := models.StepsForHorizon(horizonMinutes, timeframe)
	interval := models.IntervalForTimeframe(timeframe)
	series := make([]models.PredictedPoint, steps)
	price := last.Close
	for i := 0; i < steps; i++ {
		wobble := 0.4 * volatility * math.Cos(float64(i)*0.9)
		price *= 1 + drift + wobble
		price = clampFloat(price, last.Close*0.9, last.Close*1.1)
		series[i] = models.PredictedPoint{
			Timestamp: last.Timestamp.Add(time.Duration(i+1) * interval),
			Price:     price,
		}
	}

	direction := 0
	if drift > 0 {
		direction = 1
	} else if drift < 0 {
		direction = -1
	}
	strength := clampFloat(math.Abs(drift)/0.002, 0, 1)

	return &models.BotPrediction{
		BotName:    b.name,
		Series:     series,
		Confidence: clampFloat(0.3+0.4*strength, 0, 1),
		Meta: models.TrendMeta{
			Direction:       direction,
			Strength:        strength,
			DurationMinutes: float64(horizonMinutes),
			Extra: map[string]float64{
				"velocity":     velocity,
				"acceleration": acceleration,
			},
		},
	}, nil
}

// windowReturn is the mean single-step return over the trailing n steps.
func windowReturn(candles []models.Candle, n int) float64 {
	if len(candles) < n+1 {
		return 0
	}
	sum := 0.0
	for i := len(candles) - n; i < len(candles); i++ {
		if candles[i-1].Close > 0 {
			sum += candles[i].Close/candles[i-1].Close - 1
		}
	}
	return sum / float64(n)
}
