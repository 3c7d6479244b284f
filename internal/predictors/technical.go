package predictors

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/forecastlab/ensemble/models"
)

const minCandlesForTechnical = 30

// TechnicalBot forecasts by blending momentum, mean-reversion and trend
// signals from standard indicators into a per-step drift, then shaping a
// decaying price path over the horizon.
type TechnicalBot struct {
	name   string
	logger zerolog.Logger

	mu                 sync.Mutex
	warnedShortHistory bool
	lastTrained        time.Time
}

func NewTechnicalBot(name string) *TechnicalBot {
	return &TechnicalBot{
		name:   name,
		logger: log.With().Str("component", "technical_bot").Str("bot", name).Logger(),
	}
}

func (b *TechnicalBot) Name() string { return b.name }

func (b *TechnicalBot) Predict(ctx context.Context, candles []models.Candle, horizonMinutes int, timeframe string) (*models.BotPrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(candles) < minCandlesForTechnical {
		b.warnShortHistoryOnce(len(candles))
		return nil, fmt.Errorf("need at least %d candles, got %d", minCandlesForTechnical, len(candles))
	}
	last := candles[len(candles)-1]
	if last.Close <= 0 {
		return nil, fmt.Errorf("non-positive reference close %v", last.Close)
	}

	rsi := calculateRSI(candles, 14)
	emaFast := calculateEMA(candles, 8)
	emaSlow := calculateEMA(candles, 21)
	macdHist := calculateMACDHistogram(candles, 12, 26)
	volatility := returnsStdDev(candles)

	// Signals in [-1,1], blended the same way the final drift is applied.
	trendSignal := 0.0
	if emaSlow > 0 {
		trendSignal = clampFloat((emaFast-emaSlow)/emaSlow*100, -1, 1)
	}
	meanRevSignal := 0.0
	if rsi > 70 {
		meanRevSignal = -(rsi - 70) / 30
	} else if rsi < 30 {
		meanRevSignal = (30 - rsi) / 30
	}
	momentumSignal := clampFloat(macdHist/last.Close*1e4, -1, 1)

	combined := 0.45*trendSignal + 0.25*meanRevSignal + 0.3*momentumSignal

	// Per-step drift proportional to observed volatility, capped so the
	// whole path stays within the validation bounds.
	drift := clampFloat(combined*volatility, -0.002, 0.002)

	steps := models.StepsForHorizon(horizonMinutes, timeframe)
	interval := models.IntervalForTimeframe(timeframe)
	series := make([]models.PredictedPoint, steps)
	price := last.Close
	for i := 0; i < steps; i++ {
		decay := math.Pow(0.97, float64(i))
		wobble := 0.5 * volatility * math.Sin(float64(i)*1.3)
		price *= 1 + drift*decay + wobble
		price = clampFloat(price, last.Close*0.9, last.Close*1.1)
		series[i] = models.PredictedPoint{
			Timestamp: last.Timestamp.Add(time.Duration(i+1) * interval),
			Price:     price,
		}
	}

	confidence := 0.35 + 0.5*math.Abs(combined)
	direction := 0
	if combined > 0.1 {
		direction = 1
	} else if combined < -0.1 {
		direction = -1
	}

	return &models.BotPrediction{
		BotName:    b.name,
		Series:     series,
		Confidence: clampFloat(confidence, 0, 1),
		Meta: models.TrendMeta{
			Direction:       direction,
			Strength:        clampFloat(math.Abs(combined), 0, 1),
			DurationMinutes: float64(horizonMinutes),
			Extra: map[string]float64{
				"rsi":        rsi,
				"ema_spread": emaFast - emaSlow,
				"macd_hist":  macdHist,
			},
		},
	}, nil
}

// Train is a bookkeeping no-op for the technical bot: indicators have no
// fitted parameters, but recording the call keeps the training scheduler
// uniform across bot types.
func (b *TechnicalBot) Train(_ context.Context, candles []models.Candle, _ map[string]interface{}) (*models.TrainReport, error) {
	b.mu.Lock()
	b.lastTrained = time.Now()
	b.mu.Unlock()
	return &models.TrainReport{
		Status:  "noop",
		Metrics: map[string]float64{"candles_seen": float64(len(candles))},
	}, nil
}

func (b *TechnicalBot) warnShortHistoryOnce(got int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.warnedShortHistory {
		return
	}
	b.warnedShortHistory = true
	b.logger.Warn().Int("candles", got).Msg("Insufficient history for technical prediction")
}
