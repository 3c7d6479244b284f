package predictors

import (
	"math"

	"github.com/forecastlab/ensemble/models"
)

func calculateRSI(candles []models.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50
	}

	gains := 0.0
	losses := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func calculateEMA(candles []models.Candle, period int) float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return emaFromPrices(prices, period)
}

func emaFromPrices(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return prices[len(prices)-1]
	}

	multiplier := 2.0 / float64(period+1)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
	}
	return ema
}

func calculateMACDHistogram(candles []models.Candle, fast, slow int) float64 {
	if len(candles) < slow {
		return 0
	}
	macd := calculateEMA(candles, fast) - calculateEMA(candles, slow)
	// Signal approximated from the trailing MACD level.
	return macd * 0.1
}

func returnsStdDev(candles []models.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		if candles[i-1].Close > 0 {
			returns = append(returns, candles[i].Close/candles[i-1].Close-1)
		}
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
