package regime

import (
	"testing"
	"time"

	"github.com/forecastlab/ensemble/models"
)

func generateTestCandles(n int, generator func(i int) models.Candle) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = generator(i)
	}
	return candles
}

func flatCandle(i int, price float64) models.Candle {
	return models.Candle{
		Timestamp: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC).Add(time.Duration(i) * 5 * time.Minute),
		Open:      price,
		High:      price * 1.0005,
		Low:       price * 0.9995,
		Close:     price,
		Volume:    1000,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		candles  []models.Candle
		expected string
	}{
		{
			name:     "empty input",
			candles:  nil,
			expected: models.RegimeUnknown,
		},
		{
			name:     "single candle",
			candles:  []models.Candle{flatCandle(0, 100)},
			expected: models.RegimeUnknown,
		},
		{
			name: "quiet sideways market",
			candles: generateTestCandles(60, func(i int) models.Candle {
				// tiny oscillation around 100, well under the range thresholds
				return flatCandle(i, 100+0.02*float64(i%3))
			}),
			expected: models.RegimeRangeBound,
		},
		{
			name: "steady uptrend",
			candles: generateTestCandles(60, func(i int) models.Candle {
				return flatCandle(i, 100*(1+0.0005*float64(i)))
			}),
			expected: models.RegimeTrendingUp,
		},
		{
			name: "steady downtrend",
			candles: generateTestCandles(60, func(i int) models.Candle {
				return flatCandle(i, 100*(1-0.0005*float64(i)))
			}),
			expected: models.RegimeTrendingDown,
		},
		{
			name: "jumpy flat market",
			candles: generateTestCandles(61, func(i int) models.Candle {
				price := 100.0
				if i%2 == 0 {
					price = 101.5
				} else {
					price = 98.5
				}
				return flatCandle(i, price)
			}),
			expected: models.RegimeVolatile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.candles)
			if result.Name != tt.expected {
				t.Errorf("Classify() = %v, want %v (vol=%v mom=%v range=%v)",
					result.Name, tt.expected, result.Volatility, result.Momentum, result.RangeRatio)
			}
		})
	}
}

func TestResolveRuleChain(t *testing.T) {
	tests := []struct {
		name                           string
		volatility, momentum, rangeRat float64
		expected                       string
	}{
		{"low vol low momentum", 0.002, 0.005, 0.01, models.RegimeRangeBound},
		{"positive momentum", 0.006, 0.02, 0.02, models.RegimeTrendingUp},
		{"negative momentum", 0.006, -0.02, 0.02, models.RegimeTrendingDown},
		{"high volatility", 0.012, 0.005, 0.02, models.RegimeVolatile},
		{"wide range", 0.006, 0.005, 0.04, models.RegimeVolatile},
		{"nothing special", 0.006, 0.005, 0.02, models.RegimeNeutral},
		{"range beats trend check order", 0.002, 0.005, 0.05, models.RegimeRangeBound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolve(tt.volatility, tt.momentum, tt.rangeRat); got != tt.expected {
				t.Errorf("resolve(%v, %v, %v) = %v, want %v",
					tt.volatility, tt.momentum, tt.rangeRat, got, tt.expected)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	candles := generateTestCandles(120, func(i int) models.Candle {
		return flatCandle(i, 100+float64(i%7)*0.3)
	})

	first := Classify(candles)
	for i := 0; i < 10; i++ {
		again := Classify(candles)
		if again != first {
			t.Fatalf("Classify() not deterministic: %+v != %+v", again, first)
		}
	}
}
