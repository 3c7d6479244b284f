package fallback

import (
	"math"
	"testing"
	"time"

	"github.com/forecastlab/ensemble/models"
)

func candlesEndingAt(end time.Time, n int, close func(i int) float64) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		c := close(i)
		candles[i] = models.Candle{
			Timestamp: end.Add(time.Duration(i-n+1) * 5 * time.Minute),
			Open:      c,
			High:      c * 1.001,
			Low:       c * 0.999,
			Close:     c,
			Volume:    1000,
		}
	}
	return candles
}

func TestBaselinePredictContract(t *testing.T) {
	end := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC) // a Tuesday
	candles := candlesEndingAt(end, 40, func(i int) float64 { return 100 + 0.05*float64(i) })

	result := NewBaseline(nil).Predict("EUR/USD", "5min", 60, candles)

	if len(result.Series) == 0 {
		t.Fatal("baseline series must never be empty")
	}
	if result.OverallConfidence != 0.25 {
		t.Errorf("confidence = %v, want fixed 0.25", result.OverallConfidence)
	}
	if result.ModelVersion != ModelVersion {
		t.Errorf("model version = %q, want %q", result.ModelVersion, ModelVersion)
	}
	if _, ok := result.BotContributions[BotName]; !ok {
		t.Error("baseline contribution tag missing")
	}
	for i, p := range result.Series {
		if p.Price <= 0 || math.IsNaN(p.Price) {
			t.Errorf("point %d has invalid price %v", i, p.Price)
		}
		if i > 0 && !p.Timestamp.After(result.Series[i-1].Timestamp) {
			t.Errorf("timestamps not strictly increasing at %d", i)
		}
	}
	if len(result.Series) != 12 {
		t.Errorf("60min horizon at 5min = %d points, want 12", len(result.Series))
	}
}

func TestBaselineDriftFollowsMomentum(t *testing.T) {
	end := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	up := candlesEndingAt(end, 30, func(i int) float64 { return 100 + 0.2*float64(i) })
	down := candlesEndingAt(end, 30, func(i int) float64 { return 100 - 0.2*float64(i) })

	b := NewBaseline(nil)
	upResult := b.Predict("EUR/USD", "5min", 60, up)
	if upResult.Trend.Direction != 1 {
		t.Errorf("up momentum direction = %d, want 1", upResult.Trend.Direction)
	}
	last := upResult.Series[len(upResult.Series)-1].Price
	if last <= up[len(up)-1].Close {
		t.Errorf("upward drift should extrapolate above reference: %v", last)
	}

	downResult := b.Predict("EUR/USD", "5min", 60, down)
	if downResult.Trend.Direction != -1 {
		t.Errorf("down momentum direction = %d, want -1", downResult.Trend.Direction)
	}
}

func TestBaselineWithoutCandles(t *testing.T) {
	result := NewBaseline(nil).Predict("EUR/USD", "5min", 30, nil)
	if len(result.Series) == 0 {
		t.Fatal("baseline must return a non-empty series even without candles")
	}
	for _, p := range result.Series {
		if p.Price <= 0 {
			t.Errorf("invalid price %v", p.Price)
		}
	}
}

func TestCalendarSkipsWeekend(t *testing.T) {
	cal := DefaultCalendar()
	friday := time.Date(2025, 6, 6, 23, 55, 0, 0, time.UTC)

	next := cal.Next(friday, 10*time.Minute)
	if wd := next.Weekday(); wd == time.Saturday || wd == time.Sunday {
		t.Errorf("Next() landed on %v", wd)
	}
	if next.Weekday() != time.Monday {
		t.Errorf("expected Monday, got %v %v", next.Weekday(), next)
	}
}

func TestCalendarSkipsHolidays(t *testing.T) {
	cal := DefaultCalendar()
	newYearsEve := time.Date(2025, 12, 31, 23, 50, 0, 0, time.UTC)

	next := cal.Next(newYearsEve, time.Hour)
	if next.Month() == time.January && next.Day() == 1 {
		t.Errorf("Next() landed on New Year's Day: %v", next)
	}
}

func TestCalendarSessionHours(t *testing.T) {
	cal := &Calendar{Location: time.UTC, OpenHour: 9, CloseHour: 17}
	evening := time.Date(2025, 6, 3, 16, 55, 0, 0, time.UTC)

	next := cal.Next(evening, 10*time.Minute)
	if next.Hour() < 9 || next.Hour() >= 17 {
		t.Errorf("Next() outside session hours: %v", next)
	}
	// 17:05 is after close, so the next tradable slot is the following morning.
	if next.Day() != 4 {
		t.Errorf("expected next trading day, got %v", next)
	}
}

func TestBaselineTimestampsSkipWeekend(t *testing.T) {
	// Last candle late Friday: the forecast must jump over the weekend.
	fridayClose := time.Date(2025, 6, 6, 23, 50, 0, 0, time.UTC)
	candles := candlesEndingAt(fridayClose, 30, func(i int) float64 { return 100 })

	result := NewBaseline(nil).Predict("EUR/USD", "5min", 60, candles)
	for _, p := range result.Series {
		if wd := p.Timestamp.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("forecast point on %v: %v", wd, p.Timestamp)
		}
	}
}
