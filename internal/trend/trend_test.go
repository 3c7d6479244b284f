package trend

import (
	"testing"
	"time"

	"github.com/forecastlab/ensemble/models"
)

var trendStart = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func series(prices ...float64) []models.PredictedPoint {
	out := make([]models.PredictedPoint, len(prices))
	for i, p := range prices {
		out[i] = models.PredictedPoint{
			Timestamp: trendStart.Add(time.Duration(i) * 5 * time.Minute),
			Price:     p,
		}
	}
	return out
}

func TestFromSeries(t *testing.T) {
	tests := []struct {
		name      string
		series    []models.PredictedPoint
		direction int
	}{
		{"rising above threshold", series(100, 100.5, 101, 101.5, 102), 1},
		{"falling below threshold", series(102, 101.5, 101, 100.5, 100), -1},
		{"flat within threshold", series(100, 100.1, 100.05, 100.2), 0},
		{"too short", series(100), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromSeries(tt.series)
			if got.Direction != tt.direction {
				t.Errorf("FromSeries() direction = %d, want %d", got.Direction, tt.direction)
			}
		})
	}
}

func TestFromSeriesStrengthAndDuration(t *testing.T) {
	steady := FromSeries(series(100, 100.6, 101.2, 101.8, 102.4))
	if steady.Strength <= 0 {
		t.Error("monotone series should have positive strength")
	}
	// Four same-signed steps of five minutes each.
	if steady.DurationMinutes != 20 {
		t.Errorf("duration = %v, want 20", steady.DurationMinutes)
	}

	reversal := FromSeries(series(100, 101, 102, 101.5, 101.0))
	if reversal.DurationMinutes != 10 {
		t.Errorf("reversal duration = %v, want 10 (two trailing down steps)", reversal.DurationMinutes)
	}
}

func TestBucket(t *testing.T) {
	tests := []struct {
		strength float64
		want     string
	}{
		{0.0, LabelWeak},
		{0.29, LabelWeak},
		{0.3, LabelModerate},
		{0.59, LabelModerate},
		{0.6, LabelStrong},
		{1.0, LabelStrong},
	}
	for _, tt := range tests {
		if got := Bucket(tt.strength); got != tt.want {
			t.Errorf("Bucket(%v) = %s, want %s", tt.strength, got, tt.want)
		}
	}
}

func TestReconcileBlendsStrength(t *testing.T) {
	s := series(100, 100.5, 101, 101.5, 102)
	base := FromSeries(s)

	bots := []models.BotPrediction{
		{BotName: "a", Confidence: 1.0, Meta: models.TrendMeta{Direction: 1, Strength: 1.0, DurationMinutes: 5}},
	}

	got := Reconcile(s, bots)
	want := 0.6*base.Strength + 0.4*1.0
	if diff := got.Strength - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("blended strength = %v, want %v", got.Strength, want)
	}
}

func TestReconcileDirectionOverride(t *testing.T) {
	// Series is flat (direction 0) but bots agree decisively on up.
	flat := series(100, 100.05, 100.1, 100.05, 100.12)
	bots := []models.BotPrediction{
		{BotName: "a", Confidence: 0.9, Meta: models.TrendMeta{Direction: 1, Strength: 0.8}},
		{BotName: "b", Confidence: 0.7, Meta: models.TrendMeta{Direction: 1, Strength: 0.6}},
	}

	got := Reconcile(flat, bots)
	if got.Direction != 1 {
		t.Errorf("direction = %d, want bot override to 1", got.Direction)
	}

	// Weak bot consensus keeps the series-derived direction.
	rising := series(100, 100.5, 101, 101.5, 102)
	split := []models.BotPrediction{
		{BotName: "a", Confidence: 0.5, Meta: models.TrendMeta{Direction: 1}},
		{BotName: "b", Confidence: 0.5, Meta: models.TrendMeta{Direction: -1}},
	}
	got = Reconcile(rising, split)
	if got.Direction != 1 {
		t.Errorf("direction = %d, want series-derived 1", got.Direction)
	}
}

func TestReconcileDurationIsMax(t *testing.T) {
	s := series(100, 100.5, 101, 101.5, 102) // 20 minutes of trailing run
	bots := []models.BotPrediction{
		{BotName: "a", Confidence: 1.0, Meta: models.TrendMeta{Direction: 1, DurationMinutes: 90}},
		{BotName: "b", Confidence: 1.0, Meta: models.TrendMeta{Direction: 1, DurationMinutes: 30}},
	}

	got := Reconcile(s, bots)
	if got.DurationMinutes != 60 {
		t.Errorf("duration = %v, want mean of bot durations 60", got.DurationMinutes)
	}

	short := []models.BotPrediction{
		{BotName: "a", Confidence: 1.0, Meta: models.TrendMeta{DurationMinutes: 5}},
	}
	got = Reconcile(s, short)
	if got.DurationMinutes != 20 {
		t.Errorf("duration = %v, want series run 20", got.DurationMinutes)
	}
}

func TestReconcileIgnoresZeroConfidenceDurations(t *testing.T) {
	s := series(100, 100.5, 101, 101.5, 102) // 20 minutes of trailing run
	bots := []models.BotPrediction{
		{BotName: "a", Confidence: 0.8, Meta: models.TrendMeta{Direction: 1, DurationMinutes: 90}},
		{BotName: "dead", Confidence: 0, Meta: models.TrendMeta{Direction: 1, DurationMinutes: 0}},
	}

	// The zero-confidence bot is excluded entirely: it must not drag the
	// mean bot duration down to 45.
	got := Reconcile(s, bots)
	if got.DurationMinutes != 90 {
		t.Errorf("duration = %v, want 90 from the sole counted bot", got.DurationMinutes)
	}
}

func TestReconcileNoContributorsKeepsSeriesTrend(t *testing.T) {
	s := series(100, 100.5, 101, 101.5, 102)
	got := Reconcile(s, nil)
	if got != FromSeries(s) {
		t.Errorf("Reconcile() without bots = %+v, want series trend", got)
	}
}
