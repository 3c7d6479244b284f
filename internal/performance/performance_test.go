package performance

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	score      float64
	recency    float64
	rmse       float64
	hasRows    bool
	err        error
	scoreCalls int
}

func (f *fakeStore) Score(_ context.Context, _, _, _ string, _ int) (float64, bool, error) {
	f.scoreCalls++
	return f.score, f.hasRows, f.err
}

func (f *fakeStore) Recency(_ context.Context, _, _, _ string, _ int) (float64, bool, error) {
	return f.recency, f.hasRows, f.err
}

func (f *fakeStore) BestRMSE(_ context.Context, _ string) (float64, bool, error) {
	return f.rmse, f.hasRows, f.err
}

func TestOracleServesStoreValues(t *testing.T) {
	store := &fakeStore{score: 0.8, recency: 0.9, hasRows: true}
	oracle := NewOracle(store, nil, 0)

	score, err := oracle.Score(context.Background(), "EUR/USD", "5min", "technical", 72)
	if err != nil || score != 0.8 {
		t.Errorf("Score() = (%v, %v), want 0.8", score, err)
	}
	recency, err := oracle.Recency(context.Background(), "EUR/USD", "5min", "technical", 72)
	if err != nil || recency != 0.9 {
		t.Errorf("Recency() = (%v, %v), want 0.9", recency, err)
	}
}

func TestOracleNeutralDefaults(t *testing.T) {
	store := &fakeStore{hasRows: false}
	oracle := NewOracle(store, nil, 0)

	score, _ := oracle.Score(context.Background(), "EUR/USD", "5min", "lstm", 72)
	if score != NeutralScore {
		t.Errorf("Score() without history = %v, want %v", score, NeutralScore)
	}
	recency, _ := oracle.Recency(context.Background(), "EUR/USD", "5min", "lstm", 72)
	if recency != NeutralRecency {
		t.Errorf("Recency() without history = %v, want %v", recency, NeutralRecency)
	}
}

func TestOracleStoreFailureIsNeutralNotError(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	oracle := NewOracle(store, nil, 0)

	score, err := oracle.Score(context.Background(), "EUR/USD", "5min", "technical", 72)
	if err != nil {
		t.Fatalf("oracle must not surface store errors, got %v", err)
	}
	if score != NeutralScore {
		t.Errorf("Score() on failure = %v, want neutral", score)
	}
}

func TestBonusFromRMSE(t *testing.T) {
	tests := []struct {
		rmse float64
		max  float64
	}{
		{0, 0.3},
		{1, 0.15},
		{100, 0.01},
	}
	for _, tt := range tests {
		got := BonusFromRMSE(tt.rmse)
		if got > tt.max+1e-9 || got < 0 {
			t.Errorf("BonusFromRMSE(%v) = %v, want in (0, %v]", tt.rmse, got, tt.max)
		}
	}
	if BonusFromRMSE(-1) != 0 {
		t.Error("negative RMSE should yield no bonus")
	}
}

func TestStaticOracle(t *testing.T) {
	oracle := NewStaticOracle()
	oracle.SetScore("EUR/USD", "5min", "technical", 0.95)
	oracle.SetRecency("EUR/USD", "5min", "technical", 0.2) // below floor, clamped

	score, _ := oracle.Score(context.Background(), "EUR/USD", "5min", "technical", 72)
	if score != 0.95 {
		t.Errorf("Score() = %v, want 0.95", score)
	}
	recency, _ := oracle.Recency(context.Background(), "EUR/USD", "5min", "technical", 72)
	if recency != 0.5 {
		t.Errorf("Recency() = %v, want clamped floor 0.5", recency)
	}

	// Unknown bots serve neutral values.
	score, _ = oracle.Score(context.Background(), "EUR/USD", "5min", "mystery", 72)
	if score != NeutralScore {
		t.Errorf("unknown bot score = %v, want neutral", score)
	}
}
