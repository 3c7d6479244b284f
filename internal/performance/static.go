package performance

import (
	"context"
	"fmt"
	"sync"
)

// StaticOracle serves scores from an in-memory table. It backs tests and
// offline runs where neither Postgres nor Redis is available.
type StaticOracle struct {
	mu        sync.RWMutex
	scores    map[string]float64
	recencies map[string]float64
	bonuses   map[string]float64
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{
		scores:    make(map[string]float64),
		recencies: make(map[string]float64),
		bonuses:   make(map[string]float64),
	}
}

// SetScore records a score for (symbol, timeframe, bot).
func (s *StaticOracle) SetScore(symbol, timeframe, botName string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[staticKey(symbol, timeframe, botName)] = clamp(score, 0, 1)
}

// SetRecency records a recency factor for (symbol, timeframe, bot).
func (s *StaticOracle) SetRecency(symbol, timeframe, botName string, recency float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recencies[staticKey(symbol, timeframe, botName)] = clamp(recency, 0.5, 1.0)
}

// SetBonus records a weighting bonus for a bot.
func (s *StaticOracle) SetBonus(botName string, bonus float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bonuses[botName] = clamp(bonus, 0, maxBonus)
}

func (s *StaticOracle) Score(_ context.Context, symbol, timeframe, botName string, _ int) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.scores[staticKey(symbol, timeframe, botName)]; ok {
		return v, nil
	}
	return NeutralScore, nil
}

func (s *StaticOracle) Recency(_ context.Context, symbol, timeframe, botName string, _ int) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.recencies[staticKey(symbol, timeframe, botName)]; ok {
		return v, nil
	}
	return NeutralRecency, nil
}

func (s *StaticOracle) Bonus(_ context.Context, _, _, botName string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bonuses[botName], nil
}

func staticKey(symbol, timeframe, botName string) string {
	return fmt.Sprintf("%s|%s|%s", symbol, timeframe, botName)
}
