package models

import "time"

// IntervalForTimeframe maps a timeframe string to the candle interval it
// describes. Unknown timeframes default to 5 minutes.
func IntervalForTimeframe(timeframe string) time.Duration {
	switch timeframe {
	case "1min":
		return time.Minute
	case "5min":
		return 5 * time.Minute
	case "15min":
		return 15 * time.Minute
	case "30min":
		return 30 * time.Minute
	case "45min":
		return 45 * time.Minute
	case "1h":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "8h":
		return 8 * time.Hour
	case "1day":
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}

// StepsForHorizon returns how many forecast points cover the requested
// horizon at the given timeframe, always at least one.
func StepsForHorizon(horizonMinutes int, timeframe string) int {
	interval := IntervalForTimeframe(timeframe)
	steps := int(time.Duration(horizonMinutes) * time.Minute / interval)
	if steps < 1 {
		steps = 1
	}
	return steps
}
