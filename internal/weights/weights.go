package weights

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/forecastlab/ensemble/models"
)

// Known bot families the base tables are keyed over.
const (
	BotTechnical   = "technical"
	BotMLEnsemble  = "ml_ensemble"
	BotLSTM        = "lstm"
	BotTransformer = "transformer"
)

const (
	// No bot is ever fully excluded by the calculator; validation or an
	// explicit subset filter are the only exclusion paths.
	weightFloor = 0.05
	// Weight assumed for subset members missing from the base table,
	// applied before renormalization.
	subsetDefaultWeight = 0.1
	// Oracle value used when scoring fails or no history exists.
	neutralScore = 0.5

	maxBonus = 0.3
)

// baseTables maps each regime to a fixed distribution over the known bot
// set. Every row sums to 1.0.
var baseTables = map[string]map[string]float64{
	models.RegimeTrendingUp: {
		BotTechnical: 0.35, BotMLEnsemble: 0.25, BotLSTM: 0.20, BotTransformer: 0.20,
	},
	models.RegimeTrendingDown: {
		BotTechnical: 0.35, BotMLEnsemble: 0.25, BotLSTM: 0.20, BotTransformer: 0.20,
	},
	models.RegimeRangeBound: {
		BotTechnical: 0.40, BotMLEnsemble: 0.30, BotLSTM: 0.15, BotTransformer: 0.15,
	},
	models.RegimeVolatile: {
		BotTechnical: 0.20, BotMLEnsemble: 0.30, BotLSTM: 0.25, BotTransformer: 0.25,
	},
	models.RegimeNeutral: {
		BotTechnical: 0.25, BotMLEnsemble: 0.25, BotLSTM: 0.25, BotTransformer: 0.25,
	},
	models.RegimeUnknown: {
		BotTechnical: 0.25, BotMLEnsemble: 0.25, BotLSTM: 0.25, BotTransformer: 0.25,
	},
}

// Calculator produces normalized per-bot weights for the current regime,
// adjusted by historical performance scores. Weights are recomputed per
// request and never cached here; the oracle caches its own inputs.
type Calculator struct {
	oracle        models.PerformanceOracle
	bonus         models.BonusSource
	lookbackHours int
	logger        zerolog.Logger
}

func NewCalculator(oracle models.PerformanceOracle, bonus models.BonusSource, lookbackHours int) *Calculator {
	return &Calculator{
		oracle:        oracle,
		bonus:         bonus,
		lookbackHours: lookbackHours,
		logger:        log.With().Str("component", "weight_calculator").Logger(),
	}
}

// Compute returns weights summing to 1.0 over the included bot set. When
// subset is non-empty the result is restricted to those bots; subset members
// unknown to the base table enter with a default weight before
// renormalization.
func (c *Calculator) Compute(ctx context.Context, symbol, timeframe, regimeName string, subset []string) map[string]float64 {
	base, ok := baseTables[regimeName]
	if !ok {
		base = baseTables[models.RegimeUnknown]
	}

	adjusted := make(map[string]float64, len(base))
	for bot, w := range base {
		score := c.lookup(ctx, symbol, timeframe, bot, oracleScore)
		recency := c.lookup(ctx, symbol, timeframe, bot, oracleRecency)

		aw := w * score * recency
		if aw < weightFloor {
			aw = weightFloor
		}
		if c.bonus != nil {
			if b, err := c.bonus.Bonus(ctx, symbol, timeframe, bot); err == nil && b > 0 {
				if b > maxBonus {
					b = maxBonus
				}
				aw *= 1 + b
			}
		}
		adjusted[bot] = aw
	}

	if len(subset) > 0 {
		restricted := make(map[string]float64, len(subset))
		for _, bot := range subset {
			if aw, ok := adjusted[bot]; ok {
				restricted[bot] = aw
			} else {
				restricted[bot] = subsetDefaultWeight
			}
		}
		adjusted = restricted
	}

	return normalize(adjusted, base)
}

type oracleKind int

const (
	oracleScore oracleKind = iota
	oracleRecency
)

func (c *Calculator) lookup(ctx context.Context, symbol, timeframe, bot string, kind oracleKind) float64 {
	if c.oracle == nil {
		if kind == oracleRecency {
			return 1.0
		}
		return neutralScore
	}

	var v float64
	var err error
	if kind == oracleScore {
		v, err = c.oracle.Score(ctx, symbol, timeframe, bot, c.lookbackHours)
	} else {
		v, err = c.oracle.Recency(ctx, symbol, timeframe, bot, c.lookbackHours)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("bot", bot).Msg("Oracle lookup failed, using neutral value")
		if kind == oracleRecency {
			return 1.0
		}
		return neutralScore
	}
	return v
}

// normalize scales the map so its values sum to 1.0. A zero total falls back
// to equal weight across the base table, so the calculator always produces a
// usable distribution.
func normalize(weights map[string]float64, base map[string]float64) map[string]float64 {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		out := make(map[string]float64, len(base))
		eq := 1.0 / float64(len(base))
		for bot := range base {
			out[bot] = eq
		}
		return out
	}

	out := make(map[string]float64, len(weights))
	for bot, w := range weights {
		out[bot] = w / total
	}
	return out
}

// Renormalize rescales an existing weight map over the surviving bot set.
// Used after validation removes contributors so the invariant that
// contributing weights sum to 1.0 keeps holding.
func Renormalize(weights map[string]float64, survivors []string) map[string]float64 {
	total := 0.0
	for _, bot := range survivors {
		total += weights[bot]
	}

	out := make(map[string]float64, len(survivors))
	if total <= 0 {
		eq := 1.0 / float64(len(survivors))
		for _, bot := range survivors {
			out[bot] = eq
		}
		return out
	}
	for _, bot := range survivors {
		out[bot] = weights[bot] / total
	}
	return out
}

// Regimes lists every regime with a base table, for tests and docs.
func Regimes() []string {
	names := make([]string, 0, len(baseTables))
	for name := range baseTables {
		names = append(names, name)
	}
	return names
}
