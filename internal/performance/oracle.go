package performance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Neutral values served when no evaluation history exists. Recency defaults
// to 1.0 so an unevaluated bot takes no recency discount.
const (
	NeutralScore   = 0.5
	NeutralRecency = 1.0
)

// maxBonus caps the experiment-registry weighting bonus.
const maxBonus = 0.3

// scoreReader is the subset of Store the oracle needs; it keeps the oracle
// testable without a database.
type scoreReader interface {
	Score(ctx context.Context, symbol, timeframe, botName string, lookbackHours int) (float64, bool, error)
	Recency(ctx context.Context, symbol, timeframe, botName string, lookbackHours int) (float64, bool, error)
	BestRMSE(ctx context.Context, modelFamily string) (float64, bool, error)
}

// Oracle is a read-through cached view over the performance store. Cache
// entries expire after a short TTL; concurrent readers are safe because an
// entry is only ever replaced atomically by the cache itself.
type Oracle struct {
	store  scoreReader
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewOracle builds the cached oracle. cache may be nil, in which case every
// read goes to the store.
func NewOracle(store scoreReader, cache *redis.Client, ttl time.Duration) *Oracle {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Oracle{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: log.With().Str("component", "performance_oracle").Logger(),
	}
}

// Score returns the bot's historical accuracy in [0,1].
func (o *Oracle) Score(ctx context.Context, symbol, timeframe, botName string, lookbackHours int) (float64, error) {
	key := fmt.Sprintf("perf:score:%s:%s:%s", symbol, timeframe, botName)
	return o.cachedLookup(ctx, key, NeutralScore, func() (float64, bool, error) {
		return o.store.Score(ctx, symbol, timeframe, botName, lookbackHours)
	})
}

// Recency returns the bot's recency factor in [0.5,1.0].
func (o *Oracle) Recency(ctx context.Context, symbol, timeframe, botName string, lookbackHours int) (float64, error) {
	key := fmt.Sprintf("perf:recency:%s:%s:%s", symbol, timeframe, botName)
	return o.cachedLookup(ctx, key, NeutralRecency, func() (float64, bool, error) {
		return o.store.Recency(ctx, symbol, timeframe, botName, lookbackHours)
	})
}

// Bonus maps the best recorded RMSE of the bot's model family to a weighting
// bonus in [0,maxBonus]: the lower the error, the closer to the cap.
func (o *Oracle) Bonus(ctx context.Context, symbol, timeframe, botName string) (float64, error) {
	key := fmt.Sprintf("perf:bonus:%s", botName)
	return o.cachedLookup(ctx, key, 0, func() (float64, bool, error) {
		rmse, ok, err := o.store.BestRMSE(ctx, botName)
		if err != nil || !ok {
			return 0, ok, err
		}
		return BonusFromRMSE(rmse), true, nil
	})
}

// BonusFromRMSE converts a best recorded RMSE into the weighting bonus.
func BonusFromRMSE(rmse float64) float64 {
	if rmse < 0 {
		return 0
	}
	return maxBonus / (1.0 + rmse)
}

func (o *Oracle) cachedLookup(ctx context.Context, key string, neutral float64, fetch func() (float64, bool, error)) (float64, error) {
	if o.cache != nil {
		if raw, err := o.cache.Get(ctx, key).Result(); err == nil {
			if v, perr := strconv.ParseFloat(raw, 64); perr == nil {
				return v, nil
			}
		} else if err != redis.Nil {
			o.logger.Debug().Err(err).Str("key", key).Msg("Cache read failed, falling through to store")
		}
	}

	value := neutral
	if o.store != nil {
		v, found, err := fetch()
		if err != nil {
			o.logger.Warn().Err(err).Str("key", key).Msg("Store lookup failed, serving neutral value")
		} else if found {
			value = v
		}
	}

	if o.cache != nil {
		if err := o.cache.Set(ctx, key, strconv.FormatFloat(value, 'f', -1, 64), o.ttl).Err(); err != nil {
			o.logger.Debug().Err(err).Str("key", key).Msg("Cache write failed")
		}
	}
	return value, nil
}
