package ensemble

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/forecastlab/ensemble/internal/fallback"
	"github.com/forecastlab/ensemble/internal/merge"
	"github.com/forecastlab/ensemble/internal/regime"
	"github.com/forecastlab/ensemble/internal/trend"
	"github.com/forecastlab/ensemble/internal/validation"
	"github.com/forecastlab/ensemble/internal/weights"
	"github.com/forecastlab/ensemble/models"
)

// ModelVersion tags regular (non-degraded) ensemble output.
const ModelVersion = "ensemble_v1"

// Operational failure stages. Any of them resolves to a baseline result;
// the caller always receives a MergedPrediction.
const (
	failNoReference = "no_reference_price"
	failNoValid     = "no_valid_predictions"
	failEmptyMerge  = "empty_after_merge"
	failCancelled   = "cancelled"
)

// Options tunes the orchestrator. Zero values take sensible defaults.
type Options struct {
	FanoutTimeout       time.Duration // total wait ceiling for concurrent predictions
	FanoutRate          int           // predictor starts per second
	OracleLookbackHours int
}

// Orchestrator drives the full pipeline: classify regime, compute weights,
// fan out to every selected predictor concurrently, validate and merge the
// survivors, reconcile the trend and estimate confidence. Systemic failure
// at any stage resolves to the baseline fallback; Forecast never returns an
// error and never panics.
type Orchestrator struct {
	registry   Registry
	calculator *weights.Calculator
	validator  *validation.Validator
	merger     *merge.Merger
	estimator  merge.Estimator
	baseline   *fallback.Baseline
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     zerolog.Logger
}

// Registry resolves bot names to predictors. Satisfied by
// predictors.Registry.
type Registry interface {
	Select(subset []string) map[string]models.Predictor
}

// New wires the pipeline together.
func New(registry Registry, oracle models.PerformanceOracle, bonus models.BonusSource, calendar *fallback.Calendar, opts Options) *Orchestrator {
	if opts.FanoutTimeout <= 0 {
		opts.FanoutTimeout = 20 * time.Second
	}
	if opts.FanoutRate <= 0 {
		opts.FanoutRate = 10
	}
	if opts.OracleLookbackHours <= 0 {
		opts.OracleLookbackHours = 72
	}

	return &Orchestrator{
		registry:   registry,
		calculator: weights.NewCalculator(oracle, bonus, opts.OracleLookbackHours),
		validator:  validation.New(),
		merger:     merge.New(),
		baseline:   fallback.NewBaseline(calendar),
		limiter:    rate.NewLimiter(rate.Limit(opts.FanoutRate), opts.FanoutRate),
		timeout:    opts.FanoutTimeout,
		logger:     log.With().Str("component", "orchestrator").Logger(),
	}
}

// Forecast produces one merged prediction for (symbol, timeframe, horizon).
// subset optionally restricts which bots participate. The returned value is
// never nil.
func (o *Orchestrator) Forecast(ctx context.Context, symbol, timeframe string, horizonMinutes int, candles []models.Candle, subset []string) *models.MergedPrediction {
	reference, ok := referenceClose(candles)
	if !ok {
		return o.fallbackResult(symbol, timeframe, horizonMinutes, candles, failNoReference, nil)
	}

	regimeResult := regime.Classify(candles)
	o.logger.Debug().
		Str("symbol", symbol).
		Str("regime", regimeResult.Name).
		Float64("reference", reference).
		Msg("Classified market regime")

	weightMap := o.calculator.Compute(ctx, symbol, timeframe, regimeResult.Name, subset)

	raw, flags := o.fanOut(ctx, symbol, timeframe, horizonMinutes, candles, subset)
	if ctx.Err() != nil {
		// Caller cancelled mid-flight: never emit a partial merge.
		return o.fallbackResult(symbol, timeframe, horizonMinutes, candles, failCancelled, flags)
	}

	usable, summary := o.validateAll(raw, reference, candles)
	summary.Flags = append(flags, summary.Flags...)
	if len(usable) == 0 {
		return o.fallbackResult(symbol, timeframe, horizonMinutes, candles, failNoValid, summary.Flags)
	}

	survivors := make([]string, 0, len(usable))
	for _, pred := range usable {
		survivors = append(survivors, pred.BotName)
	}
	weightMap = weights.Renormalize(weightMap, survivors)

	merged := o.merger.Combine(usable, weightMap)
	cleaned, droppedPoints := o.merger.CleanMerged(merged, reference)
	summary.DroppedPoints = droppedPoints
	if len(cleaned) == 0 {
		return o.fallbackResult(symbol, timeframe, horizonMinutes, candles, failEmptyMerge, summary.Flags)
	}

	trendSummary := trend.Reconcile(cleaned, usable)
	confidence := o.estimator.Overall(usable, weightMap)
	band := o.estimator.Band(cleaned)

	contributions := make(map[string]models.BotContribution, len(usable))
	for _, pred := range usable {
		contributions[pred.BotName] = models.BotContribution{
			Weight:     weightMap[pred.BotName],
			Confidence: pred.Confidence,
			Meta:       pred.Meta,
		}
	}

	return &models.MergedPrediction{
		Symbol:             symbol,
		Timeframe:          timeframe,
		HorizonMinutes:     horizonMinutes,
		ProducedAt:         time.Now().UTC(),
		Series:             cleaned,
		OverallConfidence:  confidence,
		ConfidenceInterval: band,
		BotContributions:   contributions,
		Trend:              trendSummary,
		ModelVersion:       ModelVersion,
		Sanitization:       summary,
	}
}

type fanoutResult struct {
	name string
	pred *models.BotPrediction
	err  error
}

// fanOut issues every selected prediction concurrently. A predictor that
// errors, panics or outlives the wait ceiling is logged and excluded; it
// never aborts the cycle. The returned flags record those exclusions.
func (o *Orchestrator) fanOut(ctx context.Context, symbol, timeframe string, horizonMinutes int, candles []models.Candle, subset []string) ([]models.BotPrediction, []string) {
	selected := o.registry.Select(subset)
	if len(selected) == 0 {
		return nil, nil
	}

	results := make(chan fanoutResult, len(selected))
	launched := 0
	for name, predictor := range selected {
		if err := o.limiter.Wait(ctx); err != nil {
			break
		}
		launched++
		go func(name string, p models.Predictor) {
			defer func() {
				if r := recover(); r != nil {
					results <- fanoutResult{name: name, err: fmt.Errorf("predictor panic: %v", r)}
				}
			}()
			pred, err := p.Predict(ctx, candles, horizonMinutes, timeframe)
			if err == nil && pred == nil {
				err = fmt.Errorf("predictor returned no prediction")
			}
			results <- fanoutResult{name: name, pred: pred, err: err}
		}(name, predictor)
	}

	deadline := time.NewTimer(o.timeout)
	defer deadline.Stop()

	collected := make([]models.BotPrediction, 0, launched)
	var flags []string
	received := 0
collect:
	for received < launched {
		select {
		case r := <-results:
			received++
			if r.err != nil {
				o.logger.Warn().Err(r.err).Str("bot", r.name).Msg("Predictor excluded from cycle")
				flags = append(flags, fmt.Sprintf("predictor_exception:%s", r.name))
				continue
			}
			collected = append(collected, *r.pred)
		case <-deadline.C:
			o.logger.Warn().
				Int("pending", launched-received).
				Msg("Fan-out ceiling reached, treating pending predictors as failed")
			flags = append(flags, "fanout_timeout")
			break collect
		case <-ctx.Done():
			break collect
		}
	}
	return collected, flags
}

// validateAll runs the validator over each prediction. Bound violations are
// repaired by sanitation; structural failures drop the bot for this cycle.
func (o *Orchestrator) validateAll(raw []models.BotPrediction, reference float64, candles []models.Candle) ([]models.BotPrediction, models.SanitizationSummary) {
	summary := models.SanitizationSummary{
		Retained:  []string{},
		Dropped:   []string{},
		Sanitized: []string{},
	}

	usable := make([]models.BotPrediction, 0, len(raw))
	for _, pred := range raw {
		outcome := o.validator.Validate(pred.Series, reference, candles)
		summary.Flags = append(summary.Flags, outcome.Flags...)

		if outcome.IsValid {
			summary.Retained = append(summary.Retained, pred.BotName)
			usable = append(usable, pred)
			continue
		}
		if !repairable(outcome.Reason) {
			o.logger.Warn().
				Str("bot", pred.BotName).
				Str("reason", outcome.Reason).
				Msg("Prediction dropped")
			summary.Dropped = append(summary.Dropped, pred.BotName)
			summary.Flags = append(summary.Flags, fmt.Sprintf("%s:%s", outcome.Reason, pred.BotName))
			continue
		}

		fixed, clipped := o.validator.Sanitize(pred.Series, reference)
		if len(fixed) == 0 {
			summary.Dropped = append(summary.Dropped, pred.BotName)
			continue
		}
		o.logger.Info().
			Str("bot", pred.BotName).
			Str("reason", outcome.Reason).
			Int("clipped", clipped).
			Msg("Prediction sanitized")
		summary.Sanitized = append(summary.Sanitized, pred.BotName)
		summary.ClippedPoints += clipped

		repaired := pred
		repaired.Series = fixed
		usable = append(usable, repaired)
	}
	return usable, summary
}

// repairable reports whether clamping can fix a rejection. Structural
// defects (nothing to repair, degenerate or implausible dynamics) cannot be
// clamped away.
func repairable(reason string) bool {
	switch reason {
	case validation.ReasonEmptySeries,
		validation.ReasonInvalidReference,
		validation.ReasonTooSmooth,
		validation.ReasonVolMismatch:
		return false
	default:
		return true
	}
}

func (o *Orchestrator) fallbackResult(symbol, timeframe string, horizonMinutes int, candles []models.Candle, stage string, flags []string) *models.MergedPrediction {
	o.logger.Warn().
		Str("symbol", symbol).
		Str("stage", stage).
		Msg("Pipeline degraded, serving baseline")

	result := o.baseline.Predict(symbol, timeframe, horizonMinutes, candles)
	result.Sanitization.Flags = append([]string{stage}, flags...)
	return result
}

func referenceClose(candles []models.Candle) (float64, bool) {
	if len(candles) == 0 {
		return 0, false
	}
	last := candles[len(candles)-1].Close
	if last <= 0 {
		return 0, false
	}
	return last, true
}
