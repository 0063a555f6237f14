// Package analyzer computes per-user session duration statistics from the
// session store.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vainnor/session-stats/db"
	"github.com/vainnor/session-stats/logger"
	"github.com/vainnor/session-stats/types"
)

const (
	DefaultQueryTimeout = 10 * time.Second

	tracerName = "github.com/vainnor/session-stats/analyzer"
)

// Summary holds the statistics for one user.
type Summary struct {
	UserID string
	// SessionsFound counts every matched record, including those skipped
	// for missing timestamps.
	SessionsFound int
	// TotalSessions counts the records a duration was computed for.
	TotalSessions int
	AverageMin    float64
	MaxMin        float64
}

// Analyzer computes session statistics against a Store. It is safe for
// concurrent use.
type Analyzer struct {
	store          db.Store
	connectTimeout time.Duration
	queryTimeout   time.Duration
	metrics        *Metrics
	tracer         trace.Tracer
}

type Option func(*Analyzer)

// WithConnectTimeout bounds Open and Ping when Analyze opens its own store.
func WithConnectTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.connectTimeout = d
		}
	}
}

// WithQueryTimeout bounds fetching and decoding the matching records.
func WithQueryTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.queryTimeout = d
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// WithTracerProvider sets where analysis spans are recorded. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Analyzer) {
		if tp != nil {
			a.tracer = tp.Tracer(tracerName)
		}
	}
}

func New(store db.Store, opts ...Option) *Analyzer {
	a := &Analyzer{
		store:          store,
		connectTimeout: db.DefaultConnectTimeout,
		queryTimeout:   DefaultQueryTimeout,
		tracer:         otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze opens a connection to target, analyzes userID's sessions and
// closes the connection before returning. Every failure is reported in the
// result; Analyze never returns an error or panics.
func Analyze(ctx context.Context, userID, target string, opts ...Option) types.AnalysisResult {
	a := New(nil, opts...)

	connectCtx, span := a.tracer.Start(ctx, "analyzer.Connect",
		trace.WithAttributes(attribute.String("user_id", userID)))
	store, err := db.Open(connectCtx, target, db.Options{ConnectTimeout: a.connectTimeout})
	if err != nil {
		err = &Error{Kind: KindConnectivity, Op: "connect", Err: err}
		failSpan(span, err)
		span.End()
		return a.fail(ctx, userID, err)
	}
	span.End()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), a.connectTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("error closing session store", "error", err)
		}
	}()

	a.store = store
	return a.Analyze(ctx, userID)
}

// Analyze reports userID's statistics in one of the three result shapes.
func (a *Analyzer) Analyze(ctx context.Context, userID string) (result types.AnalysisResult) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "analyzer.Analyze",
		trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := &Error{Kind: KindUnknown, Op: "analyze", Err: fmt.Errorf("%v", r)}
			failSpan(span, err)
			result = a.fail(ctx, userID, err)
		}
		a.metrics.observe(time.Since(start).Seconds())
	}()

	summary, err := a.Summarize(ctx, userID)
	switch {
	case errors.Is(err, ErrNoSessions):
		span.SetAttributes(attribute.String("outcome", OutcomeEmpty))
		a.metrics.incOutcome(OutcomeEmpty)
		logger.Ctx(ctx).Info("no sessions found", "user_id", userID)
		return types.Empty(userID)
	case err != nil:
		failSpan(span, err)
		return a.fail(ctx, userID, err)
	}

	span.SetAttributes(
		attribute.String("outcome", OutcomeSuccess),
		attribute.Int("total_sessions", summary.TotalSessions),
	)
	a.metrics.incOutcome(OutcomeSuccess)
	logger.Ctx(ctx).Info("session analysis complete",
		"user_id", userID,
		"sessions_found", summary.SessionsFound,
		"total_sessions", summary.TotalSessions,
		"average_min", summary.AverageMin,
		"max_min", summary.MaxMin,
	)

	return types.Success(userID, summary.TotalSessions, summary.AverageMin, summary.MaxMin)
}

// Summarize computes the statistics for userID. It returns ErrNoSessions when
// nothing matched and an *Error for every other failure.
func (a *Analyzer) Summarize(ctx context.Context, userID string) (*Summary, error) {
	if a.store == nil {
		return nil, &Error{Kind: KindConnectivity, Op: "connect", Err: errors.New("no session store configured")}
	}

	queryCtx, cancel := context.WithTimeout(ctx, a.queryTimeout)
	defer cancel()

	records, err := a.store.FindSessions(queryCtx, userID)
	if err != nil {
		kind := KindUnknown
		if db.IsConnectivity(err) {
			kind = KindConnectivity
		}
		return nil, &Error{Kind: kind, Op: "find", Err: err}
	}

	if len(records) == 0 {
		return nil, ErrNoSessions
	}

	durations := make([]float64, 0, len(records))
	for _, record := range records {
		if !record.HasTimestamps() {
			continue
		}
		minutes, err := SessionMinutes(record)
		if err != nil {
			return nil, &Error{Kind: KindParse, Op: "parse", Err: err}
		}
		durations = append(durations, minutes)
	}

	if len(durations) == 0 {
		return nil, &Error{Kind: KindEmptyStatistics, Op: "compute", Err: ErrEmptyStatistics}
	}

	mean, peak := meanMax(durations)

	return &Summary{
		UserID:        userID,
		SessionsFound: len(records),
		TotalSessions: len(durations),
		AverageMin:    round2(mean),
		MaxMin:        round2(peak),
	}, nil
}

func (a *Analyzer) fail(ctx context.Context, userID string, err error) types.AnalysisResult {
	kind := KindOf(err)
	a.metrics.incOutcome(OutcomeFailure)
	a.metrics.incError(kind)
	logger.Ctx(ctx).Error("session analysis failed",
		"user_id", userID,
		"kind", kind.String(),
		"error", err,
	)
	return types.Failure(kind.String(), err.Error())
}

func failSpan(span trace.Span, err error) {
	span.SetAttributes(
		attribute.String("outcome", OutcomeFailure),
		attribute.String("error.kind", KindOf(err).String()),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// meanMax returns the mean of values, correctly rounded from the exact sum,
// and their maximum.
func meanMax(values []float64) (mean, peak float64) {
	peak = values[0]
	sum := new(big.Rat)
	for _, v := range values {
		sum.Add(sum, new(big.Rat).SetFloat64(v))
		if v > peak {
			peak = v
		}
	}
	sum.Quo(sum, new(big.Rat).SetInt64(int64(len(values))))
	mean, _ = sum.Float64()
	return mean, peak
}

// round2 rounds the exact binary value of v to two decimal places, ties to
// even.
func round2(v float64) float64 {
	return exactDecimal(v).RoundBank(2).InexactFloat64()
}

// exactDecimal expands v without the shortest-representation shortcut
// decimal.NewFromFloat takes, so 2.675 stays 2.67499999...
func exactDecimal(v float64) decimal.Decimal {
	frac, exp := math.Frexp(v)
	mant := big.NewInt(int64(math.Ldexp(frac, 53)))
	shift := exp - 53
	if shift >= 0 {
		return decimal.NewFromBigInt(mant.Lsh(mant, uint(shift)), 0)
	}
	// m * 2^-k == m * 5^k * 10^-k
	k := int64(-shift)
	mant.Mul(mant, new(big.Int).Exp(big.NewInt(5), big.NewInt(k), nil))
	return decimal.NewFromBigInt(mant, int32(-k))
}
