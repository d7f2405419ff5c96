// Package travel abstracts travel-time lookups between coordinates. The
// engine only ever needs a duration matrix in minutes; where those minutes
// come from (OpenRouteService, OSRM, a fixture) is an infra concern.
package travel

import (
	"context"
	"time"

	"github.com/foodbridge/dispatch/core/logger"
	"github.com/foodbridge/dispatch/core/metrics"
	"github.com/foodbridge/dispatch/core/model"
)

// Oracle answers travel-time queries. Matrix returns durations in minutes,
// one row per origin and one column per destination. Unreachable pairs are
// reported as +Inf.
type Oracle interface {
	Matrix(ctx context.Context, origins, destinations []model.Coordinate) ([][]float64, error)
}

// DefaultPenaltyMinutes substitutes for real travel times when the oracle
// is unavailable. Large enough to rank an unreachable candidate last while
// keeping the scoring arithmetic finite.
const DefaultPenaltyMinutes = 999

// Resilient wraps an Oracle so that lookup failures degrade to a uniform
// penalty matrix instead of failing the auction or the solve.
type Resilient struct {
	inner   Oracle
	penalty float64
	log     logger.Logger
	sink    metrics.Sink
}

// NewResilient wraps inner. A non-positive penalty falls back to
// DefaultPenaltyMinutes.
func NewResilient(inner Oracle, penalty float64, log logger.Logger, sink metrics.Sink) *Resilient {
	if penalty <= 0 {
		penalty = DefaultPenaltyMinutes
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Resilient{inner: inner, penalty: penalty, log: log, sink: sink}
}

// Matrix never returns an error: on failure every cell carries the penalty.
func (r *Resilient) Matrix(ctx context.Context, origins, destinations []model.Coordinate) ([][]float64, error) {
	m, err := r.inner.Matrix(ctx, origins, destinations)
	if err == nil {
		return m, nil
	}
	r.log.Warnf("travel oracle failed, substituting %.0f min penalty: %v", r.penalty, err)
	_ = r.sink.RecordOracleFallback(metrics.OracleFallbackEvent{
		Origins:      len(origins),
		Destinations: len(destinations),
		Reason:       err.Error(),
		Time:         time.Now(),
	})
	out := make([][]float64, len(origins))
	for i := range out {
		row := make([]float64, len(destinations))
		for j := range row {
			row[j] = r.penalty
		}
		out[i] = row
	}
	return out, nil
}

// Fixed is an Oracle backed by a precomputed matrix, used in tests and in
// offline runs.
type Fixed struct {
	Durations [][]float64
	Err       error
}

func (f Fixed) Matrix(context.Context, []model.Coordinate, []model.Coordinate) ([][]float64, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Durations, nil
}
