// Package metrics provides the observability sinks for auction and
// routing events: Prometheus, InfluxDB and a fan-out combining them.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/foodbridge/dispatch/core/metrics"
)

// PromSink records engine events in Prometheus metrics.
type PromSink struct {
	auctions   *prometheus.CounterVec
	bids       *prometheus.CounterVec
	solves     *prometheus.CounterVec
	solveTime  *prometheus.HistogramVec
	deliveries prometheus.Counter
	fallbacks  prometheus.Counter
}

// NewPromSink registers the engine metrics on the default Prometheus
// registerer. The Prometheus server is started separately.
func NewPromSink() (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	auctions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_transitions_total",
		Help: "Total number of auction lifecycle transitions",
	}, []string{"status"})
	bids := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_bids_total",
		Help: "Total number of submitted or updated bids",
	}, []string{"accepted"})
	solves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_solves_total",
		Help: "Total number of route solver invocations",
	}, []string{"feasible"})
	solveTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "routing_solve_seconds",
		Help:    "Duration of route solver invocations",
		Buckets: prometheus.DefBuckets,
	}, []string{"feasible"})
	deliveries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "routing_deliveries_total",
		Help: "Total number of deliveries committed by route executions",
	})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "travel_oracle_fallbacks_total",
		Help: "Total number of degraded travel-time lookups answered with the penalty value",
	})

	s := &PromSink{
		auctions:   auctions,
		bids:       bids,
		solves:     solves,
		solveTime:  solveTime,
		deliveries: deliveries,
		fallbacks:  fallbacks,
	}
	if err := reg.Register(auctions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.auctions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(bids); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.bids = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(solves); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.solves = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(solveTime); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.solveTime = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(deliveries); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.deliveries = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(fallbacks); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.fallbacks = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	return s, nil
}

// RecordAuction counts the lifecycle transition by resulting status.
func (s *PromSink) RecordAuction(ev coremetrics.AuctionEvent) error {
	s.auctions.WithLabelValues(string(ev.Status)).Inc()
	return nil
}

// RecordBid counts the bid by acceptance.
func (s *PromSink) RecordBid(ev coremetrics.BidEvent) error {
	s.bids.WithLabelValues(strconv.FormatBool(ev.Accepted)).Inc()
	return nil
}

// RecordSolve counts the solver run and observes its duration.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	feasible := strconv.FormatBool(ev.Feasible)
	s.solves.WithLabelValues(feasible).Inc()
	s.solveTime.WithLabelValues(feasible).Observe(ev.Duration.Seconds())
	return nil
}

// RecordApply counts the committed deliveries.
func (s *PromSink) RecordApply(ev coremetrics.ApplyEvent) error {
	s.deliveries.Add(float64(ev.Deliveries))
	return nil
}

// RecordOracleFallback counts the degraded lookup.
func (s *PromSink) RecordOracleFallback(coremetrics.OracleFallbackEvent) error {
	s.fallbacks.Inc()
	return nil
}
