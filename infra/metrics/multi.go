package metrics

import coremetrics "github.com/foodbridge/dispatch/core/metrics"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAuction forwards the event to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAuction(ev coremetrics.AuctionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAuction(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordBid forwards the event to all sinks.
func (m *MultiSink) RecordBid(ev coremetrics.BidEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordBid(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordSolve forwards the event to all sinks.
func (m *MultiSink) RecordSolve(ev coremetrics.SolveEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordSolve(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordApply forwards the event to all sinks.
func (m *MultiSink) RecordApply(ev coremetrics.ApplyEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordApply(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordOracleFallback forwards the event to all sinks.
func (m *MultiSink) RecordOracleFallback(ev coremetrics.OracleFallbackEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordOracleFallback(ev); err != nil {
			return err
		}
	}
	return nil
}
