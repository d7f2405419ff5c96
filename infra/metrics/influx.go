package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/foodbridge/dispatch/core/metrics"
	"github.com/foodbridge/dispatch/infra/logger"
)

// InfluxSink writes engine events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close shuts the underlying client down.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordAuction writes the auction transition as a point.
func (s *InfluxSink) RecordAuction(ev coremetrics.AuctionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("auction_transition").
		AddTag("auction_id", ev.AuctionID).
		AddTag("pickup_request_id", ev.PickupRequestID).
		AddTag("status", string(ev.Status)).
		AddTag("component", "auction_coordinator").
		AddField("bids", ev.Bids)
	if ev.WinnerID != "" {
		p = p.AddTag("winner_id", ev.WinnerID)
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBid writes the bid submission.
func (s *InfluxSink) RecordBid(ev coremetrics.BidEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("auction_bid").
		AddTag("auction_id", ev.AuctionID).
		AddTag("volunteer_id", ev.VolunteerID).
		AddTag("accepted", strconv.FormatBool(ev.Accepted)).
		AddTag("component", "auction_coordinator").
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSolve writes the solver invocation.
func (s *InfluxSink) RecordSolve(ev coremetrics.SolveEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("routing_solve").
		AddTag("pickup_request_id", ev.PickupRequestID).
		AddTag("feasible", strconv.FormatBool(ev.Feasible)).
		AddTag("component", "route_solver").
		AddField("vehicles", ev.Vehicles).
		AddField("drop_offs", ev.DropOffs).
		AddField("routes", ev.Routes).
		AddField("duration_ms", ev.Duration.Milliseconds()).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordApply writes the committed inventory mutation summary.
func (s *InfluxSink) RecordApply(ev coremetrics.ApplyEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("routing_apply").
		AddTag("pickup_request_id", ev.PickupRequestID).
		AddTag("component", "route_applier").
		AddField("deliveries", ev.Deliveries).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOracleFallback writes the degraded travel lookup.
func (s *InfluxSink) RecordOracleFallback(ev coremetrics.OracleFallbackEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("travel_oracle_fallback").
		AddTag("component", "travel_oracle").
		AddField("origins", ev.Origins).
		AddField("destinations", ev.Destinations).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}
