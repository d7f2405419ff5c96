// Package app assembles the dispatch service from its configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/foodbridge/dispatch/config"
	"github.com/foodbridge/dispatch/core/auction"
	coremetrics "github.com/foodbridge/dispatch/core/metrics"
	"github.com/foodbridge/dispatch/core/routing"
	"github.com/foodbridge/dispatch/core/storage"
	"github.com/foodbridge/dispatch/core/travel"
	"github.com/foodbridge/dispatch/infra/logger"
	"github.com/foodbridge/dispatch/infra/metrics"
	"github.com/foodbridge/dispatch/infra/notify"
	"github.com/foodbridge/dispatch/infra/ors"
	"github.com/foodbridge/dispatch/infra/store"
	"github.com/foodbridge/dispatch/internal/eventbus"
)

// Service orchestrates the auction coordinator and the route solver.
type Service struct {
	Coordinator *auction.Coordinator
	Router      *routing.Service
	Store       storage.Store

	bus      *eventbus.Bus
	notifier *notify.Notifier
	pub      notify.Publisher
	log      logger.Logger

	promEnabled bool
	promAddr    string
	sweepEvery  time.Duration
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var st storage.Store
	switch cfg.Store.Backend {
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		st = s
	default:
		st = store.NewMemory()
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.Prometheus.Enabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.Influx.Enabled {
		sink := metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.Influx.URL,
			cfg.Metrics.Influx.Token,
			cfg.Metrics.Influx.Org,
			cfg.Metrics.Influx.Bucket,
		)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	oracle := travel.NewResilient(
		ors.New(cfg.ORS.APIKey, ors.WithBaseURL(cfg.ORS.BaseURL), ors.WithProfile(cfg.ORS.Profile)),
		cfg.Auction.PenaltyMinutes,
		logger.New("travel"),
		sink,
	)

	bus := eventbus.New()
	window := time.Duration(cfg.Auction.WindowSeconds) * time.Second
	coord := auction.New(st, oracle, logger.New("auction"),
		auction.WithWindow(window),
		auction.WithPenalty(cfg.Auction.PenaltyMinutes),
		auction.WithSink(sink),
		auction.WithBus(bus),
	)
	router := routing.NewService(st, oracle, logger.New("routing"), sink, cfg.Routing.PoolSize)

	svc := &Service{
		Coordinator: coord,
		Router:      router,
		Store:       st,
		bus:         bus,
		log:         logg,
		promEnabled: cfg.Metrics.Prometheus.Enabled,
		promAddr:    cfg.Metrics.Prometheus.Addr,
		sweepEvery:  window / 4,
	}
	if svc.sweepEvery < time.Second {
		svc.sweepEvery = time.Second
	}

	if cfg.MQTT.Enabled {
		pub, err := notify.NewMqttClient(cfg.MQTT.Broker, cfg.MQTT.ClientID, nil)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.pub = pub
		svc.notifier = notify.NewNotifier(pub, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, logger.New("notify"))
	}
	return svc, nil
}

// Run starts the background workers and blocks until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.notifier != nil {
		s.notifier.Run(s.bus)
	}
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep settles every auction whose bidding window has passed. Process
// is at-most-once, so a concurrent caller racing the sweep is harmless.
func (s *Service) sweep(ctx context.Context) {
	active, err := s.Coordinator.ListActive(ctx)
	if err != nil {
		s.log.Errorf("list active auctions: %v", err)
		return
	}
	now := time.Now()
	for _, a := range active {
		if !a.Expired(now) {
			continue
		}
		if _, err := s.Coordinator.Process(ctx, a.ID); err != nil {
			s.log.Warnf("process auction %s: %v", a.ID, err)
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.notifier != nil {
		s.notifier.Stop()
	}
	if s.pub != nil {
		s.pub.Close()
	}
	s.bus.Close()
	if c, ok := s.Store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
