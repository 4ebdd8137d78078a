// Package app assembles the dispatch service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	dispatchapi "github.com/kilianp07/carrierchain/api/dispatch"
	"github.com/kilianp07/carrierchain/app/plugins"
	"github.com/kilianp07/carrierchain/config"
	"github.com/kilianp07/carrierchain/core/dispatch"
	dispatchlog "github.com/kilianp07/carrierchain/core/dispatch/logging"
	"github.com/kilianp07/carrierchain/core/events"
	coremetrics "github.com/kilianp07/carrierchain/core/metrics"
	"github.com/kilianp07/carrierchain/core/store"
	"github.com/kilianp07/carrierchain/infra/cache"
	"github.com/kilianp07/carrierchain/infra/logger"
	"github.com/kilianp07/carrierchain/infra/metrics"
	"github.com/kilianp07/carrierchain/infra/monitoring"
	"github.com/kilianp07/carrierchain/infra/mqtt"
	"github.com/kilianp07/carrierchain/internal/eventbus"
)

const (
	eventBuffer     = 256
	shutdownTimeout = 5 * time.Second
)

// Service wires the store, the dispatch manager and its transports.
type Service struct {
	Manager   *dispatch.Manager
	Generator *dispatch.Generator
	Sweeper   *dispatch.Sweeper
	Store     store.Store

	cfg      *config.Config
	client   *mqtt.PahoClient
	bus      *eventbus.TypedBus[events.Event]
	timeline dispatchlog.LogStore
	sink     coremetrics.MetricsSink
	flush    func()
	log      logger.Logger
}

// New creates a Service from the configuration. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config) (svc *Service, err error) {
	logger.SetGlobalLevel(cfg.LogLevel)
	logg := logger.New("service")
	s := &Service{cfg: cfg, log: logg, flush: func() {}}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	flush, err := monitoring.Setup(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	s.flush = flush
	backend, err := plugins.NewStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	s.Store = backend
	cached := cache.Wrap(backend, cfg.Cache)

	if cfg.MQTT.Enabled() {
		if s.client, err = mqtt.NewPahoClient(cfg.MQTT, logger.New("mqtt")); err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
	}
	deps := plugins.Deps{MQTT: s.client, Logger: logg}
	notifier, err := plugins.NewNotifier(cfg.Components.Notifier, deps)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}
	fallback, err := plugins.NewFallback(cfg.Components.Fallback, deps)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	logg.Debugf("metrics sink records %s", strings.Join(coremetrics.Recorders(s.sink), ", "))
	if s.timeline, err = plugins.NewLogStore(cfg.Logging); err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}

	s.bus = eventbus.NewTyped[events.Event](eventbus.WithBuffer(eventBuffer))
	s.Generator = dispatch.NewGenerator(cached, nil, cfg.Dispatch, logger.New("chain"))
	s.Manager, err = dispatch.NewManager(backend, s.Generator, notifier, cfg.Dispatch,
		dispatch.WithFallback(fallback),
		dispatch.WithPublisher(s.bus),
		dispatch.WithMetrics(s.sink),
		dispatch.WithLogger(logger.New("dispatch")),
	)
	if err != nil {
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}
	s.Sweeper = dispatch.NewSweeper(s.Manager, logger.New("sweeper"))
	return s, nil
}

// Handler returns the dispatch API.
func (s *Service) Handler() http.Handler {
	return dispatchapi.NewRouter(dispatchapi.API{
		Manager:   s.Manager,
		Generator: s.Generator,
		Orders:    s.Store,
		Sweeper:   s.Sweeper,
		Timeline:  s.timeline,
		Logger:    logger.New("api"),
	}, s.cfg.HTTP.Token)
}

// HandleResponse applies a carrier answer received from the broker.
func (s *Service) HandleResponse(ctx context.Context, msg mqtt.ResponseMessage) {
	res := s.Manager.Respond(ctx, msg.OrderID, msg.CarrierID, msg.Outcome, msg.Data)
	if res.Error != nil {
		s.log.Warnf("response from %s on order %s: %v", msg.CarrierID, msg.OrderID, res.Error)
		return
	}
	if res.Escalation != nil && !res.Escalation.Success {
		s.log.Errorf("escalate order %s: %v", msg.OrderID, res.Escalation.Error)
	}
}

// Run starts the timeline recorder, the response listener, the timeout
// sweeper and the HTTP listeners. It blocks until ctx is cancelled or one of
// them fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.client != nil {
		if err := s.client.ListenResponses(ctx, s.HandleResponse); err != nil {
			return fmt.Errorf("listen responses: %w", err)
		}
	}

	if s.timeline != nil {
		rec := dispatchlog.NewRecorder(s.timeline, logger.New("timeline"))
		sub := s.bus.Subscribe()
		g.Go(func() error {
			rec.Run(ctx, sub)
			return nil
		})
	}
	g.Go(func() error {
		s.Sweeper.Start(ctx)
		return nil
	})
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		g.Go(func() error {
			return metrics.StartPromServer(ctx, port, logger.New("metrics"))
		})
	}

	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		s.log.Infof("dispatch API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.client != nil {
		s.client.Disconnect()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.timeline != nil {
		errs = append(errs, s.timeline.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	s.flush()
	return errors.Join(errs...)
}
