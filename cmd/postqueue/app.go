package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BranchIntl/postqueue/config"
	"github.com/BranchIntl/postqueue/connector"
	"github.com/BranchIntl/postqueue/connector/facebook"
	"github.com/BranchIntl/postqueue/core"
	"github.com/BranchIntl/postqueue/metrics"
	"github.com/BranchIntl/postqueue/queue"
	"github.com/BranchIntl/postqueue/registry"
	"github.com/BranchIntl/postqueue/sinks/rabbitmq"
	"github.com/BranchIntl/postqueue/statistics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// facebookTarget is the publish target the Facebook connector is registered under
const facebookTarget = "facebook:main"

// app is the wired process: engine, connectors and observers
type app struct {
	cfg    config.Config
	logger *slog.Logger

	engine    *core.Engine
	registry  *registry.Registry
	facebook  *facebook.Connector
	simulator *facebook.Simulator

	metrics  *prometheus.Registry
	detach   []func()
	sink     *rabbitmq.Publisher
	sinkOpts []rabbitmq.Option
}

// newApp builds every component from cfg without touching the network
func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry.NewRegistry(),
		metrics:  prometheus.NewRegistry(),
	}

	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.NewCollector(a.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	stats, err := statistics.NewStatistics(cfg.StatisticsConfig())
	if err != nil {
		return nil, err
	}

	options := append(cfg.EngineOptions(),
		core.WithQueueOptions(queue.WithLogger(logger)),
		core.WithResultHandler(func(item queue.Item[core.PublishJob], result connector.PostResult) {
			collector.ObservePublish(result.Platform, result.Success)
		}),
	)
	a.engine = core.NewEngine(stats, a.registry, options...)

	if err := metrics.RegisterQueueDepth(a.metrics, a.engine.Queue()); err != nil {
		return nil, fmt.Errorf("failed to register queue depth: %w", err)
	}
	a.detach = append(a.detach, metrics.Instrument(collector, a.engine.Queue().Events()))

	a.simulator = facebook.NewSimulator(cfg.Facebook.SimulatorSeed, nil)
	fbOpts := []facebook.Option{
		facebook.WithLogger(logger),
		facebook.WithPageCacheTTL(cfg.Facebook.PageCacheTTL),
	}
	if cfg.Facebook.PageID != "" {
		fbOpts = append(fbOpts, facebook.WithPageID(cfg.Facebook.PageID))
	}
	a.facebook = facebook.New(cfg.Facebook.AuthConfig(), a.simulator, fbOpts...)

	if err := a.engine.Register(facebookTarget, a.facebook); err != nil {
		return nil, err
	}
	return a, nil
}

// connectSink dials RabbitMQ and forwards queue events when enabled
func (a *app) connectSink(ctx context.Context) error {
	if !a.cfg.Events.Enabled {
		return nil
	}

	opts := append([]rabbitmq.Option{rabbitmq.WithLogger(a.logger)}, a.sinkOpts...)
	a.sink = rabbitmq.NewPublisher(a.cfg.SinkOptions(), opts...)
	if err := a.sink.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect event sink: %w", err)
	}
	a.detach = append(a.detach, rabbitmq.Attach(a.sink, a.engine.Queue().Events(), a.logger))
	return nil
}

// authorize completes the OAuth handshake for the Facebook connector
func (a *app) authorize(ctx context.Context, code string) error {
	account, err := a.facebook.HandleAuthorizationCode(ctx, code)
	if err != nil {
		return err
	}
	page, _ := a.facebook.BoundPage()
	a.logger.Info("Facebook account connected",
		"account", account.Username,
		"page", page)
	return nil
}

// enqueueDemo adds n text posts for the Facebook target
func (a *app) enqueueDemo(n int) error {
	for i := 0; i < n; i++ {
		job := core.PublishJob{
			Target:  facebookTarget,
			Content: connector.PostContent{Text: fmt.Sprintf("postqueue demo post %d", i+1)},
		}
		if _, err := a.engine.Enqueue(job, i%3); err != nil {
			return err
		}
	}
	return nil
}

// close detaches observers and closes the sink
func (a *app) close() {
	for _, detach := range a.detach {
		detach()
	}
	a.detach = nil

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn("Failed to close event sink", "error", err)
		}
	}
}
