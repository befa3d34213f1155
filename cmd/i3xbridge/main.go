// Package main implements the entry point for the i3X bridge: a
// read-only gateway that decodes MQTT telemetry into a typed entity
// graph and serves it over REST, SSE, and WebSocket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/i3xbridge/api"
	"github.com/c360/i3xbridge/codec"
	"github.com/c360/i3xbridge/config"
	"github.com/c360/i3xbridge/ingest"
	"github.com/c360/i3xbridge/mapping"
	"github.com/c360/i3xbridge/metric"
	"github.com/c360/i3xbridge/mqttclient"
	"github.com/c360/i3xbridge/pkg/buffer"
	"github.com/c360/i3xbridge/store"
	"github.com/c360/i3xbridge/subscription"
	"github.com/c360/i3xbridge/types"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "i3xbridge"
)

// storeGaugeInterval paces the store gauge refresh; sampling counters
// off the hot upsert path keeps ingest cheap.
const storeGaugeInterval = 10 * time.Second

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("bridge failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.Validate {
		fmt.Println("configuration is valid")
		return nil
	}

	logger := setupLogger(
		firstNonEmpty(cliCfg.LogLevel, cfg.Logging.Level),
		firstNonEmpty(cliCfg.LogFormat, cfg.Logging.Format))
	slog.SetDefault(logger)

	slog.Info("starting i3X bridge",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	bridge, err := buildBridge(cfg)
	if err != nil {
		return err
	}
	return bridge.run(cfg)
}

// bridge holds the wired runtime pieces.
type bridge struct {
	objects  *store.Store
	engine   *mapping.Engine
	pipeline *ingest.Pipeline
	subs     *subscription.Manager
	mqtt     *mqttclient.Client
	server   *api.Server
	metrics  *metric.Metrics
}

// buildBridge wires the full processing chain: store, catalogue seeds,
// mapping rules, codecs, pipeline, subscription fanout, MQTT transport,
// and the HTTP surface.
func buildBridge(cfg *config.Config) (*bridge, error) {
	registry := metric.NewMetricsRegistry()
	metrics := registry.CoreMetrics()

	objects := store.New()
	if err := seedCatalogues(cfg, objects); err != nil {
		return nil, err
	}

	engine := mapping.NewEngine()
	for _, rule := range cfg.Mappings {
		if err := engine.Add(rule); err != nil {
			return nil, fmt.Errorf("add mapping rule %q: %w", rule.ID, err)
		}
	}

	codecs := codec.NewBuiltinRegistry()
	pipeline := ingest.New(engine, codecs, objects, metrics)

	queueMetrics := buffer.NewQueueMetrics(
		registry.PrometheusRegistry(), "i3xbridge_subscription_queue")
	subs := subscription.NewManager(subscription.WithQueueMetrics(queueMetrics))
	objects.AddChangeListener(func(elementID string, value types.ObjectValue, _ *types.ObjectInstance) {
		subs.NotifyChange(elementID, value)
	})

	mqttClient, err := mqttclient.NewClient(cfg.MQTT, pipeline.HandleMessage, metrics)
	if err != nil {
		return nil, fmt.Errorf("create mqtt client: %w", err)
	}
	// Track topics before connecting; the connect handler replays them.
	for _, topic := range engine.SubscriptionTopics() {
		if err := mqttClient.Subscribe(topic); err != nil {
			return nil, fmt.Errorf("track topic %q: %w", topic, err)
		}
	}

	server, err := api.NewServer(cfg.Server, cfg.Auth, api.Deps{
		Objects:       objects,
		Subscriptions: subs,
		Engine:        engine,
		Pipeline:      pipeline,
		Broker:        mqttClient,
		Metrics:       metrics,
		Registry:      registry,
	})
	if err != nil {
		return nil, fmt.Errorf("create http server: %w", err)
	}

	return &bridge{
		objects:  objects,
		engine:   engine,
		pipeline: pipeline,
		subs:     subs,
		mqtt:     mqttClient,
		server:   server,
		metrics:  metrics,
	}, nil
}

// seedCatalogues registers the configured namespaces and object types.
func seedCatalogues(cfg *config.Config, objects *store.Store) error {
	for _, seed := range cfg.Namespaces {
		objects.RegisterNamespace(seed.Namespace())
	}
	for _, seed := range cfg.ObjectTypes {
		ot, err := seed.ObjectType()
		if err != nil {
			return fmt.Errorf("seed object type %q: %w", seed.ElementID, err)
		}
		if err := objects.RegisterObjectType(ot); err != nil {
			return fmt.Errorf("seed object type %q: %w", seed.ElementID, err)
		}
	}
	return nil
}

// run starts the transport and HTTP server and blocks until a shutdown
// signal or a fatal component error.
func (b *bridge) run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(b.server.Start)
	g.Go(func() error {
		b.refreshStoreGauges(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		b.shutdown(cfg.Server.ShutdownTimeout.Std())
		return nil
	})

	slog.Info("bridge started",
		"mapping_rules", b.engine.Len(),
		"subscription_topics", len(b.mqtt.Topics()))

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("bridge shutdown complete")
	return nil
}

// refreshStoreGauges mirrors store counts into prometheus gauges.
func (b *bridge) refreshStoreGauges(ctx context.Context) {
	ticker := time.NewTicker(storeGaugeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := b.objects.Stats()
			b.metrics.StoreValues.Set(float64(stats.Values))
			b.metrics.StoreInstances.Set(float64(stats.Instances))
			b.metrics.StoreRelationships.Set(float64(stats.Relationships))
		}
	}
}

func (b *bridge) shutdown(timeout time.Duration) {
	slog.Info("shutting down", "timeout", timeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := b.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	b.mqtt.Close(time.Second)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
