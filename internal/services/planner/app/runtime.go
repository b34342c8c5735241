// Package app wires the planner process: durable store, mutation
// orchestrator, reminder scheduler, gRPC health and the MCP transport.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/amaya/internal/platform/config"
	"github.com/louisbranch/amaya/internal/platform/timeouts"
	mcpservice "github.com/louisbranch/amaya/internal/services/planner/mcp/service"
	"github.com/louisbranch/amaya/internal/services/planner/notify"
	"github.com/louisbranch/amaya/internal/services/planner/orchestrator"
	"github.com/louisbranch/amaya/internal/services/planner/render"
	"github.com/louisbranch/amaya/internal/services/planner/scheduler"
	"github.com/louisbranch/amaya/internal/services/planner/storage/sqlite"
)

var listenTCP = net.Listen

// HealthService is the gRPC health service name that turns SERVING once
// reminder recovery has finished.
const HealthService = "planner.scheduler"

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportNone  = "none"
)

// Notifier kinds.
const (
	NotifierLog     = "log"
	NotifierWebhook = "webhook"
)

const (
	defaultPlannerDB  = "data/planner.db"
	defaultHealthPort = 8790
)

// RuntimeConfig controls planner startup and its collaborators.
type RuntimeConfig struct {
	DBPath          string
	ViewPath        string
	Timezone        string
	Locale          string
	OwnerID         string
	MaxAttempts     int
	RetryBackoff    time.Duration
	RetryMaxDelay   time.Duration
	DeliveryTimeout time.Duration

	HealthPort int

	Transport    string
	HTTPAddr     string
	AllowedHosts []string
	Bearer       *mcpservice.BearerConfig

	NotifierKind string
	WebhookURL   string
	WebhookToken string
	// Notifier replaces the configured notifier kind when set.
	Notifier notify.Notifier
}

// Run starts the planner and blocks until ctx is canceled or a component
// fails. A stdio transport also stops the process when the client hangs up.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultPlannerDB
	}
	if cfg.HealthPort < 0 {
		return fmt.Errorf("health port must not be negative")
	}
	if cfg.HealthPort == 0 {
		cfg.HealthPort = defaultHealthPort
	}
	transport := strings.ToLower(strings.TrimSpace(cfg.Transport))
	if transport == "" {
		transport = TransportStdio
	}
	switch transport {
	case TransportStdio, TransportHTTP, TransportNone:
	default:
		return fmt.Errorf("unknown MCP transport %q", cfg.Transport)
	}

	location, err := config.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}
	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create planner storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open planner sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close planner sqlite store: %v", closeErr)
		}
	}()

	orch, err := orchestrator.New(orchestrator.Config{
		Store:         store,
		Location:      location,
		Locale:        cfg.Locale,
		ViewPath:      cfg.ViewPath,
		MaxAttempts:   cfg.MaxAttempts,
		RetryBackoff:  cfg.RetryBackoff,
		RetryMaxDelay: cfg.RetryMaxDelay,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}
	printer, _ := render.NewPrinter(cfg.Locale)
	sched, err := scheduler.New(scheduler.Config{
		Recorder:        orch,
		Notifier:        notifier,
		Localizer:       printer,
		Location:        location,
		OwnerID:         cfg.OwnerID,
		DeliveryTimeout: cfg.DeliveryTimeout,
	})
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	orch.UseTimers(sched)

	listener, err := listenTCP("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		return fmt.Errorf("listen on planner health port %d: %w", cfg.HealthPort, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()
	log.Printf("planner health server listening at %v", listener.Addr())

	if _, err := sched.Recover(ctx, store); err != nil {
		return fmt.Errorf("recover reminders: %w", err)
	}
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Go(func() {
		if err := sched.Run(runCtx); err != nil {
			errs <- fmt.Errorf("scheduler: %w", err)
		}
		cancel()
	})
	wg.Go(func() {
		if err := serveMCP(runCtx, transport, cfg, orch, store); err != nil {
			errs <- err
		}
		cancel()
	})
	wg.Wait()
	close(errs)
	return <-errs
}

func serveMCP(ctx context.Context, transport string, cfg RuntimeConfig, orch *orchestrator.Orchestrator, store *sqlite.Store) error {
	if transport == TransportNone {
		<-ctx.Done()
		return nil
	}
	server, err := mcpservice.New(mcpservice.Config{Planner: orch, Search: store})
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}
	if transport == TransportStdio {
		return server.RunStdio(ctx)
	}
	httpTransport, err := mcpservice.NewHTTPTransport(server, mcpservice.HTTPConfig{
		Addr:         cfg.HTTPAddr,
		AllowedHosts: cfg.AllowedHosts,
		Bearer:       cfg.Bearer,
	})
	if err != nil {
		return fmt.Errorf("create MCP http transport: %w", err)
	}
	return httpTransport.Serve(ctx)
}

func newNotifier(cfg RuntimeConfig) (notify.Notifier, error) {
	if cfg.Notifier != nil {
		return cfg.Notifier, nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.NotifierKind)) {
	case "", NotifierLog:
		return notify.Log{}, nil
	case NotifierWebhook:
		timeout := cfg.DeliveryTimeout
		if timeout <= 0 {
			timeout = timeouts.Delivery
		}
		webhook, err := notify.NewWebhook(cfg.WebhookURL, cfg.WebhookToken, &http.Client{Timeout: timeout})
		if err != nil {
			return nil, fmt.Errorf("create webhook notifier: %w", err)
		}
		return webhook, nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.NotifierKind)
	}
}
