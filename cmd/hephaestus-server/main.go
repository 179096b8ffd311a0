// Command hephaestus-server runs Hephaestus's REST and gRPC transports
// side by side over a shared internal/service facade, grounded on
// apps/ReleaseParty/backend/cmd/releaseparty-api/main.go's signal-driven
// graceful shutdown.
package main

import (
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"google.golang.org/grpc"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/silexa/hephaestus/internal/audit"
	"github.com/silexa/hephaestus/internal/auth"
	"github.com/silexa/hephaestus/internal/config"
	"github.com/silexa/hephaestus/internal/plugin"
	"github.com/silexa/hephaestus/internal/service"
	"github.com/silexa/hephaestus/internal/task"
	"github.com/silexa/hephaestus/internal/telemetry"
	grpctransport "github.com/silexa/hephaestus/transport/grpc"
	"github.com/silexa/hephaestus/transport/rest"
)

// version is overridden at build time with -ldflags.
var version = "dev"

func main() {
	logger := log.New(os.Stdout, "hephaestus-server ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ks, err := auth.LoadKeystore(cfg.ServiceAccountKeysPath)
	if err != nil {
		logger.Fatalf("keystore: %v", err)
	}
	auditLog, err := audit.Open(cfg.AuditLogDir)
	if err != nil {
		logger.Fatalf("audit: %v", err)
	}
	defer auditLog.Close()

	registry, err := loadPluginRegistry(cfg.PluginManifestPath)
	if err != nil {
		logger.Fatalf("plugin manifest: %v", err)
	}

	sink := buildSink(cfg.TelemetryEnabled, logger)

	tasks := task.NewManager(4, cfg.TaskCapacity, cfg.TaskRetention)
	defer tasks.Close()
	facade := service.New(tasks, sink)

	restSrv := rest.New(facade, ks, auditLog, logger, version).WithRegistry(registry)
	grpcSrv := grpctransport.New(facade, ks, auditLog, logger, version).WithRegistry(registry)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           restSrv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	gs := grpc.NewServer(
		grpc.UnaryInterceptor(grpcSrv.UnaryInterceptor()),
		grpc.StreamInterceptor(grpcSrv.StreamInterceptor()),
	)
	grpcSrv.Register(gs)

	grpcAddr := grpcAddrFrom(cfg.Addr)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Fatalf("grpc listen: %v", err)
	}

	go func() {
		logger.Printf("REST listening on %s", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("rest server: %v", err)
		}
	}()
	go func() {
		logger.Printf("gRPC listening on %s", grpcAddr)
		if err := gs.Serve(lis); err != nil {
			logger.Fatalf("grpc server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Printf("shutting down...")
	_ = httpSrv.Close()
	gs.GracefulStop()
}

// loadPluginRegistry loads .hephaestus/plugins.toml into a registry, per
// spec.md §4.5. A missing manifest is not fatal: guard-rails requests
// with use_plugins=true simply fail closed per internal/guardrails's own
// "registry required" check, and the legacy fixed sequence is unaffected.
func loadPluginRegistry(manifestPath string) (*plugin.Registry, error) {
	manifest, err := plugin.LoadManifest(manifestPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return plugin.Discover(manifest, nil)
}

// buildSink wires a real OTel SDK tracer/meter provider when telemetry is
// enabled. No exporter is attached — nothing in the retrieved pack names
// an OTLP or stdout exporter dependency to ground one on — so spans and
// metrics are recorded in-process and discarded, consistent with
// internal/telemetry's contract that emission must never fail the caller.
func buildSink(enabled bool, logger *log.Logger) *telemetry.Sink {
	if !enabled {
		return telemetry.NewDisabled()
	}
	tp := sdktrace.NewTracerProvider()
	mp := sdkmetric.NewMeterProvider()
	return telemetry.New(true, tp, mp, telemetry.WithLogger(logger))
}

// grpcAddrFrom derives the gRPC listen address from the REST address by
// incrementing the port, so HEPHAESTUS_ADDR alone configures both
// transports for the common single-host deployment.
func grpcAddrFrom(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return addr
	}
	return net.JoinHostPort(host, strconv.Itoa(n+1))
}
