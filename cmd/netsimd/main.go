// netsimd runs the operational surface around one or more in-memory
// network simulator universes: a gRPC health check service and a
// Prometheus /metrics endpoint. The simulated DHT transport itself stays
// in-process; this binary exists only so an operator or orchestrator has
// something to poll.
//
// Usage:
//
//	go run ./cmd/netsimd                      # defaults
//	go run ./cmd/netsimd -config netsim.yaml  # load overrides
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/jeeves-cluster-organization/netsim/netsim"
	"github.com/jeeves-cluster-organization/netsim/netsim/admin"
	"github.com/jeeves-cluster-organization/netsim/netsim/config"
	"github.com/jeeves-cluster-organization/netsim/netsim/observability"
)

func main() {
	configPath := flag.String("config", "", "path to a netsim.yaml config file (optional)")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("netsimd: loading config: %v", err)
		}
		cfg = loaded
	}

	logger := netsim.DefaultLogger()
	logger.Info("netsimd_starting", "admin_addr", cfg.AdminAddr, "metrics_addr", cfg.MetricsAddr)

	var shutdownTracer func(context.Context) error
	if cfg.TracingEnabled {
		fn, err := observability.InitTracer("netsimd", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing_init_failed", "error", err.Error())
		} else {
			shutdownTracer = fn
		}
	}

	registry := netsim.NewRegistry(
		func(name string) netsim.Logger { return netsim.DefaultLogger() },
		func(name string) netsim.Recorder {
			if !cfg.MetricsEnabled && !cfg.TracingEnabled {
				return nil
			}
			var recorders observability.MultiRecorder
			if cfg.MetricsEnabled {
				recorders = append(recorders, observability.NewRecorder(name))
			}
			if cfg.TracingEnabled {
				recorders = append(recorders, observability.NewTracingRecorder(name))
			}
			return recorders
		},
		cfg.ReconciliationEnabled,
	)

	healthService := admin.NewHealthService(registry)

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthService.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.AdminAddr)
	if err != nil {
		log.Fatalf("netsimd: listening on %s: %v", cfg.AdminAddr, err)
	}

	go func() {
		logger.Info("admin_grpc_listening", "addr", cfg.AdminAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("admin_grpc_serve_failed", "error", err.Error())
		}
	}()

	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Info("metrics_http_listening", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics_http_failed", "error", err.Error())
			}
		}()
	}

	syncCtx, cancelSync := context.WithCancel(context.Background())
	go admin.RunSyncLoop(syncCtx, healthService, 5*time.Second)
	if cfg.MetricsEnabled {
		go observability.RunSyncLoop(syncCtx, registry, 5*time.Second)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("netsimd running (admin %s, metrics %s)\n", cfg.AdminAddr, cfg.MetricsAddr)
	fmt.Println("Press Ctrl+C to stop")

	sig := <-sigCh
	logger.Info("shutdown_signal_received", "signal", sig.String())

	cancelSync()
	grpcServer.GracefulStop()
	if shutdownTracer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracing_shutdown_failed", "error", err.Error())
		}
	}
	logger.Info("netsimd_stopped")
}
