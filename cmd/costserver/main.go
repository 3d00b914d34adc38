package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intel/npu-nn-cost-model/pkg/config"
	"github.com/intel/npu-nn-cost-model/pkg/costservice"
	"github.com/intel/npu-nn-cost-model/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("VPUNN_CONFIG")
	flag.StringVar(&configPath, "config", configPath, "path to the YAML configuration file")

	klog.InitFlags(nil)
	flag.Parse()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := klog.FromContext(ctx)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	shutdownTracing, err := observability.InitTracing(cfg.Tracing, "vpunn-costserver")
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error(err, "shutting down tracing")
		}
	}()

	fetcher, err := cfg.Fetcher()
	if err != nil {
		return fmt.Errorf("building blob fetcher: %w", err)
	}
	registry := costservice.NewRegistry(cfg.ModelDir, fetcher, cfg.CostModelOptions()...)
	registry.MaxModels = cfg.MaxModels

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := costservice.NewMetrics(reg, registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	server := costservice.NewServer(registry, metrics)

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", cfg.Listen, err)
	}
	grpcServer := server.GRPCServer()

	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsServer := &http.Server{Addr: cfg.MetricsListen, Handler: mux}
		go func() {
			log.Info("serving metrics", "listen", cfg.MetricsListen)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "serving metrics")
			}
		}()
		defer metricsServer.Close()
	}

	go func() {
		for id, src := range cfg.Models {
			m, err := registry.Preload(ctx, id, src)
			if err != nil {
				log.Error(err, "preloading model", "id", id)
				continue
			}
			if !m.Initialized() {
				log.Info("preloaded model is not initialized, DPU costs will be analytical", "id", id)
			}
		}
		server.SetReady(true)
		log.Info("cost service ready", "models", registry.Len())
	}()

	go func() {
		<-ctx.Done()
		log.Info("shutting down costserver")
		grpcServer.GracefulStop()
	}()

	log.Info("Starting costserver", "listen", cfg.Listen)
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("serving GRPC: %w", err)
	}

	return nil
}
