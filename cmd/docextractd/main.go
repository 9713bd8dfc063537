package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/document-extractor/internal/app"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/export"
	"github.com/joseph-ayodele/document-extractor/internal/server"
)

var version = "dev"

func main() {
	cfg, err := common.LoadConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logger := common.NewLogger(common.LogConfig{}, os.Stderr)
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.Build(ctx, cfg, app.Options{Registerer: reg}, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	svc := server.NewService(server.Deps{
		Orchestrator: a.Orchestrator,
		Batch:        a.Batch,
		Store:        a.Store,
		Exporter:     export.NewService(a.Store, logger),
		LLM:          a.Ollama,
		Version:      version,
	}, logger)

	// gRPC
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer, _ := server.NewGRPCServer(svc, logger)
	reflection.Register(grpcServer)
	go func() {
		logger.Info("grpc.listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve error", "error", err)
			stop()
		}
	}()

	// HTTP
	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: server.NewHTTPHandler(svc,
			server.HTTPConfig{MaxUploadBytes: cfg.Pipeline.MaxFileSizeBytes() * int64(cfg.Batch.MaxDocuments)},
			promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http.listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
}
