// Skyline Listener — пересылает bucket notifications MinIO/S3 в RabbitMQ.
//
// Listener не фильтрует события: каждое ObjectCreated публикуется
// в skyline.events, решение о запуске принимает контроллер.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Skyline/internal/config"
	"github.com/shaiso/Skyline/internal/mq"
	"github.com/shaiso/Skyline/internal/telemetry"
	"github.com/shaiso/Skyline/internal/trigger"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting skyline-listener")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// MinIO
	client, err := trigger.NewMinIOClient(trigger.MinIOConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Region:    cfg.MinIO.Region,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		logger.Error("failed to create minio client", "error", err)
		os.Exit(1)
	}

	// RabbitMQ обязателен: без него событиям некуда идти
	mqConn, err := mq.NewConnection(mq.ConnectionConfig{
		URL:    cfg.RabbitMQURL,
		Name:   "skyline-listener",
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}

	listener := trigger.NewListener(trigger.ListenerConfig{
		Source: client,
		Sink:   mq.NewPublisher(mqConn, logger),
		Bucket: cfg.MinIO.Bucket,
		Prefix: cfg.MinIO.Prefix,
		Logger: logger,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("rabbitmq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("listening", "addr", cfg.Addr())
		if err := http.ListenAndServe(cfg.Addr(), mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("listener failed", "error", err)
		os.Exit(1)
	}

	logger.Info("skyline-listener stopped")
}
