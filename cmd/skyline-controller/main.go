// Skyline Controller — оркестрирует pipelines airline-данных.
//
// Controller:
//   - Загружает определения pipelines из YAML
//   - Получает события хранилища из RabbitMQ и через webhook
//   - Запускает стадии (CloudFormation, Glue job, Glue crawler) и опрашивает их статус
//   - Ведёт Run Record в Postgres или в памяти
//   - Отдаёт HTTP API, /healthz и /metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Skyline/internal/api"
	"github.com/shaiso/Skyline/internal/cloud"
	"github.com/shaiso/Skyline/internal/config"
	"github.com/shaiso/Skyline/internal/mq"
	"github.com/shaiso/Skyline/internal/orchestrator"
	"github.com/shaiso/Skyline/internal/repo"
	"github.com/shaiso/Skyline/internal/scheduler"
	"github.com/shaiso/Skyline/internal/stages"
	"github.com/shaiso/Skyline/internal/telemetry"
)

var startTime = time.Now()

// runStore — хранилище, нужное контроллеру, API и восстановлению после рестарта.
type runStore interface {
	orchestrator.RunStore
	api.RunReader
	AbortStale(ctx context.Context, reason string, staleAfter time.Duration) (int, error)
}

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting skyline-controller")

	if err := run(logger); err != nil {
		logger.Error("controller failed", "error", err)
		os.Exit(1)
	}
	logger.Info("skyline-controller stopped")
}

func run(logger *slog.Logger) error {
	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 1. Конфигурация
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	specs, err := config.LoadPipelines(cfg.PipelinesFile)
	if err != nil {
		return err
	}
	logger.Info("pipelines loaded", "file", cfg.PipelinesFile, "count", len(specs))

	// 2. Run Record
	var store runStore
	if cfg.UseMemoryStore() {
		store = repo.NewMemoryRunStore()
		logger.Warn("using in-memory run store, runs are lost on restart")
	} else {
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		if err := repo.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database connected")

		store = repo.NewRunRepo(pool, instanceID())
	}

	// Runs, прерванные прошлым процессом: lease истёк, ресурсы никто не опрашивает
	if n, err := store.AbortStale(ctx, "aborted: controller restarted", cfg.RunLease); err != nil {
		logger.Warn("failed to abort stale runs", "error", err)
	} else if n > 0 {
		logger.Warn("aborted runs left by previous process", "count", n)
	}

	// 3. RabbitMQ (опционально)
	var mqConn *mq.Connection
	var notifier orchestrator.Notifier
	if cfg.RabbitMQURL != "" {
		mqConn, err = mq.NewConnection(mq.ConnectionConfig{
			URL:    cfg.RabbitMQURL,
			Name:   "skyline-controller",
			Logger: logger,
		})
		if err != nil {
			logger.Warn("RabbitMQ not available, running in HTTP-only mode", "error", err)
			mqConn = nil
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			notifier = mq.NewPublisher(mqConn, logger)
		}
	}

	// 4. AWS-сервисы и адаптеры стадий
	awsCfg, err := cloud.LoadConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return err
	}
	clients := cloud.NewClients(awsCfg)
	registry := stages.DefaultRegistry(stages.Services{
		Jobs:     clients.Glue,
		Crawlers: clients.Glue,
		Stacks:   clients.Stacks,
	})

	// 5. Контроллер на каждый pipeline
	ctrls := make([]*orchestrator.Controller, 0, len(specs))
	for _, spec := range specs {
		ctrl, err := orchestrator.New(orchestrator.Config{
			Pipeline:  spec.Pipeline(),
			Store:     store,
			Registry:  registry,
			Notifier:  notifier,
			Heartbeat: cfg.RunLease / 4,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("pipeline %s: %w", spec.Name, err)
		}
		ctrls = append(ctrls, ctrl)
	}
	dispatcher := orchestrator.NewDispatcher(logger, ctrls...)

	g, gctx := errgroup.WithContext(ctx)

	// 6. Consumer событий хранилища
	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:   mq.QueueEventsStorage,
			Handler: dispatcher.HandleMessage,
		})
		g.Go(func() error {
			return ignoreCanceled(consumer.Run(gctx))
		})
	}

	// 7. Расписания
	if cfg.Scheduler {
		sched, err := scheduler.New(scheduler.Config{
			Trigger:   dispatcher,
			Schedules: config.Schedules(specs),
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return ignoreCanceled(sched.Run(gctx))
		})
	}

	// 8. HTTP: API + /healthz + /metrics
	handler := api.NewHandler(api.Config{
		Runs:       store,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}

		// Активные runs завершаются как aborted и сохраняются
		dispatcher.Stop()
		dispatcher.Wait()
		return nil
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// instanceID — идентификатор экземпляра контроллера для поля owner.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "skyline-controller"
	}
	return host + "-" + uuid.NewString()[:8]
}
