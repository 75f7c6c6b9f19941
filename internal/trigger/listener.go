package trigger

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/telemetry"
)

// NotificationSource — источник bucket notifications. *minio.Client удовлетворяет ему.
type NotificationSource interface {
	ListenBucketNotification(ctx context.Context, bucketName, prefix, suffix string, events []string) <-chan notification.Info
}

// EventSink принимает события для доставки контроллеру (обычно mq.Publisher).
type EventSink interface {
	PublishStorageEvent(ctx context.Context, ev domain.TriggerEvent) error
}

// ListenerConfig — конфигурация Listener.
type ListenerConfig struct {
	// Source — клиент MinIO/S3.
	Source NotificationSource

	// Sink — куда публиковать события.
	Sink EventSink

	// Bucket — отслеживаемый bucket.
	Bucket string

	// Prefix — отслеживаемый префикс (пусто — весь bucket).
	Prefix string

	// Events — типы событий (default: s3:ObjectCreated:*).
	Events []string

	// RetryDelay — пауза перед переподключением, если поток уведомлений закрылся (default: 5s).
	RetryDelay time.Duration

	// Logger
	Logger *slog.Logger
}

// Listener пересылает bucket notifications в EventSink.
//
// Фильтрация не выполняется: решение принимает контроллер.
type Listener struct {
	source     NotificationSource
	sink       EventSink
	bucket     string
	prefix     string
	events     []string
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewListener создаёт Listener.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.Events) == 0 {
		cfg.Events = []string{"s3:ObjectCreated:*"}
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	return &Listener{
		source:     cfg.Source,
		sink:       cfg.Sink,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		events:     cfg.Events,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
	}
}

// Run слушает уведомления до отмены ctx.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("listening for bucket notifications",
		"bucket", l.bucket,
		"prefix", l.prefix,
		"events", l.events,
	)

	for {
		l.consume(ctx, l.source.ListenBucketNotification(ctx, l.bucket, l.prefix, "", l.events))

		if ctx.Err() != nil {
			return nil
		}

		l.logger.Warn("notification stream closed, reconnecting", "delay", l.retryDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) consume(ctx context.Context, ch <-chan notification.Info) {
	for info := range ch {
		if info.Err != nil {
			telemetry.ListenerEvents.WithLabelValues("error").Inc()
			l.logger.Error("bucket notification error", "error", info.Err)
			continue
		}

		for _, ev := range FromNotification(info.Records, time.Now()) {
			if err := l.sink.PublishStorageEvent(ctx, ev); err != nil {
				telemetry.ListenerEvents.WithLabelValues("publish_error").Inc()
				l.logger.Error("failed to publish storage event",
					"source_location", ev.SourceLocation,
					"error", err,
				)
				continue
			}

			telemetry.ListenerEvents.WithLabelValues("published").Inc()
			l.logger.Debug("storage event published",
				"bucket", ev.Bucket,
				"source_location", ev.SourceLocation,
				"event_type", ev.EventType,
			)
		}
	}
}

// MinIOConfig — параметры подключения к MinIO/S3.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// NewMinIOClient создаёт клиента MinIO со статическими ключами.
func NewMinIOClient(cfg MinIOConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	}
}
