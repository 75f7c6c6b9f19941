package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Skyline/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeStorageEvent MessageType = "storage.event"
	MessageTypeRunFinished  MessageType = "run.finished"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// StorageEventPayload — событие хранилища для контроллера.
type StorageEventPayload struct {
	Bucket         string    `json:"bucket,omitempty"`
	SourceLocation string    `json:"source_location"`
	EventType      string    `json:"event_type"`
	Manual         bool      `json:"manual,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}

// Event преобразует payload в domain.TriggerEvent.
func (p StorageEventPayload) Event() domain.TriggerEvent {
	return domain.TriggerEvent{
		Bucket:         p.Bucket,
		SourceLocation: p.SourceLocation,
		EventType:      p.EventType,
		Manual:         p.Manual,
		ReceivedAt:     p.ReceivedAt,
	}
}

// StageSummary — краткий итог стадии в run.finished.
type StageSummary struct {
	Name        string              `json:"name"`
	Kind        domain.StageKind    `json:"kind"`
	Outcome     domain.StageOutcome `json:"outcome"`
	FinalStatus string              `json:"final_status,omitempty"`
	Attempts    int                 `json:"attempts"`
}

// RunFinishedPayload — итог run для alerting.
type RunFinishedPayload struct {
	RunID         uuid.UUID         `json:"run_id"`
	Pipeline      string            `json:"pipeline"`
	TriggerSource string            `json:"trigger_source"`
	Outcome       domain.RunOutcome `json:"outcome"`
	FailedStage   string            `json:"failed_stage,omitempty"`
	Error         string            `json:"error,omitempty"`
	DurationMs    int64             `json:"duration_ms"`
	Stages        []StageSummary    `json:"stages"`
}

// NewRunFinishedPayload собирает payload из завершённого run.
func NewRunFinishedPayload(run *domain.Run) RunFinishedPayload {
	p := RunFinishedPayload{
		RunID:         run.ID,
		Pipeline:      run.Pipeline,
		TriggerSource: run.TriggerSource,
		Outcome:       run.Outcome,
		FailedStage:   run.FailedStage,
		Error:         run.Error,
		DurationMs:    run.Duration().Milliseconds(),
		Stages:        make([]StageSummary, 0, len(run.Stages)),
	}
	for _, s := range run.Stages {
		p.Stages = append(p.Stages, StageSummary{
			Name:        s.StageName,
			Kind:        s.Kind,
			Outcome:     s.Outcome,
			FinalStatus: s.FinalStatus,
			Attempts:    s.Attempts,
		})
	}
	return p
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// NewMessage упаковывает payload в конверт.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   body,
		Timestamp: time.Now(),
	}, nil
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishStorageEvent публикует событие хранилища.
// Потребитель: skyline-controller.
func (p *Publisher) PublishStorageEvent(ctx context.Context, ev domain.TriggerEvent) error {
	msg, err := NewMessage(MessageTypeStorageEvent, StorageEventPayload{
		Bucket:         ev.Bucket,
		SourceLocation: ev.SourceLocation,
		EventType:      ev.EventType,
		Manual:         ev.Manual,
		ReceivedAt:     ev.ReceivedAt,
	})
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeEvents, RoutingKeyStorage, msg)
}

// PublishRunFinished публикует итог run.
// Потребитель: alerting.
func (p *Publisher) PublishRunFinished(ctx context.Context, run *domain.Run) error {
	msg, err := NewMessage(MessageTypeRunFinished, NewRunFinishedPayload(run))
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeRuns, RoutingKeyFinished, msg)
}
