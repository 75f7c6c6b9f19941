package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeEvents Exchange = "skyline.events"
	ExchangeRuns   Exchange = "skyline.runs"
	ExchangeDLQ    Exchange = "skyline.dlq"
)

// Queues — имена очередей.
const (
	QueueEventsStorage Queue = "events.storage"
	QueueRunsFinished  Queue = "runs.finished"
	QueueDLQEvents     Queue = "dlq.events"
)

// Routing keys.
const (
	RoutingKeyStorage   RoutingKey = "storage"
	RoutingKeyFinished  RoutingKey = "finished"
	RoutingKeyDLQEvents RoutingKey = "events"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

var (
	exchanges = []exchangeDecl{
		{ExchangeEvents, amqp.ExchangeDirect},
		{ExchangeRuns, amqp.ExchangeDirect},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	queues = []queueDecl{
		// events.storage — повторно упавшие события уходят в dlq.events
		{QueueEventsStorage, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQEvents),
		}},
		// runs.finished — для внешнего alerting
		{QueueRunsFinished, nil},
		{QueueDLQEvents, nil},
	}

	bindings = []bindingDecl{
		{QueueEventsStorage, RoutingKeyStorage, ExchangeEvents},
		{QueueRunsFinished, RoutingKeyFinished, ExchangeRuns},
		{QueueDLQEvents, RoutingKeyDLQEvents, ExchangeDLQ},
	}
)

// SetupTopology объявляет exchanges, очереди и bindings. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range exchanges {
			// durable, не auto-delete, не internal
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range queues {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range bindings {
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Skyline RabbitMQ Topology:

    skyline.events (direct)
    └── events.storage [routing: storage]
            Producers: skyline-listener, webhooks
            Consumer:  skyline-controller
            DLQ: dlq.events

    skyline.runs (direct)
    └── runs.finished [routing: finished]
            Producer: skyline-controller
            Consumer: alerting

    skyline.dlq (direct)
    └── dlq.events [routing: events]
            Manual processing
  `
}
