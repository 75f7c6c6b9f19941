// Package mq — транспорт Skyline поверх RabbitMQ.
//
//   - connection.go — соединение с переподключением
//   - topology.go   — exchanges, очереди, bindings
//   - publisher.go  — конверт Message и публикация
//   - consumer.go   — потребление с ack/nack
//
// Типы сообщений:
//   - storage.event — событие хранилища (listener, webhook → контроллер)
//   - run.finished  — итог run (контроллер → alerting)
package mq
