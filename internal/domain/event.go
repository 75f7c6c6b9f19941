package domain

import "time"

// Источники ручного запуска.
const (
	SourceManual   = "manual"
	SourceSchedule = "schedule"
)

// TriggerEvent — входящее событие, которое может запустить pipeline.
type TriggerEvent struct {
	// Bucket — bucket, в котором изменился объект. Пусто для ручных событий.
	Bucket string `json:"bucket,omitempty"`

	// SourceLocation — ключ (логический путь) изменённого объекта.
	SourceLocation string `json:"source_location"`

	// EventType — тип события, например "put" или "s3:ObjectCreated:Put".
	EventType string `json:"event_type"`

	// Manual — ручной или плановый запуск; обходит проверку путей, но не дедупликацию.
	Manual bool `json:"manual,omitempty"`

	// ReceivedAt — время получения события.
	ReceivedAt time.Time `json:"received_at"`
}

// Source возвращает идентификатор источника для Run.TriggerSource.
func (e TriggerEvent) Source() string {
	if e.SourceLocation != "" {
		return e.SourceLocation
	}
	if e.Manual {
		return SourceManual
	}
	return ""
}

// ManualEvent создаёт событие ручного запуска.
func ManualEvent(source string) TriggerEvent {
	if source == "" {
		source = SourceManual
	}
	return TriggerEvent{
		SourceLocation: source,
		EventType:      SourceManual,
		Manual:         true,
		ReceivedAt:     time.Now(),
	}
}
