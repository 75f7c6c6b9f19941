package trigger

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/shaiso/Skyline/internal/domain"
)

// notificationDoc — документ S3/MinIO bucket notification.
type notificationDoc struct {
	Records []notification.Event `json:"Records"`
}

// flatEvent — упрощённый формат события.
type flatEvent struct {
	Bucket         string `json:"bucket"`
	SourceLocation string `json:"source_location"`
	EventType      string `json:"event_type"`
}

// ParseEvents разбирает тело уведомления.
//
// Поддерживаются документ с Records (S3, MinIO) и плоский объект
// {"source_location", "event_type", "bucket"}. Тело, которое не удалось
// разобрать, даёт пустой список: такие события игнорируются, а не считаются ошибкой.
func ParseEvents(body []byte) []domain.TriggerEvent {
	now := time.Now()

	var doc notificationDoc
	if err := json.Unmarshal(body, &doc); err == nil && len(doc.Records) > 0 {
		return FromNotification(doc.Records, now)
	}

	var flat flatEvent
	if err := json.Unmarshal(body, &flat); err != nil || flat.SourceLocation == "" {
		return nil
	}

	return []domain.TriggerEvent{{
		Bucket:         flat.Bucket,
		SourceLocation: flat.SourceLocation,
		EventType:      flat.EventType,
		ReceivedAt:     now,
	}}
}

// FromNotification преобразует записи уведомления в события.
// Ключи объектов в уведомлениях URL-encoded; записи без ключа пропускаются.
func FromNotification(records []notification.Event, receivedAt time.Time) []domain.TriggerEvent {
	events := make([]domain.TriggerEvent, 0, len(records))
	for _, r := range records {
		key := decodeKey(r.S3.Object.Key)
		if key == "" {
			continue
		}
		events = append(events, domain.TriggerEvent{
			Bucket:         r.S3.Bucket.Name,
			SourceLocation: key,
			EventType:      r.EventName,
			ReceivedAt:     receivedAt,
		})
	}
	return events
}

// decodeKey декодирует ключ объекта ("raw/flights+2024.csv" → "raw/flights 2024.csv").
func decodeKey(key string) string {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return strings.TrimSpace(key)
	}
	return strings.TrimSpace(decoded)
}
