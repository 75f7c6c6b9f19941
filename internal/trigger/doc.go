// Package trigger решает, должно ли событие хранилища запускать pipeline.
//
//   - filter.go   — Filter: отсечение собственных выходов pipeline, кода и чужих событий
//   - event.go    — ParseEvents: разбор S3/MinIO notification и плоского формата
//   - listener.go — Listener: bucket notifications из MinIO/S3 → очередь events.storage
//
// Отклонение события — нормальный исход, а не ошибка: pipeline пишет
// в тот же bucket, и без фильтра его собственные записи запускали бы его снова.
package trigger
