// Package telemetry — логирование и метрики Skyline.
//
//   - logging.go — slog логгер (LOG_LEVEL, LOG_FORMAT) и помощники для run_id / pipeline / stage
//   - metrics.go — Prometheus метрики контроллера и listener'а
//
// Метрики отдаются на /metrics каждым бинарником.
package telemetry
