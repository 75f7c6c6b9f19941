// Package stages содержит адаптеры внешних стадий pipeline.
//
// Каждый адаптер оборачивает один внешний сервис и знает три вещи:
// как запустить стадию (Start), как спросить её сырой статус (Status)
// и как этот статус интерпретировать (Classify). Ожидание терминального
// статуса выполняет пакет poller, последовательность стадий — orchestrator.
//
// Типы стадий:
//   - infra-deploy    — StackAdapter поверх StackService
//   - etl-job         — JobAdapter поверх JobService
//   - catalog-crawler — CrawlerAdapter поверх CrawlerService
//
// Ожидаемые исходы старта ("нет изменений", "уже запущен") возвращаются
// значением StartResult, а не ошибкой.
package stages
