// Package api содержит HTTP API контроллера.
//
// Структура:
//   - handler.go          — Handler с DI (хранилище runs, dispatcher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - pipeline_handler.go — обработчики для /pipelines (включая ручной запуск)
//   - run_handler.go      — обработчики для /runs
//   - event_handler.go    — webhook уведомлений хранилища /events
package api
