// Package cli реализует инструмент командной строки Skyline.
//
// # Обзор
//
// CLI — клиентская утилита для Skyline API. Работает через HTTP
// и не импортирует внутренние пакеты системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует запросы, парсинг ответов
// (DataResponse, ListResponse, ErrorResponse) и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	pipelines, err := client.ListPipelines()
//
// ## Output
//
// Форматирование вывода: таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные выводятся в stdout, сообщения (Success/Error) в stderr:
// skyline run list --json | jq .
//
// ## Commands
//
//   - pipeline: list, show, dropped
//   - run: list, start, show
//   - event: send
//
// Каждая группа создаётся фабричной функцией (NewPipelineCmd и т.д.),
// принимающей clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
