// Package orchestrator реализует контроллер pipeline.
//
// Controller ведёт один pipeline по конечному автомату:
//
//	CREATED → DEPLOYING_INFRA → RUNNING_ETL → CRAWLING → SUCCEEDED
//	   (любое нефинальное) → FAILED | ABORTED
//
// Стадии — упорядоченный список дескрипторов, который обходит один цикл.
// Стадии фазы выполняются последовательно; crawlers запускаются и опрашиваются
// параллельно, первая неудача отменяет опрос остальных.
//
// У pipeline не больше одного активного run: RunStore.Begin атомарно
// проверяет и создаёт запись, повторный trigger записывается как dropped.
//
// Dispatcher раздаёт событие всем контроллерам и обрабатывает сообщения storage.event.
package orchestrator
