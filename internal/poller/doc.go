// Package poller реализует блокирующее ожидание терминального статуса
// внешнего ресурса, у которого есть только API опроса статуса.
//
// AwaitTerminal не занимает CPU во время ожидания: между запросами
// горутина спит на таймере, дедлайн и отмена обрабатываются через select.
package poller
