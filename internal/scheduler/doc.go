// Package scheduler запускает pipelines по cron-расписанию.
//
// Scheduler раз в тик проверяет расписания с наступившим временем и отправляет
// trigger с источником "schedule" через Trigger (обычно orchestrator.Dispatcher).
// Запуск по расписанию проходит ту же проверку единственного активного run,
// что и события хранилища.
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Trigger:   dispatcher,
//	    Schedules: config.Schedules(specs),
//	    Logger:    logger,
//	})
//	go sched.Run(ctx)
package scheduler
