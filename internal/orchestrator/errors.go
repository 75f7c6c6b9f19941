package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrControllerStopped — контроллер остановлен и не принимает события.
	ErrControllerStopped = errors.New("controller stopped")

	// ErrUnknownPipeline — pipeline с таким именем не настроен.
	ErrUnknownPipeline = errors.New("unknown pipeline")

	// ErrNoStore — контроллер создан без RunStore.
	ErrNoStore = errors.New("run store is required")

	// errStageFailed — стадия фазы crawlers не успешна; отменяет соседние стадии.
	errStageFailed = errors.New("stage failed")
)
