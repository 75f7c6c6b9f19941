package stages

import "errors"

// Ошибки адаптеров.
var (
	// ErrUnknownStageKind — тип стадии не зарегистрирован в реестре.
	ErrUnknownStageKind = errors.New("unknown stage kind")

	// ErrNotStarted — запрос статуса до успешного Start.
	ErrNotStarted = errors.New("stage not started")

	// ErrNoService — для типа стадии не настроен внешний сервис.
	ErrNoService = errors.New("stage service not configured")
)
