package domain

import "errors"

// ErrRunFinished — попытка изменить run после финального итога.
var ErrRunFinished = errors.New("run already finished")

// ErrRunActive — у pipeline уже есть run в статусе in_progress.
var ErrRunActive = errors.New("pipeline already has an active run")

// ErrInvalidPipeline — список стадий pipeline нарушает правила топологии.
var ErrInvalidPipeline = errors.New("invalid pipeline")

// ErrRunNotInProgress — запись run в хранилище уже закрыта (например, другим экземпляром контроллера).
var ErrRunNotInProgress = errors.New("run is not in progress")
