package config

import "errors"

// Ошибки конфигурации.
var (
	// ErrInvalidConfig — конфигурация процесса некорректна.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidPipelines — файл определений pipeline некорректен.
	ErrInvalidPipelines = errors.New("invalid pipelines")
)
