package cloud

import "errors"

// Ошибки сервисов.
var (
	// ErrStackNotFound — DescribeStacks не вернул стек.
	ErrStackNotFound = errors.New("stack not found")

	// ErrEmptyResponse — сервис вернул ответ без ожидаемых полей.
	ErrEmptyResponse = errors.New("empty response from service")
)
