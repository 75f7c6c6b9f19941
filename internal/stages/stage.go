package stages

import (
	"context"

	"github.com/shaiso/Skyline/internal/domain"
)

// StartKind — вариант результата старта стадии.
type StartKind int

const (
	// StartOK — внешний ресурс запущен, нужно ждать терминального статуса.
	StartOK StartKind = iota

	// StartNoOp — делать нечего (у стека нет изменений). Стадия сразу успешна.
	StartNoOp

	// StartAlreadyRunning — ресурс уже выполняется. Ждём текущий экземпляр.
	StartAlreadyRunning
)

// String возвращает имя варианта для логов.
func (k StartKind) String() string {
	switch k {
	case StartOK:
		return "started"
	case StartNoOp:
		return "no_op"
	case StartAlreadyRunning:
		return "already_running"
	default:
		return "unknown"
	}
}

// StartResult — результат Start.
type StartResult struct {
	Kind StartKind

	// ExternalRunID — handle внешнего сервиса (run id job'а, stack id). Может быть пустым.
	ExternalRunID string
}

// NeedsPolling возвращает false для no-op: статус опрашивать не нужно.
func (r StartResult) NeedsPolling() bool {
	return r.Kind != StartNoOp
}

// Adapter — интерфейс стадии.
//
// Адаптер создаётся на один run (через Registry.Build) и хранит состояние
// между Start и Status: run id job'а, момент старта crawler'а.
type Adapter interface {
	// Descriptor возвращает конфигурацию стадии.
	Descriptor() domain.StageDescriptor

	// Start запускает внешний ресурс.
	// Ошибка означает, что стадия не стартовала (для retryable стадий повторяется).
	Start(ctx context.Context) (StartResult, error)

	// Status возвращает текущий сырой статус. Ошибка — это ошибка запроса,
	// а не отказ ресурса: poller повторит её.
	Status(ctx context.Context) (string, error)

	// Classify отображает сырой статус в success/failure/in_progress.
	Classify(raw string) domain.Mapped
}
