package domain

import (
	"strings"
	"time"
)

// StageKind — тип внешней стадии.
type StageKind string

const (
	// StageKindInfraDeploy — обновление декларативного стека инфраструктуры.
	StageKindInfraDeploy StageKind = "infra-deploy"

	// StageKindETLJob — запуск ETL job.
	StageKindETLJob StageKind = "etl-job"

	// StageKindCatalogCrawler — запуск crawler'а каталога метаданных.
	StageKindCatalogCrawler StageKind = "catalog-crawler"
)

// Phase возвращает порядковый номер фазы для типа стадии.
// Стадии внутри pipeline должны идти в неубывающем порядке фаз.
func (k StageKind) Phase() int {
	switch k {
	case StageKindInfraDeploy:
		return 1
	case StageKindETLJob:
		return 2
	case StageKindCatalogCrawler:
		return 3
	default:
		return 0
	}
}

// State возвращает состояние оркестратора, в котором выполняется стадия этого типа.
func (k StageKind) State() RunState {
	switch k {
	case StageKindInfraDeploy:
		return RunStateDeployingInfra
	case StageKindETLJob:
		return RunStateRunningETL
	case StageKindCatalogCrawler:
		return RunStateCrawling
	default:
		return RunStateCreated
	}
}

// StageDescriptor — статическая конфигурация стадии.
type StageDescriptor struct {
	// Kind — тип стадии.
	Kind StageKind `json:"kind"`

	// Name — имя внешнего ресурса: стек, job или crawler.
	Name string `json:"name"`

	// PollInterval — интервал между запросами статуса.
	PollInterval time.Duration `json:"poll_interval"`

	// MaxWait — максимальное время ожидания терминального статуса.
	MaxWait time.Duration `json:"max_wait"`

	// Retryable — можно ли повторять стадию при ошибке (только infra-deploy).
	Retryable bool `json:"retryable"`

	// MaxAttempts — потолок попыток для retryable стадии (включая первую).
	MaxAttempts int `json:"max_attempts,omitempty"`

	// TerminalStates — отображение сырого статуса в success/failure/in_progress.
	TerminalStates StatusMap `json:"terminal_states,omitempty"`
}

// Attempts возвращает число попыток, разрешённых для стадии.
func (d StageDescriptor) Attempts() int {
	if !d.Retryable || d.MaxAttempts < 1 {
		return 1
	}
	return d.MaxAttempts
}

// StatusMap — отображение нормализованного сырого статуса в Mapped.
type StatusMap map[string]Mapped

// NormalizeStatus приводит сырой статус к ключу StatusMap:
// верхний регистр, '-' и пробелы заменены на '_'.
func NormalizeStatus(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// Classify отображает сырой статус. Неизвестный статус — in_progress:
// ожидание всё равно ограничено max_wait.
func (m StatusMap) Classify(raw string) Mapped {
	if v, ok := m.Lookup(raw); ok {
		return v
	}
	return MappedInProgress
}

// Lookup возвращает отображение для статуса и признак его наличия в карте.
func (m StatusMap) Lookup(raw string) (Mapped, bool) {
	v, ok := m[NormalizeStatus(raw)]
	return v, ok
}

// Merge возвращает копию m, дополненную (и переопределённую) значениями из override.
func (m StatusMap) Merge(override StatusMap) StatusMap {
	out := make(StatusMap, len(m)+len(override))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range override {
		out[NormalizeStatus(k)] = v
	}
	return out
}

// StageResult — результат выполнения одной стадии в рамках run.
type StageResult struct {
	// StageName — имя стадии (StageDescriptor.Name).
	StageName string `json:"stage_name"`

	// Kind — тип стадии.
	Kind StageKind `json:"kind"`

	// ExternalRunID — handle, возвращённый внешним сервисом (run id job'а).
	ExternalRunID string `json:"external_run_id,omitempty"`

	// FinalStatus — последний наблюдённый сырой статус.
	FinalStatus string `json:"final_status,omitempty"`

	// Outcome — итог стадии.
	Outcome StageOutcome `json:"outcome"`

	// NoOp — стадия выполнена без работы (например, "no changes" у стека).
	NoOp bool `json:"no_op,omitempty"`

	// Attempts — количество попыток.
	Attempts int `json:"attempts"`

	// Polls — количество запросов статуса в последней попытке.
	Polls int `json:"polls"`

	// StartedAt — время старта первой попытки.
	StartedAt time.Time `json:"started_at"`

	// Duration — длительность стадии, включая все попытки.
	Duration time.Duration `json:"duration"`

	// Error — текст ошибки (start error, poll error, статус отказа).
	Error string `json:"error,omitempty"`
}
