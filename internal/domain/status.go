package domain

// RunOutcome — итог выполнения run.
//
// Жизненный цикл:
//
//	IN_PROGRESS → SUCCEEDED
//	            ↘ FAILED
//	            ↘ ABORTED (остановка контроллера или сбой процесса)
type RunOutcome string

const (
	// RunOutcomeInProgress — run выполняется.
	RunOutcomeInProgress RunOutcome = "in_progress"

	// RunOutcomeSucceeded — все стадии, включая crawlers, завершились успешно.
	RunOutcomeSucceeded RunOutcome = "succeeded"

	// RunOutcomeFailed — одна из стадий завершилась ошибкой или таймаутом.
	RunOutcomeFailed RunOutcome = "failed"

	// RunOutcomeAborted — run прерван до терминального статуса стадии.
	RunOutcomeAborted RunOutcome = "aborted"
)

// IsTerminal возвращает true, если итог финальный.
func (o RunOutcome) IsTerminal() bool {
	switch o {
	case RunOutcomeSucceeded, RunOutcomeFailed, RunOutcomeAborted:
		return true
	default:
		return false
	}
}

// RunState — состояние конечного автомата оркестратора.
//
//	CREATED → DEPLOYING_INFRA → RUNNING_ETL → CRAWLING → SUCCEEDED
//	   (любое нефинальное) ↘ FAILED | ABORTED
type RunState string

const (
	RunStateCreated        RunState = "CREATED"
	RunStateDeployingInfra RunState = "DEPLOYING_INFRA"
	RunStateRunningETL     RunState = "RUNNING_ETL"
	RunStateCrawling       RunState = "CRAWLING"
	RunStateSucceeded      RunState = "SUCCEEDED"
	RunStateFailed         RunState = "FAILED"
	RunStateAborted        RunState = "ABORTED"
)

// IsTerminal возвращает true для SUCCEEDED, FAILED и ABORTED.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateSucceeded, RunStateFailed, RunStateAborted:
		return true
	default:
		return false
	}
}

// Mapped — значение, в которое стадия отображает сырой статус внешнего сервиса.
type Mapped string

const (
	MappedSuccess    Mapped = "success"
	MappedFailure    Mapped = "failure"
	MappedInProgress Mapped = "in_progress"
)

// StageOutcome — итог одной стадии.
type StageOutcome string

const (
	// StageOutcomeSuccess — внешний ресурс достиг успешного терминального статуса
	// (или стадия выполнена идемпотентным no-op).
	StageOutcomeSuccess StageOutcome = "success"

	// StageOutcomeFailure — внешний ресурс сообщил об ошибке, либо стадия не смогла стартовать.
	StageOutcomeFailure StageOutcome = "failure"

	// StageOutcomeTimeout — терминальный статус не получен за max_wait.
	StageOutcomeTimeout StageOutcome = "timeout"

	// StageOutcomePollError — запрос статуса падал больше допустимого числа раз подряд.
	StageOutcomePollError StageOutcome = "poll_error"

	// StageOutcomeCancelled — ожидание прервано через context.
	StageOutcomeCancelled StageOutcome = "cancelled"
)

// IsSuccess возвращает true только для success.
func (o StageOutcome) IsSuccess() bool {
	return o == StageOutcomeSuccess
}
