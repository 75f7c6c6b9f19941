package orchestrator

import "github.com/google/uuid"

// DecisionKind — что контроллер сделал с trigger.
type DecisionKind string

const (
	// DecisionAccepted — создан новый run.
	DecisionAccepted DecisionKind = "accepted"

	// DecisionRejected — событие отклонено Trigger Filter.
	DecisionRejected DecisionKind = "rejected"

	// DecisionDuplicate — у pipeline уже есть активный run, trigger отброшен.
	DecisionDuplicate DecisionKind = "duplicate"
)

// Decision — решение по одному trigger.
type Decision struct {
	Pipeline string       `json:"pipeline"`
	Kind     DecisionKind `json:"decision"`

	// Reason — причина отклонения (trigger.Reason*) или отбрасывания.
	Reason string `json:"reason,omitempty"`

	// RunID — созданный run (accepted) или активный run (duplicate).
	RunID uuid.UUID `json:"run_id,omitempty"`
}

// Accepted возвращает true, если создан run.
func (d Decision) Accepted() bool {
	return d.Kind == DecisionAccepted
}

// Redeliverable сообщает, можно ли доставить событие повторно после ошибки
// Dispatch: ошибка была и ни один pipeline не создал run. Повтор после
// частичного приёма запустил бы второй run у принявшего pipeline.
func Redeliverable(decisions []Decision, err error) bool {
	if err == nil {
		return false
	}
	for _, d := range decisions {
		if d.Accepted() {
			return false
		}
	}
	return true
}
