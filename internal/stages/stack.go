package stages

import (
	"context"
	"fmt"

	"github.com/shaiso/Skyline/internal/domain"
)

// StackAdapter — стадия infra-deploy.
//
// Обновляет стек с предыдущим шаблоном. Ответ "нет изменений" — no-op,
// стадия успешна без опроса.
type StackAdapter struct {
	desc    domain.StageDescriptor
	stacks  StackService
	started bool
}

// NewStackAdapter создаёт адаптер стека.
func NewStackAdapter(desc domain.StageDescriptor, stacks StackService) *StackAdapter {
	return &StackAdapter{desc: withDefaults(desc), stacks: stacks}
}

func (a *StackAdapter) Descriptor() domain.StageDescriptor { return a.desc }

func (a *StackAdapter) Start(ctx context.Context) (StartResult, error) {
	res, err := a.stacks.UpdateStack(ctx, a.desc.Name)
	if err != nil {
		return StartResult{}, fmt.Errorf("update stack %s: %w", a.desc.Name, err)
	}
	if !res.Changed {
		return StartResult{Kind: StartNoOp, ExternalRunID: res.StackID}, nil
	}
	a.started = true
	return StartResult{Kind: StartOK, ExternalRunID: res.StackID}, nil
}

func (a *StackAdapter) Status(ctx context.Context) (string, error) {
	if !a.started {
		return "", ErrNotStarted
	}
	return a.stacks.StackStatus(ctx, a.desc.Name)
}

// Classify использует карту дескриптора, затем правило семейств статусов стека.
func (a *StackAdapter) Classify(raw string) domain.Mapped {
	return classify(a.desc.TerminalStates, raw, classifyStack)
}
