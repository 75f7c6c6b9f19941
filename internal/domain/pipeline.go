package domain

import (
	"errors"
	"fmt"
)

// ValidateStages проверяет список стадий pipeline:
//   - хотя бы одна стадия etl-job
//   - фазы типов не убывают: infra-deploy* → etl-job+ → catalog-crawler*
//   - имена стадий уникальны и не пусты
//   - retryable допускается только для infra-deploy
//
// Все нарушения возвращаются вместе, каждое оборачивает ErrInvalidPipeline.
func ValidateStages(stages []StageDescriptor) error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidPipeline, fmt.Sprintf(format, args...)))
	}

	names := make(map[string]bool, len(stages))
	etl := 0
	lastPhase := 0

	for i, s := range stages {
		phase := s.Kind.Phase()
		if phase == 0 {
			invalid("stage %d: unknown kind %q", i, s.Kind)
			continue
		}
		if phase < lastPhase {
			invalid("stage %d (%s): %s cannot follow a later phase", i, s.Name, s.Kind)
		}
		lastPhase = max(lastPhase, phase)

		if s.Name == "" {
			invalid("stage %d: name is required", i)
		} else if names[s.Name] {
			invalid("stage %d: duplicate name %q", i, s.Name)
		}
		names[s.Name] = true

		if s.Kind == StageKindETLJob {
			etl++
		}
		if s.Retryable && s.Kind != StageKindInfraDeploy {
			invalid("stage %d (%s): only infra-deploy stages can be retryable", i, s.Name)
		}
		if s.MaxWait < 0 || s.PollInterval < 0 {
			invalid("stage %d (%s): negative duration", i, s.Name)
		}
	}

	if etl == 0 {
		invalid("at least one etl-job stage is required")
	}

	return errors.Join(errs...)
}
