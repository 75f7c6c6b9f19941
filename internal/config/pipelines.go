package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/orchestrator"
	"github.com/shaiso/Skyline/internal/scheduler"
	"github.com/shaiso/Skyline/internal/trigger"
)

// PipelinesFile — корень YAML-файла определений.
type PipelinesFile struct {
	Pipelines []PipelineSpec `yaml:"pipelines" validate:"required,min=1,dive"`
}

// PipelineSpec — определение одного pipeline.
type PipelineSpec struct {
	Name string `yaml:"name" validate:"required,max=64"`

	// Schedule — cron-выражение для запуска по расписанию. Пусто — только по событиям.
	Schedule string `yaml:"schedule,omitempty"`

	Filter FilterSpec  `yaml:"filter"`
	Stages []StageSpec `yaml:"stages" validate:"required,min=1,dive"`
}

// FilterSpec — политика Trigger Filter.
type FilterSpec struct {
	Bucket          string   `yaml:"bucket,omitempty"`
	OutputPrefixes  []string `yaml:"output_prefixes,omitempty" validate:"dive,required"`
	ExcludePrefixes []string `yaml:"exclude_prefixes,omitempty" validate:"dive,required"`
	IncludePrefixes []string `yaml:"include_prefixes,omitempty" validate:"dive,required"`
	EventTypes      []string `yaml:"event_types,omitempty" validate:"dive,required"`
}

// StageSpec — определение стадии.
type StageSpec struct {
	Kind         string        `yaml:"kind" validate:"required,oneof=infra-deploy etl-job catalog-crawler"`
	Name         string        `yaml:"name" validate:"required"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty" validate:"gte=0"`
	MaxWait      time.Duration `yaml:"max_wait,omitempty" validate:"gte=0"`
	Retryable    bool          `yaml:"retryable,omitempty"`
	MaxAttempts  int           `yaml:"max_attempts,omitempty" validate:"gte=0,lte=10"`

	// TerminalStates дополняет карту статусов по умолчанию: raw → success|failure|in_progress.
	TerminalStates map[string]string `yaml:"terminal_states,omitempty" validate:"dive,keys,required,endkeys,oneof=success failure in_progress"`
}

// LoadPipelines читает и проверяет файл определений.
func LoadPipelines(path string) ([]PipelineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipelines file: %w", err)
	}
	return ParsePipelineSpecs(data)
}

// ParsePipelines разбирает YAML и возвращает pipelines для контроллеров.
func ParsePipelines(data []byte) ([]orchestrator.Pipeline, error) {
	specs, err := ParsePipelineSpecs(data)
	if err != nil {
		return nil, err
	}

	out := make([]orchestrator.Pipeline, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Pipeline())
	}
	return out, nil
}

// ParsePipelineSpecs разбирает YAML и возвращает проверенные определения.
func ParsePipelineSpecs(data []byte) ([]PipelineSpec, error) {
	var file PipelinesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidPipelines, err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return file.Pipelines, nil
}

// Validate проверяет теги и семантику: уникальность имён pipeline,
// порядок стадий и cron-выражения.
func (f *PipelinesFile) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPipelines, err)
	}

	var errs []error
	seen := make(map[string]bool, len(f.Pipelines))
	for i, p := range f.Pipelines {
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("pipelines[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true

		if p.Schedule != "" {
			if err := scheduler.ValidateCronExpr(p.Schedule); err != nil {
				errs = append(errs, fmt.Errorf("pipeline %s: %w", p.Name, err))
			}
		}

		if err := domain.ValidateStages(p.Descriptors()); err != nil {
			errs = append(errs, fmt.Errorf("pipeline %s: %w", p.Name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPipelines, err)
	}
	return nil
}

// Descriptors преобразует стадии в дескрипторы.
func (p PipelineSpec) Descriptors() []domain.StageDescriptor {
	out := make([]domain.StageDescriptor, 0, len(p.Stages))
	for _, s := range p.Stages {
		out = append(out, s.Descriptor())
	}
	return out
}

// FilterConfig преобразует политику фильтра.
func (p PipelineSpec) FilterConfig() trigger.FilterConfig {
	return trigger.FilterConfig{
		Bucket:          p.Filter.Bucket,
		OutputPrefixes:  p.Filter.OutputPrefixes,
		ExcludePrefixes: p.Filter.ExcludePrefixes,
		IncludePrefixes: p.Filter.IncludePrefixes,
		EventTypes:      p.Filter.EventTypes,
	}
}

// Pipeline возвращает описание для orchestrator.Controller.
func (p PipelineSpec) Pipeline() orchestrator.Pipeline {
	return orchestrator.Pipeline{
		Name:   p.Name,
		Stages: p.Descriptors(),
		Filter: p.FilterConfig(),
	}
}

// Descriptor преобразует стадию в domain.StageDescriptor.
func (s StageSpec) Descriptor() domain.StageDescriptor {
	var states domain.StatusMap
	if len(s.TerminalStates) > 0 {
		states = make(domain.StatusMap, len(s.TerminalStates))
		for raw, mapped := range s.TerminalStates {
			states[domain.NormalizeStatus(raw)] = domain.Mapped(mapped)
		}
	}

	return domain.StageDescriptor{
		Kind:           domain.StageKind(s.Kind),
		Name:           s.Name,
		PollInterval:   s.PollInterval,
		MaxWait:        s.MaxWait,
		Retryable:      s.Retryable,
		MaxAttempts:    s.MaxAttempts,
		TerminalStates: states,
	}
}

// Schedules возвращает расписания pipeline: имя → cron-выражение.
func Schedules(specs []PipelineSpec) map[string]string {
	out := make(map[string]string)
	for _, s := range specs {
		if s.Schedule != "" {
			out[s.Name] = s.Schedule
		}
	}
	return out
}
