package stages

import (
	"context"
	"fmt"

	"github.com/shaiso/Skyline/internal/domain"
)

// JobAdapter — стадия etl-job.
type JobAdapter struct {
	desc  domain.StageDescriptor
	jobs  JobService
	runID string
}

// NewJobAdapter создаёт адаптер ETL job'а.
func NewJobAdapter(desc domain.StageDescriptor, jobs JobService) *JobAdapter {
	return &JobAdapter{desc: withDefaults(desc), jobs: jobs}
}

func (a *JobAdapter) Descriptor() domain.StageDescriptor { return a.desc }

// Start запускает job и запоминает id запуска.
func (a *JobAdapter) Start(ctx context.Context) (StartResult, error) {
	runID, err := a.jobs.StartJobRun(ctx, a.desc.Name)
	if err != nil {
		return StartResult{}, fmt.Errorf("start job %s: %w", a.desc.Name, err)
	}
	a.runID = runID
	return StartResult{Kind: StartOK, ExternalRunID: runID}, nil
}

// Status возвращает статус запуска, полученного в Start.
func (a *JobAdapter) Status(ctx context.Context) (string, error) {
	if a.runID == "" {
		return "", ErrNotStarted
	}
	return a.jobs.JobRunStatus(ctx, a.desc.Name, a.runID)
}

func (a *JobAdapter) Classify(raw string) domain.Mapped {
	return classify(a.desc.TerminalStates, raw, nil)
}
