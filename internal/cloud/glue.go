package cloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"

	"github.com/shaiso/Skyline/internal/stages"
)

// GlueAPI — методы клиента Glue, которые использует пакет.
type GlueAPI interface {
	StartJobRun(ctx context.Context, in *glue.StartJobRunInput, optFns ...func(*glue.Options)) (*glue.StartJobRunOutput, error)
	GetJobRun(ctx context.Context, in *glue.GetJobRunInput, optFns ...func(*glue.Options)) (*glue.GetJobRunOutput, error)
	StartCrawler(ctx context.Context, in *glue.StartCrawlerInput, optFns ...func(*glue.Options)) (*glue.StartCrawlerOutput, error)
	GetCrawler(ctx context.Context, in *glue.GetCrawlerInput, optFns ...func(*glue.Options)) (*glue.GetCrawlerOutput, error)
}

// Glue реализует stages.JobService и stages.CrawlerService.
type Glue struct {
	api GlueAPI
}

var (
	_ stages.JobService     = (*Glue)(nil)
	_ stages.CrawlerService = (*Glue)(nil)
)

// NewGlue создаёт сервис поверх клиента Glue.
func NewGlue(api GlueAPI) *Glue {
	return &Glue{api: api}
}

// StartJobRun запускает job и возвращает JobRunId.
func (g *Glue) StartJobRun(ctx context.Context, job string) (string, error) {
	out, err := g.api.StartJobRun(ctx, &glue.StartJobRunInput{
		JobName: aws.String(job),
	})
	if err != nil {
		return "", fmt.Errorf("glue start job run: %w", err)
	}
	if out.JobRunId == nil {
		return "", fmt.Errorf("glue start job run: %w", ErrEmptyResponse)
	}
	return *out.JobRunId, nil
}

// JobRunStatus возвращает JobRunState запуска.
func (g *Glue) JobRunStatus(ctx context.Context, job, runID string) (string, error) {
	out, err := g.api.GetJobRun(ctx, &glue.GetJobRunInput{
		JobName: aws.String(job),
		RunId:   aws.String(runID),
	})
	if err != nil {
		return "", fmt.Errorf("glue get job run: %w", err)
	}
	if out.JobRun == nil {
		return "", fmt.Errorf("glue get job run: %w", ErrEmptyResponse)
	}
	return string(out.JobRun.JobRunState), nil
}

// StartCrawler запускает crawler. CrawlerRunningException — не ошибка.
func (g *Glue) StartCrawler(ctx context.Context, name string) (stages.CrawlerStart, error) {
	_, err := g.api.StartCrawler(ctx, &glue.StartCrawlerInput{
		Name: aws.String(name),
	})
	if err != nil {
		var running *types.CrawlerRunningException
		if errors.As(err, &running) {
			return stages.CrawlerAlreadyRunning, nil
		}
		return 0, fmt.Errorf("glue start crawler: %w", err)
	}
	return stages.CrawlerStarted, nil
}

// CrawlerStatus возвращает состояние crawler'а и итог последнего обхода.
func (g *Glue) CrawlerStatus(ctx context.Context, name string) (stages.CrawlerState, error) {
	out, err := g.api.GetCrawler(ctx, &glue.GetCrawlerInput{
		Name: aws.String(name),
	})
	if err != nil {
		return stages.CrawlerState{}, fmt.Errorf("glue get crawler: %w", err)
	}
	if out.Crawler == nil {
		return stages.CrawlerState{}, fmt.Errorf("glue get crawler: %w", ErrEmptyResponse)
	}

	st := stages.CrawlerState{State: string(out.Crawler.State)}
	if last := out.Crawler.LastCrawl; last != nil {
		st.LastCrawl = string(last.Status)
		if last.StartTime != nil {
			st.LastCrawlStartedAt = *last.StartTime
		}
	}
	return st, nil
}
