package cloud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/aws/smithy-go"

	"github.com/shaiso/Skyline/internal/stages"
)

type fakeGlue struct {
	startCrawlerErr error
	crawler         *types.Crawler
	jobState        types.JobRunState
	lastJobInput    *glue.GetJobRunInput
}

func (f *fakeGlue) StartJobRun(_ context.Context, in *glue.StartJobRunInput, _ ...func(*glue.Options)) (*glue.StartJobRunOutput, error) {
	return &glue.StartJobRunOutput{JobRunId: aws.String("jr_" + *in.JobName)}, nil
}

func (f *fakeGlue) GetJobRun(_ context.Context, in *glue.GetJobRunInput, _ ...func(*glue.Options)) (*glue.GetJobRunOutput, error) {
	f.lastJobInput = in
	return &glue.GetJobRunOutput{JobRun: &types.JobRun{JobRunState: f.jobState}}, nil
}

func (f *fakeGlue) StartCrawler(_ context.Context, _ *glue.StartCrawlerInput, _ ...func(*glue.Options)) (*glue.StartCrawlerOutput, error) {
	if f.startCrawlerErr != nil {
		return nil, f.startCrawlerErr
	}
	return &glue.StartCrawlerOutput{}, nil
}

func (f *fakeGlue) GetCrawler(_ context.Context, _ *glue.GetCrawlerInput, _ ...func(*glue.Options)) (*glue.GetCrawlerOutput, error) {
	return &glue.GetCrawlerOutput{Crawler: f.crawler}, nil
}

func TestGlue_Job(t *testing.T) {
	api := &fakeGlue{jobState: types.JobRunStateTimeout}
	g := NewGlue(api)

	id, err := g.StartJobRun(context.Background(), "FinalGlue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "jr_FinalGlue" {
		t.Errorf("unexpected run id %q", id)
	}

	status, err := g.JobRunStatus(context.Background(), "FinalGlue", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "TIMEOUT" {
		t.Errorf("expected TIMEOUT, got %q", status)
	}
	if *api.lastJobInput.RunId != id {
		t.Errorf("status must be queried for run %s", id)
	}
}

func TestGlue_StartCrawler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    stages.CrawlerStart
		wantErr bool
	}{
		{"started", nil, stages.CrawlerStarted, false},
		{"already running", &types.CrawlerRunningException{Message: aws.String("Crawler with name airline has already started")}, stages.CrawlerAlreadyRunning, false},
		{"other error", &types.EntityNotFoundException{Message: aws.String("not found")}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGlue(&fakeGlue{startCrawlerErr: tt.err})

			got, err := g.StartCrawler(context.Background(), "airline")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGlue_CrawlerStatus(t *testing.T) {
	started := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	g := NewGlue(&fakeGlue{crawler: &types.Crawler{
		State: types.CrawlerStateReady,
		LastCrawl: &types.LastCrawlInfo{
			Status:    types.LastCrawlStatusFailed,
			StartTime: aws.Time(started),
		},
	}})

	st, err := g.CrawlerStatus(context.Background(), "airline")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.State != "READY" || st.LastCrawl != "FAILED" {
		t.Errorf("unexpected state %+v", st)
	}
	if !st.LastCrawlStartedAt.Equal(started) {
		t.Errorf("unexpected start time %v", st.LastCrawlStartedAt)
	}
}

func TestGlue_CrawlerStatusEmpty(t *testing.T) {
	g := NewGlue(&fakeGlue{})

	if _, err := g.CrawlerStatus(context.Background(), "airline"); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

type fakeCloudFormation struct {
	updateErr error
	status    cftypes.StackStatus
	lastInput *cloudformation.UpdateStackInput
}

func (f *fakeCloudFormation) UpdateStack(_ context.Context, in *cloudformation.UpdateStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	f.lastInput = in
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &cloudformation.UpdateStackOutput{StackId: aws.String("arn:stack/" + *in.StackName)}, nil
}

func (f *fakeCloudFormation) DescribeStacks(_ context.Context, _ *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	if f.status == "" {
		return &cloudformation.DescribeStacksOutput{}, nil
	}
	return &cloudformation.DescribeStacksOutput{Stacks: []cftypes.Stack{{StackStatus: f.status}}}, nil
}

func TestStacks_UpdateStack(t *testing.T) {
	api := &fakeCloudFormation{}
	s := NewStacks(api)

	res, err := s.UpdateStack(context.Background(), "glue-cicd-stack")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed || res.StackID != "arn:stack/glue-cicd-stack" {
		t.Errorf("unexpected result %+v", res)
	}
	if !*api.lastInput.UsePreviousTemplate {
		t.Error("expected UsePreviousTemplate")
	}
	if len(api.lastInput.Capabilities) != 1 || api.lastInput.Capabilities[0] != cftypes.CapabilityCapabilityNamedIam {
		t.Errorf("unexpected capabilities %v", api.lastInput.Capabilities)
	}
}

func TestStacks_NoUpdates(t *testing.T) {
	s := NewStacks(&fakeCloudFormation{updateErr: &smithy.GenericAPIError{
		Code:    "ValidationError",
		Message: "No updates are to be performed.",
	}})

	res, err := s.UpdateStack(context.Background(), "glue-crawler-stack")
	if err != nil {
		t.Fatalf("no updates must not be an error: %v", err)
	}
	if res.Changed {
		t.Error("expected Changed=false")
	}
}

func TestStacks_ValidationError(t *testing.T) {
	s := NewStacks(&fakeCloudFormation{updateErr: &smithy.GenericAPIError{
		Code:    "ValidationError",
		Message: "Stack with id glue-cicd-stack does not exist",
	}})

	if _, err := s.UpdateStack(context.Background(), "glue-cicd-stack"); err == nil {
		t.Error("expected error")
	}
}

func TestStacks_StackStatus(t *testing.T) {
	s := NewStacks(&fakeCloudFormation{status: cftypes.StackStatusUpdateRollbackComplete})

	status, err := s.StackStatus(context.Background(), "glue-cicd-stack")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "UPDATE_ROLLBACK_COMPLETE" {
		t.Errorf("unexpected status %q", status)
	}

	empty := NewStacks(&fakeCloudFormation{})
	if _, err := empty.StackStatus(context.Background(), "missing"); !errors.Is(err, ErrStackNotFound) {
		t.Errorf("expected ErrStackNotFound, got %v", err)
	}
}
