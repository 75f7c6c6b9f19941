package domain

import (
	"errors"
	"testing"
	"time"
)

func TestValidateStages(t *testing.T) {
	deploy := StageDescriptor{Kind: StageKindInfraDeploy, Name: "glue-cicd-stack", Retryable: true, MaxAttempts: 3}
	etl := StageDescriptor{Kind: StageKindETLJob, Name: "FinalGlue", PollInterval: 30 * time.Second}
	crawler := StageDescriptor{Kind: StageKindCatalogCrawler, Name: "airline"}

	tests := []struct {
		name    string
		stages  []StageDescriptor
		wantErr bool
	}{
		{"full topology", []StageDescriptor{deploy, etl, crawler}, false},
		{"etl only", []StageDescriptor{etl}, false},
		{"two deploys before etl", []StageDescriptor{deploy, {Kind: StageKindInfraDeploy, Name: "glue-crawler-stack"}, etl}, false},
		{"no etl", []StageDescriptor{deploy, crawler}, true},
		{"crawler before etl", []StageDescriptor{crawler, etl}, true},
		{"deploy after etl", []StageDescriptor{etl, deploy}, true},
		{"duplicate names", []StageDescriptor{etl, etl}, true},
		{"retryable etl", []StageDescriptor{{Kind: StageKindETLJob, Name: "j", Retryable: true}}, true},
		{"unknown kind", []StageDescriptor{etl, {Kind: "lambda", Name: "x"}}, true},
		{"empty name", []StageDescriptor{{Kind: StageKindETLJob}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStages(tt.stages)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPipeline) {
					t.Errorf("expected ErrInvalidPipeline, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
