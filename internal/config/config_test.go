package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Skyline/internal/domain"
)

const airlineYAML = `
pipelines:
  - name: airline-operations
    schedule: "0 3 * * *"
    filter:
      bucket: airline-data
      output_prefixes: [silver/, gold/]
      exclude_prefixes: [scripts/]
      include_prefixes: [raw/]
    stages:
      - kind: infra-deploy
        name: glue-cicd-stack
        poll_interval: 15s
        max_wait: 30m
        retryable: true
        max_attempts: 3
      - kind: etl-job
        name: FinalGlue
        poll_interval: 30s
        max_wait: 2h
        terminal_states:
          expired: failure
      - kind: catalog-crawler
        name: airline
      - kind: catalog-crawler
        name: customers
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPPort != 8080 || cfg.Addr() != ":8080" {
		t.Errorf("expected port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.Store != StorePostgres || cfg.UseMemoryStore() {
		t.Errorf("expected postgres store, got %s", cfg.Store)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected 30s shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
	if cfg.RunLease != 2*time.Minute {
		t.Errorf("expected 2m run lease, got %s", cfg.RunLease)
	}
	if cfg.MinIO.Bucket != "airline-data" {
		t.Errorf("expected airline-data bucket, got %s", cfg.MinIO.Bucket)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SKYLINE_HTTP_PORT", "9090")
	t.Setenv("SKYLINE_STORE", "memory")
	t.Setenv("SKYLINE_MINIO_ENDPOINT", "minio:9000")
	t.Setenv("SKYLINE_MINIO_USE_SSL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPPort != 9090 {
		t.Errorf("expected 9090, got %d", cfg.HTTPPort)
	}
	if !cfg.UseMemoryStore() {
		t.Error("expected memory store")
	}
	if cfg.MinIO.Endpoint != "minio:9000" || !cfg.MinIO.UseSSL {
		t.Errorf("unexpected minio config: %+v", cfg.MinIO)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("SKYLINE_STORE", "sqlite")

	_, err := Load()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestParsePipelineSpecs(t *testing.T) {
	specs, err := ParsePipelineSpecs([]byte(airlineYAML))
	if err != nil {
		t.Fatalf("ParsePipelineSpecs: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("expected 1 pipeline, got %d", len(specs))
	}

	p := specs[0].Pipeline()
	if p.Name != "airline-operations" || len(p.Stages) != 4 {
		t.Fatalf("unexpected pipeline: %s with %d stages", p.Name, len(p.Stages))
	}

	deploy := p.Stages[0]
	if deploy.Kind != domain.StageKindInfraDeploy || !deploy.Retryable || deploy.Attempts() != 3 {
		t.Errorf("unexpected deploy stage: %+v", deploy)
	}
	if deploy.PollInterval != 15*time.Second || deploy.MaxWait != 30*time.Minute {
		t.Errorf("durations not parsed: %s/%s", deploy.PollInterval, deploy.MaxWait)
	}

	etl := p.Stages[1]
	if etl.TerminalStates["EXPIRED"] != domain.MappedFailure {
		t.Errorf("terminal state override should be normalized, got %v", etl.TerminalStates)
	}
	if p.Stages[2].TerminalStates != nil {
		t.Error("stage without overrides should have nil map")
	}

	if p.Filter.Bucket != "airline-data" || len(p.Filter.OutputPrefixes) != 2 {
		t.Errorf("unexpected filter: %+v", p.Filter)
	}

	if got := Schedules(specs); got["airline-operations"] != "0 3 * * *" {
		t.Errorf("unexpected schedules: %v", got)
	}
}

func TestParsePipelineSpecs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", `pipelines: []`, "Pipelines"},
		{"unknown kind", `
pipelines:
  - name: p
    stages:
      - {kind: lambda, name: f}
`, "Kind"},
		{"bad mapped value", `
pipelines:
  - name: p
    stages:
      - kind: etl-job
        name: job
        terminal_states: {EXPIRED: maybe}
`, "TerminalStates"},
		{"crawler before etl", `
pipelines:
  - name: p
    stages:
      - {kind: catalog-crawler, name: c}
      - {kind: etl-job, name: job}
`, "phase"},
		{"retryable etl", `
pipelines:
  - name: p
    stages:
      - {kind: etl-job, name: job, retryable: true}
`, "retryable"},
		{"bad schedule", `
pipelines:
  - name: p
    schedule: "every day"
    stages:
      - {kind: etl-job, name: job}
`, "invalid cron expression"},
		{"duplicate pipeline", `
pipelines:
  - name: p
    stages: [{kind: etl-job, name: job}]
  - name: p
    stages: [{kind: etl-job, name: job}]
`, "duplicate name"},
		{"malformed", `pipelines: {`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePipelineSpecs([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalidPipelines) {
				t.Fatalf("expected ErrInvalidPipelines, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadPipelines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipelines.yaml")
	if err := os.WriteFile(path, []byte(airlineYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	specs, err := LoadPipelines(path)
	if err != nil {
		t.Fatalf("LoadPipelines: %v", err)
	}
	if len(specs) != 1 {
		t.Errorf("expected 1 pipeline, got %d", len(specs))
	}

	if _, err := LoadPipelines(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadPipelines_RepoConfig(t *testing.T) {
	specs, err := LoadPipelines(filepath.Join("..", "..", "configs", "pipelines.yaml"))
	if err != nil {
		t.Fatalf("configs/pipelines.yaml: %v", err)
	}
	if len(specs) == 0 {
		t.Error("expected at least one pipeline")
	}
}

func TestParsePipelines(t *testing.T) {
	pipelines, err := ParsePipelines([]byte(airlineYAML))
	if err != nil {
		t.Fatalf("ParsePipelines: %v", err)
	}
	if len(pipelines) != 1 || pipelines[0].Filter.IncludePrefixes[0] != "raw/" {
		t.Errorf("unexpected pipelines: %+v", pipelines)
	}
}
