package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/glue"
)

// LoadConfig загружает конфигурацию AWS из стандартной цепочки
// (env, shared config, IAM role). Пустой region — регион из окружения.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// Clients — реализации сервисов стадий на AWS.
type Clients struct {
	Glue   *Glue
	Stacks *Stacks
}

// NewClients создаёт клиентов Glue и CloudFormation из общей конфигурации.
func NewClients(cfg aws.Config) *Clients {
	return &Clients{
		Glue:   NewGlue(glue.NewFromConfig(cfg)),
		Stacks: NewStacks(cloudformation.NewFromConfig(cfg)),
	}
}
