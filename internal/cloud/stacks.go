package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"

	"github.com/shaiso/Skyline/internal/stages"
)

// noUpdatesMessage — текст ValidationError, которым CloudFormation сообщает,
// что стек уже в нужном состоянии.
const noUpdatesMessage = "No updates are to be performed"

// CloudFormationAPI — методы клиента CloudFormation, которые использует пакет.
type CloudFormationAPI interface {
	UpdateStack(ctx context.Context, in *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DescribeStacks(ctx context.Context, in *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

// Stacks реализует stages.StackService.
type Stacks struct {
	api CloudFormationAPI
}

var _ stages.StackService = (*Stacks)(nil)

// NewStacks создаёт сервис поверх клиента CloudFormation.
func NewStacks(api CloudFormationAPI) *Stacks {
	return &Stacks{api: api}
}

// UpdateStack обновляет стек с предыдущим шаблоном и CAPABILITY_NAMED_IAM.
// "No updates are to be performed" возвращается как Changed=false.
func (s *Stacks) UpdateStack(ctx context.Context, name string) (stages.UpdateResult, error) {
	out, err := s.api.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:           aws.String(name),
		UsePreviousTemplate: aws.Bool(true),
		Capabilities:        []types.Capability{types.CapabilityCapabilityNamedIam},
	})
	if err != nil {
		if isNoUpdates(err) {
			return stages.UpdateResult{Changed: false}, nil
		}
		return stages.UpdateResult{}, fmt.Errorf("cloudformation update stack: %w", err)
	}

	res := stages.UpdateResult{Changed: true}
	if out.StackId != nil {
		res.StackID = *out.StackId
	}
	return res, nil
}

// StackStatus возвращает StackStatus.
func (s *Stacks) StackStatus(ctx context.Context, name string) (string, error) {
	out, err := s.api.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("cloudformation describe stacks: %w", err)
	}
	if len(out.Stacks) == 0 {
		return "", fmt.Errorf("%w: %s", ErrStackNotFound, name)
	}
	return string(out.Stacks[0].StackStatus), nil
}

func isNoUpdates(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), noUpdatesMessage)
}
