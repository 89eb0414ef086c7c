// Package aws adapts EC2 GPU fleets: Service Quotas for vCPU limits, Auto
// Scaling groups for capacity, and tag-filtered instances for the sweep.
package aws

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/servicequotas"

	"github.com/nimbuslab/flotilla/fleet"
)

// quotasClient is the subset of the Service Quotas API the provider uses.
type quotasClient interface {
	GetServiceQuota(ctx context.Context, params *servicequotas.GetServiceQuotaInput, optFns ...func(*servicequotas.Options)) (*servicequotas.GetServiceQuotaOutput, error)
}

// groupsClient is the subset of the Auto Scaling API the provider uses.
type groupsClient interface {
	DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
	UpdateAutoScalingGroup(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error)
}

// instancesClient is the subset of the EC2 API the provider uses.
type instancesClient interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeInstanceTypes(ctx context.Context, params *ec2.DescribeInstanceTypesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
}

type Provider struct {
	log       *slog.Logger
	quotas    quotasClient
	groups    groupsClient
	instances instancesClient
}

// Provider implements fleet.Provider
var _ fleet.Provider = (*Provider)(nil)

// Provider implements fleet.CatalogProvider
var _ fleet.CatalogProvider = (*Provider)(nil)

func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	var optFns []func(*config.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newProvider(
		servicequotas.NewFromConfig(awsConfig),
		autoscaling.NewFromConfig(awsConfig),
		ec2.NewFromConfig(awsConfig),
		cfg,
	), nil
}

func newProvider(quotas quotasClient, groups groupsClient, instances instancesClient, cfg Config) *Provider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		log:       logger.With("provider", "aws"),
		quotas:    quotas,
		groups:    groups,
		instances: instances,
	}
}

func (p *Provider) Name() string {
	return "aws"
}
