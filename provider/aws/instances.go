package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

// ListTaggedResources finds instances through EC2 tag filters, so matching
// happens server-side. Terminated instances linger in DescribeInstances for
// a while and are excluded up front.
func (p *Provider) ListTaggedResources(ctx context.Context, selector fleet.TagSelector) ([]fleet.TaggedResource, error) {
	filters := []ec2types.Filter{
		{Name: awssdk.String("tag:" + fleet.TagProject), Values: []string{selector.Project}},
		{Name: awssdk.String("tag:" + fleet.TagEnvironment), Values: []string{selector.Environment}},
		{Name: awssdk.String("tag:" + fleet.TagRole), Values: []string{selector.Role}},
		{Name: awssdk.String("instance-state-name"), Values: []string{"pending", "running", "stopping", "stopped"}},
	}
	if selector.Lifecycle != "" {
		filters = append(filters, ec2types.Filter{Name: awssdk.String("tag:" + fleet.TagLifecycle), Values: []string{selector.Lifecycle}})
	}

	var resources []fleet.TaggedResource
	paginator := ec2.NewDescribeInstancesPaginator(p.instances, &ec2.DescribeInstancesInput{Filters: filters})
	for paginator.HasMorePages() {
		page, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() (*ec2.DescribeInstancesOutput, error) {
			return paginator.NextPage(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				resources = append(resources, fleet.TaggedResource{
					ID:         awssdk.ToString(instance.InstanceId),
					Tags:       tagsToMap(instance.Tags),
					PowerState: powerState(instance.State),
				})
			}
		}
	}
	return resources, nil
}

func (p *Provider) SetPowerState(ctx context.Context, resourceID string, state fleet.PowerState) error {
	switch state {
	case fleet.PowerRunning:
		err := internal.Retry(ctx, internal.DefaultAttempts, func() error {
			_, err := p.instances.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{resourceID}})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to start instance '%s': %w", resourceID, err)
		}
	case fleet.PowerStopped:
		err := internal.Retry(ctx, internal.DefaultAttempts, func() error {
			_, err := p.instances.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{resourceID}})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to stop instance '%s': %w", resourceID, err)
		}
	default:
		return fmt.Errorf("unsupported power state '%s'", state)
	}
	return nil
}

func tagsToMap(tags []ec2types.Tag) map[string]string {
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		result[awssdk.ToString(tag.Key)] = awssdk.ToString(tag.Value)
	}
	return result
}

func powerState(state *ec2types.InstanceState) fleet.PowerState {
	if state == nil {
		return fleet.PowerUnknown
	}
	switch state.Name {
	case ec2types.InstanceStateNameRunning:
		return fleet.PowerRunning
	case ec2types.InstanceStateNamePending:
		return fleet.PowerPending
	case ec2types.InstanceStateNameStopping, ec2types.InstanceStateNameShuttingDown:
		return fleet.PowerStopping
	case ec2types.InstanceStateNameStopped:
		return fleet.PowerStopped
	}
	return fleet.PowerUnknown
}
