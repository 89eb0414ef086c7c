package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	autoscalingtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

// GetGroupCapacity reads the Auto Scaling group backing a capacity-managed
// group. A missing group is permanent: it is reported without burning the
// retry budget.
func (p *Provider) GetGroupCapacity(ctx context.Context, groupID string) (fleet.FleetTarget, error) {
	group, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() (*autoscalingtypes.AutoScalingGroup, error) {
		output, err := p.groups.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
			AutoScalingGroupNames: []string{groupID},
		})
		if err != nil {
			return nil, err
		}
		if len(output.AutoScalingGroups) == 0 {
			return nil, internal.Permanent(fmt.Errorf("%w: auto scaling group '%s'", fleet.ErrGroupNotFound, groupID))
		}
		return &output.AutoScalingGroups[0], nil
	})
	if err != nil {
		return fleet.FleetTarget{}, err
	}

	return fleet.FleetTarget{
		GroupID: groupID,
		Desired: awssdk.ToInt32(group.DesiredCapacity),
		Min:     awssdk.ToInt32(group.MinSize),
		Max:     awssdk.ToInt32(group.MaxSize),
	}, nil
}

func (p *Provider) SetGroupCapacity(ctx context.Context, groupID string, desired, min int32) error {
	err := internal.Retry(ctx, internal.DefaultAttempts, func() error {
		_, err := p.groups.UpdateAutoScalingGroup(ctx, &autoscaling.UpdateAutoScalingGroupInput{
			AutoScalingGroupName: awssdk.String(groupID),
			DesiredCapacity:      awssdk.Int32(desired),
			MinSize:              awssdk.Int32(min),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update auto scaling group '%s': %w", groupID, err)
	}

	p.log.Debug("Updated auto scaling group", "group", groupID, "desired", desired, "min", min)
	return nil
}
