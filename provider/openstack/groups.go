package openstack

import (
	"context"
	"errors"
	"fmt"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack/clustering/v1/clusters"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

func (p *Provider) GetGroupCapacity(ctx context.Context, groupID string) (fleet.FleetTarget, error) {
	cluster, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() (*clusters.Cluster, error) {
		cluster, err := clusters.Get(p.clustering, groupID).Extract()
		if err != nil {
			var errNotFound gophercloud.ErrDefault404
			if errors.As(err, &errNotFound) {
				return nil, internal.Permanent(fmt.Errorf("%w: cluster '%s'", fleet.ErrGroupNotFound, groupID))
			}
			return nil, err
		}
		return cluster, nil
	})
	if err != nil {
		return fleet.FleetTarget{}, fmt.Errorf("failed to describe cluster '%s': %w", groupID, err)
	}

	target := fleet.FleetTarget{
		GroupID: groupID,
		Desired: int32(cluster.DesiredCapacity),
		Min:     int32(cluster.MinSize),
	}
	// Senlin reports an unlimited cluster as max size -1.
	if cluster.MaxSize > 0 {
		target.Max = int32(cluster.MaxSize)
	}
	return target, nil
}

func (p *Provider) SetGroupCapacity(ctx context.Context, groupID string, desired, min int32) error {
	actionID, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() (string, error) {
		return clusters.Resize(p.clustering, groupID, clusters.ResizeOpts{
			AdjustmentType: clusters.ExactCapacityAdjustment,
			Number:         int(desired),
			MinSize:        gophercloud.IntToPointer(int(min)),
		}).Extract()
	})
	if err != nil {
		return fmt.Errorf("failed to resize cluster '%s': %w", groupID, err)
	}

	p.log.Debug("Resized cluster", "cluster", groupID, "desired", desired, "min", min, "action", actionID)
	return nil
}
