package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

func (p *Provider) GetGroupCapacity(ctx context.Context, groupID string) (fleet.FleetTarget, error) {
	scaleSet, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() (armcompute.VirtualMachineScaleSet, error) {
		resp, err := p.scaleSets.Get(ctx, p.resourceGroup, groupID, nil)
		if err != nil {
			var respErr *azcore.ResponseError
			if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
				return armcompute.VirtualMachineScaleSet{}, internal.Permanent(fmt.Errorf("%w: scale set '%s'", fleet.ErrGroupNotFound, groupID))
			}
			return armcompute.VirtualMachineScaleSet{}, err
		}
		return resp.VirtualMachineScaleSet, nil
	})
	if err != nil {
		return fleet.FleetTarget{}, fmt.Errorf("failed to describe scale set '%s': %w", groupID, err)
	}

	target := fleet.FleetTarget{GroupID: groupID}
	if scaleSet.SKU != nil && scaleSet.SKU.Capacity != nil {
		target.Desired = int32(*scaleSet.SKU.Capacity)
	}
	// Scale sets carry no capacity bounds of their own: Min stays zero and
	// Max zero means unbounded.
	return target, nil
}

func (p *Provider) SetGroupCapacity(ctx context.Context, groupID string, desired, min int32) error {
	// A scale set has no sticky minimum to store, so the minimum only floors
	// the capacity written by this update.
	capacity := max(desired, min)

	// The update is fired without polling the operation: the next capacity
	// read observes whether the platform converged.
	err := internal.Retry(ctx, internal.DefaultAttempts, func() error {
		_, err := p.scaleSets.BeginUpdate(ctx, p.resourceGroup, groupID, armcompute.VirtualMachineScaleSetUpdate{
			SKU: &armcompute.SKU{Capacity: to.Ptr(int64(capacity))},
		}, nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update scale set '%s': %w", groupID, err)
	}

	p.log.Debug("Updated scale set capacity", "scale-set", groupID, "capacity", capacity)
	return nil
}
