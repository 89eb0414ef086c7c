package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/samber/lo"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

// powerStatePrefix marks the status carrying the machine's power state among
// the provisioning and health statuses of an instance view.
const powerStatePrefix = "PowerState/"

func (p *Provider) ListTaggedResources(ctx context.Context, selector fleet.TagSelector) ([]fleet.TaggedResource, error) {
	machines, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() ([]*armcompute.VirtualMachine, error) {
		var all []*armcompute.VirtualMachine
		pager := p.machines.NewListPager(p.resourceGroup, &armcompute.VirtualMachinesClientListOptions{
			Expand: to.Ptr(armcompute.ExpandTypeForListVMsInstanceView),
		})
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return nil, err
			}
			all = append(all, page.Value...)
		}
		return all, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list virtual machines in '%s': %w", p.resourceGroup, err)
	}

	// The ARM list API cannot filter on tags, so the selector is applied here.
	return lo.FilterMap(machines, func(machine *armcompute.VirtualMachine, _ int) (fleet.TaggedResource, bool) {
		if machine.Name == nil {
			return fleet.TaggedResource{}, false
		}
		tags := tagsToMap(machine.Tags)
		if !selector.Matches(tags) {
			return fleet.TaggedResource{}, false
		}
		return fleet.TaggedResource{
			ID:         *machine.Name,
			Tags:       tags,
			PowerState: powerState(machine.Properties),
		}, true
	}), nil
}

func (p *Provider) SetPowerState(ctx context.Context, resourceID string, state fleet.PowerState) error {
	// Transitions are fired without polling the operation: the next sweep
	// observes whether the machine converged.
	switch state {
	case fleet.PowerRunning:
		err := internal.Retry(ctx, internal.DefaultAttempts, func() error {
			_, err := p.machines.BeginStart(ctx, p.resourceGroup, resourceID, nil)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to start virtual machine '%s': %w", resourceID, err)
		}
	case fleet.PowerStopped:
		// Deallocate rather than stop: a stopped machine keeps billing.
		err := internal.Retry(ctx, internal.DefaultAttempts, func() error {
			_, err := p.machines.BeginDeallocate(ctx, p.resourceGroup, resourceID, nil)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to deallocate virtual machine '%s': %w", resourceID, err)
		}
	default:
		return fmt.Errorf("unsupported power state '%s'", state)
	}
	return nil
}

func tagsToMap(tags map[string]*string) map[string]string {
	out := make(map[string]string, len(tags))
	for key, value := range tags {
		if value != nil {
			out[key] = *value
		}
	}
	return out
}

func powerState(properties *armcompute.VirtualMachineProperties) fleet.PowerState {
	if properties == nil || properties.InstanceView == nil {
		return fleet.PowerUnknown
	}
	for _, status := range properties.InstanceView.Statuses {
		if status.Code == nil {
			continue
		}
		code, ok := strings.CutPrefix(*status.Code, powerStatePrefix)
		if !ok {
			continue
		}
		switch code {
		case "running":
			return fleet.PowerRunning
		case "starting":
			return fleet.PowerPending
		case "stopping", "deallocating":
			return fleet.PowerStopping
		case "stopped", "deallocated":
			return fleet.PowerStopped
		}
	}
	return fleet.PowerUnknown
}
