package openstack

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/startstop"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/samber/lo"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

func (p *Provider) ListTaggedResources(ctx context.Context, selector fleet.TagSelector) ([]fleet.TaggedResource, error) {
	all, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() ([]servers.Server, error) {
		pages, err := servers.List(p.compute, servers.ListOpts{}).AllPages()
		if err != nil {
			return nil, err
		}
		return servers.ExtractServers(pages)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	// Nova cannot filter on metadata server-side, so the selector is applied
	// here.
	return lo.FilterMap(all, func(server servers.Server, _ int) (fleet.TaggedResource, bool) {
		if !selector.Matches(server.Metadata) {
			return fleet.TaggedResource{}, false
		}
		return fleet.TaggedResource{
			ID:         server.ID,
			Tags:       server.Metadata,
			PowerState: powerState(server.Status),
		}, true
	}), nil
}

func (p *Provider) SetPowerState(ctx context.Context, resourceID string, state fleet.PowerState) error {
	switch state {
	case fleet.PowerRunning:
		err := internal.Retry(ctx, internal.DefaultAttempts, func() error {
			return startstop.Start(p.compute, resourceID).ExtractErr()
		})
		if err != nil {
			return fmt.Errorf("failed to start server '%s': %w", resourceID, err)
		}
	case fleet.PowerStopped:
		err := internal.Retry(ctx, internal.DefaultAttempts, func() error {
			return startstop.Stop(p.compute, resourceID).ExtractErr()
		})
		if err != nil {
			return fmt.Errorf("failed to stop server '%s': %w", resourceID, err)
		}
	default:
		return fmt.Errorf("unsupported power state '%s'", state)
	}
	return nil
}

func powerState(status string) fleet.PowerState {
	switch status {
	case "ACTIVE":
		return fleet.PowerRunning
	case "BUILD", "REBOOT", "HARD_REBOOT", "REBUILD":
		return fleet.PowerPending
	case "SHUTOFF":
		return fleet.PowerStopped
	default:
		return fleet.PowerUnknown
	}
}
