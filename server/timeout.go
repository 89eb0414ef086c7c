package main

import (
	"context"
	"time"

	"github.com/nimbuslab/flotilla/fleet"
)

// timeoutProvider bounds every provider call with its own deadline so a hung
// cloud API cannot pin an invocation forever.
type timeoutProvider struct {
	fleet.Provider
	timeout time.Duration
}

func newTimeoutProvider(provider fleet.Provider, timeout time.Duration) fleet.Provider {
	if timeout <= 0 {
		return provider
	}
	return timeoutProvider{Provider: provider, timeout: timeout}
}

func (p timeoutProvider) GetQuota(ctx context.Context, family string) (fleet.QuotaSet, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Provider.GetQuota(ctx, family)
}

func (p timeoutProvider) GetGroupCapacity(ctx context.Context, groupID string) (fleet.FleetTarget, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Provider.GetGroupCapacity(ctx, groupID)
}

func (p timeoutProvider) SetGroupCapacity(ctx context.Context, groupID string, desired, min int32) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Provider.SetGroupCapacity(ctx, groupID, desired, min)
}

func (p timeoutProvider) ListTaggedResources(ctx context.Context, selector fleet.TagSelector) ([]fleet.TaggedResource, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Provider.ListTaggedResources(ctx, selector)
}

func (p timeoutProvider) SetPowerState(ctx context.Context, resourceID string, state fleet.PowerState) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Provider.SetPowerState(ctx, resourceID, state)
}
