package openstack

import (
	"context"
	"fmt"
	"time"

	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/limits"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

// GetQuota reads the project's Nova absolute limits. Nova enforces a single
// core quota across all flavors, so every family reports the same pool, and
// there is no spot market: the spot snapshot is always absent.
func (p *Provider) GetQuota(ctx context.Context, family string) (fleet.QuotaSet, error) {
	absolute, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() (limits.Absolute, error) {
		resp, err := limits.Get(p.compute, nil).Extract()
		if err != nil {
			return limits.Absolute{}, err
		}
		return resp.Absolute, nil
	})
	if err != nil {
		return fleet.QuotaSet{}, fmt.Errorf("failed to fetch compute limits: %w", err)
	}

	return fleet.QuotaSet{
		OnDemand: &fleet.QuotaSnapshot{
			Family:       family,
			PricingModel: fleet.PricingOnDemand,
			LimitVCPUs:   int32(absolute.MaxTotalCores),
			AsOf:         time.Now(),
		},
	}, nil
}
