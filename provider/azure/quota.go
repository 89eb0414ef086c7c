package azure

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

// spotPoolUsageName is the regional core pool backing every spot machine;
// Azure does not track spot quota per family.
const spotPoolUsageName = "lowPriorityCores"

// GetQuota reads the location's compute usage. The family is matched against
// the usage names verbatim, so configured families must be Azure family usage
// names such as "standardNCASv3_T4Family".
func (p *Provider) GetQuota(ctx context.Context, family string) (fleet.QuotaSet, error) {
	usages, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() ([]*armcompute.Usage, error) {
		var all []*armcompute.Usage
		pager := p.usage.NewListPager(p.location, nil)
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
		return fleet.QuotaSet{}, fmt.Errorf("failed to list compute usage in '%s': %w", p.location, err)
	}

	now := time.Now()
	var quotas fleet.QuotaSet
	for _, usage := range usages {
		if usage.Name == nil || usage.Name.Value == nil || usage.Limit == nil {
			continue
		}
		switch *usage.Name.Value {
		case family:
			quotas.OnDemand = &fleet.QuotaSnapshot{
				Family:       family,
				PricingModel: fleet.PricingOnDemand,
				LimitVCPUs:   int32(*usage.Limit),
				AsOf:         now,
			}
		case spotPoolUsageName:
			quotas.Spot = &fleet.QuotaSnapshot{
				Family:       family,
				PricingModel: fleet.PricingSpot,
				LimitVCPUs:   int32(*usage.Limit),
				AsOf:         now,
			}
		}
	}

	if quotas.OnDemand == nil {
		return fleet.QuotaSet{}, fmt.Errorf("no compute usage found for instance family '%s' in '%s'", family, p.location)
	}
	if quotas.Spot == nil {
		p.log.Warn("Location has no low priority core pool, spot counts as unavailable", "location", p.location)
	}

	return quotas, nil
}
