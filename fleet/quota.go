package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PricingModel is the purchasing option an instance runs under.
type PricingModel string

const (
	PricingOnDemand PricingModel = "on-demand"
	PricingSpot     PricingModel = "spot"
)

// QuotaSnapshot is a point-in-time vCPU limit for one (family, pricing model)
// pair, as reported by the provider's quota service.
type QuotaSnapshot struct {
	Family       string       `json:"family"`
	PricingModel PricingModel `json:"pricingModel"`
	LimitVCPUs   int32        `json:"limitVCPUs"`
	AsOf         time.Time    `json:"asOf"`
}

// QuotaSet holds the snapshots for both pricing models of one accelerator
// family. A nil snapshot means the lookup for that pricing model failed or
// the provider has no such market; resolution assumes zero quota for it, so
// an outage on one model never blocks resolution on the other.
type QuotaSet struct {
	OnDemand *QuotaSnapshot `json:"onDemand,omitempty"`
	Spot     *QuotaSnapshot `json:"spot,omitempty"`
}

// Limit returns the vCPU limit for the given pricing model, zero when no
// snapshot is available.
func (qs QuotaSet) Limit(model PricingModel) int32 {
	var snapshot *QuotaSnapshot
	switch model {
	case PricingOnDemand:
		snapshot = qs.OnDemand
	case PricingSpot:
		snapshot = qs.Spot
	}
	if snapshot == nil {
		return 0
	}
	return snapshot.LimitVCPUs
}

// Fetcher retrieves quota snapshots through the provider adapter. Snapshots
// are fetched fresh on every call: account limits can change between any two
// invocations, so they must never be cached.
type Fetcher struct {
	provider Provider
	log      *slog.Logger
}

func NewFetcher(provider Provider, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		provider: provider,
		log:      logger.With("component", "quota", "provider", provider.Name()),
	}
}

// Fetch returns the current quota set for a family. When the quota service
// is unreachable the returned error wraps ErrQuotaUnavailable and the set is
// empty; callers are expected to degrade to a zero-quota assumption rather
// than abort.
func (f *Fetcher) Fetch(ctx context.Context, family string) (QuotaSet, error) {
	quotas, err := f.provider.GetQuota(ctx, family)
	if err != nil {
		return QuotaSet{}, fmt.Errorf("%w: family '%s': %v", ErrQuotaUnavailable, family, err)
	}

	if quotas.OnDemand == nil || quotas.Spot == nil {
		f.log.Warn("Partial quota snapshot, missing pricing models count as zero",
			"family", family,
			"onDemand", quotas.OnDemand != nil,
			"spot", quotas.Spot != nil,
		)
	}

	return quotas, nil
}
