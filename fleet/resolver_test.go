package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCatalog = Catalog{
	{Name: "g4dn.xlarge", VCPUs: 4, AcceleratorCount: 1, AcceleratorType: "nvidia-t4", Family: "g4dn"},
	{Name: "g4dn.2xlarge", VCPUs: 8, AcceleratorCount: 1, AcceleratorType: "nvidia-t4", Family: "g4dn"},
	{Name: "g4dn.4xlarge", VCPUs: 16, AcceleratorCount: 1, AcceleratorType: "nvidia-t4", Family: "g4dn"},
	{Name: "g4dn.12xlarge", VCPUs: 48, AcceleratorCount: 4, AcceleratorType: "nvidia-t4", Family: "g4dn"},
	{Name: "g5.xlarge", VCPUs: 4, AcceleratorCount: 1, AcceleratorType: "nvidia-a10g", Family: "g5"},
}

func quotaPair(spot, onDemand int32) QuotaSet {
	now := time.Now()
	return QuotaSet{
		Spot:     &QuotaSnapshot{Family: "g4dn", PricingModel: PricingSpot, LimitVCPUs: spot, AsOf: now},
		OnDemand: &QuotaSnapshot{Family: "g4dn", PricingModel: PricingOnDemand, LimitVCPUs: onDemand, AsOf: now},
	}
}

func classNames(alternatives []Alternative) []string {
	return lo.Map(alternatives, func(alt Alternative, _ int) string {
		return alt.Class.Name
	})
}

func TestResolvePrefersSpotWhenBothAdmit(t *testing.T) {
	desired, _ := testCatalog.Lookup("g4dn.2xlarge")

	decision, err := Resolve(desired, testCatalog, quotaPair(32, 32))

	require.NoError(t, err)
	require.NotNil(t, decision.ChosenClass)
	assert.Equal(t, "g4dn.2xlarge", decision.ChosenClass.Name)
	assert.Equal(t, PricingSpot, decision.ChosenPricingModel)
	assert.Empty(t, decision.Alternatives)
}

func TestResolveSpotOnly(t *testing.T) {
	desired, _ := testCatalog.Lookup("g4dn.2xlarge")

	decision, err := Resolve(desired, testCatalog, quotaPair(8, 0))

	require.NoError(t, err)
	require.NotNil(t, decision.ChosenClass)
	assert.Equal(t, PricingSpot, decision.ChosenPricingModel)
}

func TestResolveFallsBackToOnDemand(t *testing.T) {
	desired, _ := testCatalog.Lookup("g4dn.2xlarge")

	decision, err := Resolve(desired, testCatalog, quotaPair(4, 8))

	require.NoError(t, err)
	require.NotNil(t, decision.ChosenClass)
	assert.Equal(t, PricingOnDemand, decision.ChosenPricingModel)
}

func TestResolveNoCapacityIsTerminal(t *testing.T) {
	desired, _ := testCatalog.Lookup("g4dn.xlarge")

	decision, err := Resolve(desired, testCatalog, quotaPair(0, 0))

	// Exhausted quota is an answer, not a failure.
	require.NoError(t, err)
	assert.False(t, decision.Feasible())
	assert.Nil(t, decision.ChosenClass)
	assert.Empty(t, decision.Alternatives)
}

func TestResolveRanksAlternativesByVCPUs(t *testing.T) {
	desired, _ := testCatalog.Lookup("g4dn.12xlarge")

	decision, err := Resolve(desired, testCatalog, quotaPair(0, 16))

	require.NoError(t, err)
	assert.Nil(t, decision.ChosenClass)
	assert.Equal(t, []string{"g4dn.4xlarge", "g4dn.2xlarge", "g4dn.xlarge"}, classNames(decision.Alternatives))
	for _, alt := range decision.Alternatives {
		assert.Equal(t, []PricingModel{PricingOnDemand}, alt.PricingModels)
	}
}

func TestResolveAlternativePricingModels(t *testing.T) {
	desired, _ := testCatalog.Lookup("g4dn.12xlarge")

	decision, err := Resolve(desired, testCatalog, quotaPair(8, 16))

	require.NoError(t, err)
	require.Equal(t, []string{"g4dn.4xlarge", "g4dn.2xlarge", "g4dn.xlarge"}, classNames(decision.Alternatives))
	assert.Equal(t, []PricingModel{PricingOnDemand}, decision.Alternatives[0].PricingModels)
	assert.Equal(t, []PricingModel{PricingSpot, PricingOnDemand}, decision.Alternatives[1].PricingModels)
	assert.Equal(t, []PricingModel{PricingSpot, PricingOnDemand}, decision.Alternatives[2].PricingModels)
}

func TestResolveNeverOffersOtherFamilies(t *testing.T) {
	desired, _ := testCatalog.Lookup("g4dn.12xlarge")

	decision, err := Resolve(desired, testCatalog, quotaPair(4, 4))

	require.NoError(t, err)
	assert.NotContains(t, classNames(decision.Alternatives), "g5.xlarge")
}

func TestResolveEqualVCPUAlternativesAllListed(t *testing.T) {
	// Private-cloud flavors with memory variants share vCPU counts.
	catalog := Catalog{
		{Name: "gpu.small", VCPUs: 4, AcceleratorCount: 1, AcceleratorType: "nvidia-t4", Family: "gpu-general"},
		{Name: "gpu.medium", VCPUs: 8, AcceleratorCount: 1, AcceleratorType: "nvidia-t4", Family: "gpu-general"},
		{Name: "gpu.medium.highmem", VCPUs: 8, AcceleratorCount: 1, AcceleratorType: "nvidia-t4", Family: "gpu-general"},
		{Name: "gpu.xlarge", VCPUs: 16, AcceleratorCount: 2, AcceleratorType: "nvidia-t4", Family: "gpu-general"},
	}
	desired, _ := catalog.Lookup("gpu.xlarge")
	quotas := QuotaSet{Spot: &QuotaSnapshot{Family: "gpu-general", PricingModel: PricingSpot, LimitVCPUs: 8}}

	decision, err := Resolve(desired, catalog, quotas)

	require.NoError(t, err)
	assert.Equal(t, []string{"gpu.medium", "gpu.medium.highmem", "gpu.small"}, classNames(decision.Alternatives))
}

func TestResolveRejectsZeroVCPUs(t *testing.T) {
	_, err := Resolve(InstanceClass{Name: "broken", VCPUs: 0, Family: "g4dn"}, testCatalog, quotaPair(32, 32))

	var invalid *InvalidInstanceClassError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "broken", invalid.Name)
}

func TestResolveRejectsUnknownFamily(t *testing.T) {
	_, err := Resolve(InstanceClass{Name: "orphan", VCPUs: 4}, testCatalog, quotaPair(32, 32))

	var invalid *InvalidInstanceClassError
	require.ErrorAs(t, err, &invalid)
}

func newTestResolver(provider Provider, catalog Catalog) *Resolver {
	return NewResolver(provider, catalog, newTestLogger())
}

func TestResolverFailsUnknownClassBeforeQuotaLookup(t *testing.T) {
	provider := newMockProvider()

	_, err := newTestResolver(provider, testCatalog).Resolve(context.Background(), "p4d.24xlarge")

	var invalid *InvalidInstanceClassError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, provider.quotaCalls)
}

func TestResolverValidatesClassBeforeQuotaLookup(t *testing.T) {
	provider := newMockProvider()
	catalog := append(Catalog{}, testCatalog...)
	catalog = append(catalog, InstanceClass{Name: "g4dn.misconfigured", VCPUs: 0, Family: "g4dn"})

	_, err := newTestResolver(provider, catalog).Resolve(context.Background(), "g4dn.misconfigured")

	var invalid *InvalidInstanceClassError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, provider.quotaCalls)
}

func TestResolverDegradesOnQuotaOutage(t *testing.T) {
	provider := newMockProvider()
	provider.quotaErr = errors.New("service unavailable")

	decision, err := newTestResolver(provider, testCatalog).Resolve(context.Background(), "g4dn.xlarge")

	require.NoError(t, err)
	assert.False(t, decision.Feasible())
	assert.Equal(t, 1, provider.quotaCalls)
}

func TestResolverSpotOutageDoesNotBlockOnDemand(t *testing.T) {
	provider := newMockProvider()
	provider.quota = QuotaSet{
		OnDemand: &QuotaSnapshot{Family: "g4dn", PricingModel: PricingOnDemand, LimitVCPUs: 8},
	}

	decision, err := newTestResolver(provider, testCatalog).Resolve(context.Background(), "g4dn.2xlarge")

	require.NoError(t, err)
	require.NotNil(t, decision.ChosenClass)
	assert.Equal(t, PricingOnDemand, decision.ChosenPricingModel)
}

func TestFetcherWrapsQuotaOutage(t *testing.T) {
	provider := newMockProvider()
	provider.quotaErr = errors.New("throttled")

	_, err := NewFetcher(provider, newTestLogger()).Fetch(context.Background(), "g4dn")

	assert.ErrorIs(t, err, ErrQuotaUnavailable)
}

func TestQuotaSetLimitWithMissingSnapshots(t *testing.T) {
	assert.EqualValues(t, 0, QuotaSet{}.Limit(PricingSpot))
	assert.EqualValues(t, 0, QuotaSet{}.Limit(PricingOnDemand))
}
