package azure

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuslab/flotilla/fleet"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSelector() fleet.TagSelector {
	return fleet.TagSelector{
		Project:     "ml-platform",
		Environment: "staging",
		Role:        fleet.RoleCompute,
	}
}

// newMockPager serves the given pages one by one, or fails every fetch when
// err is set.
func newMockPager[T any](err error, pages ...T) *runtime.Pager[T] {
	fetched := 0
	return runtime.NewPager(runtime.PagingHandler[T]{
		More: func(T) bool {
			if err != nil {
				return fetched == 0
			}
			return fetched < len(pages)
		},
		Fetcher: func(ctx context.Context, _ *T) (T, error) {
			if err != nil {
				var zero T
				return zero, err
			}
			page := pages[fetched]
			fetched++
			return page, nil
		},
	})
}

// --- Mock usage client ---

type mockUsage struct {
	usages    []*armcompute.Usage
	err       error
	listCalls int
}

func (m *mockUsage) NewListPager(location string, options *armcompute.UsageClientListOptions) *runtime.Pager[armcompute.UsageClientListResponse] {
	m.listCalls++
	return newMockPager(m.err, armcompute.UsageClientListResponse{
		ListUsagesResult: armcompute.ListUsagesResult{Value: m.usages},
	})
}

func computeUsage(name string, limit int64) *armcompute.Usage {
	return &armcompute.Usage{
		Name:  &armcompute.UsageName{Value: to.Ptr(name)},
		Limit: to.Ptr(limit),
	}
}

// --- Mock scale sets client ---

type mockScaleSets struct {
	capacity *int64
	getErrs  []error
	gets     int
	updates  []int64
}

func (m *mockScaleSets) Get(ctx context.Context, resourceGroupName string, vmScaleSetName string, options *armcompute.VirtualMachineScaleSetsClientGetOptions) (armcompute.VirtualMachineScaleSetsClientGetResponse, error) {
	m.gets++
	if len(m.getErrs) > 0 {
		err := m.getErrs[0]
		m.getErrs = m.getErrs[1:]
		return armcompute.VirtualMachineScaleSetsClientGetResponse{}, err
	}
	if m.capacity == nil {
		return armcompute.VirtualMachineScaleSetsClientGetResponse{}, &azcore.ResponseError{
			ErrorCode:  "ResourceNotFound",
			StatusCode: http.StatusNotFound,
		}
	}
	return armcompute.VirtualMachineScaleSetsClientGetResponse{
		VirtualMachineScaleSet: armcompute.VirtualMachineScaleSet{
			Name: to.Ptr(vmScaleSetName),
			SKU:  &armcompute.SKU{Capacity: m.capacity},
		},
	}, nil
}

func (m *mockScaleSets) BeginUpdate(ctx context.Context, resourceGroupName string, vmScaleSetName string, parameters armcompute.VirtualMachineScaleSetUpdate, options *armcompute.VirtualMachineScaleSetsClientBeginUpdateOptions) (*runtime.Poller[armcompute.VirtualMachineScaleSetsClientUpdateResponse], error) {
	if parameters.SKU != nil && parameters.SKU.Capacity != nil {
		m.updates = append(m.updates, *parameters.SKU.Capacity)
	}
	return nil, nil
}

// --- Mock virtual machines client ---

type mockMachines struct {
	machines    []*armcompute.VirtualMachine
	listErr     error
	pageSize    int
	expanded    bool
	started     []string
	deallocated []string
}

func (m *mockMachines) NewListPager(resourceGroupName string, options *armcompute.VirtualMachinesClientListOptions) *runtime.Pager[armcompute.VirtualMachinesClientListResponse] {
	m.expanded = options != nil && options.Expand != nil
	if m.listErr != nil {
		return newMockPager[armcompute.VirtualMachinesClientListResponse](m.listErr)
	}
	chunks := [][]*armcompute.VirtualMachine{m.machines}
	if m.pageSize > 0 {
		chunks = lo.Chunk(m.machines, m.pageSize)
	}
	pages := lo.Map(chunks, func(chunk []*armcompute.VirtualMachine, _ int) armcompute.VirtualMachinesClientListResponse {
		return armcompute.VirtualMachinesClientListResponse{
			VirtualMachineListResult: armcompute.VirtualMachineListResult{Value: chunk},
		}
	})
	return newMockPager(nil, pages...)
}

func (m *mockMachines) BeginStart(ctx context.Context, resourceGroupName string, vmName string, options *armcompute.VirtualMachinesClientBeginStartOptions) (*runtime.Poller[armcompute.VirtualMachinesClientStartResponse], error) {
	m.started = append(m.started, vmName)
	return nil, nil
}

func (m *mockMachines) BeginDeallocate(ctx context.Context, resourceGroupName string, vmName string, options *armcompute.VirtualMachinesClientBeginDeallocateOptions) (*runtime.Poller[armcompute.VirtualMachinesClientDeallocateResponse], error) {
	m.deallocated = append(m.deallocated, vmName)
	return nil, nil
}

func fleetMachine(name, state string) *armcompute.VirtualMachine {
	return &armcompute.VirtualMachine{
		Name: to.Ptr(name),
		Tags: map[string]*string{
			"project":     to.Ptr("ml-platform"),
			"environment": to.Ptr("staging"),
			"role":        to.Ptr("compute"),
		},
		Properties: &armcompute.VirtualMachineProperties{
			InstanceView: &armcompute.VirtualMachineInstanceView{
				Statuses: []*armcompute.InstanceViewStatus{
					{Code: to.Ptr("ProvisioningState/succeeded")},
					{Code: to.Ptr("PowerState/" + state)},
				},
			},
		},
	}
}

// --- Mock resource SKUs client ---

type mockSKUs struct {
	skus []*armcompute.ResourceSKU
	err  error
}

func (m *mockSKUs) NewListPager(options *armcompute.ResourceSKUsClientListOptions) *runtime.Pager[armcompute.ResourceSKUsClientListResponse] {
	return newMockPager(m.err, armcompute.ResourceSKUsClientListResponse{
		ResourceSKUsResult: armcompute.ResourceSKUsResult{Value: m.skus},
	})
}

func vmSKU(name, family string, capabilities map[string]string) *armcompute.ResourceSKU {
	sku := &armcompute.ResourceSKU{
		Name:         to.Ptr(name),
		ResourceType: to.Ptr("virtualMachines"),
		Family:       to.Ptr(family),
	}
	for capability, value := range capabilities {
		sku.Capabilities = append(sku.Capabilities, &armcompute.ResourceSKUCapabilities{
			Name:  to.Ptr(capability),
			Value: to.Ptr(value),
		})
	}
	return sku
}

func newTestProvider(usage *mockUsage, scaleSets *mockScaleSets, machines *mockMachines, skus *mockSKUs) *Provider {
	if usage == nil {
		usage = &mockUsage{}
	}
	if scaleSets == nil {
		scaleSets = &mockScaleSets{}
	}
	if machines == nil {
		machines = &mockMachines{}
	}
	if skus == nil {
		skus = &mockSKUs{}
	}
	return newProvider(usage, scaleSets, machines, skus, Config{
		Logger:         newTestLogger(),
		SubscriptionID: "00000000-0000-0000-0000-000000000000",
		ResourceGroup:  "rg-ml-staging",
		Location:       "westeurope",
	})
}

func TestGetQuotaReadsFamilyAndSpotPool(t *testing.T) {
	usage := &mockUsage{usages: []*armcompute.Usage{
		computeUsage("cores", 350),
		computeUsage("standardNCASv3_T4Family", 64),
		computeUsage("lowPriorityCores", 100),
	}}
	provider := newTestProvider(usage, nil, nil, nil)

	quotas, err := provider.GetQuota(context.Background(), "standardNCASv3_T4Family")

	require.NoError(t, err)
	require.NotNil(t, quotas.OnDemand)
	require.NotNil(t, quotas.Spot)
	assert.Equal(t, int32(64), quotas.OnDemand.LimitVCPUs)
	assert.Equal(t, int32(100), quotas.Spot.LimitVCPUs)
	assert.Equal(t, "standardNCASv3_T4Family", quotas.Spot.Family)
	assert.Equal(t, fleet.PricingSpot, quotas.Spot.PricingModel)
}

func TestGetQuotaWithoutSpotPool(t *testing.T) {
	usage := &mockUsage{usages: []*armcompute.Usage{
		computeUsage("standardNCASv3_T4Family", 64),
	}}
	provider := newTestProvider(usage, nil, nil, nil)

	quotas, err := provider.GetQuota(context.Background(), "standardNCASv3_T4Family")

	require.NoError(t, err)
	require.NotNil(t, quotas.OnDemand)
	assert.Nil(t, quotas.Spot)
}

func TestGetQuotaUnknownFamily(t *testing.T) {
	usage := &mockUsage{usages: []*armcompute.Usage{
		computeUsage("cores", 350),
		computeUsage("lowPriorityCores", 100),
	}}
	provider := newTestProvider(usage, nil, nil, nil)

	_, err := provider.GetQuota(context.Background(), "standardNDSH100v5Family")

	assert.ErrorContains(t, err, "no compute usage found for instance family")
	assert.Equal(t, 1, usage.listCalls)
}

func TestGetQuotaRetriesListFailures(t *testing.T) {
	usage := &mockUsage{err: errors.New("429 too many requests")}
	provider := newTestProvider(usage, nil, nil, nil)

	_, err := provider.GetQuota(context.Background(), "standardNCASv3_T4Family")

	assert.ErrorContains(t, err, "failed to list compute usage")
	assert.Equal(t, 3, usage.listCalls)
}

func TestGetGroupCapacity(t *testing.T) {
	scaleSets := &mockScaleSets{capacity: to.Ptr(int64(5))}
	provider := newTestProvider(nil, scaleSets, nil, nil)

	target, err := provider.GetGroupCapacity(context.Background(), "vmss-gpu-workers")

	require.NoError(t, err)
	assert.Equal(t, fleet.FleetTarget{GroupID: "vmss-gpu-workers", Desired: 5, Min: 0, Max: 0}, target)
}

func TestGetGroupCapacityMissingScaleSetIsNotRetried(t *testing.T) {
	scaleSets := &mockScaleSets{}
	provider := newTestProvider(nil, scaleSets, nil, nil)

	_, err := provider.GetGroupCapacity(context.Background(), "vmss-missing")

	assert.ErrorIs(t, err, fleet.ErrGroupNotFound)
	assert.Equal(t, 1, scaleSets.gets)
}

func TestGetGroupCapacityRetriesTransientFailures(t *testing.T) {
	scaleSets := &mockScaleSets{
		capacity: to.Ptr(int64(2)),
		getErrs:  []error{errors.New("503"), errors.New("503")},
	}
	provider := newTestProvider(nil, scaleSets, nil, nil)

	target, err := provider.GetGroupCapacity(context.Background(), "vmss-gpu-workers")

	require.NoError(t, err)
	assert.Equal(t, int32(2), target.Desired)
	assert.Equal(t, 3, scaleSets.gets)
}

func TestSetGroupCapacity(t *testing.T) {
	scaleSets := &mockScaleSets{capacity: to.Ptr(int64(0))}
	provider := newTestProvider(nil, scaleSets, nil, nil)

	require.NoError(t, provider.SetGroupCapacity(context.Background(), "vmss-gpu-workers", 4, 2))
	require.NoError(t, provider.SetGroupCapacity(context.Background(), "vmss-gpu-workers", 0, 0))

	assert.Equal(t, []int64{4, 0}, scaleSets.updates)
}

func TestSetGroupCapacityFloorsAtMinimum(t *testing.T) {
	scaleSets := &mockScaleSets{capacity: to.Ptr(int64(0))}
	provider := newTestProvider(nil, scaleSets, nil, nil)

	require.NoError(t, provider.SetGroupCapacity(context.Background(), "vmss-gpu-workers", 1, 3))

	assert.Equal(t, []int64{3}, scaleSets.updates)
}

func TestListTaggedResources(t *testing.T) {
	foreign := &armcompute.VirtualMachine{
		Name: to.Ptr("vm-bastion"),
		Tags: map[string]*string{
			"project":     to.Ptr("ml-platform"),
			"environment": to.Ptr("staging"),
			"role":        to.Ptr("bastion"),
		},
	}
	machines := &mockMachines{machines: []*armcompute.VirtualMachine{
		fleetMachine("vm-gpu-0", "running"),
		fleetMachine("vm-gpu-1", "deallocated"),
		foreign,
	}}
	provider := newTestProvider(nil, nil, machines, nil)

	resources, err := provider.ListTaggedResources(context.Background(), newTestSelector())

	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.True(t, machines.expanded)
	assert.Equal(t, "vm-gpu-0", resources[0].ID)
	assert.Equal(t, fleet.PowerRunning, resources[0].PowerState)
	assert.Equal(t, "vm-gpu-1", resources[1].ID)
	assert.Equal(t, fleet.PowerStopped, resources[1].PowerState)
}

func TestListTaggedResourcesPaginates(t *testing.T) {
	machines := &mockMachines{
		machines: []*armcompute.VirtualMachine{
			fleetMachine("vm-gpu-0", "running"),
			fleetMachine("vm-gpu-1", "running"),
			fleetMachine("vm-gpu-2", "running"),
			fleetMachine("vm-gpu-3", "running"),
			fleetMachine("vm-gpu-4", "running"),
		},
		pageSize: 2,
	}
	provider := newTestProvider(nil, nil, machines, nil)

	resources, err := provider.ListTaggedResources(context.Background(), newTestSelector())

	require.NoError(t, err)
	assert.Len(t, resources, 5)
}

func TestListTaggedResourcesFailure(t *testing.T) {
	machines := &mockMachines{listErr: errors.New("boom")}
	provider := newTestProvider(nil, nil, machines, nil)

	_, err := provider.ListTaggedResources(context.Background(), newTestSelector())

	assert.ErrorContains(t, err, "failed to list virtual machines")
}

func TestPowerStateMapping(t *testing.T) {
	codes := map[string]fleet.PowerState{
		"PowerState/running":      fleet.PowerRunning,
		"PowerState/starting":     fleet.PowerPending,
		"PowerState/stopping":     fleet.PowerStopping,
		"PowerState/deallocating": fleet.PowerStopping,
		"PowerState/stopped":      fleet.PowerStopped,
		"PowerState/deallocated":  fleet.PowerStopped,
		"PowerState/unplugged":    fleet.PowerUnknown,
	}
	for code, expected := range codes {
		properties := &armcompute.VirtualMachineProperties{
			InstanceView: &armcompute.VirtualMachineInstanceView{
				Statuses: []*armcompute.InstanceViewStatus{
					{Code: to.Ptr("ProvisioningState/succeeded")},
					{Code: to.Ptr(code)},
				},
			},
		}
		assert.Equal(t, expected, powerState(properties), code)
	}

	assert.Equal(t, fleet.PowerUnknown, powerState(nil))
	assert.Equal(t, fleet.PowerUnknown, powerState(&armcompute.VirtualMachineProperties{}))
}

func TestSetPowerState(t *testing.T) {
	machines := &mockMachines{}
	provider := newTestProvider(nil, nil, machines, nil)

	require.NoError(t, provider.SetPowerState(context.Background(), "vm-gpu-0", fleet.PowerRunning))
	require.NoError(t, provider.SetPowerState(context.Background(), "vm-gpu-1", fleet.PowerStopped))

	assert.Equal(t, []string{"vm-gpu-0"}, machines.started)
	assert.Equal(t, []string{"vm-gpu-1"}, machines.deallocated)
	assert.Error(t, provider.SetPowerState(context.Background(), "vm-gpu-2", fleet.PowerStopping))
}

func TestDiscoverCatalog(t *testing.T) {
	skus := &mockSKUs{skus: []*armcompute.ResourceSKU{
		vmSKU("Standard_NC16as_T4_v3", "standardNCASv3_T4Family", map[string]string{"vCPUs": "16", "GPUs": "1"}),
		vmSKU("Standard_NC4as_T4_v3", "standardNCASv3_T4Family", map[string]string{"vCPUs": "4", "GPUs": "1"}),
		vmSKU("Standard_NC64as_T4_v3", "standardNCASv3_T4Family", map[string]string{"vCPUs": "64", "GPUs": "4"}),
		vmSKU("Standard_D2s_v3", "standardDSv3Family", map[string]string{"vCPUs": "2"}),
		{
			Name:         to.Ptr("Standard_NC4as_T4_v3"),
			ResourceType: to.Ptr("disks"),
			Family:       to.Ptr("standardNCASv3_T4Family"),
		},
	}}
	provider := newTestProvider(nil, nil, nil, skus)

	catalog, err := provider.DiscoverCatalog(context.Background(), "standardNCASv3_T4Family")

	require.NoError(t, err)
	require.Len(t, catalog, 3)
	assert.Equal(t, "Standard_NC4as_T4_v3", catalog[0].Name)
	assert.Equal(t, int32(4), catalog[0].VCPUs)
	assert.Equal(t, int32(1), catalog[0].AcceleratorCount)
	assert.Equal(t, "Standard_NC64as_T4_v3", catalog[2].Name)
	assert.Equal(t, "standardNCASv3_T4Family", catalog[2].Family)
}

func TestDiscoverCatalogSkipsUnparsableSKU(t *testing.T) {
	skus := &mockSKUs{skus: []*armcompute.ResourceSKU{
		vmSKU("Standard_NC4as_T4_v3", "standardNCASv3_T4Family", map[string]string{"vCPUs": "4", "GPUs": "1"}),
		vmSKU("Standard_NC8as_T4_v3", "standardNCASv3_T4Family", map[string]string{"GPUs": "1"}),
	}}
	provider := newTestProvider(nil, nil, nil, skus)

	catalog, err := provider.DiscoverCatalog(context.Background(), "standardNCASv3_T4Family")

	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, "Standard_NC4as_T4_v3", catalog[0].Name)
}
