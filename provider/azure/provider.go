// Package azure adapts Azure GPU fleets: compute usage for vCPU limits,
// virtual machine scale sets for capacity, and tagged virtual machines for
// the sweep.
package azure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"

	"github.com/nimbuslab/flotilla/fleet"
)

// usageClient is the subset of the compute usage API the provider uses.
type usageClient interface {
	NewListPager(location string, options *armcompute.UsageClientListOptions) *runtime.Pager[armcompute.UsageClientListResponse]
}

// scaleSetsClient is the subset of the scale set API the provider uses.
type scaleSetsClient interface {
	Get(ctx context.Context, resourceGroupName string, vmScaleSetName string, options *armcompute.VirtualMachineScaleSetsClientGetOptions) (armcompute.VirtualMachineScaleSetsClientGetResponse, error)
	BeginUpdate(ctx context.Context, resourceGroupName string, vmScaleSetName string, parameters armcompute.VirtualMachineScaleSetUpdate, options *armcompute.VirtualMachineScaleSetsClientBeginUpdateOptions) (*runtime.Poller[armcompute.VirtualMachineScaleSetsClientUpdateResponse], error)
}

// machinesClient is the subset of the virtual machine API the provider uses.
type machinesClient interface {
	NewListPager(resourceGroupName string, options *armcompute.VirtualMachinesClientListOptions) *runtime.Pager[armcompute.VirtualMachinesClientListResponse]
	BeginStart(ctx context.Context, resourceGroupName string, vmName string, options *armcompute.VirtualMachinesClientBeginStartOptions) (*runtime.Poller[armcompute.VirtualMachinesClientStartResponse], error)
	BeginDeallocate(ctx context.Context, resourceGroupName string, vmName string, options *armcompute.VirtualMachinesClientBeginDeallocateOptions) (*runtime.Poller[armcompute.VirtualMachinesClientDeallocateResponse], error)
}

// skusClient is the subset of the resource SKU API the provider uses.
type skusClient interface {
	NewListPager(options *armcompute.ResourceSKUsClientListOptions) *runtime.Pager[armcompute.ResourceSKUsClientListResponse]
}

type Provider struct {
	log           *slog.Logger
	usage         usageClient
	scaleSets     scaleSetsClient
	machines      machinesClient
	skus          skusClient
	resourceGroup string
	location      string
}

// Provider implements fleet.Provider
var _ fleet.Provider = (*Provider)(nil)

// Provider implements fleet.CatalogProvider
var _ fleet.CatalogProvider = (*Provider)(nil)

func NewProvider(cfg Config) (*Provider, error) {
	if cfg.SubscriptionID == "" || cfg.ResourceGroup == "" || cfg.Location == "" {
		return nil, errors.New("subscription-id, resource-group and location must be configured")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain Azure credentials: %w", err)
	}

	usage, err := armcompute.NewUsageClient(cfg.SubscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init usage client: %w", err)
	}
	scaleSets, err := armcompute.NewVirtualMachineScaleSetsClient(cfg.SubscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init scale sets client: %w", err)
	}
	machines, err := armcompute.NewVirtualMachinesClient(cfg.SubscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init virtual machines client: %w", err)
	}
	skus, err := armcompute.NewResourceSKUsClient(cfg.SubscriptionID, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init resource SKUs client: %w", err)
	}

	return newProvider(usage, scaleSets, machines, skus, cfg), nil
}

func newProvider(usage usageClient, scaleSets scaleSetsClient, machines machinesClient, skus skusClient, cfg Config) *Provider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		log:           logger.With("provider", "azure"),
		usage:         usage,
		scaleSets:     scaleSets,
		machines:      machines,
		skus:          skus,
		resourceGroup: cfg.ResourceGroup,
		location:      cfg.Location,
	}
}

func (p *Provider) Name() string {
	return "azure"
}
