package azure

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

// DiscoverCatalog enumerates the virtual machine SKUs of a family available
// in the location. The family is an Azure SKU family name, the same name the
// usage API reports quota under.
func (p *Provider) DiscoverCatalog(ctx context.Context, family string) (fleet.Catalog, error) {
	skus, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() ([]*armcompute.ResourceSKU, error) {
		var all []*armcompute.ResourceSKU
		pager := p.skus.NewListPager(&armcompute.ResourceSKUsClientListOptions{
			Filter: to.Ptr(fmt.Sprintf("location eq '%s'", p.location)),
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
		return nil, fmt.Errorf("failed to list resource SKUs in '%s': %w", p.location, err)
	}

	var catalog fleet.Catalog
	for _, sku := range skus {
		if sku.Name == nil || sku.ResourceType == nil || *sku.ResourceType != "virtualMachines" {
			continue
		}
		if sku.Family == nil || *sku.Family != family {
			continue
		}
		class, err := instanceClass(sku, family)
		if err != nil {
			p.log.Warn("Skipping SKU", "sku", *sku.Name, "error", err)
			continue
		}
		catalog = append(catalog, class)
	}

	slices.SortFunc(catalog, func(a, b fleet.InstanceClass) int {
		return int(a.VCPUs) - int(b.VCPUs)
	})
	return catalog, nil
}

func instanceClass(sku *armcompute.ResourceSKU, family string) (fleet.InstanceClass, error) {
	class := fleet.InstanceClass{
		Name:   *sku.Name,
		Family: family,
	}
	for _, capability := range sku.Capabilities {
		if capability.Name == nil || capability.Value == nil {
			continue
		}
		switch *capability.Name {
		case "vCPUs":
			value, err := strconv.ParseInt(*capability.Value, 10, 32)
			if err != nil {
				return fleet.InstanceClass{}, fmt.Errorf("failed to parse vCPUs capability of '%s': %w", class.Name, err)
			}
			class.VCPUs = int32(value)
		case "GPUs":
			value, err := strconv.ParseInt(*capability.Value, 10, 32)
			if err != nil {
				return fleet.InstanceClass{}, fmt.Errorf("failed to parse GPUs capability of '%s': %w", class.Name, err)
			}
			class.AcceleratorCount = int32(value)
		}
	}
	if class.VCPUs == 0 {
		return fleet.InstanceClass{}, fmt.Errorf("vCPUs capability not found on '%s'", class.Name)
	}
	return class, nil
}
