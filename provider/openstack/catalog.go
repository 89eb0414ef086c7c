package openstack

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gophercloud/gophercloud/openstack/compute/v2/flavors"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

// DiscoverCatalog enumerates the flavors of a family. Families follow the
// flavor naming convention "<family>.<size>"; accelerator counts come from
// the flavor's extra specs (pci_passthrough:alias or resources:VGPU).
func (p *Provider) DiscoverCatalog(ctx context.Context, family string) (fleet.Catalog, error) {
	all, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() ([]flavors.Flavor, error) {
		pages, err := flavors.ListDetail(p.compute, flavors.ListOpts{}).AllPages()
		if err != nil {
			return nil, err
		}
		return flavors.ExtractFlavors(pages)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list flavors: %w", err)
	}

	var catalog fleet.Catalog
	for _, flavor := range all {
		if !strings.HasPrefix(flavor.Name, family+".") || flavor.VCPUs <= 0 {
			continue
		}
		specs, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() (map[string]string, error) {
			return flavors.ListExtraSpecs(p.compute, flavor.ID).Extract()
		})
		if err != nil {
			p.log.Warn("Skipping flavor, extra specs unavailable", "flavor", flavor.Name, "error", err)
			continue
		}
		count, acceleratorType := accelerator(specs)
		catalog = append(catalog, fleet.InstanceClass{
			Name:             flavor.Name,
			VCPUs:            int32(flavor.VCPUs),
			AcceleratorCount: count,
			AcceleratorType:  acceleratorType,
			Family:           family,
		})
	}

	slices.SortFunc(catalog, func(a, b fleet.InstanceClass) int {
		return int(a.VCPUs) - int(b.VCPUs)
	})
	return catalog, nil
}

// accelerator reads the GPU count and device from flavor extra specs. A
// passthrough alias reads as "<device>:<count>"; vGPU resources carry a bare
// count.
func accelerator(specs map[string]string) (int32, string) {
	if alias, ok := specs["pci_passthrough:alias"]; ok {
		device, count, found := strings.Cut(alias, ":")
		if found {
			if n, err := strconv.Atoi(count); err == nil {
				return int32(n), device
			}
		}
		return 1, device
	}
	if value, ok := specs["resources:VGPU"]; ok {
		if n, err := strconv.Atoi(value); err == nil {
			return int32(n), "vgpu"
		}
	}
	return 0, ""
}
