package aws

import (
	"context"
	"fmt"
	"slices"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

// DiscoverCatalog enumerates one family's instance classes straight from
// DescribeInstanceTypes, sparing plans a hand-written catalog.
func (p *Provider) DiscoverCatalog(ctx context.Context, family string) (fleet.Catalog, error) {
	input := &ec2.DescribeInstanceTypesInput{
		Filters: []ec2types.Filter{
			{Name: awssdk.String("instance-type"), Values: []string{family + ".*"}},
		},
	}

	var catalog fleet.Catalog
	paginator := ec2.NewDescribeInstanceTypesPaginator(p.instances, input)
	for paginator.HasMorePages() {
		page, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() (*ec2.DescribeInstanceTypesOutput, error) {
			return paginator.NextPage(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe instance types for family '%s': %w", family, err)
		}
		for _, info := range page.InstanceTypes {
			class, err := instanceClass(info, family)
			if err != nil {
				p.log.Warn("Skipping instance type", "error", err)
				continue
			}
			catalog = append(catalog, class)
		}
	}

	slices.SortFunc(catalog, func(a, b fleet.InstanceClass) int {
		return int(a.VCPUs) - int(b.VCPUs)
	})
	return catalog, nil
}

func instanceClass(info ec2types.InstanceTypeInfo, family string) (fleet.InstanceClass, error) {
	name := string(info.InstanceType)
	if info.VCpuInfo == nil || info.VCpuInfo.DefaultVCpus == nil {
		return fleet.InstanceClass{}, fmt.Errorf("instance type '%s' has no vCPU information", name)
	}

	class := fleet.InstanceClass{
		Name:   name,
		VCPUs:  awssdk.ToInt32(info.VCpuInfo.DefaultVCpus),
		Family: family,
	}
	if info.GpuInfo != nil {
		for _, gpu := range info.GpuInfo.Gpus {
			class.AcceleratorCount += awssdk.ToInt32(gpu.Count)
			if class.AcceleratorType == "" {
				class.AcceleratorType = acceleratorType(gpu)
			}
		}
	}
	return class, nil
}

func acceleratorType(gpu ec2types.GpuDeviceInfo) string {
	manufacturer := strings.ToLower(awssdk.ToString(gpu.Manufacturer))
	model := strings.ToLower(awssdk.ToString(gpu.Name))
	switch {
	case manufacturer == "" && model == "":
		return ""
	case manufacturer == "":
		return model
	case model == "":
		return manufacturer
	}
	return manufacturer + "-" + model
}
