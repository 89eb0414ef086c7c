package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/servicequotas"
	"github.com/aws/smithy-go"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

type familyQuotaCodes struct {
	onDemand string
	spot     string
}

// EC2 publishes GPU vCPU limits under one Service Quotas code per family
// group and pricing model.
var quotaCodesByGroup = map[string]familyQuotaCodes{
	"g": {onDemand: "L-DB2E81BA", spot: "L-3819A6DF"}, // G and VT instances
	"p": {onDemand: "L-417A185B", spot: "L-7212CCBC"}, // P instances
}

func quotaCodes(family string) (familyQuotaCodes, error) {
	switch {
	case strings.HasPrefix(family, "g"), strings.HasPrefix(family, "vt"):
		return quotaCodesByGroup["g"], nil
	case strings.HasPrefix(family, "p"):
		return quotaCodesByGroup["p"], nil
	}
	return familyQuotaCodes{}, fmt.Errorf("no quota codes known for instance family '%s'", family)
}

// GetQuota fetches both pricing model limits independently, so a failure on
// one never hides capacity available under the other. Only a double failure
// is reported as an error.
func (p *Provider) GetQuota(ctx context.Context, family string) (fleet.QuotaSet, error) {
	codes, err := quotaCodes(family)
	if err != nil {
		return fleet.QuotaSet{}, err
	}

	now := time.Now().UTC()
	var quotas fleet.QuotaSet

	onDemand, onDemandErr := p.fetchQuotaValue(ctx, codes.onDemand)
	if onDemandErr != nil {
		p.log.Warn("On-demand quota lookup failed", "family", family, "error", onDemandErr)
	} else {
		quotas.OnDemand = &fleet.QuotaSnapshot{Family: family, PricingModel: fleet.PricingOnDemand, LimitVCPUs: onDemand, AsOf: now}
	}

	spot, spotErr := p.fetchQuotaValue(ctx, codes.spot)
	if spotErr != nil {
		p.log.Warn("Spot quota lookup failed", "family", family, "error", spotErr)
	} else {
		quotas.Spot = &fleet.QuotaSnapshot{Family: family, PricingModel: fleet.PricingSpot, LimitVCPUs: spot, AsOf: now}
	}

	if onDemandErr != nil && spotErr != nil {
		return fleet.QuotaSet{}, fmt.Errorf("failed to fetch quotas for family '%s': %w", family, errors.Join(onDemandErr, spotErr))
	}
	return quotas, nil
}

func (p *Provider) fetchQuotaValue(ctx context.Context, code string) (int32, error) {
	output, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() (*servicequotas.GetServiceQuotaOutput, error) {
		output, err := p.quotas.GetServiceQuota(ctx, &servicequotas.GetServiceQuotaInput{
			ServiceCode: awssdk.String("ec2"),
			QuotaCode:   awssdk.String(code),
		})
		// A missing quota code is an account configuration problem, not an outage.
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchResourceException" {
			return nil, internal.Permanent(fmt.Errorf("quota '%s' does not exist: %w", code, err))
		}
		return output, err
	})
	if err != nil {
		return 0, err
	}
	if output.Quota == nil || output.Quota.Value == nil {
		return 0, fmt.Errorf("quota '%s' has no value", code)
	}
	return int32(*output.Quota.Value), nil
}
