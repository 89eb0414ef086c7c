package fleet

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/samber/lo"
)

// Alternative is one same-family substitute for an infeasible class, with
// the pricing models whose quota admits it.
type Alternative struct {
	Class         InstanceClass  `json:"class"`
	PricingModels []PricingModel `json:"pricingModels"`
}

// ResolutionDecision is the outcome of resolving a desired instance class
// against the current quota. Exactly one of three shapes comes back: the
// class itself with a chosen pricing model, a ranked list of same-family
// alternatives, or neither when the family has no capacity at all.
type ResolutionDecision struct {
	ChosenClass        *InstanceClass `json:"chosenClass,omitempty"`
	ChosenPricingModel PricingModel   `json:"chosenPricingModel,omitempty"`
	Alternatives       []Alternative  `json:"alternatives,omitempty"`
}

// Feasible reports whether the decision offers any way forward.
func (d ResolutionDecision) Feasible() bool {
	return d.ChosenClass != nil || len(d.Alternatives) > 0
}

// Resolve decides whether the desired class fits under the family's current
// quota, preferring spot capacity over on-demand at equal feasibility. When
// the class fits under neither pricing model, smaller classes of the same
// family are offered as substitutes, closest match first.
//
// The decision is pure: same inputs, same outcome. Quota snapshots must be
// fetched fresh by the caller on every resolution.
func Resolve(desired InstanceClass, catalog Catalog, quotas QuotaSet) (ResolutionDecision, error) {
	if err := validateClass(desired); err != nil {
		return ResolutionDecision{}, err
	}

	// Spot before on-demand, always.
	for _, model := range []PricingModel{PricingSpot, PricingOnDemand} {
		if quotas.Limit(model) >= desired.VCPUs {
			chosen := desired
			return ResolutionDecision{ChosenClass: &chosen, ChosenPricingModel: model}, nil
		}
	}

	// The desired class fits nowhere; every same-family class small enough
	// for the roomier pricing model is a substitute. All of them are
	// strictly smaller than the desired class.
	roomiest := max(quotas.Limit(PricingSpot), quotas.Limit(PricingOnDemand))
	candidates := lo.Filter(catalog.Family(desired.Family), func(class InstanceClass, _ int) bool {
		return class.VCPUs > 0 && class.VCPUs <= roomiest
	})
	slices.SortStableFunc(candidates, func(a, b InstanceClass) int {
		return int(b.VCPUs) - int(a.VCPUs)
	})

	alternatives := lo.Map(candidates, func(class InstanceClass, _ int) Alternative {
		models := lo.Filter([]PricingModel{PricingSpot, PricingOnDemand}, func(model PricingModel, _ int) bool {
			return quotas.Limit(model) >= class.VCPUs
		})
		return Alternative{Class: class, PricingModels: models}
	})

	return ResolutionDecision{Alternatives: alternatives}, nil
}

func validateClass(desired InstanceClass) error {
	if desired.VCPUs <= 0 {
		return &InvalidInstanceClassError{Name: desired.Name, Reason: "vCPU count must be positive"}
	}
	if desired.Family == "" {
		return &InvalidInstanceClassError{Name: desired.Name, Reason: "accelerator family is unknown"}
	}
	return nil
}

// Resolver binds Resolve to a provider's quota service and a catalog.
type Resolver struct {
	fetcher *Fetcher
	catalog Catalog
	log     *slog.Logger
}

func NewResolver(provider Provider, catalog Catalog, logger *slog.Logger) *Resolver {
	return &Resolver{
		fetcher: NewFetcher(provider, logger),
		catalog: catalog,
		log:     logger.With("component", "resolver"),
	}
}

// Resolve looks the class up in the catalog, fetches a fresh quota snapshot
// for its family and decides. A quota service outage degrades to a zero
// quota assumption; an unknown or malformed class fails the call.
func (r *Resolver) Resolve(ctx context.Context, className string) (*ResolutionDecision, error) {
	desired, ok := r.catalog.Lookup(className)
	if !ok {
		return nil, &InvalidInstanceClassError{Name: className, Reason: "not in the catalog"}
	}
	// A malformed class must fail before any quota is consulted.
	if err := validateClass(desired); err != nil {
		return nil, err
	}

	quotas, err := r.fetcher.Fetch(ctx, desired.Family)
	if err != nil {
		if !errors.Is(err, ErrQuotaUnavailable) {
			return nil, err
		}
		r.log.Warn("Quota service unavailable, resolving under a zero quota assumption", "class", className, "error", err)
	}

	decision, err := Resolve(desired, r.catalog, quotas)
	if err != nil {
		return nil, err
	}

	switch {
	case decision.ChosenClass != nil:
		r.log.Info("Resolved instance class", "class", className, "pricingModel", decision.ChosenPricingModel)
	case len(decision.Alternatives) > 0:
		r.log.Info("Instance class infeasible, offering substitutes", "class", className, "alternatives", len(decision.Alternatives))
	default:
		r.log.Warn("No capacity for family under any pricing model", "class", className, "family", desired.Family)
	}

	return &decision, nil
}
