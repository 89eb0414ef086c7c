package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/plan"
	"github.com/nimbuslab/flotilla/provider/aws"
	"github.com/nimbuslab/flotilla/provider/azure"
	"github.com/nimbuslab/flotilla/provider/local"
	"github.com/nimbuslab/flotilla/provider/openstack"
	"github.com/nimbuslab/flotilla/server/flags"
	"github.com/nimbuslab/flotilla/server/log"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

var fleetPlan *plan.Plan
var fleetProvider fleet.Provider
var fleetCatalog fleet.Catalog
var fleetScheduler *fleet.Scheduler
var fleetResolver *fleet.Resolver

func createFleet() error {
	planFile := viper.GetString(flags.PlanFile)
	loaded, err := plan.Load(planFile)
	if err != nil {
		return fmt.Errorf("unable to load fleet plan '%s': %w", planFile, err)
	}
	fleetPlan = loaded

	provider, err := createProvider()
	if err != nil {
		return fmt.Errorf("unable to create provider '%s': %w", viper.GetString(flags.Provider), err)
	}

	config := fleet.Config{
		Logger:           log.Base,
		Groups:           fleetPlan.GroupSpecs(),
		SweepConcurrency: viper.GetInt(flags.SweepConcurrency),
	}
	if err := fleet.Validate(config); err != nil {
		return fmt.Errorf("invalid fleet config: %w", err)
	}

	fleetProvider = newTimeoutProvider(provider, viper.GetDuration(flags.ProviderTimeout))
	fleetCatalog = createCatalog(provider)
	fleetScheduler = fleet.NewScheduler(fleetProvider, config)
	fleetResolver = fleet.NewResolver(fleetProvider, fleetCatalog, log.Base)

	log.Info("Fleet plan loaded",
		"project", fleetPlan.Project,
		"environment", fleetPlan.Environment,
		"groups", len(fleetPlan.Groups),
		"catalog", len(fleetCatalog),
	)
	return nil
}

func createProvider() (fleet.Provider, error) {
	logger := log.Base.With("component", "provider")
	switch p := viper.GetString(flags.Provider); p {
	case "local":
		config := local.Config{
			Logger:     logger,
			QuotaVCPUs: int32(viper.GetInt(flags.LocalQuotaVcpus)),
		}
		logger.Debug("Provider config", "provider", p, "config", string(lo.Must(json.Marshal(config))))
		return local.NewProvider(config)

	case "aws":
		config := aws.Config{
			Logger: logger,
			Region: viper.GetString(flags.AwsRegion),
		}
		logger.Debug("Provider config", "provider", p, "config", string(lo.Must(json.Marshal(config))))
		return aws.NewProvider(ctx, config)

	case "azure":
		config := azure.Config{
			Logger:         logger,
			SubscriptionID: viper.GetString(flags.AzureSubscriptionId),
			ResourceGroup:  viper.GetString(flags.AzureResourceGroup),
			Location:       viper.GetString(flags.AzureLocation),
		}
		logger.Debug("Provider config", "provider", p, "config", string(lo.Must(json.Marshal(config))))
		return azure.NewProvider(config)

	case "openstack":
		config := openstack.Config{
			Logger: logger,
			Region: viper.GetString(flags.OpenstackRegion),
		}
		logger.Debug("Provider config", "provider", p, "config", string(lo.Must(json.Marshal(config))))
		return openstack.NewProvider(config)

	default:
		return nil, fmt.Errorf("unknown provider")
	}
}

// createCatalog merges the declared catalog with provider discovery: classes
// the provider knows for the declared families are added, declared classes
// win on conflicts.
func createCatalog(provider fleet.Provider) fleet.Catalog {
	catalog := fleetPlan.FleetCatalog()

	discoverer, ok := provider.(fleet.CatalogProvider)
	if !ok {
		return catalog
	}

	families := lo.Uniq(lo.Map(catalog, func(class fleet.InstanceClass, _ int) string {
		return class.Family
	}))
	for _, family := range families {
		discoveryCtx, cancel := context.WithTimeout(ctx, viper.GetDuration(flags.ProviderTimeout))
		discovered, err := discoverer.DiscoverCatalog(discoveryCtx, family)
		cancel()
		if err != nil {
			log.Warn("Catalog discovery failed, keeping the declared classes", "family", family, "error", err)
			continue
		}

		for _, class := range discovered {
			if _, declared := catalog.Lookup(class.Name); !declared {
				catalog = append(catalog, class)
			}
		}
		log.Debug("Discovered instance classes", "family", family, "classes", len(discovered))
	}
	return catalog
}

// invokeTrigger runs one invocation and records its result wherever results
// go. Both the dispatcher and the trigger endpoint funnel through here.
func invokeTrigger(ctx context.Context, trigger fleet.Trigger) *fleet.ReconciliationResult {
	result := fleetScheduler.Invoke(ctx, trigger)
	results.Record(result)
	return result
}
