// Package openstack adapts private clouds: Nova absolute limits for vCPU
// quota, Senlin clusters for capacity, and metadata-tagged servers for the
// sweep. Credentials come from the usual OS_* environment variables.
package openstack

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"

	"github.com/nimbuslab/flotilla/fleet"
)

type Provider struct {
	log        *slog.Logger
	compute    *gophercloud.ServiceClient
	clustering *gophercloud.ServiceClient
}

// Provider implements fleet.Provider
var _ fleet.Provider = (*Provider)(nil)

// Provider implements fleet.CatalogProvider
var _ fleet.CatalogProvider = (*Provider)(nil)

func NewProvider(cfg Config) (*Provider, error) {
	opts, err := openstack.AuthOptionsFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth options from env: %w", err)
	}

	client, err := openstack.AuthenticatedClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = os.Getenv("OS_REGION_NAME")
	}
	endpointOpts := gophercloud.EndpointOpts{Region: region}

	compute, err := openstack.NewComputeV2(client, endpointOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}
	clustering, err := openstack.NewClusteringV1(client, endpointOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to get clustering client: %w", err)
	}

	return newProvider(compute, clustering, cfg), nil
}

func newProvider(compute, clustering *gophercloud.ServiceClient, cfg Config) *Provider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		log:        logger.With("provider", "openstack"),
		compute:    compute,
		clustering: clustering,
	}
}

func (p *Provider) Name() string {
	return "openstack"
}
