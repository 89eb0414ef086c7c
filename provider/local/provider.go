package local

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/samber/lo"

	"github.com/nimbuslab/flotilla/fleet"
	"github.com/nimbuslab/flotilla/provider/internal"
)

// Containers join the local fleet through these labels.
const (
	labelPrefix = "flotilla."
	labelGroup  = labelPrefix + "group"
)

// dockerClient is the subset of the Docker API the provider uses.
type dockerClient interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
}

// Provider drives plain Docker containers as a stand-in fleet, so the whole
// pipeline can run against a laptop instead of a cloud account. Containers
// belong to a capacity-managed group through the "flotilla.group" label and
// carry the selector tags as "flotilla.*" labels.
type Provider struct {
	log    *slog.Logger
	docker dockerClient
	config Config
}

// Provider implements fleet.Provider
var _ fleet.Provider = (*Provider)(nil)

func NewProvider(config Config) (*Provider, error) {
	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to init docker client: %w", err)
	}
	return newProvider(docker, config), nil
}

func newProvider(docker dockerClient, config Config) *Provider {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.QuotaVCPUs == 0 {
		config.QuotaVCPUs = int32(runtime.NumCPU())
	}
	return &Provider{
		log:    config.Logger.With("provider", "local"),
		docker: docker,
		config: config,
	}
}

func (p *Provider) Name() string {
	return "local"
}

// GetQuota reports the host's CPU count under both pricing models. A laptop
// has no spot market, but parity keeps resolution behaving exactly as it
// does against a cloud backend.
func (p *Provider) GetQuota(ctx context.Context, family string) (fleet.QuotaSet, error) {
	now := time.Now().UTC()
	return fleet.QuotaSet{
		OnDemand: &fleet.QuotaSnapshot{Family: family, PricingModel: fleet.PricingOnDemand, LimitVCPUs: p.config.QuotaVCPUs, AsOf: now},
		Spot:     &fleet.QuotaSnapshot{Family: family, PricingModel: fleet.PricingSpot, LimitVCPUs: p.config.QuotaVCPUs, AsOf: now},
	}, nil
}

func (p *Provider) GetGroupCapacity(ctx context.Context, groupID string) (fleet.FleetTarget, error) {
	members, err := p.groupMembers(ctx, groupID)
	if err != nil {
		return fleet.FleetTarget{}, err
	}
	if len(members) == 0 {
		return fleet.FleetTarget{}, fmt.Errorf("%w: no containers labeled '%s=%s'", fleet.ErrGroupNotFound, labelGroup, groupID)
	}

	running := lo.CountBy(members, func(c container.Summary) bool {
		return c.State == "running"
	})
	return fleet.FleetTarget{
		GroupID: groupID,
		Desired: int32(running),
		Min:     0,
		Max:     int32(len(members)),
	}, nil
}

// SetGroupCapacity starts or stops group members until the number of running
// containers matches desired. Containers cannot be created here, so a group
// never grows beyond the containers carrying its label; min has no local
// equivalent and is ignored.
func (p *Provider) SetGroupCapacity(ctx context.Context, groupID string, desired, min int32) error {
	members, err := p.groupMembers(ctx, groupID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return fmt.Errorf("%w: no containers labeled '%s=%s'", fleet.ErrGroupNotFound, labelGroup, groupID)
	}

	// Stable order so repeated calls touch the same containers.
	slices.SortFunc(members, func(a, b container.Summary) int {
		return strings.Compare(a.ID, b.ID)
	})

	running := lo.Filter(members, func(c container.Summary, _ int) bool {
		return c.State == "running"
	})

	switch {
	case int(desired) > len(running):
		candidates := lo.Filter(members, func(c container.Summary, _ int) bool {
			return c.State != "running"
		})
		need := int(desired) - len(running)
		if need > len(candidates) {
			p.log.Warn("Group has fewer containers than desired", "group", groupID, "desired", desired, "members", len(members))
			need = len(candidates)
		}
		for _, c := range candidates[:need] {
			if err := p.docker.ContainerStart(ctx, c.ID, container.StartOptions{}); err != nil {
				return fmt.Errorf("failed to start container '%s': %w", c.ID, err)
			}
		}
	case int(desired) < len(running):
		for _, c := range running[desired:] {
			if err := p.docker.ContainerStop(ctx, c.ID, container.StopOptions{}); err != nil {
				return fmt.Errorf("failed to stop container '%s': %w", c.ID, err)
			}
		}
	}
	return nil
}

func (p *Provider) ListTaggedResources(ctx context.Context, selector fleet.TagSelector) ([]fleet.TaggedResource, error) {
	args := filters.NewArgs(
		filters.Arg("label", labelPrefix+fleet.TagProject+"="+selector.Project),
		filters.Arg("label", labelPrefix+fleet.TagEnvironment+"="+selector.Environment),
		filters.Arg("label", labelPrefix+fleet.TagRole+"="+selector.Role),
	)
	if selector.Lifecycle != "" {
		args.Add("label", labelPrefix+fleet.TagLifecycle+"="+selector.Lifecycle)
	}

	list, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() ([]container.Summary, error) {
		return p.docker.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	return lo.Map(list, func(c container.Summary, _ int) fleet.TaggedResource {
		return fleet.TaggedResource{
			ID:         c.ID,
			Tags:       labelsToTags(c.Labels),
			PowerState: powerState(c.State),
		}
	}), nil
}

func (p *Provider) SetPowerState(ctx context.Context, resourceID string, state fleet.PowerState) error {
	switch state {
	case fleet.PowerRunning:
		if err := p.docker.ContainerStart(ctx, resourceID, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start container '%s': %w", resourceID, err)
		}
	case fleet.PowerStopped:
		if err := p.docker.ContainerStop(ctx, resourceID, container.StopOptions{}); err != nil {
			return fmt.Errorf("failed to stop container '%s': %w", resourceID, err)
		}
	default:
		return fmt.Errorf("unsupported power state '%s'", state)
	}
	return nil
}

func (p *Provider) groupMembers(ctx context.Context, groupID string) ([]container.Summary, error) {
	members, err := internal.RetryResult(ctx, internal.DefaultAttempts, func() ([]container.Summary, error) {
		return p.docker.ContainerList(ctx, container.ListOptions{
			All:     true,
			Filters: filters.NewArgs(filters.Arg("label", labelGroup+"="+groupID)),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list group containers: %w", err)
	}
	return members, nil
}

func labelsToTags(labels map[string]string) map[string]string {
	tags := make(map[string]string, len(labels))
	for key, value := range labels {
		if after, ok := strings.CutPrefix(key, labelPrefix); ok {
			tags[after] = value
		}
	}
	return tags
}

// powerState maps Docker container states onto the fleet model. Paused and
// dead containers need an operator, not a sweep.
func powerState(state string) fleet.PowerState {
	switch state {
	case "running":
		return fleet.PowerRunning
	case "restarting":
		return fleet.PowerPending
	case "removing":
		return fleet.PowerStopping
	case "created", "exited":
		return fleet.PowerStopped
	}
	return fleet.PowerUnknown
}
