package fleet

import (
	"context"
)

// PowerState is the normalized lifecycle state of a compute resource. Each
// provider adapter maps its platform's states onto these; anything that does
// not map cleanly is PowerUnknown and never eligible for a transition.
type PowerState string

const (
	PowerRunning  PowerState = "running"
	PowerPending  PowerState = "pending"
	PowerStopping PowerState = "stopping"
	PowerStopped  PowerState = "stopped"
	PowerUnknown  PowerState = "unknown"
)

// Well-known tag keys shared by all provider adapters.
const (
	TagProject     = "project"
	TagEnvironment = "environment"
	TagRole        = "role"
	TagLifecycle   = "lifecycle"
)

// RoleCompute is the resource role the sweep targets by default.
const RoleCompute = "compute"

// TagSelector identifies the resources a sweep is allowed to touch. Project
// and Environment are required; Role defaults to RoleCompute. Lifecycle is
// optional and restricts the sweep to resources carrying that lifecycle tag.
type TagSelector struct {
	Project     string `json:"project" yaml:"project"`
	Environment string `json:"environment" yaml:"environment"`
	Role        string `json:"role" yaml:"role"`
	Lifecycle   string `json:"lifecycle,omitempty" yaml:"lifecycle,omitempty"`
}

// Matches reports whether a resource's tags satisfy the selector. Adapters
// whose platform cannot filter server-side use this to filter client-side.
func (s TagSelector) Matches(tags map[string]string) bool {
	if tags[TagProject] != s.Project || tags[TagEnvironment] != s.Environment {
		return false
	}
	if tags[TagRole] != s.Role {
		return false
	}
	if s.Lifecycle != "" && tags[TagLifecycle] != s.Lifecycle {
		return false
	}
	return true
}

// TaggedResource is one compute resource as seen by the sweep.
type TaggedResource struct {
	ID         string            `json:"id"`
	Tags       map[string]string `json:"tags"`
	PowerState PowerState        `json:"powerState"`
}

// FleetTarget is the capacity state of a managed group.
type FleetTarget struct {
	GroupID string `json:"groupId"`
	Desired int32  `json:"desired"`
	Min     int32  `json:"min"`
	Max     int32  `json:"max"`
}

// Provider adapts one cloud backend to the fleet core. Implementations live
// under provider/ and are the only packages that talk to platform SDKs; the
// core never branches on which backend it is driving.
//
// All methods take a context and honor its cancellation. Transient platform
// failures are retried inside the adapter; errors that escape are either
// permanent or have exhausted their retry budget.
type Provider interface {
	// Name identifies the backend ("aws", "azure", "openstack", "local").
	Name() string

	// GetQuota returns the current vCPU quota snapshots for an accelerator
	// family. A pricing model the platform has no market for is reported as
	// a nil snapshot, not an error.
	GetQuota(ctx context.Context, family string) (QuotaSet, error)

	// GetGroupCapacity returns the capacity state of a managed group.
	// Returns an error wrapping ErrGroupNotFound when the group does not
	// exist.
	GetGroupCapacity(ctx context.Context, groupID string) (FleetTarget, error)

	// SetGroupCapacity updates the group's desired capacity and minimum
	// count in one call.
	SetGroupCapacity(ctx context.Context, groupID string, desired, min int32) error

	// ListTaggedResources returns the resources matching the selector,
	// whatever their power state.
	ListTaggedResources(ctx context.Context, selector TagSelector) ([]TaggedResource, error)

	// SetPowerState drives one resource towards the given state. Only
	// PowerRunning and PowerStopped are valid targets.
	SetPowerState(ctx context.Context, resourceID string, state PowerState) error
}

// CatalogProvider is implemented by adapters that can enumerate the instance
// classes of an accelerator family, sparing the operator a hand-written
// catalog.
type CatalogProvider interface {
	DiscoverCatalog(ctx context.Context, family string) (Catalog, error)
}
