// Package plan loads and validates the fleet plan file: the YAML document
// declaring which capacity groups exist, when they wake and sleep, and which
// instance classes the account's catalog holds.
package plan

import (
	"fmt"
	"regexp"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"github.com/nimbuslab/flotilla/fleet"
)

const PlanVersion = "1"

type Plan struct {
	Version     string
	Project     string
	Environment string
	Groups      map[string]Group
	Catalog     []Class
}

type Group struct {
	Target    int32
	Role      string
	Lifecycle string
	Schedule  ScheduleWindow
}

// ScheduleWindow holds the cron expressions bounding a group's active hours.
// Either side may be empty; such a group only moves on manual triggers.
type ScheduleWindow struct {
	Start string
	Stop  string
}

type Class struct {
	Name             string
	VCPUs            int32  `yaml:"vcpus"`
	AcceleratorCount int32  `yaml:"accelerator-count"`
	AcceleratorType  string `yaml:"accelerator-type"`
	Family           string
}

var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]+$`)

func (plan Plan) Validate() error {
	if plan.Version != PlanVersion {
		return fmt.Errorf("unsupported version '%s'", plan.Version)
	}

	if !nameRegex.MatchString(plan.Project) {
		return fmt.Errorf("project must be a valid identifier")
	}
	if !nameRegex.MatchString(plan.Environment) {
		return fmt.Errorf("environment must be a valid identifier")
	}

	if len(plan.Groups) == 0 {
		return fmt.Errorf("at least one group is required")
	}
	for name, group := range plan.Groups {
		if !nameRegex.MatchString(name) {
			return fmt.Errorf("groups names must be valid identifiers")
		}
		if group.Target < 0 {
			return fmt.Errorf("groups[%s].target must not be negative", name)
		}
		if group.Role != "" && !nameRegex.MatchString(group.Role) {
			return fmt.Errorf("groups[%s].role must be a valid identifier", name)
		}
		if group.Lifecycle != "" && !nameRegex.MatchString(group.Lifecycle) {
			return fmt.Errorf("groups[%s].lifecycle must be a valid identifier", name)
		}
		if group.Schedule.Start != "" {
			if _, err := cron.ParseStandard(group.Schedule.Start); err != nil {
				return fmt.Errorf("groups[%s].schedule.start is not a valid cron expression: %w", name, err)
			}
		}
		if group.Schedule.Stop != "" {
			if _, err := cron.ParseStandard(group.Schedule.Stop); err != nil {
				return fmt.Errorf("groups[%s].schedule.stop is not a valid cron expression: %w", name, err)
			}
		}
	}

	for i, class := range plan.Catalog {
		if class.Name == "" {
			return fmt.Errorf("catalog[%d].name is required", i)
		}
		if class.VCPUs <= 0 {
			return fmt.Errorf("catalog[%s].vcpus must be positive", class.Name)
		}
		if class.Family == "" {
			return fmt.Errorf("catalog[%s].family is required", class.Name)
		}
	}

	return nil
}

// GroupSpecs converts the plan's groups into the fleet configuration shape,
// deriving each group's selector from the plan-level project and environment.
func (plan Plan) GroupSpecs() map[string]fleet.GroupSpec {
	return lo.MapValues(plan.Groups, func(group Group, name string) fleet.GroupSpec {
		return fleet.GroupSpec{
			Target: group.Target,
			Selector: fleet.TagSelector{
				Project:     plan.Project,
				Environment: plan.Environment,
				Role:        lo.Must(lo.Coalesce(group.Role, fleet.RoleCompute)),
				Lifecycle:   group.Lifecycle,
			},
		}
	})
}

// FleetCatalog converts the plan's catalog entries.
func (plan Plan) FleetCatalog() fleet.Catalog {
	return lo.Map(plan.Catalog, func(class Class, _ int) fleet.InstanceClass {
		return fleet.InstanceClass{
			Name:             class.Name,
			VCPUs:            class.VCPUs,
			AcceleratorCount: class.AcceleratorCount,
			AcceleratorType:  class.AcceleratorType,
			Family:           class.Family,
		}
	})
}
