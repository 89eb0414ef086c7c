package fleet

import (
	"fmt"
	"log/slog"
)

// GroupSpec ties one capacity-managed group to its start target and the tag
// selector its sweep runs under. The group name is the provider-side group
// identifier (ASG name, VMSS ID, cluster ID).
type GroupSpec struct {
	Target   int32       `json:"target" yaml:"target"`
	Selector TagSelector `json:"selector" yaml:"selector"`
}

type Config struct {
	Logger           *slog.Logger         `json:"-"`
	Groups           map[string]GroupSpec `json:"groups"`
	SweepConcurrency int                  `json:"sweep-concurrency"`
}

// DefaultSweepConcurrency bounds the per-resource fan-out when the config
// does not say otherwise.
const DefaultSweepConcurrency = 8

func Validate(config Config) error {
	if len(config.Groups) == 0 {
		return fmt.Errorf("at least one group must be configured")
	}
	for name, group := range config.Groups {
		if group.Target < 0 {
			return fmt.Errorf("target for group '%s' must not be negative", name)
		}
		if group.Selector.Project == "" || group.Selector.Environment == "" {
			return fmt.Errorf("selector for group '%s' must set project and environment", name)
		}
	}
	if config.SweepConcurrency < 0 {
		return fmt.Errorf("sweep-concurrency must not be negative")
	}
	return nil
}
