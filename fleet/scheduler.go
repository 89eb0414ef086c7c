package fleet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nimbuslab/flotilla/fleet/internal"
)

// Scheduler turns triggers into capacity transitions on the provider. Every
// invocation drives the capacity-managed group first, then hands over to the
// tag sweep so that resources the group does not track still converge.
type Scheduler struct {
	provider   Provider
	reconciler *Reconciler
	config     Config
	log        *slog.Logger
}

func NewScheduler(provider Provider, config Config) *Scheduler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.SweepConcurrency == 0 {
		config.SweepConcurrency = DefaultSweepConcurrency
	}

	return &Scheduler{
		provider:   provider,
		reconciler: NewReconciler(provider, config.SweepConcurrency, logger),
		config:     config,
		log:        logger.With("component", "scheduler", "provider", provider.Name()),
	}
}

// Invoke runs one reconciliation for a trigger and always returns its audit
// record, never nil. Firing the same trigger twice in a row is harmless: a
// group already in the desired state is left untouched.
func (s *Scheduler) Invoke(ctx context.Context, trigger Trigger) *ReconciliationResult {
	result := newResult(trigger)
	log := s.log.With("invocation", result.Name, "group", trigger.Group, "action", trigger.Action)

	group, ok := s.config.Groups[trigger.Group]
	if !ok {
		log.Error("Group is not part of the fleet plan")
		result.recordError(StageCapacity, "", fmt.Errorf("%w: '%s' is not configured", ErrGroupNotFound, trigger.Group))
		return result
	}

	switch trigger.Action {
	case ActionStart:
		s.onStart(ctx, log, trigger.Group, group, result)
	case ActionStop:
		s.onStop(ctx, log, trigger.Group, result)
	default:
		result.recordError(StageCapacity, "", fmt.Errorf("unknown trigger action '%s'", trigger.Action))
		return result
	}

	// The sweep runs even when the capacity phase failed: resources outside
	// the group's bookkeeping must converge regardless.
	acted, sweepErrors := s.reconciler.Sweep(ctx, trigger.Action, group.Selector)
	result.ResourcesActedOn = acted
	result.Errors = append(result.Errors, sweepErrors...)

	log.Info("Invocation complete",
		"capacityUpdated", result.GroupCapacityUpdated,
		"resources", len(result.ResourcesActedOn),
		"errors", len(result.Errors),
	)
	return result
}

// onStart raises the group's desired capacity to the larger of the plan
// target and the group's own minimum. A group that is merely scaled below
// target but not parked is left alone, and the minimum count is never
// lowered on this path.
func (s *Scheduler) onStart(ctx context.Context, log *slog.Logger, groupID string, group GroupSpec, result *ReconciliationResult) {
	target, err := s.provider.GetGroupCapacity(ctx, groupID)
	if err != nil {
		log.Error("Failed to read group capacity", "error", err)
		result.recordError(StageCapacity, "", err)
		return
	}
	result.PreviousDesired = target.Desired
	result.NewDesired = target.Desired

	if !internal.StartNeeded(target.Desired, group.Target, target.Min) {
		log.Debug("Group already at capacity", "desired", target.Desired)
		return
	}

	desired := internal.DesiredAfterStart(group.Target, target.Min, target.Max)
	if err := s.provider.SetGroupCapacity(ctx, groupID, desired, target.Min); err != nil {
		log.Error("Failed to raise group capacity", "desired", desired, "error", err)
		result.recordError(StageCapacity, "", err)
		return
	}

	result.GroupCapacityUpdated = true
	result.NewDesired = desired
	log.Info("Raised group capacity", "from", target.Desired, "to", desired)
}

// onStop drives the group to zero. A non-zero minimum count would make the
// platform immediately replace the instances, so it is cleared in the same
// call that zeroes the desired capacity.
func (s *Scheduler) onStop(ctx context.Context, log *slog.Logger, groupID string, result *ReconciliationResult) {
	target, err := s.provider.GetGroupCapacity(ctx, groupID)
	if err != nil {
		log.Error("Failed to read group capacity", "error", err)
		result.recordError(StageCapacity, "", err)
		return
	}
	result.PreviousDesired = target.Desired
	result.NewDesired = target.Desired

	if !internal.StopNeeded(target.Desired, target.Min) {
		log.Debug("Group already stopped")
		return
	}

	if err := s.provider.SetGroupCapacity(ctx, groupID, 0, 0); err != nil {
		log.Error("Failed to lower group capacity", "error", err)
		result.recordError(StageCapacity, "", err)
		return
	}

	result.GroupCapacityUpdated = true
	result.NewDesired = 0
	log.Info("Lowered group capacity to zero", "from", target.Desired)
}
