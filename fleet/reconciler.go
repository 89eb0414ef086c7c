package fleet

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Reconciler is the belt-and-suspenders half of an invocation: instead of
// trusting the capacity-managed group's bookkeeping, it finds every resource
// matching the tag selector and converges its power state directly. Anything
// the group lost track of still ends up in the right state.
type Reconciler struct {
	provider    Provider
	concurrency int
	log         *slog.Logger
}

func NewReconciler(provider Provider, concurrency int, logger *slog.Logger) *Reconciler {
	if concurrency <= 0 {
		concurrency = DefaultSweepConcurrency
	}
	return &Reconciler{
		provider:    provider,
		concurrency: concurrency,
		log:         logger.With("component", "reconciler", "provider", provider.Name()),
	}
}

// Sweep transitions every eligible resource matching the selector towards
// the action's desired power state. Resources fail independently: one stuck
// instance never blocks the rest of the sweep.
func (r *Reconciler) Sweep(ctx context.Context, action Action, selector TagSelector) ([]string, []ErrorRecord) {
	resources, err := r.provider.ListTaggedResources(ctx, selector)
	if err != nil {
		r.log.Error("Failed to list tagged resources", "error", err)
		return nil, []ErrorRecord{{
			Stage:   StageSweep,
			Message: fmt.Sprintf("failed to list tagged resources: %v", err),
		}}
	}

	desired := PowerStopped
	if action == ActionStart {
		desired = PowerRunning
	}

	var (
		wg     sync.WaitGroup
		mutex  sync.Mutex
		acted  []string
		failed []ErrorRecord
	)
	tokens := make(chan struct{}, r.concurrency)

	for _, resource := range resources {
		if !eligible(action, resource.PowerState) {
			continue
		}

		wg.Add(1)
		go func(resource TaggedResource) {
			defer wg.Done()
			tokens <- struct{}{}
			defer func() { <-tokens }()

			if err := r.provider.SetPowerState(ctx, resource.ID, desired); err != nil {
				r.log.Warn("Power state transition failed", "resource", resource.ID, "desired", desired, "error", err)
				mutex.Lock()
				failed = append(failed, ErrorRecord{Stage: StageSweep, ResourceID: resource.ID, Message: err.Error()})
				mutex.Unlock()
				return
			}

			r.log.Debug("Power state transition applied", "resource", resource.ID, "desired", desired)
			mutex.Lock()
			acted = append(acted, resource.ID)
			mutex.Unlock()
		}(resource)
	}
	wg.Wait()

	slices.Sort(acted)
	slices.SortFunc(failed, func(a, b ErrorRecord) int {
		return cmp.Compare(a.ResourceID, b.ResourceID)
	})
	return acted, failed
}

// eligible reports whether a resource's current power state allows it to
// take part in the action. Transitional and unknown states are left alone;
// the next sweep will pick them up.
func eligible(action Action, state PowerState) bool {
	switch action {
	case ActionStart:
		return state == PowerStopped
	case ActionStop:
		return state == PowerRunning || state == PowerPending
	}
	return false
}
