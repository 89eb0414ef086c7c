package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(provider Provider, concurrency int) *Reconciler {
	return NewReconciler(provider, concurrency, newTestLogger())
}

func TestSweepStartsOnlyStoppedResources(t *testing.T) {
	provider := newMockProvider()
	provider.resources = []TaggedResource{
		testResource("i-0aaa", PowerStopped),
		testResource("i-0bbb", PowerRunning),
		testResource("i-0ccc", PowerStopped),
		testResource("i-0ddd", PowerStopping),
		testResource("i-0eee", PowerUnknown),
	}

	acted, errs := newTestReconciler(provider, 0).Sweep(context.Background(), ActionStart, newTestSelector())

	assert.Empty(t, errs)
	assert.Equal(t, []string{"i-0aaa", "i-0ccc"}, acted)
	for _, call := range provider.getPowerCalls() {
		assert.Equal(t, PowerRunning, call.state)
	}
}

func TestSweepStopsRunningAndPendingResources(t *testing.T) {
	provider := newMockProvider()
	provider.resources = []TaggedResource{
		testResource("i-0aaa", PowerRunning),
		testResource("i-0bbb", PowerPending),
		testResource("i-0ccc", PowerStopped),
		testResource("i-0ddd", PowerStopping),
	}

	acted, errs := newTestReconciler(provider, 0).Sweep(context.Background(), ActionStop, newTestSelector())

	assert.Empty(t, errs)
	assert.Equal(t, []string{"i-0aaa", "i-0bbb"}, acted)
	for _, call := range provider.getPowerCalls() {
		assert.Equal(t, PowerStopped, call.state)
	}
}

func TestSweepAccumulatesIndependentFailures(t *testing.T) {
	provider := newMockProvider()
	provider.resources = []TaggedResource{
		testResource("i-0aaa", PowerStopped),
		testResource("i-0bbb", PowerStopped),
		testResource("i-0ccc", PowerStopped),
	}
	provider.powerErr["i-0bbb"] = errors.New("insufficient capacity")

	acted, errs := newTestReconciler(provider, 0).Sweep(context.Background(), ActionStart, newTestSelector())

	assert.Equal(t, []string{"i-0aaa", "i-0ccc"}, acted)
	require.Len(t, errs, 1)
	assert.Equal(t, StageSweep, errs[0].Stage)
	assert.Equal(t, "i-0bbb", errs[0].ResourceID)
	assert.Contains(t, errs[0].Message, "insufficient capacity")
}

func TestSweepListFailure(t *testing.T) {
	provider := newMockProvider()
	provider.listErr = errors.New("api unreachable")

	acted, errs := newTestReconciler(provider, 0).Sweep(context.Background(), ActionStart, newTestSelector())

	assert.Empty(t, acted)
	require.Len(t, errs, 1)
	assert.Equal(t, StageSweep, errs[0].Stage)
	assert.Empty(t, errs[0].ResourceID)
	assert.Contains(t, errs[0].Message, "api unreachable")
}

func TestSweepIgnoresResourcesOutsideSelector(t *testing.T) {
	provider := newMockProvider()
	stray := testResource("i-0zzz", PowerStopped)
	stray.Tags[TagEnvironment] = "production"
	provider.resources = []TaggedResource{
		testResource("i-0aaa", PowerStopped),
		stray,
	}

	acted, errs := newTestReconciler(provider, 0).Sweep(context.Background(), ActionStart, newTestSelector())

	assert.Empty(t, errs)
	assert.Equal(t, []string{"i-0aaa"}, acted)
}

func TestSweepWithNothingToDo(t *testing.T) {
	provider := newMockProvider()
	provider.resources = []TaggedResource{testResource("i-0aaa", PowerRunning)}

	acted, errs := newTestReconciler(provider, 0).Sweep(context.Background(), ActionStart, newTestSelector())

	assert.Empty(t, acted)
	assert.Empty(t, errs)
	assert.Empty(t, provider.getPowerCalls())
}

func TestSweepBoundsConcurrency(t *testing.T) {
	provider := newMockProvider()
	provider.powerDelay = 10 * time.Millisecond
	for _, id := range []string{"i-01", "i-02", "i-03", "i-04", "i-05", "i-06"} {
		provider.resources = append(provider.resources, testResource(id, PowerStopped))
	}

	acted, errs := newTestReconciler(provider, 2).Sweep(context.Background(), ActionStart, newTestSelector())

	assert.Empty(t, errs)
	assert.Len(t, acted, 6)
	assert.LessOrEqual(t, provider.maxInFlight, 2)
}

func TestSelectorLifecycleRestriction(t *testing.T) {
	selector := newTestSelector()
	selector.Lifecycle = "scheduled"

	tagged := testResource("i-0aaa", PowerStopped)
	tagged.Tags[TagLifecycle] = "scheduled"
	untagged := testResource("i-0bbb", PowerStopped)

	assert.True(t, selector.Matches(tagged.Tags))
	assert.False(t, selector.Matches(untagged.Tags))
}
