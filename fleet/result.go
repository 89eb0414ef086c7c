package fleet

import (
	"time"

	"github.com/google/uuid"

	"github.com/nimbuslab/flotilla/namegen"
)

// Stage locates an error within an invocation.
type Stage string

const (
	StageCapacity Stage = "capacity"
	StageSweep    Stage = "sweep"
)

// ErrorRecord is one failure accumulated during an invocation. ResourceID is
// empty for failures not attributable to a single resource.
type ErrorRecord struct {
	Stage      Stage  `json:"stage"`
	ResourceID string `json:"resourceId,omitempty"`
	Message    string `json:"message"`
}

// ReconciliationResult is the audit record of one invocation. One is always
// produced, whether the invocation converged, partially failed, or could not
// run at all; the Errors slice tells the three apart.
type ReconciliationResult struct {
	ID                   string        `json:"id"`
	Name                 namegen.ID    `json:"name"`
	Timestamp            time.Time     `json:"timestamp"`
	Action               Action        `json:"action"`
	Group                string        `json:"group"`
	GroupCapacityUpdated bool          `json:"groupCapacityUpdated"`
	PreviousDesired      int32         `json:"previousDesired"`
	NewDesired           int32         `json:"newDesired"`
	ResourcesActedOn     []string      `json:"resourcesActedOn"`
	Errors               []ErrorRecord `json:"errors"`
}

func newResult(trigger Trigger) *ReconciliationResult {
	return &ReconciliationResult{
		ID:        uuid.NewString(),
		Name:      namegen.Get(),
		Timestamp: time.Now().UTC(),
		Action:    trigger.Action,
		Group:     trigger.Group,
	}
}

func (r *ReconciliationResult) recordError(stage Stage, resourceID string, err error) {
	r.Errors = append(r.Errors, ErrorRecord{
		Stage:      stage,
		ResourceID: resourceID,
		Message:    err.Error(),
	})
}

// Succeeded reports whether the invocation completed without any error.
func (r *ReconciliationResult) Succeeded() bool {
	return len(r.Errors) == 0
}
