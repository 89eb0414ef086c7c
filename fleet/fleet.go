// Package fleet holds the provider-agnostic core of flotilla: quota-aware
// instance class resolution, trigger-driven convergence of capacity-managed
// groups, and the tag-based power state sweep that backs it up.
package fleet

import (
	"fmt"
	"time"
)

// Action is the direction of a fleet transition.
type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionStart, ActionStop:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action '%s' (expected 'start' or 'stop')", s)
}

// Trigger is one firing of the schedule, or a manual invocation of it.
type Trigger struct {
	Action    Action    `json:"action"`
	Group     string    `json:"group"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}
