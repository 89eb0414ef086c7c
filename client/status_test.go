package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nimbuslab/flotilla/fleet"
)

func TestFormatFiring_Unscheduled(t *testing.T) {
	assert.Equal(t, "unscheduled", formatFiring(nil))
}

func TestFormatFiring_Scheduled(t *testing.T) {
	at := time.Date(2026, 3, 16, 7, 0, 0, 0, time.Local)
	assert.Contains(t, formatFiring(&at), "2026-03-16 07:00:00")
}

func TestFormatInvocation_Never(t *testing.T) {
	assert.Equal(t, "never", formatInvocation(nil))
}

func TestFormatInvocation_Success(t *testing.T) {
	got := formatInvocation(&fleet.ReconciliationResult{
		Name:      "brave-otter",
		Action:    fleet.ActionStart,
		Timestamp: time.Date(2026, 3, 16, 7, 0, 2, 0, time.Local),
	})
	assert.Contains(t, got, "start brave-otter")
	assert.Contains(t, got, "2026-03-16 07:00:02")
	assert.Contains(t, got, "ok")
}

func TestFormatInvocation_Errors(t *testing.T) {
	got := formatInvocation(&fleet.ReconciliationResult{
		Name:   "tired-walrus",
		Action: fleet.ActionStop,
		Errors: []fleet.ErrorRecord{
			{Stage: fleet.StageCapacity, Message: "timeout"},
			{Stage: fleet.StageSweep, Message: "timeout"},
		},
	})
	assert.Contains(t, got, "stop tired-walrus")
	assert.Contains(t, got, "2 error(s)")
}

func TestFormatAccelerators_None(t *testing.T) {
	assert.Equal(t, "none", formatAccelerators(fleet.InstanceClass{Name: "m6i.large", VCPUs: 2}))
}

func TestFormatAccelerators_GPUs(t *testing.T) {
	class := fleet.InstanceClass{Name: "g4dn.12xlarge", VCPUs: 48, AcceleratorCount: 4, AcceleratorType: "nvidia-t4"}
	assert.Equal(t, "4x nvidia-t4", formatAccelerators(class))
}
